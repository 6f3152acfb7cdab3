package service

import (
	"sync"
	"time"
)

// pendingTimers holds one one-shot timer per PENDING booking round.
// A zero timeout disables them.
type pendingTimers struct {
	mu      sync.Mutex
	timeout time.Duration
	timers  map[string]*time.Timer
}

func newPendingTimers(timeout time.Duration) *pendingTimers {
	return &pendingTimers{
		timeout: timeout,
		timers:  make(map[string]*time.Timer),
	}
}

// arm replaces any timer for the booking with a new one running fire.
func (p *pendingTimers) arm(bookingID string, fire func()) {
	if p.timeout <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.timers[bookingID]; ok {
		existing.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(p.timeout, func() {
		p.mu.Lock()
		if p.timers[bookingID] == t {
			delete(p.timers, bookingID)
		}
		p.mu.Unlock()
		fire()
	})
	p.timers[bookingID] = t
}

// stop cancels the booking's timer, if any.
func (p *pendingTimers) stop(bookingID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.timers[bookingID]; ok {
		t.Stop()
		delete(p.timers, bookingID)
	}
}

// stopAll cancels every timer.
func (p *pendingTimers) stopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
}

// len returns the number of armed timers.
func (p *pendingTimers) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}
