package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPendingTimers_FireOnce(t *testing.T) {
	p := newPendingTimers(10 * time.Millisecond)
	var fired int32

	p.arm("b-1", func() { atomic.AddInt32(&fired, 1) })

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&fired) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, p.len())
}

func TestPendingTimers_RearmReplaces(t *testing.T) {
	p := newPendingTimers(20 * time.Millisecond)
	var first, second int32

	p.arm("b-1", func() { atomic.AddInt32(&first, 1) })
	p.arm("b-1", func() { atomic.AddInt32(&second, 1) })
	assert.Equal(t, 1, p.len())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&second) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&first))
}

func TestPendingTimers_StopAndStopAll(t *testing.T) {
	p := newPendingTimers(20 * time.Millisecond)
	var fired int32

	p.arm("b-1", func() { atomic.AddInt32(&fired, 1) })
	p.arm("b-2", func() { atomic.AddInt32(&fired, 1) })
	p.arm("b-3", func() { atomic.AddInt32(&fired, 1) })
	p.stop("b-1")
	assert.Equal(t, 2, p.len())

	p.stopAll()
	assert.Equal(t, 0, p.len())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestPendingTimers_ZeroTimeoutDisabled(t *testing.T) {
	p := newPendingTimers(0)
	p.arm("b-1", func() { t.Error("disabled timer fired") })
	assert.Equal(t, 0, p.len())
}
