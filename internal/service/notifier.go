package service

import (
	"context"
	"log"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"dispatch/internal/domain"
)

// Channel delivers a rendered notification and returns the provider's message id.
type Channel interface {
	Send(ctx context.Context, n domain.Notification) (string, error)
}

// DispatchNotifier is the notification surface the dispatch coordinator depends on.
type DispatchNotifier interface {
	NotifyDispatch(ctx context.Context, b *domain.Booking) DeliveryOutcome
	NotifyAccepted(ctx context.Context, b *domain.Booking) DeliveryOutcome
	NotifyRejected(ctx context.Context, b *domain.Booking, c domain.Candidate) DeliveryOutcome
}

var _ DispatchNotifier = (*Notifier)(nil)

// DeliveryOutcome reports how a notification fared. A failed delivery is
// informational: the booking state it relates to has already been saved.
type DeliveryOutcome struct {
	Sent      bool
	Attempts  int
	LastError string
	MessageID string
}

// RetryPolicy bounds notification retries with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy makes three attempts, waiting 1s then 2s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns the wait after the given zero-based failed attempt: BaseDelay * 2^attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		return p.MaxDelay
	}
	return d
}

// WaitFunc suspends the calling goroutine for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// sleepContext waits on a timer so only the current unit of work is suspended.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Notifier renders driver messages and delivers them with retries.
type Notifier struct {
	channel     Channel
	policy      RetryPolicy
	countryCode string
	wait        WaitFunc
}

// NewNotifier creates a new Notifier.
func NewNotifier(channel Channel, policy RetryPolicy, countryCode string) *Notifier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if countryCode == "" {
		countryCode = domain.DefaultCountryCode
	}
	return &Notifier{
		channel:     channel,
		policy:      policy,
		countryCode: countryCode,
		wait:        sleepContext,
	}
}

// SetWaitFunc replaces the backoff wait. Tests use it to avoid real sleeps.
func (n *Notifier) SetWaitFunc(wait WaitFunc) {
	n.wait = wait
}

// NotifyDispatch asks the booking's assigned candidate to accept or reject.
func (n *Notifier) NotifyDispatch(ctx context.Context, b *domain.Booking) DeliveryOutcome {
	return n.deliver(ctx, b.Candidate, renderDispatch(b, b.Candidate))
}

// NotifyAccepted confirms the acceptance to the assigned driver, with the patient location.
func (n *Notifier) NotifyAccepted(ctx context.Context, b *domain.Booking) DeliveryOutcome {
	return n.deliver(ctx, b.Candidate, renderAccepted(b, b.Candidate))
}

// NotifyRejected acknowledges a rejection to the driver who declined.
func (n *Notifier) NotifyRejected(ctx context.Context, b *domain.Booking, c domain.Candidate) DeliveryOutcome {
	return n.deliver(ctx, c, renderRejected(b, c))
}

func (n *Notifier) deliver(ctx context.Context, c domain.Candidate, msg domain.Notification) DeliveryOutcome {
	msg.Recipient = domain.E164(c.DriverContact, n.countryCode)

	var outcome DeliveryOutcome
	for attempt := 0; attempt < n.policy.MaxAttempts; attempt++ {
		outcome.Attempts = attempt + 1

		id, err := n.sendOnce(ctx, msg)
		if err == nil {
			outcome.Sent = true
			outcome.MessageID = id
			outcome.LastError = ""
			if attempt > 0 {
				log.Printf("[NOTIFIER] %s for booking %s delivered on attempt %d", msg.Kind, msg.BookingID, outcome.Attempts)
			}
			return outcome
		}

		outcome.LastError = err.Error()
		log.Printf("[NOTIFIER] attempt %d/%d: %s for booking %s to %s failed: %v",
			outcome.Attempts, n.policy.MaxAttempts, msg.Kind, msg.BookingID, msg.Recipient, err)

		if outcome.Attempts == n.policy.MaxAttempts {
			break
		}
		if err := n.wait(ctx, n.policy.Delay(attempt)); err != nil {
			outcome.LastError = err.Error()
			break
		}
	}

	log.Printf("[NOTIFIER] giving up on %s for booking %s after %d attempt(s): %s",
		msg.Kind, msg.BookingID, outcome.Attempts, outcome.LastError)
	return outcome
}

func (n *Notifier) sendOnce(ctx context.Context, msg domain.Notification) (string, error) {
	if txn := newrelic.FromContext(ctx); txn != nil {
		segment := txn.StartSegment("Notifier/" + string(msg.Kind))
		defer segment.End()
	}
	return n.channel.Send(ctx, msg)
}
