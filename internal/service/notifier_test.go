package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
)

type scriptedChannel struct {
	mu       sync.Mutex
	failures int
	sent     []domain.Notification
	calls    int
}

func (c *scriptedChannel) Send(ctx context.Context, n domain.Notification) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return "", errors.New("gateway timeout")
	}
	c.sent = append(c.sent, n)
	return "SM123", nil
}

func newTestNotifier(ch Channel, policy RetryPolicy) (*Notifier, *[]time.Duration) {
	var waits []time.Duration
	n := NewNotifier(ch, policy, "")
	n.SetWaitFunc(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	})
	return n, &waits
}

func testBooking() *domain.Booking {
	return &domain.Booking{
		ID:            "b-1",
		EmergencyType: domain.EmergencyTypeCardiac,
		Location:      domain.Location{Latitude: 12.97, Longitude: 77.59, Address: "MG Road"},
		Candidate:     domain.Candidate{VehicleID: "KA01AB1234", DriverContact: "9876543210", DeviceToken: "tok"},
		Status:        domain.BookingStatusPending,
		Round:         1,
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 30*time.Second, p.Delay(10), "delay is capped")
	assert.Equal(t, 30*time.Second, p.Delay(80), "overflow is capped")
}

func TestNotifier_FirstAttemptSucceeds(t *testing.T) {
	ch := &scriptedChannel{}
	n, waits := newTestNotifier(ch, DefaultRetryPolicy())

	outcome := n.NotifyDispatch(context.Background(), testBooking())

	assert.True(t, outcome.Sent)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, "SM123", outcome.MessageID)
	assert.Empty(t, *waits)
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "+919876543210", ch.sent[0].Recipient)
	assert.Equal(t, "tok", ch.sent[0].DeviceToken)
}

func TestNotifier_RecoversAfterFailures(t *testing.T) {
	ch := &scriptedChannel{failures: 2}
	n, waits := newTestNotifier(ch, DefaultRetryPolicy())

	outcome := n.NotifyDispatch(context.Background(), testBooking())

	assert.True(t, outcome.Sent)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Empty(t, outcome.LastError)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestNotifier_GivesUpAfterMaxAttempts(t *testing.T) {
	ch := &scriptedChannel{failures: 100}
	n, waits := newTestNotifier(ch, DefaultRetryPolicy())

	outcome := n.NotifyAccepted(context.Background(), testBooking())

	assert.False(t, outcome.Sent)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, "gateway timeout", outcome.LastError)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits, "no wait after the final attempt")
	assert.Equal(t, 3, ch.calls)
}

func TestNotifier_CustomAttempts(t *testing.T) {
	ch := &scriptedChannel{failures: 100}
	n, waits := newTestNotifier(ch, RetryPolicy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond})

	outcome := n.NotifyDispatch(context.Background(), testBooking())

	assert.Equal(t, 4, outcome.Attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond}, *waits)
}

func TestNotifier_ZeroAttemptsStillTriesOnce(t *testing.T) {
	ch := &scriptedChannel{}
	n := NewNotifier(ch, RetryPolicy{}, "")

	outcome := n.NotifyDispatch(context.Background(), testBooking())

	assert.True(t, outcome.Sent)
	assert.Equal(t, 1, outcome.Attempts)
}

func TestNotifier_CancelledContextStopsBackoff(t *testing.T) {
	ch := &scriptedChannel{failures: 100}
	n := NewNotifier(ch, DefaultRetryPolicy(), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := n.NotifyDispatch(ctx, testBooking())

	assert.False(t, outcome.Sent)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, context.Canceled.Error(), outcome.LastError)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))
	require.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestRenderDispatch(t *testing.T) {
	b := testBooking()
	n := renderDispatch(b, b.Candidate)

	assert.Equal(t, domain.NotificationDispatch, n.Kind)
	assert.Contains(t, n.Body, "Type: Cardiac")
	assert.Contains(t, n.Body, "Location: MG Road")
	assert.Contains(t, n.Body, "Coordinates: 12.97, 77.59")
	assert.Contains(t, n.Body, "Booking ID: b-1")
	assert.True(t, strings.HasSuffix(n.Body, `Reply "YES" to accept or "NO" to reject.`))
	assert.Equal(t, "b-1", n.Data["booking_id"])
	assert.Equal(t, "KA01AB1234", n.Data["vehicle_id"])
}

func TestRenderRejected_AddressesPreviousDriver(t *testing.T) {
	b := testBooking()
	previous := domain.Candidate{VehicleID: "KA01ZZ0001", DriverContact: "9000000001"}

	ch := &scriptedChannel{}
	n := NewNotifier(ch, DefaultRetryPolicy(), "")
	n.NotifyRejected(context.Background(), b, previous)

	require.Len(t, ch.sent, 1)
	assert.Equal(t, "+919000000001", ch.sent[0].Recipient)
	assert.Equal(t, domain.NotificationRejected, ch.sent[0].Kind)
	assert.Contains(t, ch.sent[0].Body, "reassigned to another ambulance")
}
