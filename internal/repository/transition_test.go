package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
)

func pendingBooking() *domain.Booking {
	return &domain.Booking{
		ID:        "b-1",
		Status:    domain.BookingStatusPending,
		Round:     1,
		Candidate: domain.Candidate{VehicleID: "KA-01", DriverContact: "9876543210"},
		History:   []domain.StatusEntry{{Status: domain.BookingStatusPending, Details: "created"}},
	}
}

func TestApply_AppendsHistory(t *testing.T) {
	b := pendingBooking()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := Apply(b, Transition{From: domain.BookingStatusPending, To: domain.BookingStatusAccepted, Details: "driver accepted"}, now)
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusAccepted, b.Status)
	require.Len(t, b.History, 2)
	assert.Equal(t, domain.StatusEntry{Status: domain.BookingStatusAccepted, Timestamp: now, Details: "driver accepted"}, b.History[1])
	assert.Equal(t, now, b.UpdatedAt)
}

func TestApply_WrongStatus_Conflict(t *testing.T) {
	b := pendingBooking()

	err := Apply(b, Transition{From: domain.BookingStatusRejected, To: domain.BookingStatusPending}, time.Now())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, b.History, 1, "a failed transition must not append history")
}

func TestApply_RoundGuard(t *testing.T) {
	b := pendingBooking()
	b.Round = 2

	err := Apply(b, Transition{From: domain.BookingStatusPending, To: domain.BookingStatusRejected, Round: 1}, time.Now())
	assert.ErrorIs(t, err, ErrConflict)

	err = Apply(b, Transition{From: domain.BookingStatusPending, To: domain.BookingStatusRejected, Round: 2}, time.Now())
	assert.NoError(t, err)
}

func TestApply_ReassignmentRound(t *testing.T) {
	b := pendingBooking()

	require.NoError(t, Apply(b, Transition{
		From:           domain.BookingStatusPending,
		To:             domain.BookingStatusRejected,
		Details:        "driver rejected",
		ExcludeCurrent: true,
	}, time.Now()))
	assert.Equal(t, []string{"KA-01"}, b.ExcludedVehicles)

	next := &domain.Candidate{VehicleID: "KA-02", DriverContact: "9123456780"}
	require.NoError(t, Apply(b, Transition{
		From:      domain.BookingStatusRejected,
		To:        domain.BookingStatusPending,
		Details:   "reassigned",
		Candidate: next,
	}, time.Now()))

	assert.Equal(t, 2, b.Round)
	assert.Equal(t, "KA-02", b.Candidate.VehicleID)
	assert.Len(t, b.History, 3)
	last, _ := b.LastEntry()
	assert.Equal(t, b.Status, last.Status)
}
