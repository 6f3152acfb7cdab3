package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingStatusPending, BookingStatusAccepted, true},
		{BookingStatusPending, BookingStatusRejected, true},
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusPending, BookingStatusCompleted, false},
		{BookingStatusPending, BookingStatusInProgress, false},
		{BookingStatusRejected, BookingStatusPending, true},
		{BookingStatusRejected, BookingStatusCancelled, true},
		{BookingStatusRejected, BookingStatusAccepted, false},
		{BookingStatusAccepted, BookingStatusInProgress, true},
		{BookingStatusAccepted, BookingStatusCompleted, true},
		{BookingStatusAccepted, BookingStatusCancelled, true},
		{BookingStatusAccepted, BookingStatusPending, false},
		{BookingStatusInProgress, BookingStatusCompleted, true},
		{BookingStatusInProgress, BookingStatusCancelled, true},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusCancelled, BookingStatusPending, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestBookingStatus_IsTerminal(t *testing.T) {
	assert.True(t, BookingStatusCompleted.IsTerminal())
	assert.True(t, BookingStatusCancelled.IsTerminal())
	assert.False(t, BookingStatusPending.IsTerminal())
	assert.False(t, BookingStatusRejected.IsTerminal())
}

func TestParseEmergencyType(t *testing.T) {
	got, ok := ParseEmergencyType("  Cardiac ")
	assert.True(t, ok)
	assert.Equal(t, EmergencyTypeCardiac, got)
	assert.Equal(t, "Cardiac", got.Title())

	_, ok = ParseEmergencyType("sprained ankle")
	assert.False(t, ok)
}

func TestParseBookingStatus(t *testing.T) {
	got, ok := ParseBookingStatus("in_progress")
	assert.True(t, ok)
	assert.Equal(t, BookingStatusInProgress, got)

	_, ok = ParseBookingStatus("DONE")
	assert.False(t, ok)
}

func TestCoordinates_RoundTrip(t *testing.T) {
	c := Coordinates{Latitude: 12.97, Longitude: -77.59}
	assert.Equal(t, "(12.97, -77.59)", c.String())

	parsed, err := ParseCoordinates(c.String())
	require.NoError(t, err)
	assert.Equal(t, c, parsed)

	_, err = ParseCoordinates("somewhere")
	assert.Error(t, err)
}

func TestBooking_CloneIsDeep(t *testing.T) {
	b := &Booking{
		ID:               "b-1",
		Status:           BookingStatusPending,
		History:          []StatusEntry{{Status: BookingStatusPending, Details: "created"}},
		ExcludedVehicles: []string{"KA-01"},
	}

	c := b.Clone()
	c.History[0].Details = "changed"
	c.ExcludedVehicles[0] = "KA-02"

	assert.Equal(t, "created", b.History[0].Details)
	assert.Equal(t, "KA-01", b.ExcludedVehicles[0])

	last, ok := b.LastEntry()
	assert.True(t, ok)
	assert.Equal(t, b.Status, last.Status)
}

func TestCandidateQuery_Excludes(t *testing.T) {
	q := CandidateQuery{Exclude: []string{"KA-01", "KA-02"}}
	assert.True(t, q.Excludes("KA-02"))
	assert.False(t, q.Excludes("KA-03"))
}
