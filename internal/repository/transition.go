package repository

import (
	"time"

	"dispatch/internal/domain"
)

// Transition describes a compare-and-set status change on a booking.
type Transition struct {
	From    domain.BookingStatus
	To      domain.BookingStatus
	Details string

	// Candidate, when set, replaces the assigned candidate and starts a new round.
	Candidate *domain.Candidate

	// Round, when positive, restricts the transition to that reassignment round.
	Round int

	// ExcludeCurrent adds the currently assigned vehicle to the exclusion list.
	ExcludeCurrent bool
}

// Apply validates t against b and mutates b in place.
// Every store implementation funnels its writes through Apply while holding
// its per-booking serialization, so the rules live in one place.
func Apply(b *domain.Booking, t Transition, now time.Time) error {
	if b.Status != t.From {
		return ErrConflict
	}
	if t.Round > 0 && b.Round != t.Round {
		return ErrConflict
	}

	if t.ExcludeCurrent && b.Candidate.VehicleID != "" && !contains(b.ExcludedVehicles, b.Candidate.VehicleID) {
		b.ExcludedVehicles = append(b.ExcludedVehicles, b.Candidate.VehicleID)
	}
	if t.Candidate != nil {
		b.Candidate = *t.Candidate
		b.Round++
	}

	b.Status = t.To
	b.History = append(b.History, domain.StatusEntry{
		Status:    t.To,
		Timestamp: now,
		Details:   t.Details,
	})
	b.UpdatedAt = now
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
