package repository

import (
	"context"

	"dispatch/internal/domain"
)

// BookingRepository defines the persistence operations for emergency bookings.
type BookingRepository interface {
	// Create persists a new booking.
	// Returns ErrDuplicateID if a booking with the same ID exists.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// FindOpenByDriverContact retrieves the most recently created PENDING
	// booking assigned to the given driver contact.
	FindOpenByDriverContact(ctx context.Context, contact string) (*domain.Booking, error)

	// ApplyTransition atomically moves a booking from t.From to t.To.
	// Returns ErrConflict if the current status (or round) does not match.
	ApplyTransition(ctx context.Context, id string, t Transition) (*domain.Booking, error)

	// GetAll retrieves the most recent bookings, newest first.
	GetAll(ctx context.Context) ([]*domain.Booking, error)
}

// LatestReader is implemented by repositories whose GetByID may be served
// from a cache. GetLatest always reads the source of truth.
type LatestReader interface {
	GetLatest(ctx context.Context, id string) (*domain.Booking, error)
}

// GetLatest reads a booking from repo's source of truth. Callers that decide
// a transition from the result use it instead of GetByID.
func GetLatest(ctx context.Context, repo BookingRepository, id string) (*domain.Booking, error) {
	if r, ok := repo.(LatestReader); ok {
		return r.GetLatest(ctx, id)
	}
	return repo.GetByID(ctx, id)
}
