// Package memory provides in-process implementations of the dispatch stores.
// They back local development (DISPATCH_STORE=memory) and the test suites.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// BookingRepository is an in-memory implementation of repository.BookingRepository.
// A single mutex serializes writers, which gives ApplyTransition its
// compare-and-set semantics.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking
	now      func() time.Time
}

var _ repository.BookingRepository = (*BookingRepository)(nil)

// NewBookingRepository creates an empty in-memory booking repository.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		bookings: make(map[string]*domain.Booking),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a copy of the booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[b.ID]; exists {
		return repository.ErrDuplicateID
	}
	r.bookings[b.ID] = b.Clone()
	return nil
}

// GetByID returns a copy of the stored booking.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b.Clone(), nil
}

// FindOpenByDriverContact returns the newest PENDING booking for the contact.
func (r *BookingRepository) FindOpenByDriverContact(ctx context.Context, contact string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var newest *domain.Booking
	for _, b := range r.bookings {
		if b.Status != domain.BookingStatusPending || b.Candidate.DriverContact != contact {
			continue
		}
		if newest == nil || b.CreatedAt.After(newest.CreatedAt) {
			newest = b
		}
	}
	if newest == nil {
		return nil, repository.ErrNotFound
	}
	return newest.Clone(), nil
}

// ApplyTransition validates and applies t while holding the write lock.
func (r *BookingRepository) ApplyTransition(ctx context.Context, id string, t repository.Transition) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	next := stored.Clone()
	if err := repository.Apply(next, t, r.now()); err != nil {
		return nil, err
	}
	r.bookings[id] = next
	return next.Clone(), nil
}

// GetAll returns up to 100 bookings, newest first.
func (r *BookingRepository) GetAll(ctx context.Context) ([]*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		result = append(result, b.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > 100 {
		result = result[:100]
	}
	return result, nil
}

// Count returns the number of stored bookings.
func (r *BookingRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bookings)
}
