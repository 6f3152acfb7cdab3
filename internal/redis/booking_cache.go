package redis

import (
	"context"
	"errors"
	"log"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// CachedBookingRepository serves GetByID from Redis and refreshes the cached
// snapshot after every write. All writes go to the wrapped repository, which
// stays the source of truth for compare-and-set transitions. Snapshots are
// versioned, so a slow read-through never replaces a newer cached state.
type CachedBookingRepository struct {
	next  repository.BookingRepository
	cache *CacheStore
}

var (
	_ repository.BookingRepository = (*CachedBookingRepository)(nil)
	_ repository.LatestReader      = (*CachedBookingRepository)(nil)
)

// NewCachedBookingRepository wraps next with a read-through cache.
func NewCachedBookingRepository(next repository.BookingRepository, cache *CacheStore) *CachedBookingRepository {
	return &CachedBookingRepository{next: next, cache: cache}
}

// Create persists a booking and caches it.
func (r *CachedBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	if err := r.next.Create(ctx, b); err != nil {
		return err
	}
	r.store(ctx, b)
	return nil
}

// GetByID returns the cached booking or loads it from the wrapped repository.
func (r *CachedBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	cached, err := r.cache.GetBooking(ctx, id)
	if err != nil {
		log.Printf("[CACHE] failed to read booking %s: %v", id, err)
	}
	if cached != nil {
		return cached.Booking(), nil
	}

	b, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, b)
	return b, nil
}

// GetLatest reads the booking from the wrapped repository, bypassing the
// cache, and refreshes the cached snapshot.
func (r *CachedBookingRepository) GetLatest(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, b)
	return b, nil
}

// FindOpenByDriverContact always reads through; correlation must not see stale state.
func (r *CachedBookingRepository) FindOpenByDriverContact(ctx context.Context, contact string) (*domain.Booking, error) {
	return r.next.FindOpenByDriverContact(ctx, contact)
}

// ApplyTransition runs the transition on the wrapped repository and refreshes the cache.
func (r *CachedBookingRepository) ApplyTransition(ctx context.Context, id string, t repository.Transition) (*domain.Booking, error) {
	b, err := r.next.ApplyTransition(ctx, id, t)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if cacheErr := r.cache.InvalidateBooking(ctx, id); cacheErr != nil {
				log.Printf("[CACHE] failed to invalidate booking %s: %v", id, cacheErr)
			}
		}
		return nil, err
	}
	r.store(ctx, b)
	return b, nil
}

// GetAll reads through.
func (r *CachedBookingRepository) GetAll(ctx context.Context) ([]*domain.Booking, error) {
	return r.next.GetAll(ctx)
}

func (r *CachedBookingRepository) store(ctx context.Context, b *domain.Booking) {
	written, err := r.cache.SetBooking(ctx, NewCachedBooking(b))
	if err != nil {
		log.Printf("[CACHE] failed to cache booking %s: %v", b.ID, err)
		return
	}
	if !written {
		log.Printf("[CACHE] kept newer snapshot of booking %s", b.ID)
	}
}
