package redis

import (
	"context"
	"time"
)

// LocationStoreInterface defines the interface for ambulance location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, ambulanceID string, lat, lng float64) error
	FindNearbyAmbulances(ctx context.Context, lat, lng, radiusKm float64) ([]AmbulanceLocation, error)
	RemoveLocation(ctx context.Context, ambulanceID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireAmbulanceLock(ctx context.Context, ambulanceID string, ttl time.Duration) (bool, error)
	ReleaseAmbulanceLock(ctx context.Context, ambulanceID string) error
}

// MessageDeduplicator records inbound webhook messages that were already handled.
type MessageDeduplicator interface {
	// ClaimMessage returns true the first time a message id is seen.
	ClaimMessage(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ MessageDeduplicator    = (*LockStore)(nil)
)
