package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireAmbulanceLock attempts to reserve an ambulance while it is being
// offered to a booking, so simultaneous bookings do not pick the same one.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireAmbulanceLock(ctx context.Context, ambulanceID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:ambulance:%s", ambulanceID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseAmbulanceLock releases the lock for the given ambulance.
func (s *LockStore) ReleaseAmbulanceLock(ctx context.Context, ambulanceID string) error {
	key := fmt.Sprintf("lock:ambulance:%s", ambulanceID)

	return s.client.Del(ctx, key).Err()
}

// ClaimMessage marks an inbound message id as handled.
// Transport retries of the same message return false.
func (s *LockStore) ClaimMessage(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("dedup:sms:%s", messageID)

	return s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
