package memory

import (
	"context"
	"sync"
	"time"

	internalRedis "dispatch/internal/redis"
)

// LockStore is an in-process stand-in for the Redis SETNX reservations.
// It serializes reservations within one server instance only.
type LockStore struct {
	mu       sync.Mutex
	locks    map[string]time.Time
	messages map[string]time.Time
	now      func() time.Time
}

var (
	_ internalRedis.LockStoreInterface  = (*LockStore)(nil)
	_ internalRedis.MessageDeduplicator = (*LockStore)(nil)
)

// NewLockStore creates an empty in-memory lock store.
func NewLockStore() *LockStore {
	return &LockStore{
		locks:    make(map[string]time.Time),
		messages: make(map[string]time.Time),
		now:      time.Now,
	}
}

// AcquireAmbulanceLock reserves an ambulance until ttl elapses or it is released.
func (s *LockStore) AcquireAmbulanceLock(ctx context.Context, ambulanceID string, ttl time.Duration) (bool, error) {
	return s.claim(s.locks, ambulanceID, ttl), nil
}

// ReleaseAmbulanceLock drops the reservation on an ambulance.
func (s *LockStore) ReleaseAmbulanceLock(ctx context.Context, ambulanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, ambulanceID)
	return nil
}

// ClaimMessage returns true the first time a message id is seen within ttl.
func (s *LockStore) ClaimMessage(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	return s.claim(s.messages, messageID, ttl), nil
}

func (s *LockStore) claim(held map[string]time.Time, key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := held[key]; ok && now.Before(expiry) {
		return false
	}
	held[key] = now.Add(ttl)
	return true
}
