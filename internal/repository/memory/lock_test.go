package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockStore_AmbulanceLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	locks := NewLockStore()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	locks.now = func() time.Time { return now }

	ok, err := locks.AcquireAmbulanceLock(ctx, "amb-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = locks.AcquireAmbulanceLock(ctx, "amb-1", time.Minute)
	assert.False(t, ok)

	require.NoError(t, locks.ReleaseAmbulanceLock(ctx, "amb-1"))
	ok, _ = locks.AcquireAmbulanceLock(ctx, "amb-1", time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = locks.AcquireAmbulanceLock(ctx, "amb-1", time.Minute)
	assert.True(t, ok, "expired reservation is granted again")
}

func TestLockStore_ConcurrentAcquireExactlyOneWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	locks := NewLockStore()

	var (
		wg  sync.WaitGroup
		won int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := locks.AcquireAmbulanceLock(ctx, "amb-1", time.Minute); ok {
				atomic.AddInt32(&won, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won)
}

func TestLockStore_ClaimMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dedup := NewLockStore()

	first, err := dedup.ClaimMessage(ctx, "SM123", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, _ := dedup.ClaimMessage(ctx, "SM123", time.Hour)
	assert.False(t, again)

	// Message ids and ambulance ids live in separate namespaces.
	ok, _ := dedup.AcquireAmbulanceLock(ctx, "SM123", time.Minute)
	assert.True(t, ok)
}
