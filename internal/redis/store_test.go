package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestLockStore_AmbulanceLock(t *testing.T) {
	mr, client := newTestClient(t)
	locks := NewLockStore(client)
	ctx := context.Background()

	ok, err := locks.AcquireAmbulanceLock(ctx, "amb-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locks.AcquireAmbulanceLock(ctx, "amb-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock is not granted twice")

	ok, err = locks.AcquireAmbulanceLock(ctx, "amb-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, locks.ReleaseAmbulanceLock(ctx, "amb-1"))
	ok, err = locks.AcquireAmbulanceLock(ctx, "amb-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = locks.AcquireAmbulanceLock(ctx, "amb-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock expires with its ttl")
}

func TestLockStore_ClaimMessage(t *testing.T) {
	mr, client := newTestClient(t)
	dedup := NewLockStore(client)
	ctx := context.Background()

	first, err := dedup.ClaimMessage(ctx, "SM123", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := dedup.ClaimMessage(ctx, "SM123", time.Hour)
	require.NoError(t, err)
	assert.False(t, again, "provider retry of the same message")

	other, err := dedup.ClaimMessage(ctx, "SM124", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	mr.FastForward(2 * time.Hour)
	expired, err := dedup.ClaimMessage(ctx, "SM123", time.Hour)
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestLocationStore_Nearby(t *testing.T) {
	_, client := newTestClient(t)
	locations := NewLocationStore(client)
	ctx := context.Background()

	require.NoError(t, locations.UpdateLocation(ctx, "far", 13.05, 77.59))
	require.NoError(t, locations.UpdateLocation(ctx, "near", 12.972, 77.595))
	require.NoError(t, locations.UpdateLocation(ctx, "elsewhere", 19.07, 72.87))

	nearby, err := locations.FindNearbyAmbulances(ctx, 12.9716, 77.5946, 15)
	require.NoError(t, err)
	require.Len(t, nearby, 2)
	assert.Equal(t, "near", nearby[0].AmbulanceID)
	assert.Equal(t, "far", nearby[1].AmbulanceID)
	assert.Less(t, nearby[0].DistanceKm, nearby[1].DistanceKm)
	assert.InDelta(t, 12.972, nearby[0].Lat, 0.001)

	require.NoError(t, locations.RemoveLocation(ctx, "near"))
	nearby, err = locations.FindNearbyAmbulances(ctx, 12.9716, 77.5946, 15)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, "far", nearby[0].AmbulanceID)
}
