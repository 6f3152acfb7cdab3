package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	BookingCacheTTL = 10 * time.Second // Status changes on every driver reply

	// bookingVersionTTL outlives the snapshot so a slow reader cannot
	// repopulate an expired entry with an older version.
	bookingVersionTTL = 10 * time.Minute
)

// Key prefixes
const (
	bookingCachePrefix        = "cache:booking:"
	bookingCacheVersionPrefix = "cache:booking:version:"
)

// setIfNewerScript writes the snapshot unless a newer version was cached.
// KEYS[1] snapshot, KEYS[2] version; ARGV: version, payload, snapshot ttl ms, version ttl ms.
var setIfNewerScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[4])
return 1
`)

// CachedBooking represents a cached booking snapshot.
type CachedBooking struct {
	ID               string               `json:"id"`
	EmergencyType    string               `json:"emergency_type"`
	Latitude         float64              `json:"latitude"`
	Longitude        float64              `json:"longitude"`
	Address          string               `json:"address"`
	VehicleID        string               `json:"vehicle_id"`
	DriverContact    string               `json:"driver_contact"`
	CandidateAddress string               `json:"candidate_address"`
	CandidateLat     float64              `json:"candidate_lat"`
	CandidateLng     float64              `json:"candidate_lng"`
	DeviceToken      string               `json:"device_token"`
	Status           string               `json:"status"`
	History          []domain.StatusEntry `json:"history"`
	Round            int                  `json:"round"`
	ExcludedVehicles []string             `json:"excluded_vehicles"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Version orders snapshots of the same booking. Every transition appends
// exactly one history entry, so the history length only grows.
func (c *CachedBooking) Version() int {
	return len(c.History)
}

// NewCachedBooking converts a booking into its cached form.
func NewCachedBooking(b *domain.Booking) *CachedBooking {
	return &CachedBooking{
		ID:               b.ID,
		EmergencyType:    string(b.EmergencyType),
		Latitude:         b.Location.Latitude,
		Longitude:        b.Location.Longitude,
		Address:          b.Location.Address,
		VehicleID:        b.Candidate.VehicleID,
		DriverContact:    b.Candidate.DriverContact,
		CandidateAddress: b.Candidate.Address,
		CandidateLat:     b.Candidate.Coordinates.Latitude,
		CandidateLng:     b.Candidate.Coordinates.Longitude,
		DeviceToken:      b.Candidate.DeviceToken,
		Status:           string(b.Status),
		History:          b.History,
		Round:            b.Round,
		ExcludedVehicles: b.ExcludedVehicles,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

// Booking converts the cached form back into a booking.
func (c *CachedBooking) Booking() *domain.Booking {
	return &domain.Booking{
		ID:            c.ID,
		EmergencyType: domain.EmergencyType(c.EmergencyType),
		Location: domain.Location{
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
			Address:   c.Address,
		},
		Candidate: domain.Candidate{
			VehicleID:     c.VehicleID,
			DriverContact: c.DriverContact,
			Address:       c.CandidateAddress,
			Coordinates:   domain.Coordinates{Latitude: c.CandidateLat, Longitude: c.CandidateLng},
			DeviceToken:   c.DeviceToken,
		},
		Status:           domain.BookingStatus(c.Status),
		History:          c.History,
		Round:            c.Round,
		ExcludedVehicles: c.ExcludedVehicles,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// GetBooking retrieves a booking from cache.
func (s *CacheStore) GetBooking(ctx context.Context, bookingID string) (*CachedBooking, error) {
	data, err := s.client.Get(ctx, bookingCachePrefix+bookingID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var booking CachedBooking
	if err := json.Unmarshal(data, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// SetBooking stores a booking in cache unless a newer snapshot of it was
// cached already. It reports whether the snapshot was written.
func (s *CacheStore) SetBooking(ctx context.Context, booking *CachedBooking) (bool, error) {
	data, err := json.Marshal(booking)
	if err != nil {
		return false, err
	}

	keys := []string{bookingCachePrefix + booking.ID, bookingCacheVersionPrefix + booking.ID}
	written, err := setIfNewerScript.Run(ctx, s.client, keys,
		booking.Version(), data, BookingCacheTTL.Milliseconds(), bookingVersionTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

// InvalidateBooking removes a booking snapshot from cache. The version marker
// stays so older snapshots still lose to it.
func (s *CacheStore) InvalidateBooking(ctx context.Context, bookingID string) error {
	return s.client.Del(ctx, bookingCachePrefix+bookingID).Err()
}
