package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	internalRedis "dispatch/internal/redis"
)

const earthRadiusKm = 6371.0

// LocationStore is an in-memory stand-in for the Redis GEO index.
type LocationStore struct {
	mu        sync.RWMutex
	positions map[string][2]float64
}

var _ internalRedis.LocationStoreInterface = (*LocationStore)(nil)

// NewLocationStore creates an empty in-memory location store.
func NewLocationStore() *LocationStore {
	return &LocationStore{positions: make(map[string][2]float64)}
}

func (s *LocationStore) UpdateLocation(ctx context.Context, ambulanceID string, lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[ambulanceID] = [2]float64{lat, lng}
	return nil
}

// FindNearbyAmbulances returns ambulances within radiusKm, nearest first.
func (s *LocationStore) FindNearbyAmbulances(ctx context.Context, lat, lng, radiusKm float64) ([]internalRedis.AmbulanceLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []internalRedis.AmbulanceLocation
	for id, p := range s.positions {
		d := haversineKm(lat, lng, p[0], p[1])
		if d > radiusKm {
			continue
		}
		result = append(result, internalRedis.AmbulanceLocation{
			AmbulanceID: id,
			Lat:         p[0],
			Lng:         p[1],
			DistanceKm:  d,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DistanceKm < result[j].DistanceKm })
	return result, nil
}

func (s *LocationStore) RemoveLocation(ctx context.Context, ambulanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, ambulanceID)
	return nil
}

// haversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(lat1))*math.Cos(degreesToRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
