package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// AmbulanceRepository is an in-memory implementation of repository.AmbulanceRepository.
type AmbulanceRepository struct {
	mu         sync.RWMutex
	ambulances map[string]*domain.Ambulance
}

var _ repository.AmbulanceRepository = (*AmbulanceRepository)(nil)

// NewAmbulanceRepository creates an empty in-memory ambulance repository.
func NewAmbulanceRepository() *AmbulanceRepository {
	return &AmbulanceRepository{ambulances: make(map[string]*domain.Ambulance)}
}

func (r *AmbulanceRepository) Create(ctx context.Context, a *domain.Ambulance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.ambulances {
		if existing.ID == a.ID || existing.Phone == a.Phone || existing.VehicleNumber == a.VehicleNumber {
			return repository.ErrDuplicateID
		}
	}
	c := *a
	r.ambulances[a.ID] = &c
	return nil
}

func (r *AmbulanceRepository) GetByID(ctx context.Context, id string) (*domain.Ambulance, error) {
	return r.find(func(a *domain.Ambulance) bool { return a.ID == id })
}

func (r *AmbulanceRepository) GetByPhone(ctx context.Context, phone string) (*domain.Ambulance, error) {
	return r.find(func(a *domain.Ambulance) bool { return a.Phone == phone })
}

func (r *AmbulanceRepository) GetByVehicleNumber(ctx context.Context, vehicleNumber string) (*domain.Ambulance, error) {
	return r.find(func(a *domain.Ambulance) bool { return a.VehicleNumber == vehicleNumber })
}

func (r *AmbulanceRepository) GetAll(ctx context.Context) ([]*domain.Ambulance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Ambulance, 0, len(r.ambulances))
	for _, a := range r.ambulances {
		c := *a
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VehicleNumber < result[j].VehicleNumber })
	return result, nil
}

func (r *AmbulanceRepository) UpdateStatus(ctx context.Context, id string, status domain.AmbulanceStatus) error {
	return r.update(id, func(a *domain.Ambulance) { a.Status = status })
}

func (r *AmbulanceRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	return r.update(id, func(a *domain.Ambulance) {
		a.LastLatitude = lat
		a.LastLongitude = lng
	})
}

func (r *AmbulanceRepository) UpdateDeviceToken(ctx context.Context, id string, token string) error {
	return r.update(id, func(a *domain.Ambulance) { a.DeviceToken = token })
}

func (r *AmbulanceRepository) find(match func(*domain.Ambulance) bool) (*domain.Ambulance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.ambulances {
		if match(a) {
			c := *a
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AmbulanceRepository) update(id string, mutate func(*domain.Ambulance)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.ambulances[id]
	if !ok {
		return repository.ErrNotFound
	}
	mutate(a)
	a.UpdatedAt = time.Now().UTC()
	return nil
}
