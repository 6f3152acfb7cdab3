package repository

import (
	"context"

	"dispatch/internal/domain"
)

// AmbulanceRepository defines the persistence operations for ambulances.
type AmbulanceRepository interface {
	// Create adds a new ambulance.
	Create(ctx context.Context, ambulance *domain.Ambulance) error

	// GetByID retrieves an ambulance by ID.
	GetByID(ctx context.Context, id string) (*domain.Ambulance, error)

	// GetByPhone retrieves an ambulance by its driver's phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Ambulance, error)

	// GetByVehicleNumber retrieves an ambulance by vehicle registration.
	GetByVehicleNumber(ctx context.Context, vehicleNumber string) (*domain.Ambulance, error)

	// GetAll retrieves all ambulances.
	GetAll(ctx context.Context) ([]*domain.Ambulance, error)

	// UpdateStatus updates the availability of an ambulance.
	UpdateStatus(ctx context.Context, id string, status domain.AmbulanceStatus) error

	// UpdateLocation records the last known position of an ambulance.
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error

	// UpdateDeviceToken replaces the push token of an ambulance.
	UpdateDeviceToken(ctx context.Context, id string, token string) error
}
