package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

var _ FleetTracker = (*AmbulanceService)(nil)

// AmbulanceService handles ambulance registration and availability.
type AmbulanceService struct {
	locationStore redis.LocationStoreInterface
	lockStore     redis.LockStoreInterface
	ambulanceRepo repository.AmbulanceRepository
	countryCode   string
}

// NewAmbulanceService creates a new AmbulanceService. lockStore may be nil.
func NewAmbulanceService(
	locationStore redis.LocationStoreInterface,
	lockStore redis.LockStoreInterface,
	ambulanceRepo repository.AmbulanceRepository,
	countryCode string,
) *AmbulanceService {
	if countryCode == "" {
		countryCode = domain.DefaultCountryCode
	}
	return &AmbulanceService{
		locationStore: locationStore,
		lockStore:     lockStore,
		ambulanceRepo: ambulanceRepo,
		countryCode:   countryCode,
	}
}

// RegisterAmbulanceRequest contains the parameters for registering an ambulance.
type RegisterAmbulanceRequest struct {
	VehicleNumber string
	DriverName    string
	Phone         string
	DeviceToken   string
	BaseAddress   string
}

// Register adds an ambulance to the fleet. If the phone or vehicle is already
// registered, the existing ambulance is returned with ErrAmbulanceExists.
func (s *AmbulanceService) Register(ctx context.Context, req RegisterAmbulanceRequest) (*domain.Ambulance, error) {
	vehicleNumber := strings.ToUpper(strings.TrimSpace(req.VehicleNumber))
	if vehicleNumber == "" {
		return nil, ErrInvalidVehicleNumber
	}
	phone, err := domain.NormalizeContact(req.Phone, s.countryCode)
	if err != nil {
		return nil, err
	}

	if existing, err := s.ambulanceRepo.GetByPhone(ctx, phone); err == nil {
		return existing, ErrAmbulanceExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing, err := s.ambulanceRepo.GetByVehicleNumber(ctx, vehicleNumber); err == nil {
		return existing, ErrAmbulanceExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	ambulance := &domain.Ambulance{
		ID:            uuid.New().String(),
		VehicleNumber: vehicleNumber,
		DriverName:    strings.TrimSpace(req.DriverName),
		Phone:         phone,
		DeviceToken:   strings.TrimSpace(req.DeviceToken),
		Status:        domain.AmbulanceStatusOffline, // Goes AVAILABLE on first location update
		BaseAddress:   strings.TrimSpace(req.BaseAddress),
		UpdatedAt:     time.Now(),
	}
	if err := s.ambulanceRepo.Create(ctx, ambulance); err != nil {
		return nil, err
	}

	log.Printf("[FLEET] registered ambulance %s (%s)", ambulance.VehicleNumber, ambulance.ID)
	return ambulance, nil
}

// GetAll returns every registered ambulance.
func (s *AmbulanceService) GetAll(ctx context.Context) ([]*domain.Ambulance, error) {
	return s.ambulanceRepo.GetAll(ctx)
}

// UpdateDeviceToken stores the driver app's push token.
func (s *AmbulanceService) UpdateDeviceToken(ctx context.Context, ambulanceID, token string) error {
	if ambulanceID == "" {
		return ErrInvalidAmbulanceID
	}
	return s.ambulanceRepo.UpdateDeviceToken(ctx, ambulanceID, strings.TrimSpace(token))
}

// UpdateLocationRequest contains the parameters for updating an ambulance location.
type UpdateLocationRequest struct {
	AmbulanceID string
	Lat         float64
	Lng         float64
}

// UpdateLocation records a position report. An OFFLINE ambulance becomes
// AVAILABLE; a DISPATCHED one keeps its status.
func (s *AmbulanceService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	if req.AmbulanceID == "" {
		return ErrInvalidAmbulanceID
	}
	if !isValidLatitude(req.Lat) || !isValidLongitude(req.Lng) {
		return ErrInvalidLocation
	}

	ambulance, err := s.ambulanceRepo.GetByID(ctx, req.AmbulanceID)
	if err != nil {
		return err
	}

	// Redis GEO is the primary real-time store
	if err := s.locationStore.UpdateLocation(ctx, ambulance.ID, req.Lat, req.Lng); err != nil {
		return err
	}
	if err := s.ambulanceRepo.UpdateLocation(ctx, ambulance.ID, req.Lat, req.Lng); err != nil {
		return err
	}

	if ambulance.Status == domain.AmbulanceStatusOffline {
		return s.ambulanceRepo.UpdateStatus(ctx, ambulance.ID, domain.AmbulanceStatusAvailable)
	}
	return nil
}

// SetOffline takes an ambulance out of dispatch.
func (s *AmbulanceService) SetOffline(ctx context.Context, ambulanceID string) error {
	if ambulanceID == "" {
		return ErrInvalidAmbulanceID
	}

	if err := s.ambulanceRepo.UpdateStatus(ctx, ambulanceID, domain.AmbulanceStatusOffline); err != nil {
		return err
	}

	// Remove from Redis GEO index
	return s.locationStore.RemoveLocation(ctx, ambulanceID)
}

// MarkDispatched flags the ambulance as busy with a booking. Vehicles that are
// not registered in the fleet, such as predictor candidates, are ignored.
func (s *AmbulanceService) MarkDispatched(ctx context.Context, vehicleID string) error {
	ambulance, err := s.ambulanceRepo.GetByVehicleNumber(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.ambulanceRepo.UpdateStatus(ctx, ambulance.ID, domain.AmbulanceStatusDispatched)
}

// ReleaseVehicle returns a dispatched ambulance to the available pool and
// drops its reservation.
func (s *AmbulanceService) ReleaseVehicle(ctx context.Context, vehicleID string) error {
	ambulance, err := s.ambulanceRepo.GetByVehicleNumber(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	if ambulance.Status == domain.AmbulanceStatusDispatched {
		if err := s.ambulanceRepo.UpdateStatus(ctx, ambulance.ID, domain.AmbulanceStatusAvailable); err != nil {
			return err
		}
	}
	if s.lockStore != nil {
		return s.lockStore.ReleaseAmbulanceLock(ctx, ambulance.ID)
	}
	return nil
}
