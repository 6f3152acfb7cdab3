package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

const (
	defaultSearchRadiusKm = 10.0
	ambulanceLockTTL      = 2 * time.Minute // Reserve an ambulance while it is offered a booking
)

// CandidateSelector proposes an ambulance for a booking.
// It returns ErrNoCandidateAvailable when nothing suitable exists and never
// returns a vehicle listed in the query's exclusions.
type CandidateSelector interface {
	Select(ctx context.Context, q domain.CandidateQuery) (*domain.Candidate, error)
}

// AddressResolver turns coordinates into a human-readable address.
type AddressResolver interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

var (
	_ CandidateSelector = (*FleetSelector)(nil)
	_ CandidateSelector = (*PredictorSelector)(nil)
	_ CandidateSelector = (*ChainSelector)(nil)
)

// ──────────────────────────────────────────────
// FLEET SELECTOR
// ──────────────────────────────────────────────

// FleetSelector picks the nearest available registered ambulance using the
// live location index.
type FleetSelector struct {
	locationStore redis.LocationStoreInterface
	lockStore     redis.LockStoreInterface
	ambulanceRepo repository.AmbulanceRepository
	resolver      AddressResolver
	radiusKm      float64
}

// NewFleetSelector creates a new FleetSelector. lockStore and resolver may be nil.
func NewFleetSelector(
	locationStore redis.LocationStoreInterface,
	lockStore redis.LockStoreInterface,
	ambulanceRepo repository.AmbulanceRepository,
	resolver AddressResolver,
	radiusKm float64,
) *FleetSelector {
	if radiusKm <= 0 {
		radiusKm = defaultSearchRadiusKm
	}
	return &FleetSelector{
		locationStore: locationStore,
		lockStore:     lockStore,
		ambulanceRepo: ambulanceRepo,
		resolver:      resolver,
		radiusKm:      radiusKm,
	}
}

// Select returns the closest AVAILABLE ambulance that is not excluded and not
// currently reserved for another booking.
func (s *FleetSelector) Select(ctx context.Context, q domain.CandidateQuery) (*domain.Candidate, error) {
	nearby, err := s.locationStore.FindNearbyAmbulances(ctx, q.Location.Latitude, q.Location.Longitude, s.radiusKm)
	if err != nil {
		return nil, fmt.Errorf("find nearby ambulances: %w", err)
	}

	for _, loc := range nearby {
		ambulance, err := s.ambulanceRepo.GetByID(ctx, loc.AmbulanceID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}

		if q.Excludes(ambulance.VehicleNumber) ||
			ambulance.Status != domain.AmbulanceStatusAvailable ||
			ambulance.Phone == "" {
			continue
		}

		if s.lockStore != nil {
			locked, err := s.lockStore.AcquireAmbulanceLock(ctx, ambulance.ID, ambulanceLockTTL)
			if err != nil {
				return nil, fmt.Errorf("reserve ambulance %s: %w", ambulance.ID, err)
			}
			if !locked {
				continue // Offered to another booking right now
			}
		}

		ambulance.LastLatitude = loc.Lat
		ambulance.LastLongitude = loc.Lng
		candidate := ambulance.Candidate(s.resolveAddress(ctx, ambulance))
		return &candidate, nil
	}

	return nil, ErrNoCandidateAvailable
}

func (s *FleetSelector) resolveAddress(ctx context.Context, a *domain.Ambulance) string {
	if s.resolver != nil {
		address, err := s.resolver.ReverseGeocode(ctx, a.LastLatitude, a.LastLongitude)
		if err == nil && address != "" {
			return address
		}
		if err != nil {
			log.Printf("[SELECTOR] reverse geocode for %s failed: %v", a.VehicleNumber, err)
		}
	}
	if a.BaseAddress != "" {
		return a.BaseAddress
	}
	return domain.Coordinates{Latitude: a.LastLatitude, Longitude: a.LastLongitude}.String()
}

// ──────────────────────────────────────────────
// PREDICTOR SELECTOR
// ──────────────────────────────────────────────

// PredictorSelector asks the external ambulance predictor for a candidate.
type PredictorSelector struct {
	baseURL     string
	client      *http.Client
	countryCode string
}

// NewPredictorSelector creates a client for the predictor at baseURL.
func NewPredictorSelector(baseURL string, timeout time.Duration, countryCode string) *PredictorSelector {
	return &PredictorSelector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: newrelic.NewRoundTripper(nil),
		},
		countryCode: countryCode,
	}
}

type predictRequest struct {
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	EmergencyType string   `json:"emergency_type,omitempty"`
	Exclude       []string `json:"exclude,omitempty"`
}

type predictResponse struct {
	AmbulanceNumber      flexString `json:"ambulance_number"`
	PhoneNumber          flexString `json:"phone_number"`
	AmbulanceAddress     string     `json:"ambulance_address"`
	AmbulanceCoordinates string     `json:"ambulance_coordinates"`
	Error                string     `json:"error"`
}

// flexString accepts both JSON strings and numbers; the predictor's dataset
// stores phone numbers as integers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Select calls POST /api/predict-ambulance.
func (s *PredictorSelector) Select(ctx context.Context, q domain.CandidateQuery) (*domain.Candidate, error) {
	payload, err := json.Marshal(predictRequest{
		Latitude:      q.Location.Latitude,
		Longitude:     q.Location.Longitude,
		EmergencyType: string(q.EmergencyType),
		Exclude:       q.Exclude,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/predict-ambulance", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call predictor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoCandidateAvailable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("predictor returned status %d", resp.StatusCode)
	}

	var body predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode predictor response: %w", err)
	}
	if body.Error != "" || body.AmbulanceNumber == "" {
		return nil, ErrNoCandidateAvailable
	}

	vehicleID := string(body.AmbulanceNumber)
	if q.Excludes(vehicleID) {
		return nil, ErrNoCandidateAvailable
	}

	contact, err := domain.NormalizeContact(string(body.PhoneNumber), s.countryCode)
	if err != nil {
		return nil, fmt.Errorf("predictor candidate %s: %w", vehicleID, err)
	}

	coords, err := domain.ParseCoordinates(body.AmbulanceCoordinates)
	if err != nil {
		log.Printf("[SELECTOR] predictor candidate %s has unreadable coordinates: %v", vehicleID, err)
	}

	return &domain.Candidate{
		VehicleID:     vehicleID,
		DriverContact: contact,
		Address:       body.AmbulanceAddress,
		Coordinates:   coords,
	}, nil
}

// ──────────────────────────────────────────────
// CHAIN SELECTOR
// ──────────────────────────────────────────────

// ChainSelector tries each selector in order and returns the first candidate.
type ChainSelector struct {
	selectors []CandidateSelector
}

// NewChainSelector creates a selector that falls through the given selectors.
func NewChainSelector(selectors ...CandidateSelector) *ChainSelector {
	return &ChainSelector{selectors: selectors}
}

// Select returns the first candidate found. Errors other than
// ErrNoCandidateAvailable are reported only if no selector succeeds.
func (c *ChainSelector) Select(ctx context.Context, q domain.CandidateQuery) (*domain.Candidate, error) {
	var firstErr error
	for _, s := range c.selectors {
		candidate, err := s.Select(ctx, q)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, ErrNoCandidateAvailable) {
			log.Printf("[SELECTOR] selector failed, trying next: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrNoCandidateAvailable
}
