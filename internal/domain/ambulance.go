package domain

import "time"

// AmbulanceStatus represents the availability of an ambulance.
type AmbulanceStatus string

const (
	AmbulanceStatusAvailable  AmbulanceStatus = "AVAILABLE"
	AmbulanceStatusDispatched AmbulanceStatus = "DISPATCHED"
	AmbulanceStatusOffline    AmbulanceStatus = "OFFLINE"
)

// Ambulance represents a registered ambulance and its driver.
type Ambulance struct {
	ID            string
	VehicleNumber string
	DriverName    string
	Phone         string // normalized national number
	DeviceToken   string
	Status        AmbulanceStatus
	BaseAddress   string
	LastLatitude  float64
	LastLongitude float64
	UpdatedAt     time.Time
}

// Candidate builds the dispatch candidate for this ambulance.
func (a *Ambulance) Candidate(address string) Candidate {
	return Candidate{
		VehicleID:     a.VehicleNumber,
		DriverContact: a.Phone,
		Address:       address,
		Coordinates:   Coordinates{Latitude: a.LastLatitude, Longitude: a.LastLongitude},
		DeviceToken:   a.DeviceToken,
	}
}
