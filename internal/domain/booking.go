package domain

import (
	"fmt"
	"strings"
	"time"
)

// EmergencyType classifies the medical emergency behind a booking.
type EmergencyType string

const (
	EmergencyTypeCardiac   EmergencyType = "cardiac"
	EmergencyTypeStroke    EmergencyType = "stroke"
	EmergencyTypeAccident  EmergencyType = "accident"
	EmergencyTypeBreathing EmergencyType = "breathing"
	EmergencyTypeOther     EmergencyType = "other"
)

// ParseEmergencyType converts user input into an EmergencyType.
func ParseEmergencyType(s string) (EmergencyType, bool) {
	switch t := EmergencyType(strings.ToLower(strings.TrimSpace(s))); t {
	case EmergencyTypeCardiac, EmergencyTypeStroke, EmergencyTypeAccident, EmergencyTypeBreathing, EmergencyTypeOther:
		return t, true
	}
	return "", false
}

// Title returns the type with its first letter capitalised, as shown in messages.
func (t EmergencyType) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// BookingStatus represents the current status of an emergency booking.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusAccepted   BookingStatus = "ACCEPTED"
	BookingStatusRejected   BookingStatus = "REJECTED"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
)

// ParseBookingStatus converts user input into a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := allowedTransitions[st]; ok {
		return st, true
	}
	return "", false
}

// allowedTransitions is the booking state machine. REJECTED is transient:
// it always moves on to a new PENDING round or to CANCELLED.
var allowedTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:    {BookingStatusAccepted, BookingStatusRejected, BookingStatusCancelled},
	BookingStatusRejected:   {BookingStatusPending, BookingStatusCancelled},
	BookingStatusAccepted:   {BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:  {},
	BookingStatusCancelled:  {},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// String renders coordinates as "(lat, lng)", the format the predictor uses.
func (c Coordinates) String() string {
	return fmt.Sprintf("(%g, %g)", c.Latitude, c.Longitude)
}

// ParseCoordinates parses the "(lat, lng)" format.
func ParseCoordinates(s string) (Coordinates, error) {
	var c Coordinates
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "(")
	trimmed = strings.TrimSuffix(trimmed, ")")
	if _, err := fmt.Sscanf(strings.ReplaceAll(trimmed, ",", " "), "%g %g", &c.Latitude, &c.Longitude); err != nil {
		return Coordinates{}, fmt.Errorf("parse coordinates %q: %w", s, err)
	}
	return c, nil
}

// Location is where the patient is.
type Location struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// Coordinates returns the location's coordinates.
func (l Location) Coordinates() Coordinates {
	return Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Candidate is an ambulance proposed for a booking.
type Candidate struct {
	VehicleID     string
	DriverContact string // normalized national number, see NormalizeContact
	Address       string
	Coordinates   Coordinates
	DeviceToken   string // FCM token, empty when the driver has no app installed
}

// CandidateQuery describes what a selector should look for.
type CandidateQuery struct {
	Location      Location
	EmergencyType EmergencyType
	Exclude       []string // vehicle ids that must not be returned
}

// Excludes reports whether the query rules out the given vehicle.
func (q CandidateQuery) Excludes(vehicleID string) bool {
	for _, id := range q.Exclude {
		if id == vehicleID {
			return true
		}
	}
	return false
}

// StatusEntry is one record in a booking's audit trail.
type StatusEntry struct {
	Status    BookingStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Details   string        `json:"details"`
}

// Booking is one emergency dispatch request and its lifecycle record.
type Booking struct {
	ID               string
	EmergencyType    EmergencyType
	Location         Location
	Candidate        Candidate
	Status           BookingStatus
	History          []StatusEntry
	Round            int      // reassignment round, starts at 1
	ExcludedVehicles []string // vehicles that rejected or timed out on this booking
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LastEntry returns the most recent history entry.
func (b *Booking) LastEntry() (StatusEntry, bool) {
	if len(b.History) == 0 {
		return StatusEntry{}, false
	}
	return b.History[len(b.History)-1], true
}

// Clone returns a deep copy of the booking.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.History = append([]StatusEntry(nil), b.History...)
	c.ExcludedVehicles = append([]string(nil), b.ExcludedVehicles...)
	return &c
}
