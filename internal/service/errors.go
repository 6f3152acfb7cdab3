package service

import (
	"errors"

	"dispatch/internal/domain"
)

var (
	// ErrNoCandidateAvailable is returned when no ambulance can be offered the booking.
	ErrNoCandidateAvailable = errors.New("could not find ambulance")

	// ErrInvalidEmergencyType is returned when the emergency type is not recognised.
	ErrInvalidEmergencyType = errors.New("invalid emergency type")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrMissingAddress is returned when the patient address is empty.
	ErrMissingAddress = errors.New("location address is required")

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidStatus is returned when a requested status is unknown or cannot be set directly.
	ErrInvalidStatus = errors.New("invalid booking status")

	// ErrInvalidTransition is returned when the booking cannot move to the requested status.
	ErrInvalidTransition = errors.New("booking cannot move to requested status")

	// ErrInvalidReply is returned when a driver reply is neither an accept nor a reject.
	ErrInvalidReply = errors.New("unrecognised driver reply")

	// ErrInvalidContact is returned when a driver phone number cannot be normalized.
	ErrInvalidContact = domain.ErrInvalidContact

	// ErrInvalidAmbulanceID is returned when ambulance ID is empty.
	ErrInvalidAmbulanceID = errors.New("invalid ambulance id")

	// ErrInvalidVehicleNumber is returned when the vehicle number is empty.
	ErrInvalidVehicleNumber = errors.New("vehicle number is required")

	// ErrAmbulanceExists is returned when registering a phone or vehicle that is already registered.
	ErrAmbulanceExists = errors.New("ambulance already registered")
)
