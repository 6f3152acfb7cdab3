package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Decision is a driver's answer to a dispatch request.
type Decision string

const (
	DecisionAccept Decision = "ACCEPT"
	DecisionReject Decision = "REJECT"
)

// History details recorded by the coordinator.
const (
	detailsCreated     = "Booking created and assigned to ambulance %s"
	detailsAccepted    = "Driver accepted the booking"
	detailsRejected    = "Driver rejected the booking"
	detailsReassigned  = "Reassigned to ambulance %s"
	detailsNoCandidate = "No ambulance available"
	detailsTimedOut    = "No response from driver within %s"
)

// FleetTracker keeps the registered fleet's availability in step with bookings.
type FleetTracker interface {
	MarkDispatched(ctx context.Context, vehicleID string) error
	ReleaseVehicle(ctx context.Context, vehicleID string) error
}

// DispatchConfig tunes the coordinator.
type DispatchConfig struct {
	// PendingTimeout reassigns a PENDING booking nobody answered. Zero disables it.
	PendingTimeout time.Duration
}

// DispatchService owns the booking state machine. It is the only writer of a
// booking's status and assigned candidate.
type DispatchService struct {
	bookingRepo repository.BookingRepository
	selector    CandidateSelector
	notifier    DispatchNotifier
	publisher   EventPublisher
	fleet       FleetTracker
	timers      *pendingTimers
	timeout     time.Duration
	now         func() time.Time
}

// NewDispatchService creates a new DispatchService. publisher and fleet may be nil.
func NewDispatchService(
	bookingRepo repository.BookingRepository,
	selector CandidateSelector,
	notifier DispatchNotifier,
	publisher EventPublisher,
	fleet FleetTracker,
	cfg DispatchConfig,
) *DispatchService {
	return &DispatchService{
		bookingRepo: bookingRepo,
		selector:    selector,
		notifier:    notifier,
		publisher:   publisher,
		fleet:       fleet,
		timers:      newPendingTimers(cfg.PendingTimeout),
		timeout:     cfg.PendingTimeout,
		now:         time.Now,
	}
}

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	EmergencyType string
	Latitude      float64
	Longitude     float64
	Address       string
}

// CreateBookingResponse contains the result of creating a booking.
type CreateBookingResponse struct {
	Booking      *domain.Booking
	Notification DeliveryOutcome
}

// DecisionResult describes what a driver decision did to a booking.
type DecisionResult struct {
	Booking    *domain.Booking
	Decision   Decision
	Applied    bool // false when the booking had already left the round the decision was for
	Reassigned bool
	Cancelled  bool

	// Confirmation is the acknowledgement sent to the deciding driver.
	Confirmation *DeliveryOutcome
	// Dispatch is the request sent to the replacement candidate, if any.
	Dispatch *DeliveryOutcome
}

// CreateBooking selects an ambulance, persists a PENDING booking and notifies
// the driver. A failed notification does not fail the call.
func (s *DispatchService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*CreateBookingResponse, error) {
	emergencyType, location, err := s.validateCreateRequest(req)
	if err != nil {
		return nil, err
	}

	candidate, err := s.selector.Select(ctx, domain.CandidateQuery{
		Location:      location,
		EmergencyType: emergencyType,
	})
	if err != nil {
		if errors.Is(err, ErrNoCandidateAvailable) {
			return nil, ErrNoCandidateAvailable
		}
		return nil, fmt.Errorf("%w: %v", ErrNoCandidateAvailable, err)
	}

	now := s.now()
	booking := &domain.Booking{
		ID:            uuid.New().String(),
		EmergencyType: emergencyType,
		Location:      location,
		Candidate:     *candidate,
		Status:        domain.BookingStatusPending,
		History: []domain.StatusEntry{{
			Status:    domain.BookingStatusPending,
			Timestamp: now,
			Details:   fmt.Sprintf(detailsCreated, candidate.VehicleID),
		}},
		Round:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		s.releaseVehicle(ctx, candidate.VehicleID)
		return nil, err
	}
	log.Printf("[DISPATCH] booking %s created, %s offered to %s", booking.ID, emergencyType, candidate.VehicleID)

	s.markDispatched(ctx, candidate.VehicleID)
	s.publish(ctx, EventBookingCreated, booking)
	s.armTimeout(booking)

	// The booking is saved; delivery continues even if the caller goes away.
	outcome := s.notifier.NotifyDispatch(context.WithoutCancel(ctx), booking)
	s.recordNotification(ctx, booking, domain.NotificationDispatch, outcome)

	return &CreateBookingResponse{Booking: booking, Notification: outcome}, nil
}

// GetStatus retrieves a booking with its full history.
func (s *DispatchService) GetStatus(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	return s.bookingRepo.GetByID(ctx, bookingID)
}

// ListBookings returns the most recent bookings.
func (s *DispatchService) ListBookings(ctx context.Context) ([]*domain.Booking, error) {
	return s.bookingRepo.GetAll(ctx)
}

// ApplyDriverDecision applies ACCEPT or REJECT to the booking's current round.
// A decision for a booking that is no longer PENDING is a no-op, reported
// with Applied=false.
func (s *DispatchService) ApplyDriverDecision(ctx context.Context, bookingID string, decision Decision, details string) (*DecisionResult, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	current, err := repository.GetLatest(ctx, s.bookingRepo, bookingID)
	if err != nil {
		return nil, err
	}
	return s.applyDecision(ctx, current, decision, details)
}

// applyDecision pins the decision to the round observed in current so a late
// reply can never land on a replacement candidate's round.
func (s *DispatchService) applyDecision(ctx context.Context, current *domain.Booking, decision Decision, details string) (*DecisionResult, error) {
	if current.Status != domain.BookingStatusPending {
		return s.staleDecision(current, decision), nil
	}

	switch decision {
	case DecisionAccept:
		return s.accept(ctx, current, details)
	case DecisionReject:
		return s.reject(ctx, current, details)
	default:
		return nil, ErrInvalidReply
	}
}

func (s *DispatchService) accept(ctx context.Context, current *domain.Booking, details string) (*DecisionResult, error) {
	if details == "" {
		details = detailsAccepted
	}

	accepted, err := s.bookingRepo.ApplyTransition(ctx, current.ID, repository.Transition{
		From:    domain.BookingStatusPending,
		To:      domain.BookingStatusAccepted,
		Details: details,
		Round:   current.Round,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.lostRace(ctx, current, DecisionAccept)
		}
		return nil, err
	}

	s.timers.stop(accepted.ID)
	log.Printf("[DISPATCH] booking %s accepted by %s", accepted.ID, accepted.Candidate.VehicleID)
	s.publish(ctx, StatusRoutingKey(accepted.Status), accepted)

	outcome := s.notifier.NotifyAccepted(context.WithoutCancel(ctx), accepted)
	s.recordNotification(ctx, accepted, domain.NotificationAccepted, outcome)

	return &DecisionResult{
		Booking:      accepted,
		Decision:     DecisionAccept,
		Applied:      true,
		Confirmation: &outcome,
	}, nil
}

func (s *DispatchService) reject(ctx context.Context, current *domain.Booking, details string) (*DecisionResult, error) {
	if details == "" {
		details = detailsRejected
	}

	rejected, err := s.bookingRepo.ApplyTransition(ctx, current.ID, repository.Transition{
		From:           domain.BookingStatusPending,
		To:             domain.BookingStatusRejected,
		Details:        details,
		Round:          current.Round,
		ExcludeCurrent: true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.lostRace(ctx, current, DecisionReject)
		}
		return nil, err
	}

	s.timers.stop(rejected.ID)
	previous := rejected.Candidate
	log.Printf("[DISPATCH] booking %s rejected by %s (round %d)", rejected.ID, previous.VehicleID, rejected.Round)
	s.publish(ctx, StatusRoutingKey(rejected.Status), rejected)
	s.releaseVehicle(ctx, previous.VehicleID)

	// The declining driver hears back before the replacement's dispatch retries.
	outcome := s.notifier.NotifyRejected(context.WithoutCancel(ctx), rejected, previous)
	s.recordNotification(ctx, rejected, domain.NotificationRejected, outcome)

	result, err := s.reassign(ctx, rejected)
	if err != nil {
		return nil, err
	}
	result.Confirmation = &outcome
	return result, nil
}

// reassign moves a REJECTED booking to a new PENDING round or to CANCELLED.
// It never leaves the booking REJECTED: any selector failure cancels it.
func (s *DispatchService) reassign(ctx context.Context, rejected *domain.Booking) (*DecisionResult, error) {
	candidate, err := s.selector.Select(ctx, domain.CandidateQuery{
		Location:      rejected.Location,
		EmergencyType: rejected.EmergencyType,
		Exclude:       rejected.ExcludedVehicles,
	})
	if err != nil {
		reason := detailsNoCandidate
		if !errors.Is(err, ErrNoCandidateAvailable) {
			log.Printf("[DISPATCH] selector failed for booking %s: %v", rejected.ID, err)
			reason = fmt.Sprintf("%s: %v", detailsNoCandidate, err)
		}
		return s.cancelRejected(ctx, rejected, reason)
	}

	reassigned, err := s.bookingRepo.ApplyTransition(ctx, rejected.ID, repository.Transition{
		From:      domain.BookingStatusRejected,
		To:        domain.BookingStatusPending,
		Details:   fmt.Sprintf(detailsReassigned, candidate.VehicleID),
		Candidate: candidate,
		Round:     rejected.Round,
	})
	if err != nil {
		s.releaseVehicle(ctx, candidate.VehicleID)
		if errors.Is(err, repository.ErrConflict) {
			// An operator cancelled the booking between rejection and reassignment.
			latest, getErr := repository.GetLatest(ctx, s.bookingRepo, rejected.ID)
			if getErr != nil {
				return nil, getErr
			}
			return &DecisionResult{Booking: latest, Decision: DecisionReject, Applied: true, Cancelled: latest.Status == domain.BookingStatusCancelled}, nil
		}
		return nil, err
	}

	log.Printf("[DISPATCH] booking %s reassigned to %s (round %d)", reassigned.ID, candidate.VehicleID, reassigned.Round)
	s.markDispatched(ctx, candidate.VehicleID)
	s.publish(ctx, StatusRoutingKey(reassigned.Status), reassigned)
	s.armTimeout(reassigned)

	dispatch := s.notifier.NotifyDispatch(context.WithoutCancel(ctx), reassigned)
	s.recordNotification(ctx, reassigned, domain.NotificationDispatch, dispatch)

	return &DecisionResult{
		Booking:    reassigned,
		Decision:   DecisionReject,
		Applied:    true,
		Reassigned: true,
		Dispatch:   &dispatch,
	}, nil
}

func (s *DispatchService) cancelRejected(ctx context.Context, rejected *domain.Booking, reason string) (*DecisionResult, error) {
	cancelled, err := s.bookingRepo.ApplyTransition(ctx, rejected.ID, repository.Transition{
		From:    domain.BookingStatusRejected,
		To:      domain.BookingStatusCancelled,
		Details: reason,
		Round:   rejected.Round,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			latest, getErr := repository.GetLatest(ctx, s.bookingRepo, rejected.ID)
			if getErr != nil {
				return nil, getErr
			}
			return &DecisionResult{Booking: latest, Decision: DecisionReject, Applied: true, Cancelled: latest.Status == domain.BookingStatusCancelled}, nil
		}
		return nil, err
	}

	log.Printf("[DISPATCH] booking %s cancelled: %s", cancelled.ID, reason)
	s.publish(ctx, StatusRoutingKey(cancelled.Status), cancelled)

	return &DecisionResult{
		Booking:   cancelled,
		Decision:  DecisionReject,
		Applied:   true,
		Cancelled: true,
	}, nil
}

// lostRace handles a compare-and-set conflict: another writer moved the
// booking first, so this decision is dropped.
func (s *DispatchService) lostRace(ctx context.Context, current *domain.Booking, decision Decision) (*DecisionResult, error) {
	latest, err := repository.GetLatest(ctx, s.bookingRepo, current.ID)
	if err != nil {
		return nil, err
	}
	return s.staleDecision(latest, decision), nil
}

func (s *DispatchService) staleDecision(b *domain.Booking, decision Decision) *DecisionResult {
	log.Printf("[DISPATCH] ignoring %s for booking %s: status is %s (round %d)", decision, b.ID, b.Status, b.Round)
	return &DecisionResult{Booking: b, Decision: decision, Applied: false}
}

// UpdateStatusRequest is an operator-initiated status change.
type UpdateStatusRequest struct {
	BookingID      string
	Status         string
	DriverResponse string
}

// UpdateStatus applies an operator status change. ACCEPTED and REJECTED go
// through the driver-decision path; other statuses are applied directly.
func (s *DispatchService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*DecisionResult, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}
	status, ok := domain.ParseBookingStatus(req.Status)
	if !ok || status == domain.BookingStatusPending {
		return nil, ErrInvalidStatus
	}

	current, err := repository.GetLatest(ctx, s.bookingRepo, req.BookingID)
	if err != nil {
		return nil, err
	}

	switch status {
	case domain.BookingStatusAccepted:
		return s.applyDecision(ctx, current, DecisionAccept, req.DriverResponse)
	case domain.BookingStatusRejected:
		return s.applyDecision(ctx, current, DecisionReject, req.DriverResponse)
	}

	if !domain.CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, status)
	}

	details := strings.TrimSpace(req.DriverResponse)
	if details == "" {
		details = fmt.Sprintf("Status updated to %s", status)
	}

	updated, err := s.bookingRepo.ApplyTransition(ctx, current.ID, repository.Transition{
		From:    current.Status,
		To:      status,
		Details: details,
		Round:   current.Round,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: booking changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}

	if current.Status == domain.BookingStatusPending {
		s.timers.stop(updated.ID)
	}
	if status.IsTerminal() {
		s.releaseVehicle(ctx, updated.Candidate.VehicleID)
	}
	log.Printf("[DISPATCH] booking %s moved %s -> %s by operator", updated.ID, current.Status, status)
	s.publish(ctx, StatusRoutingKey(updated.Status), updated)

	return &DecisionResult{Booking: updated, Applied: true, Cancelled: status == domain.BookingStatusCancelled}, nil
}

// RecordDeliveryStatus logs an SMS provider delivery callback and publishes it.
func (s *DispatchService) RecordDeliveryStatus(ctx context.Context, report DeliveryReport) {
	switch report.Status {
	case "failed", "undelivered":
		log.Printf("[DISPATCH] message %s to %s %s: %s %s", report.MessageSID, report.To, report.Status, report.ErrorCode, report.ErrorMessage)
	case "delivered":
		log.Printf("[DISPATCH] message %s delivered to %s", report.MessageSID, report.To)
	default:
		log.Printf("[DISPATCH] message %s status update: %s", report.MessageSID, report.Status)
	}
	if report.ReceivedAt.IsZero() {
		report.ReceivedAt = s.now()
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, EventNotificationDelivery, report); err != nil {
			log.Printf("[DISPATCH] publish %s failed: %v", EventNotificationDelivery, err)
		}
	}
}

// Shutdown stops all pending-response timers.
func (s *DispatchService) Shutdown() {
	s.timers.stopAll()
}

// armTimeout schedules a timeout for the booking's current round.
func (s *DispatchService) armTimeout(b *domain.Booking) {
	id, round := b.ID, b.Round
	s.timers.arm(id, func() {
		s.expirePending(id, round)
	})
}

// expirePending treats an unanswered round as a rejection.
func (s *DispatchService) expirePending(bookingID string, round int) {
	ctx := context.Background()

	current, err := repository.GetLatest(ctx, s.bookingRepo, bookingID)
	if err != nil {
		log.Printf("[DISPATCH] timeout for booking %s: %v", bookingID, err)
		return
	}
	if current.Status != domain.BookingStatusPending || current.Round != round {
		return
	}

	log.Printf("[DISPATCH] booking %s: %s did not respond within %s", bookingID, current.Candidate.VehicleID, s.timeout)
	if _, err := s.reject(ctx, current, fmt.Sprintf(detailsTimedOut, s.timeout)); err != nil {
		log.Printf("[DISPATCH] reassign after timeout for booking %s failed: %v", bookingID, err)
	}
}

func (s *DispatchService) publish(ctx context.Context, routingKey string, b *domain.Booking) {
	if s.publisher == nil {
		return
	}
	event := BookingEvent{
		EventID:       uuid.New().String(),
		BookingID:     b.ID,
		Status:        string(b.Status),
		VehicleID:     b.Candidate.VehicleID,
		DriverContact: b.Candidate.DriverContact,
		Round:         b.Round,
		OccurredAt:    b.UpdatedAt,
	}
	if last, ok := b.LastEntry(); ok {
		event.Details = last.Details
	}
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		log.Printf("[DISPATCH] publish %s for booking %s failed: %v", routingKey, b.ID, err)
	}
}

// recordNotification reports a failed delivery so an operator can call the driver.
func (s *DispatchService) recordNotification(ctx context.Context, b *domain.Booking, kind domain.NotificationKind, outcome DeliveryOutcome) {
	if outcome.Sent {
		return
	}
	log.Printf("[DISPATCH] %s notification for booking %s not delivered after %d attempt(s): %s",
		kind, b.ID, outcome.Attempts, outcome.LastError)
	if s.publisher == nil {
		return
	}
	event := BookingEvent{
		EventID:       uuid.New().String(),
		BookingID:     b.ID,
		Status:        string(b.Status),
		VehicleID:     b.Candidate.VehicleID,
		DriverContact: b.Candidate.DriverContact,
		Details:       fmt.Sprintf("%s notification failed: %s", kind, outcome.LastError),
		Round:         b.Round,
		OccurredAt:    s.now(),
	}
	if err := s.publisher.Publish(ctx, EventNotificationFailed, event); err != nil {
		log.Printf("[DISPATCH] publish %s for booking %s failed: %v", EventNotificationFailed, b.ID, err)
	}
}

func (s *DispatchService) markDispatched(ctx context.Context, vehicleID string) {
	if s.fleet == nil || vehicleID == "" {
		return
	}
	if err := s.fleet.MarkDispatched(ctx, vehicleID); err != nil {
		log.Printf("[DISPATCH] mark %s dispatched: %v", vehicleID, err)
	}
}

func (s *DispatchService) releaseVehicle(ctx context.Context, vehicleID string) {
	if s.fleet == nil || vehicleID == "" {
		return
	}
	if err := s.fleet.ReleaseVehicle(ctx, vehicleID); err != nil {
		log.Printf("[DISPATCH] release %s: %v", vehicleID, err)
	}
}

// validateCreateRequest validates the create booking request.
func (s *DispatchService) validateCreateRequest(req CreateBookingRequest) (domain.EmergencyType, domain.Location, error) {
	emergencyType, ok := domain.ParseEmergencyType(req.EmergencyType)
	if !ok {
		return "", domain.Location{}, ErrInvalidEmergencyType
	}
	if !isValidLatitude(req.Latitude) || !isValidLongitude(req.Longitude) {
		return "", domain.Location{}, ErrInvalidLocation
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return "", domain.Location{}, ErrMissingAddress
	}
	return emergencyType, domain.Location{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Address:   address,
	}, nil
}

// isValidLatitude checks if latitude is within valid range.
func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// isValidLongitude checks if longitude is within valid range.
func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
