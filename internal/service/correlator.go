package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Acknowledgements returned to the replying driver.
const (
	AckInvalidReply = "Please respond with YES to accept or NO to reject the booking."
	AckNoBooking    = "No pending emergency booking was found for this number."
	ackAccepted     = "Thank you for accepting the emergency booking (ID: %s).\nPatient Location: %s\nCoordinates: %v, %v"
	ackRejected     = "You have rejected the emergency booking (ID: %s). We will assign another ambulance."
	ackStale        = "Emergency booking (ID: %s) is no longer awaiting your response."
)

// ParseReply maps a free-text driver reply to a decision.
func ParseReply(text string) (Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "YES", "Y", "ACCEPT":
		return DecisionAccept, nil
	case "NO", "N", "REJECT":
		return DecisionReject, nil
	}
	return "", ErrInvalidReply
}

// ReplyOutcome is what happened to an inbound driver reply.
type ReplyOutcome struct {
	Decision  Decision
	BookingID string
	Result    *DecisionResult
	Ack       string // message to send back to the driver
}

// WebhookCorrelator routes a driver's reply to the booking awaiting it.
type WebhookCorrelator struct {
	bookingRepo repository.BookingRepository
	dispatcher  *DispatchService
	countryCode string
}

// NewWebhookCorrelator creates a new WebhookCorrelator.
func NewWebhookCorrelator(bookingRepo repository.BookingRepository, dispatcher *DispatchService, countryCode string) *WebhookCorrelator {
	if countryCode == "" {
		countryCode = domain.DefaultCountryCode
	}
	return &WebhookCorrelator{
		bookingRepo: bookingRepo,
		dispatcher:  dispatcher,
		countryCode: countryCode,
	}
}

// Correlate parses the reply, finds the sender's open booking and applies the
// decision. It returns ErrInvalidReply or repository.ErrNotFound without
// touching any booking; the outcome's Ack is set in both cases.
func (c *WebhookCorrelator) Correlate(ctx context.Context, driverContact, replyText string) (*ReplyOutcome, error) {
	decision, err := ParseReply(replyText)
	if err != nil {
		return &ReplyOutcome{Ack: AckInvalidReply}, err
	}

	contact, err := domain.NormalizeContact(driverContact, c.countryCode)
	if err != nil {
		log.Printf("[WEBHOOK] reply from unrecognised number %q", driverContact)
		return &ReplyOutcome{Decision: decision, Ack: AckNoBooking}, fmt.Errorf("%w: %v", repository.ErrNotFound, err)
	}

	booking, err := c.bookingRepo.FindOpenByDriverContact(ctx, contact)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("[WEBHOOK] no pending booking for %s", contact)
			return &ReplyOutcome{Decision: decision, Ack: AckNoBooking}, err
		}
		return nil, err
	}

	result, err := c.dispatcher.applyDecision(ctx, booking, decision, "")
	if err != nil {
		return nil, err
	}

	return &ReplyOutcome{
		Decision:  decision,
		BookingID: booking.ID,
		Result:    result,
		Ack:       ack(result),
	}, nil
}

func ack(r *DecisionResult) string {
	b := r.Booking
	if !r.Applied {
		return fmt.Sprintf(ackStale, b.ID)
	}
	if r.Decision == DecisionAccept {
		return fmt.Sprintf(ackAccepted, b.ID, b.Location.Address, b.Location.Latitude, b.Location.Longitude)
	}
	return fmt.Sprintf(ackRejected, b.ID)
}
