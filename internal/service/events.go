package service

import (
	"context"
	"strings"
	"time"

	"dispatch/internal/domain"
)

// Routing keys for dispatch events.
const (
	EventBookingCreated       = "booking.created"
	EventNotificationFailed   = "notification.failed"
	EventNotificationDelivery = "notification.delivery"
)

// EventPublisher publishes dispatch events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

// BookingEvent is the payload published for every booking state change.
type BookingEvent struct {
	EventID       string    `json:"event_id"`
	BookingID     string    `json:"booking_id"`
	Status        string    `json:"status"`
	VehicleID     string    `json:"vehicle_id,omitempty"`
	DriverContact string    `json:"driver_contact,omitempty"`
	Details       string    `json:"details,omitempty"`
	Round         int       `json:"round"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// DeliveryReport is a delivery-status callback from the SMS provider.
type DeliveryReport struct {
	MessageSID   string    `json:"message_sid"`
	Status       string    `json:"status"`
	To           string    `json:"to"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// StatusRoutingKey returns the routing key for a transition into status.
func StatusRoutingKey(status domain.BookingStatus) string {
	return "booking.status." + strings.ToLower(string(status))
}
