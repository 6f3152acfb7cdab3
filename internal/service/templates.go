package service

import (
	"fmt"

	"dispatch/internal/domain"
)

// renderDispatch builds the initial dispatch request sent to a candidate.
func renderDispatch(b *domain.Booking, c domain.Candidate) domain.Notification {
	body := fmt.Sprintf(
		"🚨 EMERGENCY BOOKING REQUEST 🚨\n\n"+
			"Type: %s\n"+
			"Location: %s\n"+
			"Coordinates: %v, %v\n"+
			"Booking ID: %s\n\n"+
			"Reply \"YES\" to accept or \"NO\" to reject.",
		b.EmergencyType.Title(),
		b.Location.Address,
		b.Location.Latitude, b.Location.Longitude,
		b.ID,
	)
	return newNotification(domain.NotificationDispatch, "Emergency Booking Request", body, b, c)
}

// renderAccepted builds the confirmation sent once a driver accepts.
func renderAccepted(b *domain.Booking, c domain.Candidate) domain.Notification {
	body := fmt.Sprintf(
		"✅ Booking Accepted\n\n"+
			"Booking ID: %s\n"+
			"Patient Location: %s\n"+
			"Coordinates: %v, %v\n\n"+
			"Please proceed to the patient location immediately.",
		b.ID,
		b.Location.Address,
		b.Location.Latitude, b.Location.Longitude,
	)
	return newNotification(domain.NotificationAccepted, "Booking Accepted", body, b, c)
}

// renderRejected builds the acknowledgement sent to a driver who declined.
func renderRejected(b *domain.Booking, c domain.Candidate) domain.Notification {
	body := fmt.Sprintf(
		"❌ Booking Rejected\n\n"+
			"Booking ID: %s\n"+
			"The booking will be reassigned to another ambulance.",
		b.ID,
	)
	return newNotification(domain.NotificationRejected, "Booking Rejected", body, b, c)
}

func newNotification(kind domain.NotificationKind, title, body string, b *domain.Booking, c domain.Candidate) domain.Notification {
	return domain.Notification{
		Kind:        kind,
		BookingID:   b.ID,
		DeviceToken: c.DeviceToken,
		Title:       title,
		Body:        body,
		Data: map[string]string{
			"type":           string(kind),
			"booking_id":     b.ID,
			"emergency_type": string(b.EmergencyType),
			"address":        b.Location.Address,
			"latitude":       fmt.Sprint(b.Location.Latitude),
			"longitude":      fmt.Sprint(b.Location.Longitude),
			"vehicle_id":     c.VehicleID,
		},
	}
}
