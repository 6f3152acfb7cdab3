package domain

// NotificationKind selects the message template.
type NotificationKind string

const (
	NotificationDispatch NotificationKind = "DISPATCH"
	NotificationAccepted NotificationKind = "ACCEPTED"
	NotificationRejected NotificationKind = "REJECTED"
)

// Notification is a rendered message ready for a delivery channel.
type Notification struct {
	Kind        NotificationKind
	BookingID   string
	Recipient   string // E.164 phone number
	DeviceToken string
	Title       string
	Body        string
	Data        map[string]string
}
