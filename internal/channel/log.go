package channel

import (
	"context"
	"log"

	"github.com/google/uuid"

	"dispatch/internal/domain"
)

// LogChannel writes notifications to the log instead of sending them.
// Used when no provider is configured.
type LogChannel struct{}

// NewLogChannel creates a new LogChannel.
func NewLogChannel() *LogChannel {
	return &LogChannel{}
}

// Send logs the notification and reports success.
func (c *LogChannel) Send(_ context.Context, n domain.Notification) (string, error) {
	id := "log-" + uuid.New().String()
	log.Printf("[NOTIFY] %s to %s (booking %s): %s", n.Kind, n.Recipient, n.BookingID, n.Body)
	return id, nil
}
