package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/messaging"

	"dispatch/internal/domain"
)

// ErrNoDeviceToken is returned when the driver has no registered app.
var ErrNoDeviceToken = errors.New("driver has no device token")

const androidChannelID = "emergency_alerts"

// immediate tells FCM to deliver now or drop the message; a stale dispatch
// request is worse than none.
var immediate time.Duration

// messageSender is the subset of the FCM client the push channel uses.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushChannel sends notifications to the driver app through FCM.
type PushChannel struct {
	client messageSender
}

// NewPushChannel creates a push channel backed by an FCM client.
func NewPushChannel(client *messaging.Client) *PushChannel {
	return &PushChannel{client: client}
}

// Send pushes a high-priority notification to the driver's device.
func (c *PushChannel) Send(ctx context.Context, n domain.Notification) (string, error) {
	if n.DeviceToken == "" {
		return "", ErrNoDeviceToken
	}

	msg := &messaging.Message{
		Token: n.DeviceToken,
		Data:  n.Data,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &immediate,
			Notification: &messaging.AndroidNotification{
				ChannelID: androidChannelID,
				Sound:     "default",
			},
		},
	}

	id, err := c.client.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("fcm send: %w", err)
	}
	return id, nil
}
