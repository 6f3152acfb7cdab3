package channel

import (
	"context"
	"errors"
	"strings"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

var (
	_ service.Channel = (*SMSChannel)(nil)
	_ service.Channel = (*PushChannel)(nil)
	_ service.Channel = (*LogChannel)(nil)
	_ service.Channel = (*FanoutChannel)(nil)
)

// FanoutChannel sends through every channel and succeeds if any of them did.
type FanoutChannel struct {
	channels []service.Channel
}

// NewFanoutChannel creates a channel that delivers through all given channels.
func NewFanoutChannel(channels ...service.Channel) *FanoutChannel {
	return &FanoutChannel{channels: channels}
}

// Send returns the ids of successful sends joined by commas, or all errors
// when every channel failed.
func (c *FanoutChannel) Send(ctx context.Context, n domain.Notification) (string, error) {
	var ids []string
	var errs []error
	for _, ch := range c.channels {
		id, err := ch.Send(ctx, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		return strings.Join(ids, ","), nil
	}
	if len(errs) == 0 {
		return "", ErrNoRecipient
	}
	return "", errors.Join(errs...)
}
