package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"dispatch/internal/domain"
)

// ErrNoRecipient is returned when a notification has no phone number.
var ErrNoRecipient = errors.New("notification has no recipient")

// messageCreator is the subset of the Twilio messages API the SMS channel uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMSChannel sends notifications as Twilio text messages.
type SMSChannel struct {
	api            messageCreator
	from           string
	statusCallback string
}

// NewSMSChannel creates an SMS channel for the given Twilio account.
// statusCallback, when set, receives delivery reports.
func NewSMSChannel(accountSID, authToken, from, statusCallback string) *SMSChannel {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newSMSChannel(client.Api, from, statusCallback)
}

func newSMSChannel(api messageCreator, from, statusCallback string) *SMSChannel {
	return &SMSChannel{api: api, from: from, statusCallback: statusCallback}
}

// Send delivers the notification body to its E.164 recipient.
func (c *SMSChannel) Send(ctx context.Context, n domain.Notification) (string, error) {
	if n.Recipient == "" {
		return "", ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(n.Recipient)
	params.SetFrom(c.from)
	params.SetBody(n.Body)
	if c.statusCallback != "" {
		params.SetStatusCallback(c.statusCallback)
	}

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
