package channel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"dispatch/internal/domain"
)

type fakeMessages struct {
	params []*openapi.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM0001"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

type fakeFCM struct {
	messages []*messaging.Message
	err      error
}

func (f *fakeFCM) Send(ctx context.Context, message *messaging.Message) (string, error) {
	f.messages = append(f.messages, message)
	if f.err != nil {
		return "", f.err
	}
	return "projects/p/messages/1", nil
}

func dispatchNotification() domain.Notification {
	return domain.Notification{
		Kind:        domain.NotificationDispatch,
		BookingID:   "b-1",
		Recipient:   "+919876543210",
		DeviceToken: "device-token",
		Title:       "Emergency Booking Request",
		Body:        "Reply \"YES\" to accept or \"NO\" to reject.",
		Data:        map[string]string{"booking_id": "b-1"},
	}
}

func TestSMSChannel_Send(t *testing.T) {
	api := &fakeMessages{}
	ch := newSMSChannel(api, "+15005550006", "https://dispatch.example.com/v1/webhooks/twilio/status")

	id, err := ch.Send(context.Background(), dispatchNotification())

	require.NoError(t, err)
	assert.Equal(t, "SM0001", id)
	require.Len(t, api.params, 1)
	p := api.params[0]
	assert.Equal(t, "+919876543210", *p.To)
	assert.Equal(t, "+15005550006", *p.From)
	assert.Equal(t, "Reply \"YES\" to accept or \"NO\" to reject.", *p.Body)
	assert.Equal(t, "https://dispatch.example.com/v1/webhooks/twilio/status", *p.StatusCallback)
}

func TestSMSChannel_Errors(t *testing.T) {
	api := &fakeMessages{err: errors.New("21211: invalid 'To' number")}
	ch := newSMSChannel(api, "+15005550006", "")

	_, err := ch.Send(context.Background(), dispatchNotification())
	assert.ErrorContains(t, err, "invalid 'To' number")

	n := dispatchNotification()
	n.Recipient = ""
	_, err = ch.Send(context.Background(), n)
	assert.ErrorIs(t, err, ErrNoRecipient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ch.Send(ctx, dispatchNotification())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, api.params, 1, "no API call for a missing recipient or cancelled context")
}

func TestPushChannel_Send(t *testing.T) {
	fcm := &fakeFCM{}
	ch := &PushChannel{client: fcm}

	id, err := ch.Send(context.Background(), dispatchNotification())

	require.NoError(t, err)
	assert.Equal(t, "projects/p/messages/1", id)
	require.Len(t, fcm.messages, 1)
	msg := fcm.messages[0]
	assert.Equal(t, "device-token", msg.Token)
	assert.Equal(t, "b-1", msg.Data["booking_id"])
	assert.Equal(t, "Emergency Booking Request", msg.Notification.Title)
	assert.Equal(t, "high", msg.Android.Priority)
	require.NotNil(t, msg.Android.TTL)
	assert.Zero(t, *msg.Android.TTL)
	assert.Equal(t, androidChannelID, msg.Android.Notification.ChannelID)
}

func TestPushChannel_NoDeviceToken(t *testing.T) {
	fcm := &fakeFCM{}
	ch := &PushChannel{client: fcm}

	n := dispatchNotification()
	n.DeviceToken = ""
	_, err := ch.Send(context.Background(), n)

	assert.ErrorIs(t, err, ErrNoDeviceToken)
	assert.Empty(t, fcm.messages)
}

func TestFanoutChannel(t *testing.T) {
	sms := newSMSChannel(&fakeMessages{}, "+15005550006", "")
	brokenPush := &PushChannel{client: &fakeFCM{err: errors.New("unregistered")}}

	id, err := NewFanoutChannel(sms, brokenPush).Send(context.Background(), dispatchNotification())
	require.NoError(t, err, "one channel succeeding is enough")
	assert.Equal(t, "SM0001", id)

	id, err = NewFanoutChannel(sms, &PushChannel{client: &fakeFCM{}}).Send(context.Background(), dispatchNotification())
	require.NoError(t, err)
	assert.Equal(t, "SM0001,projects/p/messages/1", id)

	brokenSMS := newSMSChannel(&fakeMessages{err: errors.New("down")}, "+15005550006", "")
	_, err = NewFanoutChannel(brokenSMS, brokenPush).Send(context.Background(), dispatchNotification())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "down") && strings.Contains(err.Error(), "unregistered"))

	_, err = NewFanoutChannel().Send(context.Background(), dispatchNotification())
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestLogChannel(t *testing.T) {
	id, err := NewLogChannel().Send(context.Background(), dispatchNotification())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "log-"))
}
