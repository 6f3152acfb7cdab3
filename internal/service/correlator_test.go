package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReply(t *testing.T) {
	testCases := []struct {
		input string
		want  Decision
		ok    bool
	}{
		{"YES", DecisionAccept, true},
		{" yes\n", DecisionAccept, true},
		{"y", DecisionAccept, true},
		{"Accept", DecisionAccept, true},
		{"NO", DecisionReject, true},
		{"n", DecisionReject, true},
		{"reject", DecisionReject, true},
		{"", "", false},
		{"maybe", "", false},
		{"yes please", "", false},
	}

	for _, tc := range testCases {
		got, err := ParseReply(tc.input)
		if tc.ok {
			assert.NoError(t, err, tc.input)
			assert.Equal(t, tc.want, got, tc.input)
		} else {
			assert.ErrorIs(t, err, ErrInvalidReply, tc.input)
		}
	}
}

func TestStatusRoutingKey(t *testing.T) {
	assert.Equal(t, "booking.status.in_progress", StatusRoutingKey("IN_PROGRESS"))
	assert.Equal(t, "booking.status.accepted", StatusRoutingKey("ACCEPTED"))
}
