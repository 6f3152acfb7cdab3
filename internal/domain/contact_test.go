package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeContact(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare national number", raw: "9876543210", want: "9876543210"},
		{name: "e164", raw: "+919876543210", want: "9876543210"},
		{name: "country code without plus", raw: "919876543210", want: "9876543210"},
		{name: "formatted", raw: "+91 98765-43210", want: "9876543210"},
		{name: "trunk zero", raw: "09876543210", want: "9876543210"},
		{name: "too short", raw: "12345", wantErr: true},
		{name: "foreign country code", raw: "+449876543210", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeContact(tc.raw, "91")
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidContact)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestE164(t *testing.T) {
	assert.Equal(t, "+919876543210", E164("9876543210", ""))
	assert.Equal(t, "+19876543210", E164("9876543210", "1"))
}
