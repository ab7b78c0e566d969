package calcom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validRequest() CreateBookingRequest {
	return CreateBookingRequest{
		EventTypeID:   7,
		Start:         "2025-03-10T15:00:00Z",
		AttendeeEmail: "pedro@example.com",
		AttendeeName:  "Pedro",
		TimeZone:      "America/Chicago",
	}
}

func TestValidateBookingPayload_Valid(t *testing.T) {
	v := ValidateBookingPayload(validRequest())
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.Warnings)
}

func TestValidateBookingPayload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateBookingRequest)
		wantErr string
	}{
		{"missing event type", func(r *CreateBookingRequest) { r.EventTypeID = 0 }, "event type id must be a positive integer"},
		{"missing start", func(r *CreateBookingRequest) { r.Start = "" }, "start time is required"},
		{"garbled start", func(r *CreateBookingRequest) { r.Start = "tomorrow at noon" }, "is not a valid ISO-8601 instant"},
		{"missing email", func(r *CreateBookingRequest) { r.AttendeeEmail = "" }, "attendee email must be valid"},
		{"bogus email", func(r *CreateBookingRequest) { r.AttendeeEmail = "pedro" }, "attendee email must be valid"},
		{"blank name", func(r *CreateBookingRequest) { r.AttendeeName = "   " }, "attendee name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			v := ValidateBookingPayload(req)
			assert.False(t, v.Valid)
			assert.Contains(t, strings.Join(v.Errors, "; "), tt.wantErr)
		})
	}
}

func TestValidateBookingPayload_UnknownZoneIsWarningOnly(t *testing.T) {
	req := validRequest()
	req.TimeZone = "Mars/Olympus_Mons"
	v := ValidateBookingPayload(req)
	assert.True(t, v.Valid, "an unlisted zone must not block the booking")
	assert.Len(t, v.Warnings, 1)
}

func TestValidateBookingPayload_EmptyZoneSkipsCheck(t *testing.T) {
	req := validRequest()
	req.TimeZone = ""
	v := ValidateBookingPayload(req)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Warnings)
}
