package calcom

import (
	"fmt"
	"strings"
)

// CreateBookingRequest is the adapter-level booking payload, validated
// locally before any network call.
type CreateBookingRequest struct {
	EventTypeID   int    `json:"eventTypeId"`
	Start         string `json:"start"` // ISO 8601 instant
	AttendeeEmail string `json:"attendeeEmail"`
	AttendeeName  string `json:"attendeeName"`
	TimeZone      string `json:"timeZone,omitempty"`
	Language      string `json:"language,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// knownTimeZones lists the IANA names the backend is known to accept.
// An unlisted zone is a warning, not a rejection: the backend may well
// take it, and blocking the booking would be worse than a soft note.
var knownTimeZones = map[string]struct{}{
	"UTC":                 {},
	"America/New_York":    {},
	"America/Chicago":     {},
	"America/Denver":      {},
	"America/Phoenix":     {},
	"America/Los_Angeles": {},
	"America/Toronto":     {},
	"America/Sao_Paulo":   {},
	"Europe/London":       {},
	"Europe/Paris":        {},
	"Europe/Berlin":       {},
	"Europe/Madrid":       {},
	"Asia/Kolkata":        {},
	"Asia/Tokyo":          {},
	"Asia/Singapore":      {},
	"Australia/Sydney":    {},
}

// ValidateBookingPayload performs required-field and shape checks on a
// booking payload. Errors block submission; warnings do not.
func ValidateBookingPayload(req CreateBookingRequest) Validation {
	v := Validation{Errors: []string{}, Warnings: []string{}}

	if req.EventTypeID <= 0 {
		v.Errors = append(v.Errors, "event type id must be a positive integer")
	}
	if req.Start == "" {
		v.Errors = append(v.Errors, "start time is required")
	} else if _, ok := parseInstant(req.Start); !ok {
		v.Errors = append(v.Errors, fmt.Sprintf("start time %q is not a valid ISO-8601 instant", req.Start))
	}
	if req.AttendeeEmail == "" || !strings.Contains(req.AttendeeEmail, "@") {
		v.Errors = append(v.Errors, "attendee email must be valid")
	}
	if strings.TrimSpace(req.AttendeeName) == "" {
		v.Errors = append(v.Errors, "attendee name is required")
	}

	if req.TimeZone != "" {
		if _, ok := knownTimeZones[req.TimeZone]; !ok {
			v.Warnings = append(v.Warnings, fmt.Sprintf("timezone %q is not on the list of zones the backend is known to accept", req.TimeZone))
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}
