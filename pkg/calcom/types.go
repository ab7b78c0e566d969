package calcom

import "time"

// EventType represents a bookable meeting category offered by the backend.
// Cal.com calls these "event types"; the assistant matches a user's stated
// meeting reason against Title and Slug.
type EventType struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Length      int    `json:"length"` // duration in minutes
	Description string `json:"description,omitempty"`
}

// Attendee represents a booking attendee
type Attendee struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Booking is the normalized view of a backend booking. The numeric ID is
// not stable across API generations; UID is the only identifier used for
// cancel/reschedule.
type Booking struct {
	ID     int       `json:"id"`
	UID    string    `json:"uid"`
	Title  string    `json:"title,omitempty"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end,omitempty"`
	Status string    `json:"status,omitempty"` // raw backend status when present

	Attendee  Attendee   `json:"attendee"` // most relevant attendee
	Attendees []Attendee `json:"attendees,omitempty"`

	// Links the backend happened to expose. MeetingURL tolerates several
	// key spellings; reschedule/cancel links are only taken from exact
	// known keys (a wrong guess here would be actionable and wrong).
	MeetingURL     string `json:"meetingUrl,omitempty"`
	RescheduleLink string `json:"rescheduleLink,omitempty"`
	CancelLink     string `json:"cancelLink,omitempty"`

	// Derived display fields, populated by ListBookings.
	LocalTime string `json:"localTime,omitempty"`
	Lifecycle string `json:"lifecycle,omitempty"` // cancelled, pending, past, today, this-week, upcoming
}

// EventTypesResult is the normalized outcome of ListEventTypes.
type EventTypesResult struct {
	Success    bool        `json:"success"`
	EventTypes []EventType `json:"event_types"`
	Count      int         `json:"count"`
	Error      string      `json:"error,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// SlotsResult is the normalized outcome of ListAvailableSlots. Slots are
// ISO-8601 instants, deduplicated, in backend order. Zero slots with
// Success true means the window is genuinely free of availability.
type SlotsResult struct {
	Success    bool     `json:"success"`
	Slots      []string `json:"slots"`
	Count      int      `json:"count"`
	Error      string   `json:"error,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// BookingResult is the normalized outcome of CreateBooking.
type BookingResult struct {
	Success    bool     `json:"success"`
	Booking    *Booking `json:"booking,omitempty"`
	Duplicate  bool     `json:"duplicate,omitempty"` // identical request already in flight
	Error      string   `json:"error,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// BookingsResult is the normalized outcome of ListBookings.
type BookingsResult struct {
	Success    bool      `json:"success"`
	Bookings   []Booking `json:"bookings"`
	Count      int       `json:"count"`
	Error      string    `json:"error,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// CancelResult is the normalized outcome of CancelBooking.
type CancelResult struct {
	Success    bool   `json:"success"`
	UID        string `json:"uid,omitempty"`
	NotFound   bool   `json:"not_found,omitempty"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// RescheduleResult is the normalized outcome of RescheduleBooking.
//
// When the dedicated reschedule endpoint is unavailable the adapter falls
// back to cancel-then-recreate. PartialFailure marks the worst case of
// that fallback: the original booking was cancelled but the replacement
// could not be created, so the caller must tell the user their slot is
// gone.
type RescheduleResult struct {
	Success        bool     `json:"success"`
	Booking        *Booking `json:"booking,omitempty"`
	Compensated    bool     `json:"compensated,omitempty"` // used cancel-then-recreate
	PartialFailure bool     `json:"partial_failure,omitempty"`
	CancelledUID   string   `json:"cancelled_uid,omitempty"`
	NotFound       bool     `json:"not_found,omitempty"`
	Error          string   `json:"error,omitempty"`
	Suggestion     string   `json:"suggestion,omitempty"`
}

// Validation is the outcome of ValidateBookingPayload. Errors block the
// request; warnings do not.
type Validation struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
