package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/soypete/calbot/pkg/calcom"
	"github.com/soypete/calbot/pkg/timectx"
)

// Deps carries the shared dependencies of the scheduling tools.
type Deps struct {
	Adapter *calcom.Adapter
	Clock   *timectx.Provider
	Logger  zerolog.Logger

	// Defaults applied when the model omits attendee details.
	AttendeeName  string
	AttendeeEmail string
	DefaultTZ     string

	// PinnedEventTypeID skips category matching entirely when set.
	PinnedEventTypeID int
}

// RegisterScheduling registers the six scheduling tools in the order the
// usual flow runs them.
func RegisterScheduling(reg *Registry, deps Deps) error {
	all := []Tool{
		&listEventTypesTool{deps},
		&checkAvailabilityTool{deps},
		&createBookingTool{deps},
		&listBookingsTool{deps},
		&cancelBookingTool{deps},
		&rescheduleBookingTool{deps},
	}
	for _, tool := range all {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// list_event_types

type listEventTypesTool struct {
	deps Deps
}

func (t *listEventTypesTool) Name() string { return "list_event_types" }

func (t *listEventTypesTool) Description() string {
	return "List the bookable meeting categories (event types). Use this when the user asks what kinds of meetings can be booked, or when you need to pick a category and none is obvious."
}

func (t *listEventTypesTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{}, nil)
}

func (t *listEventTypesTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	res := t.deps.Adapter.ListEventTypes(ctx)
	if !res.Success {
		return &Result{Success: false, Error: res.Error, Data: map[string]interface{}{"suggestion": res.Suggestion}}, nil
	}
	return &Result{
		Success: true,
		Output:  fmt.Sprintf("%d event types available", res.Count),
		Data:    asMap(res),
	}, nil
}

// check_availability

type checkAvailabilityTool struct {
	deps Deps
}

func (t *checkAvailabilityTool) Name() string { return "check_availability" }

func (t *checkAvailabilityTool) Description() string {
	return "List the open time slots for a given date. Always call this before create_booking: never book a time you have not seen in an availability result. Dates are calendar dates in the assistant's reference timezone."
}

func (t *checkAvailabilityTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"date": map[string]interface{}{
			"type":        "string",
			"description": "Calendar date to check, formatted YYYY-MM-DD",
		},
		"event_type": map[string]interface{}{
			"type":        "string",
			"description": "Meeting category name, e.g. \"interview\". Optional when a category is pinned or obvious.",
		},
		"event_type_id": map[string]interface{}{
			"type":        "integer",
			"description": "Exact event type id, when already known",
		},
	}, []string{"date"})
}

func (t *checkAvailabilityTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	eventTypeID, failed := resolveEventType(ctx, t.deps.Adapter, args, t.deps.PinnedEventTypeID)
	if failed != nil {
		return failed, nil
	}

	start, end, err := t.deps.Clock.DayWindowUTC(argString(args, "date"))
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	res := t.deps.Adapter.ListAvailableSlots(ctx, eventTypeID, start, end)
	if !res.Success {
		return &Result{Success: false, Error: res.Error, Data: map[string]interface{}{"suggestion": res.Suggestion}}, nil
	}

	output := fmt.Sprintf("%d open slots", res.Count)
	if res.Count == 0 {
		output = "no open slots on that date"
	}
	return &Result{Success: true, Output: output, Data: asMap(res)}, nil
}

// create_booking

type createBookingTool struct {
	deps Deps
}

func (t *createBookingTool) Name() string { return "create_booking" }

func (t *createBookingTool) Description() string {
	return "Book a meeting at a specific start time. Only call this after check_availability has shown the slot as open, and after the user has confirmed the time. The start must be one of the instants returned by check_availability."
}

func (t *createBookingTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"start": map[string]interface{}{
			"type":        "string",
			"description": "Slot start as an ISO-8601 instant, exactly as returned by check_availability",
		},
		"event_type": map[string]interface{}{
			"type":        "string",
			"description": "Meeting category name",
		},
		"event_type_id": map[string]interface{}{
			"type":        "integer",
			"description": "Exact event type id, when already known",
		},
		"name": map[string]interface{}{
			"type":        "string",
			"description": "Attendee name; defaults to the configured attendee",
		},
		"email": map[string]interface{}{
			"type":        "string",
			"description": "Attendee email; defaults to the configured attendee",
		},
		"timezone": map[string]interface{}{
			"type":        "string",
			"description": "Attendee IANA timezone, e.g. America/Chicago",
		},
		"reason": map[string]interface{}{
			"type":        "string",
			"description": "Short meeting reason, shown to the host",
		},
	}, []string{"start"})
}

func (t *createBookingTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	eventTypeID, failed := resolveEventType(ctx, t.deps.Adapter, args, t.deps.PinnedEventTypeID)
	if failed != nil {
		return failed, nil
	}

	name := argString(args, "name")
	if name == "" {
		name = t.deps.AttendeeName
	}
	email := argString(args, "email")
	if email == "" {
		email = t.deps.AttendeeEmail
	}
	tz := argString(args, "timezone")
	if tz == "" {
		tz = t.deps.DefaultTZ
	}

	res := t.deps.Adapter.CreateBooking(ctx, calcom.CreateBookingRequest{
		EventTypeID:   eventTypeID,
		Start:         argString(args, "start"),
		AttendeeName:  name,
		AttendeeEmail: email,
		TimeZone:      tz,
		Reason:        argString(args, "reason"),
	})
	if !res.Success {
		return &Result{
			Success: false,
			Error:   res.Error,
			Data:    map[string]interface{}{"suggestion": res.Suggestion, "duplicate": res.Duplicate},
		}, nil
	}

	output := "booking confirmed"
	if res.Booking != nil && res.Booking.LocalTime != "" {
		output = "booking confirmed for " + res.Booking.LocalTime
	}
	return &Result{Success: true, Output: output, Data: asMap(res)}, nil
}

// list_bookings

type listBookingsTool struct {
	deps Deps
}

func (t *listBookingsTool) Name() string { return "list_bookings" }

func (t *listBookingsTool) Description() string {
	return "List the user's existing bookings, with their uid, local time, and lifecycle (past, today, this-week, upcoming, cancelled, pending). Call this before cancel_booking or reschedule_booking to find the right uid."
}

func (t *listBookingsTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"email": map[string]interface{}{
			"type":        "string",
			"description": "Filter by attendee email; defaults to the configured attendee",
		},
		"name": map[string]interface{}{
			"type":        "string",
			"description": "Filter by attendee name substring",
		},
	}, nil)
}

func (t *listBookingsTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	email := argString(args, "email")
	if email == "" {
		email = t.deps.AttendeeEmail
	}

	res := t.deps.Adapter.ListBookings(ctx, email, argString(args, "name"))
	if !res.Success {
		return &Result{Success: false, Error: res.Error, Data: map[string]interface{}{"suggestion": res.Suggestion}}, nil
	}
	return &Result{
		Success: true,
		Output:  fmt.Sprintf("%d bookings", res.Count),
		Data:    asMap(res),
	}, nil
}

// cancel_booking

type cancelBookingTool struct {
	deps Deps
}

func (t *cancelBookingTool) Name() string { return "cancel_booking" }

func (t *cancelBookingTool) Description() string {
	return "Cancel an existing booking by its uid (preferred) or numeric id. Get the uid from list_bookings first, and confirm with the user before cancelling."
}

func (t *cancelBookingTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"uid": map[string]interface{}{
			"type":        "string",
			"description": "Booking uid from list_bookings",
		},
		"id": map[string]interface{}{
			"type":        "integer",
			"description": "Numeric booking id, when no uid is known",
		},
		"reason": map[string]interface{}{
			"type":        "string",
			"description": "Cancellation reason, shown to the host",
		},
	}, nil)
}

func (t *cancelBookingTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	uid, id := bookingIdentifier(args)
	if uid == "" && id == 0 {
		return ErrorResult("a booking uid or id is required; call list_bookings to find it"), nil
	}

	res := t.deps.Adapter.CancelBooking(ctx, uid, id, argString(args, "reason"))
	if !res.Success {
		return &Result{
			Success: false,
			Error:   res.Error,
			Data:    map[string]interface{}{"suggestion": res.Suggestion, "not_found": res.NotFound},
		}, nil
	}
	return &Result{Success: true, Output: "booking " + res.UID + " cancelled", Data: asMap(res)}, nil
}

// reschedule_booking

type rescheduleBookingTool struct {
	deps Deps
}

func (t *rescheduleBookingTool) Name() string { return "reschedule_booking" }

func (t *rescheduleBookingTool) Description() string {
	return "Move an existing booking to a new start time. Check availability for the new time first. If the result reports partial_failure, the original booking was cancelled but the new one was not created; tell the user plainly."
}

func (t *rescheduleBookingTool) Schema() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"uid": map[string]interface{}{
			"type":        "string",
			"description": "Booking uid from list_bookings",
		},
		"id": map[string]interface{}{
			"type":        "integer",
			"description": "Numeric booking id, when no uid is known",
		},
		"new_start": map[string]interface{}{
			"type":        "string",
			"description": "New start as an ISO-8601 instant, taken from check_availability",
		},
		"reason": map[string]interface{}{
			"type":        "string",
			"description": "Why the meeting is moving",
		},
	}, []string{"new_start"})
}

func (t *rescheduleBookingTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	uid, id := bookingIdentifier(args)
	if uid == "" && id == 0 {
		return ErrorResult("a booking uid or id is required; call list_bookings to find it"), nil
	}

	newStart, err := time.Parse(time.RFC3339, argString(args, "new_start"))
	if err != nil {
		return ErrorResult(fmt.Sprintf("new_start %q is not a valid ISO-8601 instant", argString(args, "new_start"))), nil
	}

	res := t.deps.Adapter.RescheduleBooking(ctx, uid, id, newStart, argString(args, "reason"))
	if !res.Success {
		return &Result{
			Success: false,
			Error:   res.Error,
			Data: map[string]interface{}{
				"suggestion":      res.Suggestion,
				"not_found":       res.NotFound,
				"partial_failure": res.PartialFailure,
				"cancelled_uid":   res.CancelledUID,
			},
		}, nil
	}

	output := "booking rescheduled"
	if res.Compensated {
		output = "booking rescheduled (cancelled and recreated)"
	}
	return &Result{Success: true, Output: output, Data: asMap(res)}, nil
}

// bookingIdentifier reads the uid/id argument pair. A synthetic
// "id:<n>" uid (produced when the backend exposed no real uid) is folded
// back into the numeric id.
func bookingIdentifier(args map[string]interface{}) (string, int) {
	uid := strings.TrimSpace(argString(args, "uid"))
	id := argInt(args, "id")
	if rest, ok := strings.CutPrefix(uid, "id:"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			uid = ""
			if id == 0 {
				id = n
			}
		}
	}
	return uid, id
}

func objectSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// asMap flattens any result struct into the generic map carried on a
// tool Result.
func asMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
