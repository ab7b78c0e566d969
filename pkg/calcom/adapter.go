package calcom

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Adapter presents a single stable interface over the two incompatible
// backend API generations. One instance per chat session: the in-flight
// guard and the client's cache/diagnostics are instance state so sessions
// stay isolated and testable in parallel.
type Adapter struct {
	client    *Client
	defaultTZ string
	loc       *time.Location
	log       zerolog.Logger

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	// now is replaceable in tests
	now func() time.Time
}

// NewAdapter creates a booking backend adapter over the given client.
func NewAdapter(client *Client, defaultTZ string, logger zerolog.Logger) *Adapter {
	loc, err := time.LoadLocation(defaultTZ)
	if err != nil {
		loc = time.UTC
	}
	return &Adapter{
		client:    client,
		defaultTZ: defaultTZ,
		loc:       loc,
		log:       logger,
		inflight:  make(map[string]struct{}),
		now:       time.Now,
	}
}

// Diagnostics exposes the client's anomaly log for the debug sidebar.
func (a *Adapter) Diagnostics() []DiagEntry {
	return a.client.Diagnostics().Recent()
}

// ListEventTypes fetches the bookable event categories. Zero categories
// is a successful outcome, not an error.
func (a *Adapter) ListEventTypes(ctx context.Context) EventTypesResult {
	body, _, err := a.client.DoWithFallback(ctx, []Strategy{
		{Gen: GenV2, Build: func() Request {
			return Request{Method: http.MethodGet, Path: "/event-types"}
		}},
		{Gen: GenV1, Build: func() Request {
			return Request{Method: http.MethodGet, Path: "/event-types"}
		}},
	})
	if err != nil {
		msg, suggestion := describeError(err)
		return EventTypesResult{Error: msg, Suggestion: suggestion}
	}

	eventTypes := normalizeEventTypes(body, a.client.Diagnostics())
	if eventTypes == nil {
		eventTypes = []EventType{}
	}
	return EventTypesResult{Success: true, EventTypes: eventTypes, Count: len(eventTypes)}
}

// ListAvailableSlots fetches bookable start instants in the UTC half-open
// window [start, end). The generations spell both the endpoint parameters
// differently (start/end vs startTime/endTime), so each strategy builds
// its own request.
func (a *Adapter) ListAvailableSlots(ctx context.Context, eventTypeID int, start, end time.Time) SlotsResult {
	body, _, err := a.client.DoWithFallback(ctx, []Strategy{
		{Gen: GenV2, Build: func() Request {
			q := url.Values{}
			q.Set("eventTypeId", strconv.Itoa(eventTypeID))
			q.Set("start", start.UTC().Format(time.RFC3339))
			q.Set("end", end.UTC().Format(time.RFC3339))
			return Request{Method: http.MethodGet, Path: "/slots", Query: q}
		}},
		{Gen: GenV1, Build: func() Request {
			q := url.Values{}
			q.Set("eventTypeId", strconv.Itoa(eventTypeID))
			q.Set("startTime", start.UTC().Format(time.RFC3339))
			q.Set("endTime", end.UTC().Format(time.RFC3339))
			return Request{Method: http.MethodGet, Path: "/slots", Query: q}
		}},
	})
	if err != nil {
		msg, suggestion := describeError(err)
		return SlotsResult{Error: msg, Suggestion: suggestion}
	}

	slots := normalizeSlots(body, a.client.Diagnostics())
	if slots == nil {
		slots = []string{}
	}
	return SlotsResult{Success: true, Slots: slots, Count: len(slots)}
}

// CreateBooking validates the payload, suppresses duplicate in-flight
// submissions, and creates the booking on whichever generation answers.
func (a *Adapter) CreateBooking(ctx context.Context, req CreateBookingRequest) BookingResult {
	if v := ValidateBookingPayload(req); !v.Valid {
		return BookingResult{
			Error:      "invalid booking payload: " + strings.Join(v.Errors, "; "),
			Suggestion: "correct the booking details and try again",
		}
	}

	if req.TimeZone == "" {
		req.TimeZone = a.defaultTZ
	}
	if req.Language == "" {
		req.Language = "en"
	}

	key := inflightKey(req.EventTypeID, req.Start, req.AttendeeEmail)
	if !a.acquireInflight(key) {
		return BookingResult{
			Duplicate:  true,
			Error:      "an identical booking request is already in progress",
			Suggestion: "wait for the first request to finish before retrying",
		}
	}
	defer a.releaseInflight(key)

	body, _, err := a.client.DoWithFallback(ctx, []Strategy{
		{Gen: GenV2, Build: func() Request {
			return Request{Method: http.MethodPost, Path: "/bookings", Body: map[string]interface{}{
				"eventTypeId": req.EventTypeID,
				"start":       req.Start,
				"attendee": map[string]string{
					"name":     req.AttendeeName,
					"email":    req.AttendeeEmail,
					"timeZone": req.TimeZone,
					"language": req.Language,
				},
				"metadata": map[string]string{"reason": req.Reason},
			}}
		}},
		{Gen: GenV1, Build: func() Request {
			return Request{Method: http.MethodPost, Path: "/bookings", Body: map[string]interface{}{
				"eventTypeId": req.EventTypeID,
				"start":       req.Start,
				"responses": map[string]string{
					"name":  req.AttendeeName,
					"email": req.AttendeeEmail,
				},
				"timeZone": req.TimeZone,
				"language": req.Language,
				"metadata": map[string]string{"reason": req.Reason},
			}}
		}},
	})
	if err != nil {
		msg, suggestion := describeCreateError(err)
		return BookingResult{Error: msg, Suggestion: suggestion}
	}

	booking := a.decodeBookingBody(body)
	return BookingResult{Success: true, Booking: booking}
}

// ListBookings fetches bookings, optionally filtered by attendee email
// and name. The email filter is also applied server-side where the
// generation supports it, but server-side filtering is unreliable across
// generations so the client-side filter is authoritative.
func (a *Adapter) ListBookings(ctx context.Context, email, name string) BookingsResult {
	body, _, err := a.client.DoWithFallback(ctx, []Strategy{
		{Gen: GenV2, Build: func() Request {
			q := url.Values{}
			if email != "" {
				q.Set("attendeeEmail", email)
			}
			return Request{Method: http.MethodGet, Path: "/bookings", Query: q}
		}},
		{Gen: GenV1, Build: func() Request {
			return Request{Method: http.MethodGet, Path: "/bookings"}
		}},
	})
	if err != nil {
		msg, suggestion := describeError(err)
		return BookingsResult{Error: msg, Suggestion: suggestion}
	}

	now := a.now()
	raw := normalizeBookingList(body, a.client.Diagnostics())
	bookings := make([]Booking, 0, len(raw))
	for _, m := range raw {
		b := a.normalizeBooking(m, email)
		if email != "" && !bookingMatchesEmail(b, email) {
			continue
		}
		if name != "" && !bookingMatchesName(b, name) {
			continue
		}
		a.decorate(&b, now)
		bookings = append(bookings, b)
	}
	return BookingsResult{Success: true, Bookings: bookings, Count: len(bookings)}
}

// CancelBooking cancels by UID. When only a numeric id is known it is
// resolved to a UID first; a booking that cannot be found yields a
// not-found outcome rather than a cancel against a bogus identifier.
func (a *Adapter) CancelBooking(ctx context.Context, uid string, id int, reason string) CancelResult {
	if reason == "" {
		reason = "Cancelled by user"
	}

	if uid == "" {
		if id == 0 {
			return CancelResult{Error: "a booking uid or id is required", Suggestion: "list bookings to find the one to cancel"}
		}
		resolved, found, err := a.resolveUID(ctx, id)
		switch {
		case err == nil && !found:
			return CancelResult{NotFound: true, Error: fmt.Sprintf("no booking found with id %d", id), Suggestion: "list bookings to confirm the id"}
		case err != nil:
			// Resolution machinery itself failed (backend unreachable);
			// fall back to the raw id rather than refusing outright.
			a.log.Warn().Int("id", id).Err(err).Msg("uid resolution failed, using raw id")
			uid = strconv.Itoa(id)
		default:
			uid = resolved
		}
	}

	strategies := []Strategy{
		{Gen: GenV2, Build: func() Request {
			return Request{Method: http.MethodPost, Path: "/bookings/" + uid + "/cancel", Body: map[string]string{
				"cancellationReason": reason,
			}}
		}},
	}
	if id != 0 {
		// The legacy generation cancels by numeric id with a DELETE verb.
		strategies = append(strategies, Strategy{Gen: GenV1, Build: func() Request {
			q := url.Values{}
			q.Set("cancellationReason", reason)
			return Request{Method: http.MethodDelete, Path: "/bookings/" + strconv.Itoa(id) + "/cancel", Query: q}
		}})
	}

	_, _, err := a.client.DoWithFallback(ctx, strategies)
	if err != nil {
		if se, ok := err.(*StatusError); ok && se.Status == http.StatusNotFound {
			return CancelResult{NotFound: true, Error: fmt.Sprintf("booking %s not found", uid), Suggestion: "list bookings to confirm the id"}
		}
		msg, suggestion := describeError(err)
		return CancelResult{Error: msg, Suggestion: suggestion}
	}
	return CancelResult{Success: true, UID: uid}
}

// RescheduleBooking moves a booking to a new start time. The current
// generation has a dedicated reschedule endpoint; when it fails the
// adapter falls back to a compensating transaction (cancel, then recreate
// with the original category and attendee). If the cancel lands but the
// recreate does not, the result is a distinguishable partial failure:
// the user has lost the original slot.
func (a *Adapter) RescheduleBooking(ctx context.Context, uid string, id int, newStart time.Time, reason string) RescheduleResult {
	if uid == "" {
		if id == 0 {
			return RescheduleResult{Error: "a booking uid or id is required", Suggestion: "list bookings to find the one to reschedule"}
		}
		resolved, found, err := a.resolveUID(ctx, id)
		switch {
		case err == nil && !found:
			return RescheduleResult{NotFound: true, Error: fmt.Sprintf("no booking found with id %d", id), Suggestion: "list bookings to confirm the id"}
		case err != nil:
			a.log.Warn().Int("id", id).Err(err).Msg("uid resolution failed, using raw id")
			uid = strconv.Itoa(id)
		default:
			uid = resolved
		}
	}

	startISO := newStart.UTC().Format(time.RFC3339)
	body, err := a.client.Do(ctx, GenV2, Request{
		Method: http.MethodPost,
		Path:   "/bookings/" + uid + "/reschedule",
		Body: map[string]string{
			"start":              startISO,
			"reschedulingReason": reason,
		},
	})
	if err == nil {
		return RescheduleResult{Success: true, Booking: a.decodeBookingBody(body)}
	}
	a.log.Warn().Str("uid", uid).Err(err).Msg("dedicated reschedule unavailable, compensating")

	return a.compensatedReschedule(ctx, uid, startISO, reason, err)
}

// compensatedReschedule implements the cancel-then-recreate fallback.
func (a *Adapter) compensatedReschedule(ctx context.Context, uid, startISO, reason string, cause error) RescheduleResult {
	original, err := a.fetchBooking(ctx, uid)
	if err != nil {
		msg, suggestion := describeError(cause)
		return RescheduleResult{
			Error:      fmt.Sprintf("reschedule failed (%s) and the original booking could not be fetched for recreation", msg),
			Suggestion: suggestion,
		}
	}

	eventTypeID := intField(original, "eventTypeId")
	attendee := firstAttendee(original)
	if eventTypeID == 0 || attendee.Email == "" {
		return RescheduleResult{
			Error:      "reschedule failed and the original booking lacks the details needed to recreate it",
			Suggestion: "cancel the booking and create a new one manually",
		}
	}

	cancel := a.CancelBooking(ctx, uid, 0, "Rescheduled: "+reason)
	if !cancel.Success {
		return RescheduleResult{
			Error:      "reschedule failed and the original booking could not be cancelled: " + cancel.Error,
			Suggestion: "the original booking is unchanged; try again later",
		}
	}

	tz := attendee.TimeZone
	if tz == "" {
		tz = a.defaultTZ
	}
	created := a.CreateBooking(ctx, CreateBookingRequest{
		EventTypeID:   eventTypeID,
		Start:         startISO,
		AttendeeEmail: attendee.Email,
		AttendeeName:  attendee.Name,
		TimeZone:      tz,
		Reason:        reason,
	})
	if !created.Success {
		// Worst case: the cancel landed but the recreate did not.
		a.client.Diagnostics().Record("partial", "reschedule of %s cancelled the original but recreation failed: %s", uid, created.Error)
		return RescheduleResult{
			Compensated:    true,
			PartialFailure: true,
			CancelledUID:   uid,
			Error:          "the original booking was cancelled but the new booking could not be created: " + created.Error,
			Suggestion:     "book a new meeting at the desired time; the original slot is gone",
		}
	}

	return RescheduleResult{Success: true, Compensated: true, CancelledUID: uid, Booking: created.Booking}
}

// resolveUID maps a numeric booking id to its stable UID: direct fetch on
// the current generation, then the legacy one, then a linear scan of the
// booking list. found=false with a nil error means the backend answered
// and no such booking exists.
func (a *Adapter) resolveUID(ctx context.Context, id int) (uid string, found bool, err error) {
	idPath := "/bookings/" + strconv.Itoa(id)
	var lastErr error
	for _, gen := range []Generation{GenV2, GenV1} {
		body, err := a.client.Do(ctx, gen, Request{Method: http.MethodGet, Path: idPath})
		if err != nil {
			if se, ok := err.(*StatusError); ok && se.Terminal() {
				// The generation answered; it just has no such record.
				continue
			}
			lastErr = err
			continue
		}
		if m, ok := normalizeBookingObject(body); ok {
			if u := stringField(m, "uid"); u != "" {
				return u, true, nil
			}
		}
	}

	list := a.ListBookings(ctx, "", "")
	if !list.Success {
		if lastErr == nil {
			lastErr = fmt.Errorf("booking list unavailable: %s", list.Error)
		}
		return "", false, lastErr
	}
	for _, b := range list.Bookings {
		if b.ID == id && b.UID != "" {
			return b.UID, true, nil
		}
	}
	return "", false, nil
}

// fetchBooking retrieves one booking by UID, trying both generations.
func (a *Adapter) fetchBooking(ctx context.Context, uid string) (map[string]interface{}, error) {
	body, _, err := a.client.DoWithFallback(ctx, []Strategy{
		{Gen: GenV2, Build: func() Request {
			return Request{Method: http.MethodGet, Path: "/bookings/" + uid}
		}},
		{Gen: GenV1, Build: func() Request {
			return Request{Method: http.MethodGet, Path: "/bookings/" + uid}
		}},
	})
	if err != nil {
		return nil, err
	}
	m, ok := normalizeBookingObject(body)
	if !ok {
		return nil, fmt.Errorf("booking %s: unrecognized response shape", uid)
	}
	return m, nil
}

func (a *Adapter) decodeBookingBody(body []byte) *Booking {
	m, ok := normalizeBookingObject(body)
	if !ok {
		a.client.Diagnostics().Record("shape", "booking response unrecognized; returning identifiers only")
		return nil
	}
	b := a.normalizeBooking(m, "")
	a.decorate(&b, a.now())
	return &b
}

// normalizeBooking maps one raw backend booking object into the
// normalized Booking. preferEmail picks the most relevant attendee when
// several are present.
func (a *Adapter) normalizeBooking(m map[string]interface{}, preferEmail string) Booking {
	b := Booking{
		ID:     intField(m, "id"),
		UID:    stringField(m, "uid"),
		Title:  stringField(m, "title"),
		Status: strings.ToLower(stringField(m, "status")),
	}
	if s, ok := parseInstant(stringField(m, "start", "startTime")); ok {
		b.Start = s
	}
	if e, ok := parseInstant(stringField(m, "end", "endTime")); ok {
		b.End = e
	}

	if rawAttendees, ok := m["attendees"].([]interface{}); ok {
		for _, ra := range rawAttendees {
			am, ok := ra.(map[string]interface{})
			if !ok {
				continue
			}
			b.Attendees = append(b.Attendees, Attendee{
				Name:     stringField(am, "name"),
				Email:    stringField(am, "email"),
				TimeZone: stringField(am, "timeZone", "timezone"),
			})
		}
	}
	b.Attendee = pickAttendee(b.Attendees, preferEmail)

	// Join links may hide under several spellings; any of these is safe
	// to surface since the worst case is a dead link.
	b.MeetingURL = stringField(m, "meetingUrl", "videoCallUrl", "meetingURL")
	if b.MeetingURL == "" {
		if loc := stringField(m, "location"); strings.HasPrefix(loc, "http") {
			b.MeetingURL = loc
		}
	}
	// Reschedule/cancel links are actionable; only exact known keys, no
	// generic fallback.
	b.RescheduleLink = stringField(m, "rescheduleLink")
	b.CancelLink = stringField(m, "cancelLink")

	if b.UID == "" && b.ID != 0 {
		b.UID = "id:" + strconv.Itoa(b.ID)
	}
	return b
}

// decorate fills the derived display fields.
func (a *Adapter) decorate(b *Booking, now time.Time) {
	if !b.Start.IsZero() {
		b.LocalTime = b.Start.In(a.loc).Format("Mon Jan 2, 2006 3:04 PM MST")
	}
	b.Lifecycle = deriveLifecycle(b, now.In(a.loc), a.loc)
}

// deriveLifecycle classifies a booking for display. The backend only
// stores cancelled/pending; everything else is derived from the clock.
func deriveLifecycle(b *Booking, now time.Time, loc *time.Location) string {
	switch b.Status {
	case "cancelled", "canceled", "rejected":
		return "cancelled"
	case "pending", "unconfirmed":
		return "pending"
	}
	if b.Start.IsZero() {
		return "upcoming"
	}

	start := b.Start.In(loc)
	if start.Before(now) {
		return "past"
	}
	if start.Year() == now.Year() && start.YearDay() == now.YearDay() {
		return "today"
	}
	if start.Sub(now) <= 7*24*time.Hour {
		return "this-week"
	}
	return "upcoming"
}

func pickAttendee(attendees []Attendee, preferEmail string) Attendee {
	if preferEmail != "" {
		for _, at := range attendees {
			if strings.EqualFold(at.Email, preferEmail) {
				return at
			}
		}
	}
	if len(attendees) > 0 {
		return attendees[0]
	}
	return Attendee{}
}

func firstAttendee(m map[string]interface{}) Attendee {
	if rawAttendees, ok := m["attendees"].([]interface{}); ok {
		for _, ra := range rawAttendees {
			if am, ok := ra.(map[string]interface{}); ok {
				return Attendee{
					Name:     stringField(am, "name"),
					Email:    stringField(am, "email"),
					TimeZone: stringField(am, "timeZone", "timezone"),
				}
			}
		}
	}
	return Attendee{}
}

func bookingMatchesEmail(b Booking, email string) bool {
	for _, at := range b.Attendees {
		if strings.EqualFold(at.Email, email) {
			return true
		}
	}
	return false
}

func bookingMatchesName(b Booking, name string) bool {
	needle := strings.ToLower(name)
	for _, at := range b.Attendees {
		if strings.Contains(strings.ToLower(at.Name), needle) {
			return true
		}
	}
	return false
}

func inflightKey(eventTypeID int, start, email string) string {
	return fmt.Sprintf("%d|%s|%s", eventTypeID, start, strings.ToLower(email))
}

func (a *Adapter) acquireInflight(key string) bool {
	a.inflightMu.Lock()
	defer a.inflightMu.Unlock()

	if _, busy := a.inflight[key]; busy {
		return false
	}
	a.inflight[key] = struct{}{}
	return true
}

func (a *Adapter) releaseInflight(key string) {
	a.inflightMu.Lock()
	defer a.inflightMu.Unlock()

	delete(a.inflight, key)
}

// describeError maps a backend failure to a user-meaningful message and
// suggestion.
func describeError(err error) (msg, suggestion string) {
	if se, ok := err.(*StatusError); ok {
		switch {
		case se.Status == http.StatusTooManyRequests:
			return "the booking service is rate-limiting requests", "wait a moment and try again"
		case se.Status >= 500:
			return "the booking service had a temporary problem", "this is usually transient; try again"
		default:
			return se.Error(), ""
		}
	}
	return fmt.Sprintf("could not reach the booking service: %v", err), "check connectivity and try again"
}

// describeCreateError adds booking-creation specific status mappings.
func describeCreateError(err error) (msg, suggestion string) {
	if se, ok := err.(*StatusError); ok {
		switch se.Status {
		case http.StatusConflict:
			return "that slot is no longer available", "check availability again and pick a different time"
		case http.StatusUnprocessableEntity, http.StatusBadRequest:
			return "the booking service rejected the booking data as invalid", "verify the event type, time, and attendee details"
		case http.StatusTooManyRequests:
			return "too many booking requests", "wait a moment and try again"
		}
	}
	return describeError(err)
}
