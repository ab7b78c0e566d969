package calcom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, v2URL, v1URL, tz string) *Adapter {
	t.Helper()
	return NewAdapter(testClient(t, v2URL, v1URL), tz, zerolog.Nop())
}

func TestListAvailableSlots_ZeroSlotsIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"slots": {}}}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	res := adapter.ListAvailableSlots(context.Background(), 7,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))

	assert.True(t, res.Success, "an empty window is a successful outcome")
	assert.Empty(t, res.Slots)
	assert.Zero(t, res.Count)
	assert.Empty(t, res.Error)
}

func TestListAvailableSlots_GenerationParamSpelling(t *testing.T) {
	var v2Query, v1Query atomic.Value
	v2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v2Query.Store(r.URL.Query())
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer v2.Close()
	v1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v1Query.Store(r.URL.Query())
		w.Write([]byte(`{"slots": {}}`))
	}))
	defer v1.Close()

	adapter := newTestAdapter(t, v2.URL, v1.URL, "UTC")
	res := adapter.ListAvailableSlots(context.Background(), 7,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))
	require.True(t, res.Success)

	q2 := v2Query.Load().(url.Values)
	assert.Equal(t, "2025-03-10T00:00:00Z", q2.Get("start"))
	assert.Equal(t, "2025-03-11T00:00:00Z", q2.Get("end"))

	q1 := v1Query.Load().(url.Values)
	assert.Equal(t, "2025-03-10T00:00:00Z", q1.Get("startTime"))
	assert.Equal(t, "2025-03-11T00:00:00Z", q1.Get("endTime"))
}

func TestCreateBooking_InvalidEmailNeverHitsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	res := adapter.CreateBooking(context.Background(), CreateBookingRequest{
		EventTypeID:   7,
		Start:         "2025-03-10T15:00:00Z",
		AttendeeEmail: "not-an-email",
		AttendeeName:  "Pedro",
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "attendee email must be valid")
	assert.Equal(t, int32(0), calls.Load(), "validation failures must not reach the backend")
}

func TestCreateBooking_DuplicateInFlightSuppressed(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var creates atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creates.Add(1)
		close(started)
		<-release
		w.Write([]byte(`{"data": {"id": 9, "uid": "new1", "start": "2025-03-10T15:00:00Z"}}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	req := CreateBookingRequest{
		EventTypeID:   7,
		Start:         "2025-03-10T15:00:00Z",
		AttendeeEmail: "pedro@example.com",
		AttendeeName:  "Pedro",
	}

	firstDone := make(chan BookingResult, 1)
	go func() {
		firstDone <- adapter.CreateBooking(context.Background(), req)
	}()
	<-started

	// Identical submission while the first is still on the wire.
	second := adapter.CreateBooking(context.Background(), req)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Success)

	close(release)
	first := <-firstDone
	assert.True(t, first.Success)
	require.NotNil(t, first.Booking)
	assert.Equal(t, "new1", first.Booking.UID)

	assert.Equal(t, int32(1), creates.Load(), "exactly one network creation attempt")
}

func TestCreateBooking_GuardReleasedAfterFailure(t *testing.T) {
	var creates atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creates.Add(1)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message": "slot taken"}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	req := CreateBookingRequest{
		EventTypeID:   7,
		Start:         "2025-03-10T15:00:00Z",
		AttendeeEmail: "pedro@example.com",
		AttendeeName:  "Pedro",
	}

	first := adapter.CreateBooking(context.Background(), req)
	assert.False(t, first.Success)
	assert.Equal(t, "that slot is no longer available", first.Error)

	second := adapter.CreateBooking(context.Background(), req)
	assert.False(t, second.Duplicate, "the guard must not outlive the request")
	assert.Equal(t, int32(2), creates.Load(), "conflict is terminal per request, no fallback")
}

func TestCancelBooking_ResolvesNumericIDToUID(t *testing.T) {
	var cancelledPath atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/bookings/55", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/bookings", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"bookings": [
			{"id": 55, "uid": "abc123", "start": "2025-03-10T15:00:00Z",
			 "attendees": [{"name": "Pedro", "email": "pedro@example.com"}]}
		]}}`))
	})
	mux.HandleFunc("/bookings/abc123/cancel", func(w http.ResponseWriter, r *http.Request) {
		cancelledPath.Store(r.URL.Path)
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	res := adapter.CancelBooking(context.Background(), "", 55, "changed plans")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "abc123", res.UID, "numeric id resolved via the booking list")
	assert.Equal(t, "/bookings/abc123/cancel", cancelledPath.Load())
}

func TestCancelBooking_UnknownIDIsNotFound(t *testing.T) {
	var cancels atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/bookings/99", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/bookings", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"bookings": []}}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		cancels.Add(1)
		w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	res := adapter.CancelBooking(context.Background(), "", 99, "")

	assert.False(t, res.Success)
	assert.True(t, res.NotFound)
	assert.Equal(t, int32(0), cancels.Load(), "never cancel against an identifier the backend does not know")
}

func TestCancelBooking_404OnCancelIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	res := adapter.CancelBooking(context.Background(), "ghost", 0, "")

	assert.False(t, res.Success)
	assert.True(t, res.NotFound)
}

func TestRescheduleBooking_DedicatedEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bookings/abc123/reschedule", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2025-03-12T15:00:00Z", body["start"])
		w.Write([]byte(`{"data": {"id": 55, "uid": "abc123", "start": "2025-03-12T15:00:00Z"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	res := adapter.RescheduleBooking(context.Background(), "abc123", 0,
		time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC), "pushing out a day")

	require.True(t, res.Success, res.Error)
	assert.False(t, res.Compensated)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "abc123", res.Booking.UID)
}

func rescheduleFixtureMux(t *testing.T, createStatus int, cancels, creates *atomic.Int32) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/bookings/abc123/reschedule", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // older deployments lack the endpoint
	})
	mux.HandleFunc("/bookings/abc123", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {
			"id": 55, "uid": "abc123", "eventTypeId": 7, "start": "2025-03-10T15:00:00Z",
			"attendees": [{"name": "Pedro", "email": "pedro@example.com", "timeZone": "America/Chicago"}]
		}}`))
	})
	mux.HandleFunc("/bookings/abc123/cancel", func(w http.ResponseWriter, r *http.Request) {
		cancels.Add(1)
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/bookings", func(w http.ResponseWriter, r *http.Request) {
		creates.Add(1)
		w.WriteHeader(createStatus)
		if createStatus == http.StatusOK {
			w.Write([]byte(`{"data": {"id": 90, "uid": "fresh1", "start": "2025-03-12T15:00:00Z"}}`))
		}
	})
	return mux
}

func TestRescheduleBooking_CompensatingTransaction(t *testing.T) {
	var cancels, creates atomic.Int32
	server := httptest.NewServer(rescheduleFixtureMux(t, http.StatusOK, &cancels, &creates))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	res := adapter.RescheduleBooking(context.Background(), "abc123", 0,
		time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC), "conflict came up")

	require.True(t, res.Success, res.Error)
	assert.True(t, res.Compensated)
	assert.Equal(t, "abc123", res.CancelledUID)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "fresh1", res.Booking.UID)
	assert.Equal(t, int32(1), cancels.Load())
	assert.Equal(t, int32(1), creates.Load())
}

func TestRescheduleBooking_PartialFailureIsDistinguishable(t *testing.T) {
	var cancels, creates atomic.Int32
	server := httptest.NewServer(rescheduleFixtureMux(t, http.StatusConflict, &cancels, &creates))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	res := adapter.RescheduleBooking(context.Background(), "abc123", 0,
		time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC), "conflict came up")

	assert.False(t, res.Success)
	assert.True(t, res.Compensated)
	assert.True(t, res.PartialFailure, "caller must learn the original slot is gone")
	assert.Equal(t, "abc123", res.CancelledUID)
	assert.Equal(t, int32(1), cancels.Load())

	// The anomaly is kept for operator inspection.
	entries := adapter.Diagnostics()
	require.NotEmpty(t, entries)
	assert.Equal(t, "partial", entries[len(entries)-1].Kind)
}

func TestListBookings_FilterAndLifecycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"bookings": [
			{"id": 1, "uid": "a", "start": "2025-03-09T10:00:00Z",
			 "attendees": [{"name": "Pedro", "email": "pedro@example.com"}]},
			{"id": 2, "uid": "b", "start": "2025-03-10T15:00:00Z",
			 "attendees": [{"name": "Pedro", "email": "PEDRO@example.com"}]},
			{"id": 3, "uid": "c", "start": "2025-03-13T15:00:00Z",
			 "attendees": [{"name": "Pedro", "email": "pedro@example.com"}]},
			{"id": 4, "uid": "d", "start": "2025-03-25T15:00:00Z", "status": "CANCELLED",
			 "attendees": [{"name": "Pedro", "email": "pedro@example.com"}]},
			{"id": 5, "uid": "e", "start": "2025-03-25T15:00:00Z",
			 "attendees": [{"name": "Someone Else", "email": "other@example.com"}]}
		]}}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, server.URL, "UTC")
	adapter.now = func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}

	res := adapter.ListBookings(context.Background(), "pedro@example.com", "")
	require.True(t, res.Success, res.Error)
	require.Equal(t, 4, res.Count, "the other attendee's booking is filtered out")

	byUID := map[string]Booking{}
	for _, b := range res.Bookings {
		byUID[b.UID] = b
	}
	assert.Equal(t, "past", byUID["a"].Lifecycle)
	assert.Equal(t, "today", byUID["b"].Lifecycle, "email matching is case-insensitive")
	assert.Equal(t, "this-week", byUID["c"].Lifecycle)
	assert.Equal(t, "cancelled", byUID["d"].Lifecycle)
	assert.NotEmpty(t, byUID["b"].LocalTime)
}

func TestNormalizeBooking_LinkHygiene(t *testing.T) {
	adapter := newTestAdapter(t, "http://unused", "http://unused", "UTC")

	b := adapter.normalizeBooking(map[string]interface{}{
		"id":       float64(5),
		"uid":      "abc",
		"location": "https://meet.example.com/room",
		"link":     "https://guessable.example.com/oops",
	}, "")
	assert.Equal(t, "https://meet.example.com/room", b.MeetingURL)
	assert.Empty(t, b.RescheduleLink, "actionable links come only from exact keys")
	assert.Empty(t, b.CancelLink)

	b = adapter.normalizeBooking(map[string]interface{}{
		"id":             float64(6),
		"uid":            "def",
		"rescheduleLink": "https://cal.example.com/reschedule/def",
		"cancelLink":     "https://cal.example.com/cancel/def",
	}, "")
	assert.Equal(t, "https://cal.example.com/reschedule/def", b.RescheduleLink)
	assert.Equal(t, "https://cal.example.com/cancel/def", b.CancelLink)
}

func TestNormalizeBooking_SyntheticUIDWhenMissing(t *testing.T) {
	adapter := newTestAdapter(t, "http://unused", "http://unused", "UTC")
	b := adapter.normalizeBooking(map[string]interface{}{"id": float64(42)}, "")
	assert.Equal(t, "id:42", b.UID)
}
