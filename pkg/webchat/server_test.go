package webchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soypete/calbot/pkg/calcom"
	"github.com/soypete/calbot/pkg/chat"
	"github.com/soypete/calbot/pkg/llm"
	"github.com/soypete/calbot/pkg/timectx"
	"github.com/soypete/calbot/pkg/tools"
)

type cannedBackend struct {
	reply string
}

func (b *cannedBackend) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error) {
	return &llm.Completion{Text: b.reply}, nil
}

func (b *cannedBackend) ModelName() string { return "canned" }

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	backendAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"bookings": [
			{"id": 1, "uid": "abc", "start": "2025-03-10T15:00:00Z",
			 "attendees": [{"name": "Pedro", "email": "pedro@example.com"}]}
		]}}`))
	}))
	t.Cleanup(backendAPI.Close)

	client := calcom.NewClient(calcom.ClientConfig{
		APIKey:      "cal_test",
		BaseURLV2:   backendAPI.URL,
		BaseURLV1:   backendAPI.URL,
		Timeout:     2 * time.Second,
		MaxAttempts: 1,
		RetryBase:   time.Millisecond,
		Logger:      zerolog.Nop(),
	})
	adapter := calcom.NewAdapter(client, "UTC", zerolog.Nop())

	factory := func() *chat.Session {
		reg := tools.NewRegistry()
		return chat.NewSession(chat.Config{
			Backend:       &cannedBackend{reply: "happy to help"},
			Dispatcher:    tools.NewDispatcher(reg, zerolog.Nop()),
			Registry:      reg,
			Clock:         timectx.NewProvider(),
			Adapter:       adapter,
			AttendeeEmail: "pedro@example.com",
			Logger:        zerolog.Nop(),
		})
	}

	server := NewServer(factory, adapter, "pedro@example.com", zerolog.Nop())
	web := httptest.NewServer(server.Routes())
	t.Cleanup(web.Close)
	return server, web
}

func dialWS(t *testing.T, web *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(web.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_ChatRoundTrip(t *testing.T) {
	_, web := newTestServer(t)
	conn := dialWS(t, web)

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "chat", Text: "hello"}))

	var resp wsResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "reply", resp.Type)
	assert.Equal(t, "happy to help", resp.Text)
	assert.NotEmpty(t, resp.SessionID)
}

func TestWebSocket_SessionPerConnection(t *testing.T) {
	_, web := newTestServer(t)
	first := dialWS(t, web)
	second := dialWS(t, web)

	var a, b wsResponse
	require.NoError(t, first.WriteJSON(wsRequest{Type: "chat", Text: "hi"}))
	require.NoError(t, first.ReadJSON(&a))
	require.NoError(t, second.WriteJSON(wsRequest{Type: "chat", Text: "hi"}))
	require.NoError(t, second.ReadJSON(&b))

	assert.NotEqual(t, a.SessionID, b.SessionID, "each tab gets its own transcript")
}

func TestWebSocket_UnknownTypeIsError(t *testing.T) {
	_, web := newTestServer(t)
	conn := dialWS(t, web)

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "teleport"}))

	var resp wsResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Error, "unknown message type")
}

func TestWebSocket_Reset(t *testing.T) {
	_, web := newTestServer(t)
	conn := dialWS(t, web)

	require.NoError(t, conn.WriteJSON(wsRequest{Type: "reset"}))

	var resp wsResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "reset", resp.Type)
}

func TestAPI_Bookings(t *testing.T) {
	_, web := newTestServer(t)

	res, err := http.Get(web.URL + "/api/bookings")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
}

func TestAPI_DiagnosticsEmptyIsOK(t *testing.T) {
	_, web := newTestServer(t)

	res, err := http.Get(web.URL + "/api/diagnostics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestIndex_ServesShell(t *testing.T) {
	_, web := newTestServer(t)

	res, err := http.Get(web.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")
}
