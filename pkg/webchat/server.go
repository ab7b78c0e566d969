// Package webchat serves the browser chat shell: a websocket per
// conversation plus small JSON APIs for the booking and diagnostics
// panels.
package webchat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/soypete/calbot/pkg/calcom"
	"github.com/soypete/calbot/pkg/chat"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // single-user local tool
	},
}

// SessionFactory builds a fresh conversation for one websocket client.
type SessionFactory func() *chat.Session

// Server hosts the web chat shell. Each websocket connection gets its
// own session, so concurrent browser tabs never share a transcript.
type Server struct {
	newSession SessionFactory
	adapter    *calcom.Adapter
	attendee   string
	log        zerolog.Logger

	connMu      sync.Mutex
	connections map[*websocket.Conn]*chat.Session
}

// NewServer creates a web chat server.
func NewServer(factory SessionFactory, adapter *calcom.Adapter, attendeeEmail string, logger zerolog.Logger) *Server {
	return &Server{
		newSession:  factory,
		adapter:     adapter,
		attendee:    attendeeEmail,
		log:         logger,
		connections: make(map[*websocket.Conn]*chat.Session),
	}
}

// Routes returns the HTTP mux for the shell.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/bookings", s.handleBookings)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	return mux
}

// ListenAndServe runs the server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info().Str("addr", addr).Msg("web chat listening")
	return http.ListenAndServe(addr, s.Routes())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

// wsRequest is one client message on the socket.
type wsRequest struct {
	Type string `json:"type"` // chat, reset, bookings
	Text string `json:"text,omitempty"`
}

// wsResponse is one server message on the socket.
type wsResponse struct {
	Type      string      `json:"type"` // reply, error, reset, bookings
	SessionID string      `json:"session_id,omitempty"`
	Text      string      `json:"text,omitempty"`
	Error     string      `json:"error,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	session := s.newSession()
	s.connMu.Lock()
	s.connections[conn] = session
	s.connMu.Unlock()
	s.log.Info().Str("session", session.ID()).Msg("web client connected")

	defer func() {
		s.connMu.Lock()
		delete(s.connections, conn)
		s.connMu.Unlock()
		s.log.Info().Str("session", session.ID()).Msg("web client disconnected")
	}()

	// Messages are handled in order on purpose: a chat turn must finish
	// before the next one starts, matching the session's locking.
	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		s.handleWSMessage(r.Context(), conn, session, req)
	}
}

func (s *Server) handleWSMessage(ctx context.Context, conn *websocket.Conn, session *chat.Session, req wsRequest) {
	switch req.Type {
	case "chat":
		reply, err := session.SendUserMessage(ctx, req.Text)
		if err != nil {
			s.writeWS(conn, wsResponse{Type: "error", SessionID: session.ID(), Error: err.Error()})
			return
		}
		s.writeWS(conn, wsResponse{Type: "reply", SessionID: session.ID(), Text: reply})
	case "reset":
		session.Reset()
		s.writeWS(conn, wsResponse{Type: "reset", SessionID: session.ID()})
	case "bookings":
		s.writeWS(conn, wsResponse{Type: "bookings", SessionID: session.ID(), Data: session.ListBookingsForDisplay(ctx)})
	default:
		s.writeWS(conn, wsResponse{Type: "error", SessionID: session.ID(), Error: "unknown message type: " + req.Type})
	}
}

func (s *Server) writeWS(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.log.Warn().Err(err).Msg("websocket write failed")
	}
}

// handleBookings serves the booking panel, bypassing the model.
func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.adapter.ListBookings(r.Context(), s.attendee, ""))
}

// handleDiagnostics serves the debug sidebar: recent shape mismatches,
// generation fallbacks, and partial reschedules.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries := s.adapter.Diagnostics()
	if entries == nil {
		entries = []calcom.DiagEntry{}
	}
	writeJSON(w, map[string]interface{}{"entries": entries, "count": len(entries)})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
	}
}
