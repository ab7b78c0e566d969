// Package chat runs the conversation loop: transcript management, the
// two-pass tool exchange, and the system prompt with its time context.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/soypete/calbot/pkg/calcom"
	"github.com/soypete/calbot/pkg/llm"
	"github.com/soypete/calbot/pkg/timectx"
	"github.com/soypete/calbot/pkg/tools"
)

// Session is one conversation: a transcript, a model backend, and the
// tool dispatcher. Safe for concurrent use; each SendUserMessage runs
// the full exchange under the session lock so turns never interleave.
type Session struct {
	id          string
	backend     llm.Backend
	dispatcher  *tools.Dispatcher
	registry    *tools.Registry
	clock       *timectx.Provider
	adapter     *calcom.Adapter
	temperature float64
	attendee    string
	log         zerolog.Logger

	mu         sync.Mutex
	transcript []llm.Message
}

// Config assembles a session's collaborators.
type Config struct {
	Backend       llm.Backend
	Dispatcher    *tools.Dispatcher
	Registry      *tools.Registry
	Clock         *timectx.Provider
	Adapter       *calcom.Adapter
	Temperature   float64
	AttendeeEmail string
	Logger        zerolog.Logger
}

// NewSession creates a session with a fresh transcript.
func NewSession(cfg Config) *Session {
	s := &Session{
		id:          uuid.NewString(),
		backend:     cfg.Backend,
		dispatcher:  cfg.Dispatcher,
		registry:    cfg.Registry,
		clock:       cfg.Clock,
		adapter:     cfg.Adapter,
		temperature: cfg.Temperature,
		attendee:    cfg.AttendeeEmail,
		log:         cfg.Logger,
	}
	s.transcript = []llm.Message{{Role: llm.RoleSystem, Content: s.systemPrompt()}}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SendUserMessage runs one full user turn and returns the assistant's
// prose reply. Tool exchanges are two-pass: the first completion offers
// the tools and may request one, the second sees the tool result but no
// tools, which forces a prose synthesis. Only the first requested tool
// call is honored per turn.
func (s *Session) SendUserMessage(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The system prompt carries the current date; refresh it so long
	// sessions don't drift ("tomorrow" must mean tomorrow, not the day
	// the session started).
	s.transcript[0].Content = s.systemPrompt()
	s.transcript = append(s.transcript, llm.Message{Role: llm.RoleUser, Content: text})

	first, err := s.backend.Complete(ctx, &llm.CompletionRequest{
		Messages:    s.transcript,
		Tools:       s.registry.Definitions(),
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("model error: %w", err)
	}

	if len(first.ToolCalls) == 0 {
		s.transcript = append(s.transcript, llm.Message{Role: llm.RoleAssistant, Content: first.Text})
		return first.Text, nil
	}

	call := first.ToolCalls[0]
	if extra := len(first.ToolCalls) - 1; extra > 0 {
		s.log.Warn().Int("ignored", extra).Str("tool", call.Name).Msg("model requested multiple tools; honoring the first only")
	}

	s.transcript = append(s.transcript, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   first.Text,
		ToolCalls: []llm.ToolCall{call},
	})

	resultJSON := s.dispatcher.Dispatch(ctx, call)
	s.transcript = append(s.transcript, llm.Message{
		Role:       llm.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Content:    resultJSON,
	})

	second, err := s.backend.Complete(ctx, &llm.CompletionRequest{
		Messages:    s.transcript,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("model error: %w", err)
	}

	s.transcript = append(s.transcript, llm.Message{Role: llm.RoleAssistant, Content: second.Text})
	return second.Text, nil
}

// History returns a copy of the transcript.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]llm.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Reset discards the conversation, keeping a fresh system prompt.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = []llm.Message{{Role: llm.RoleSystem, Content: s.systemPrompt()}}
}

// ListBookingsForDisplay fetches the configured attendee's bookings
// directly, bypassing the model. Backs the /bookings command and the
// web shell's booking panel.
func (s *Session) ListBookingsForDisplay(ctx context.Context) calcom.BookingsResult {
	return s.adapter.ListBookings(ctx, s.attendee, "")
}

// Diagnostics exposes the booking adapter's anomaly log.
func (s *Session) Diagnostics() []calcom.DiagEntry {
	return s.adapter.Diagnostics()
}

func (s *Session) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a friendly scheduling assistant that books, lists, cancels, and reschedules meetings through the available tools.\n\n")
	b.WriteString(s.clock.RenderContext())
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Check availability before booking; only offer times a tool reported as open.\n")
	b.WriteString("- Confirm the exact time with the user before calling create_booking or cancel_booking.\n")
	b.WriteString("- Use list_bookings to find a booking's uid before cancelling or rescheduling it.\n")
	b.WriteString("- When a tool reports an error, explain it plainly and suggest the next step; never invent a result.\n")
	b.WriteString("- Keep replies short and conversational.")
	if s.attendee != "" {
		b.WriteString("\n\nBookings are made for " + s.attendee + " unless the user says otherwise.")
	}
	return b.String()
}
