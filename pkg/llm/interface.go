package llm

import "context"

// Message roles, matching the chat-completions wire protocol.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Backend represents an LLM inference backend
type Backend interface {
	// Complete performs one chat completion over the full transcript.
	// Passing no tools forbids tool calls for that turn; the second pass
	// of a tool exchange relies on this.
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// ModelName returns the configured model identifier, for display.
	ModelName() string
}

// Message is one transcript entry. Tool results carry the ToolCallID
// they answer; assistant turns that requested tools carry the echoed
// ToolCalls so the model can line results up with requests.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`         // tool name on tool-result messages
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-result messages
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // set on assistant messages that requested tools
}

// ToolDefinition defines a tool for native API-based tool calling
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON Schema
}

// ToolCall is one tool invocation requested by the model. Arguments is
// the raw JSON the model produced; dispatch validates it before use.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CompletionRequest is one inference call over a transcript.
type CompletionRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
}

// Completion is the model's reply: prose, tool calls, or both.
type Completion struct {
	Text       string
	ToolCalls  []ToolCall
	TokensUsed int
}
