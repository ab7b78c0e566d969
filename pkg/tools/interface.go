package tools

import "context"

// Tool represents an executable tool
type Tool interface {
	// Name returns the tool name
	Name() string

	// Description returns the tool description. Descriptions carry the
	// usage guidance the model sees, including when to call the tool
	// relative to the others.
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() map[string]interface{}

	// Execute executes the tool with given arguments
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// Result represents a tool execution result. It is serialized whole as
// the tool message fed back to the model, so failures must be expressed
// here rather than as Go errors: a structured error keeps the
// conversation going where a hard error would end the turn.
type Result struct {
	Success bool                   `json:"success"`
	Output  string                 `json:"output,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// ErrorResult creates an error result with the given message
func ErrorResult(msg string) *Result {
	return &Result{
		Success: false,
		Error:   msg,
	}
}
