package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/soypete/calbot/pkg/llm"
)

// Dispatcher executes model tool calls against the registry. Every
// outcome, including unknown tools and malformed arguments, comes back
// as a serialized Result so the model can recover in-conversation.
type Dispatcher struct {
	registry *Registry
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: logger}
}

// Dispatch runs one tool call and returns the JSON the model sees.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) string {
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		d.log.Warn().Str("tool", call.Name).Msg("model requested unknown tool")
		return marshalResult(&Result{
			Success: false,
			Error:   "unknown tool: " + call.Name,
			Data:    map[string]interface{}{"available_tools": d.registry.Names()},
		})
	}

	args := map[string]interface{}{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return marshalResult(ErrorResult("tool arguments are not valid JSON: " + err.Error()))
		}
	}

	if msg, ok := validateArgs(tool.Schema(), args); !ok {
		return marshalResult(ErrorResult("invalid arguments for " + call.Name + ": " + msg))
	}

	d.log.Debug().Str("tool", call.Name).Interface("args", args).Msg("dispatching tool call")
	result, err := tool.Execute(ctx, args)
	if err != nil {
		d.log.Error().Str("tool", call.Name).Err(err).Msg("tool execution failed")
		return marshalResult(ErrorResult(err.Error()))
	}
	return marshalResult(result)
}

// validateArgs checks the arguments against the tool's JSON Schema.
// A schema that cannot be compiled fails open: a tool with a broken
// schema should still run rather than be silently unusable.
func validateArgs(schema, args map[string]interface{}) (string, bool) {
	if schema == nil {
		return "", true
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return "", true
	}
	if result.Valid() {
		return "", true
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; "), false
}

func marshalResult(result *Result) string {
	data, err := json.Marshal(result)
	if err != nil {
		return `{"success": false, "error": "failed to serialize tool result"}`
	}
	return string(data)
}
