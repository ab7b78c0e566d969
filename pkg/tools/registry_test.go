package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name    string
	desc    string
	schema  map[string]interface{}
	execute func(ctx context.Context, args map[string]interface{}) (*Result, error)
}

func (f *fakeTool) Name() string                   { return f.name }
func (f *fakeTool) Description() string            { return f.desc }
func (f *fakeTool) Schema() map[string]interface{} { return f.schema }
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	return f.execute(ctx, args)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeTool{name: "alpha"}))

	tool, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", tool.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeTool{name: "alpha"}))
	assert.Error(t, reg.Register(&fakeTool{name: "alpha"}))
	assert.Equal(t, 1, reg.Count())
}

func TestRegistry_DefinitionsPreserveOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, reg.Register(&fakeTool{name: name, desc: "does " + name}))
	}

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "zulu", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "mike", defs[2].Name)
	assert.Equal(t, []string{"zulu", "alpha", "mike"}, reg.Names())
}

func TestRegisterScheduling_OrderMatchesFlow(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterScheduling(reg, Deps{}))
	assert.Equal(t, []string{
		"list_event_types",
		"check_availability",
		"create_booking",
		"list_bookings",
		"cancel_booking",
		"reschedule_booking",
	}, reg.Names())
}
