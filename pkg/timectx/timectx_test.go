package timectx

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNow_OverrideReturnsNoon(t *testing.T) {
	t.Setenv(OverrideEnv, "2025-03-10")

	p := NewProvider()
	now := p.Now()

	assert.Equal(t, 2025, now.Year())
	assert.Equal(t, time.March, now.Month())
	assert.Equal(t, 10, now.Day())
	assert.Equal(t, 12, now.Hour())
	assert.Equal(t, ReferenceZone, now.Location().String())
}

func TestNow_MalformedOverrideFallsBack(t *testing.T) {
	t.Setenv(OverrideEnv, "not-a-date")

	fixed := time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)
	p := NewProvider()
	p.nowFunc = func() time.Time { return fixed }

	now := p.Now()
	assert.True(t, now.Equal(fixed), "malformed override must fall back to system time")
}

func TestRenderContext_ContainsDateAndInstruction(t *testing.T) {
	t.Setenv(OverrideEnv, "2025-03-10")

	p := NewProvider()
	ctx := p.RenderContext()

	assert.Contains(t, ctx, "Monday, March 10, 2025")
	assert.Contains(t, ctx, "relative dates")
	assert.Contains(t, ctx, "UTC")
}

func TestDayWindowUTC(t *testing.T) {
	p := NewProvider()

	start, end, err := p.DayWindowUTC("2025-03-10")
	require.NoError(t, err)

	// 2025-03-10 is after the US spring-forward, so EDT (UTC-4).
	assert.Equal(t, "2025-03-10T04:00:00Z", start.Format(time.RFC3339))
	assert.Equal(t, "2025-03-11T04:00:00Z", end.Format(time.RFC3339))
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestDayWindowUTC_InvalidDate(t *testing.T) {
	p := NewProvider()

	_, _, err := p.DayWindowUTC("03/10/2025")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "YYYY-MM-DD"))
}
