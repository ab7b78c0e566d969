// Package timectx provides the current date/time in a fixed reference
// timezone and renders it as a short prompt fragment so the model resolves
// relative dates ("tomorrow", "next Monday") consistently.
package timectx

import (
	"fmt"
	"os"
	"time"
)

// ReferenceZone is the timezone all prompt-facing times are anchored to.
const ReferenceZone = "America/New_York"

// OverrideEnv names the test-only override. When set to a literal
// YYYY-MM-DD date, Now returns noon on that date in the reference zone.
// Noon avoids ambiguity at local midnight and across DST transitions.
const OverrideEnv = "CALBOT_TODAY"

// Provider produces reference-zone timestamps and prompt context strings.
type Provider struct {
	loc *time.Location

	// nowFunc is replaceable in tests
	nowFunc func() time.Time
}

// NewProvider creates a provider anchored to the reference zone.
// If the zone database is unavailable it falls back to UTC rather than
// failing: a skewed context string beats a dead assistant.
func NewProvider() *Provider {
	loc, err := time.LoadLocation(ReferenceZone)
	if err != nil {
		loc = time.UTC
	}
	return &Provider{loc: loc, nowFunc: time.Now}
}

// Now returns the current time in the reference zone, honoring the
// OverrideEnv date if set and well-formed. A malformed override is
// ignored; this never returns an error.
func (p *Provider) Now() time.Time {
	if v := os.Getenv(OverrideEnv); v != "" {
		if d, err := time.ParseInLocation("2006-01-02", v, p.loc); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, p.loc)
		}
	}
	return p.nowFunc().In(p.loc)
}

// RenderContext formats the reference-zone date, reference-zone time, and
// the UTC equivalent into an instruction injected into the system prompt.
func (p *Provider) RenderContext() string {
	now := p.Now()
	return fmt.Sprintf(
		"Today's date is %s. The current time is %s (%s) / %s UTC. Always interpret relative dates like 'tomorrow' or 'next Monday' from this context.",
		now.Format("Monday, January 2, 2006"),
		now.Format("3:04 PM"),
		ReferenceZone,
		now.UTC().Format("15:04"),
	)
}

// DayWindowUTC returns the UTC half-open window [start, end) covering one
// full reference-zone calendar day. The date must be YYYY-MM-DD.
func (p *Provider) DayWindowUTC(date string) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", date, p.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", date, err)
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, p.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC(), nil
}
