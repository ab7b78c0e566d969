package tools

import (
	"context"
	"strings"

	"github.com/soypete/calbot/pkg/calcom"
)

// resolveEventType maps the model's arguments to a concrete event type
// id. Precedence: an explicit event_type_id argument, then the pinned
// id from configuration, then a match of the event_type name against the
// live category list. An exact title or slug match always beats a
// substring match, so "interview" picks "Interview" over "Interview
// Prep". A named category that matches nothing returns the options so
// the model can ask the user to choose.
func resolveEventType(ctx context.Context, adapter *calcom.Adapter, args map[string]interface{}, pinned int) (int, *Result) {
	if id := argInt(args, "event_type_id"); id > 0 {
		return id, nil
	}
	if pinned > 0 {
		return pinned, nil
	}

	listed := adapter.ListEventTypes(ctx)
	if !listed.Success {
		return 0, &Result{Success: false, Error: listed.Error, Data: map[string]interface{}{"suggestion": listed.Suggestion}}
	}
	if listed.Count == 0 {
		return 0, ErrorResult("the booking account has no bookable event types")
	}

	name := strings.TrimSpace(argString(args, "event_type"))
	if name == "" {
		return listed.EventTypes[0].ID, nil
	}

	needle := strings.ToLower(name)
	for _, et := range listed.EventTypes {
		if strings.ToLower(et.Title) == needle || strings.ToLower(et.Slug) == needle {
			return et.ID, nil
		}
	}
	for _, et := range listed.EventTypes {
		title := strings.ToLower(et.Title)
		slug := strings.ToLower(et.Slug)
		if strings.Contains(title, needle) || strings.Contains(needle, title) ||
			strings.Contains(slug, needle) || strings.Contains(needle, slug) {
			return et.ID, nil
		}
	}

	return 0, &Result{
		Success: false,
		Error:   "no event type matches \"" + name + "\"",
		Data:    map[string]interface{}{"options": listed.EventTypes},
	}
}

func argString(args map[string]interface{}, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

func argInt(args map[string]interface{}, key string) int {
	switch n := args[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
