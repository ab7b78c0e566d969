package calcom

import (
	"encoding/json"
	"sort"
	"time"
)

// The backend's JSON nesting is not contractually fixed across
// generations, or even across otherwise-identical calls. Each known shape
// is an explicit named parser tried in order, with a generic tree walker
// as the last resort. A body no parser recognizes normalizes to zero
// results, never a hard failure: an empty result is always a valid
// real-world outcome for a read.

var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
}

// parseInstant parses any ISO-8601 spelling the backend has been seen to
// use. Returns the zero time when s is not an instant.
func parseInstant(s string) (time.Time, bool) {
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// slot shapes

type slotShape struct {
	name  string
	parse func(root interface{}) ([]string, bool)
}

var slotShapes = []slotShape{
	// v2 2024-09-04: {"data": {"slots": {"2025-03-10": [{"start": "..."}]}}}
	{"v2-data-slots", func(root interface{}) ([]string, bool) {
		data, ok := dig(root, "data", "slots")
		if !ok {
			return nil, false
		}
		return slotsFromDateMap(data)
	}},
	// v2 2024-08-13: {"data": {"2025-03-10": [{"start": "..."}]}}
	{"v2-data-dates", func(root interface{}) ([]string, bool) {
		data, ok := dig(root, "data")
		if !ok {
			return nil, false
		}
		return slotsFromDateMap(data)
	}},
	// v1: {"slots": {"2025-03-10": [{"time": "..."}]}}
	{"v1-slots", func(root interface{}) ([]string, bool) {
		data, ok := dig(root, "slots")
		if !ok {
			return nil, false
		}
		return slotsFromDateMap(data)
	}},
}

// normalizeSlots extracts bookable instants from whichever shape the
// response uses, deduplicated and in chronological order.
func normalizeSlots(raw []byte, diags *Diagnostics) []string {
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		diags.Record("shape", "slots response is not JSON: %v", err)
		return nil
	}

	for _, shape := range slotShapes {
		if slots, ok := shape.parse(root); ok {
			return dedupeChronological(slots)
		}
	}

	// Last resort: walk the whole tree for anything instant-shaped under
	// a known key name.
	slots := walkInstants(root)
	if len(slots) == 0 {
		diags.Record("shape", "no slot shape matched; treating as zero slots")
	}
	return dedupeChronological(slots)
}

// slotsFromDateMap reads {"<date>": [ {start|time|startTime: instant} | "instant", ... ]}.
// Date keys are visited in sorted order so output is deterministic.
func slotsFromDateMap(v interface{}) ([]string, bool) {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		// An empty map is still a recognized shape: zero slots.
		if ok {
			return nil, true
		}
		return nil, false
	}

	var out []string
	matched := false
	for _, date := range sortedKeys(m) {
		list, ok := m[date].([]interface{})
		if !ok {
			continue
		}
		matched = true
		for _, item := range list {
			switch e := item.(type) {
			case string:
				if _, ok := parseInstant(e); ok {
					out = append(out, e)
				}
			case map[string]interface{}:
				for _, key := range []string{"start", "time", "startTime"} {
					if s, ok := e[key].(string); ok {
						if _, ok := parseInstant(s); ok {
							out = append(out, s)
							break
						}
					}
				}
			}
		}
	}
	return out, matched
}

// walkInstants collects every instant-looking value stored under a known
// slot key name, anywhere in the tree. Maps are walked in sorted key
// order for determinism.
func walkInstants(v interface{}) []string {
	var out []string
	switch node := v.(type) {
	case map[string]interface{}:
		for _, k := range sortedKeys(node) {
			child := node[k]
			if s, ok := child.(string); ok && (k == "start" || k == "time" || k == "startTime") {
				if _, ok := parseInstant(s); ok {
					out = append(out, s)
					continue
				}
			}
			out = append(out, walkInstants(child)...)
		}
	case []interface{}:
		for _, child := range node {
			out = append(out, walkInstants(child)...)
		}
	}
	return out
}

func dedupeChronological(slots []string) []string {
	seen := make(map[string]struct{}, len(slots))
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, oki := parseInstant(out[i])
		tj, okj := parseInstant(out[j])
		if !oki || !okj {
			return false
		}
		return ti.Before(tj)
	})
	return out
}

// event type shapes

type eventTypeShape struct {
	name  string
	parse func(root interface{}) ([]interface{}, bool)
}

var eventTypeShapes = []eventTypeShape{
	// bare array
	{"top-level-array", func(root interface{}) ([]interface{}, bool) {
		list, ok := root.([]interface{})
		return list, ok
	}},
	// v2: {"data": [...]}
	{"data-array", func(root interface{}) ([]interface{}, bool) {
		v, ok := dig(root, "data")
		if !ok {
			return nil, false
		}
		list, ok := v.([]interface{})
		return list, ok
	}},
	// v2 nested: {"data": {"eventTypes": [...]}}
	{"data-event-types", func(root interface{}) ([]interface{}, bool) {
		v, ok := dig(root, "data", "eventTypes")
		if !ok {
			return nil, false
		}
		list, ok := v.([]interface{})
		return list, ok
	}},
	// v2 grouped: {"data": {"eventTypeGroups": [{"eventTypes": [...]}]}}
	{"data-groups", func(root interface{}) ([]interface{}, bool) {
		v, ok := dig(root, "data", "eventTypeGroups")
		if !ok {
			return nil, false
		}
		groups, ok := v.([]interface{})
		if !ok {
			return nil, false
		}
		var out []interface{}
		for _, g := range groups {
			if inner, ok := dig(g, "eventTypes"); ok {
				if list, ok := inner.([]interface{}); ok {
					out = append(out, list...)
				}
			}
		}
		return out, true
	}},
	// v1: {"event_types": [...]}
	{"v1-event-types", func(root interface{}) ([]interface{}, bool) {
		v, ok := dig(root, "event_types")
		if !ok {
			return nil, false
		}
		list, ok := v.([]interface{})
		return list, ok
	}},
}

// normalizeEventTypes extracts categories from whichever shape matched,
// falling back to the first list of objects found anywhere in the tree.
func normalizeEventTypes(raw []byte, diags *Diagnostics) []EventType {
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		diags.Record("shape", "event types response is not JSON: %v", err)
		return nil
	}

	for _, shape := range eventTypeShapes {
		if list, ok := shape.parse(root); ok {
			return decodeEventTypes(list)
		}
	}

	if list, ok := firstObjectList(root); ok {
		diags.Record("shape", "event types matched only the generic walker")
		return decodeEventTypes(list)
	}

	diags.Record("shape", "no event type shape matched; treating as zero categories")
	return nil
}

func decodeEventTypes(list []interface{}) []EventType {
	out := make([]EventType, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		et := EventType{
			ID:          intField(m, "id"),
			Title:       stringField(m, "title"),
			Slug:        stringField(m, "slug"),
			Description: stringField(m, "description"),
			Length:      intField(m, "length", "lengthInMinutes", "duration"),
		}
		if et.ID == 0 && et.Title == "" {
			continue
		}
		out = append(out, et)
	}
	return out
}

// booking shapes

var bookingShapeKeys = [][]string{
	{"data", "bookings"},
	{"data"},
	{"bookings"},
}

// normalizeBookingList extracts the raw booking objects from whichever
// shape matched. Field-level normalization happens in the adapter.
func normalizeBookingList(raw []byte, diags *Diagnostics) []map[string]interface{} {
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		diags.Record("shape", "bookings response is not JSON: %v", err)
		return nil
	}

	if list, ok := root.([]interface{}); ok {
		return objectList(list)
	}
	for _, path := range bookingShapeKeys {
		if v, ok := dig(root, path...); ok {
			if list, ok := v.([]interface{}); ok {
				return objectList(list)
			}
		}
	}
	if list, ok := firstObjectList(root); ok {
		diags.Record("shape", "bookings matched only the generic walker")
		return objectList(list)
	}

	diags.Record("shape", "no booking shape matched; treating as zero bookings")
	return nil
}

// normalizeBookingObject extracts a single booking object from a detail
// response, tolerating {"data": {...}}, {"booking": {...}}, or a bare
// object.
func normalizeBookingObject(raw []byte) (map[string]interface{}, bool) {
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, false
	}
	for _, key := range []string{"data", "booking"} {
		if v, ok := dig(root, key); ok {
			if m, ok := v.(map[string]interface{}); ok {
				return m, true
			}
		}
	}
	if m, ok := root.(map[string]interface{}); ok {
		return m, true
	}
	return nil, false
}

// generic helpers

func dig(v interface{}, path ...string) (interface{}, bool) {
	for _, key := range path {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// firstObjectList finds the first array of objects anywhere in the tree,
// breadth-last via sorted-key depth-first walk.
func firstObjectList(v interface{}) ([]interface{}, bool) {
	switch node := v.(type) {
	case []interface{}:
		if len(node) > 0 {
			if _, ok := node[0].(map[string]interface{}); ok {
				return node, true
			}
		}
	case map[string]interface{}:
		for _, k := range sortedKeys(node) {
			if list, ok := firstObjectList(node[k]); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func objectList(list []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func intField(m map[string]interface{}, keys ...string) int {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return 0
}
