// Package timeutil normalizes the heterogeneous timestamp shapes found in
// imported records (native instants, date strings, document-store export
// wrappers) into a single canonical *time.Time. All other packages consume
// timestamps through Normalize and never branch on shape themselves.
package timeutil

import (
	"time"
)

// stringLayouts are tried in order when normalizing a string value.
var stringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a value of unknown shape into a canonical instant.
// Supported shapes: time.Time, *time.Time, date strings, and decoded JSON
// wrapper maps of the form {"seconds": N, "nanos": M} or
// {"_seconds": N, "_nanoseconds": M}. Anything else, including bare numeric
// values and numeric-looking strings, yields nil. Zero instants also yield
// nil so callers can treat the result uniformly as "no data".
//
// Normalize never panics; it is safe to call on raw decoded JSON.
func Normalize(value any) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return nonZero(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return nonZero(*v)
	case string:
		return parseString(v)
	case map[string]any:
		return parseWrapper(v)
	default:
		// Bare numerics are ambiguous (seconds? millis?) and are only
		// accepted inside an explicitly tagged wrapper map.
		return nil
	}
}

func parseString(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range stringLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return nonZero(parsed)
		}
	}
	return nil
}

func parseWrapper(wrapper map[string]any) *time.Time {
	seconds, ok := numberField(wrapper, "seconds", "_seconds")
	if !ok {
		return nil
	}
	nanos, _ := numberField(wrapper, "nanos", "_nanoseconds")
	return nonZero(time.Unix(int64(seconds), int64(nanos)).UTC())
}

func numberField(wrapper map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		switch n := raw.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
	}
	return 0, false
}

func nonZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
