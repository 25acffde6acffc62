package collector

import (
	"strings"
	"time"
)

// machineLayouts are tried for every source before its own text layouts.
var machineLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// NormalizeDate converts a raw date string into RFC3339 UTC.
// An empty string is returned when no layout matches; dates are never guessed.
func NormalizeDate(raw string, layouts ...string) string {
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return ""
	}
	for _, layout := range append(append([]string{}, machineLayouts...), layouts...) {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}
