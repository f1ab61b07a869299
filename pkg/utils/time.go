package utils

import (
	"fmt"
	"time"
)

// GraphTimeLayout is the timestamp layout used by the Graph API, e.g. 2024-03-01T10:15:00+0000.
const GraphTimeLayout = "2006-01-02T15:04:05-0700"

// Now returns the current time in UTC timezone
func Now() time.Time {
	return time.Now().UTC()
}

// ParseGraphTime parses a Graph API timestamp into UTC. RFC3339 is accepted as well.
func ParseGraphTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(GraphTimeLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

// FormatISO8601 formats a time.Time to ISO8601 format in UTC
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
