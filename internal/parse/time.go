package parse

import (
	"fmt"
	"strings"
	"time"
)

// localLayouts are accepted for start times without a zone offset. They are
// read in the cafe's time zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// StartTime parses a client-supplied booking start. Timestamps that carry an
// offset keep it; bare local timestamps are taken in loc. The result is in UTC.
func StartTime(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty start time")
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse start time %q, want RFC3339 or YYYY-MM-DD HH:MM", raw)
}
