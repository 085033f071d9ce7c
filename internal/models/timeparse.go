package models

import (
	"fmt"
	"strings"
	"time"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"20060102T150405Z0700",
	"20060102T150405",
	"20060102T1504",
}

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
}

// ParseTimestamp accepts ISO-8601 style timestamps with or without zone,
// seconds or the time part. Values without a zone are read in loc. dateOnly
// is true when no time of day was present.
func ParseTimestamp(value string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("could not parse date %q", value)
}
