package app

import (
	"strings"
	"time"
)

// All instants are compared and stored in UTC.

const dateLayout = "2006-01-02"

// ParseCalendarDate returns midnight UTC of the given day. It accepts a bare
// date or an RFC 3339 timestamp, whose UTC day is used.
func ParseCalendarDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalid("date", "not provided")
	}
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, invalid("date", "must be YYYY-MM-DD or RFC 3339")
	}
	return StartOfDay(t), nil
}

// ParseInstant parses an RFC 3339 date-time.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalid("date", "not provided")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, invalid("date", "must be an RFC 3339 date-time")
	}
	return t, nil
}

// NormalizeInstant truncates t to the start of its hour in UTC.
func NormalizeInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func EndOfDay(day time.Time) time.Time {
	return StartOfDay(day).Add(24*time.Hour - time.Nanosecond)
}

// HourOf returns day at the given hour, UTC.
func HourOf(day time.Time, hour int) time.Time {
	return StartOfDay(day).Add(time.Duration(hour) * time.Hour)
}
