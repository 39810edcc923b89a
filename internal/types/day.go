// README: Day-granularity date helpers shared by the calendar and pricing modules.
package types

import (
	"errors"
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

var ErrInvalidDay = errors.New("invalid date")

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC day.
func Today() time.Time {
	return Day(time.Now().UTC())
}

// ParseDay accepts YYYY-MM-DD or RFC3339 and drops the time component.
func ParseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDay
	}
	if t, err := time.Parse(DayLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ErrInvalidDay
	}
	return Day(t), nil
}

// AddDays moves a day by n calendar days.
func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}

// DaysBetween returns the number of whole days from a to b (b exclusive).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// EachDay calls fn for every day in [start, end] inclusive.
func EachDay(start, end time.Time, fn func(time.Time)) {
	for d := Day(start); !d.After(end); d = AddDays(d, 1) {
		fn(d)
	}
}
