// README: Rule window matching, with yearly and weekly recurrence projection.
package pricing

import (
	"time"

	"tourstay/internal/types"
)

// covers reports whether the rule window contains day. Recurring windows repeat from
// StartDate onwards and never apply before it.
func (r Rule) covers(day time.Time) bool {
	day = types.Day(day)
	start, end := types.Day(r.StartDate), types.Day(r.EndDate)
	if !r.IsRecursive || r.RecurrencePattern == "" {
		return !day.Before(start) && !day.After(end)
	}
	if day.Before(start) {
		return false
	}
	span := types.DaysBetween(start, end)

	switch r.RecurrencePattern {
	case RecurYearly:
		// a window crossing new year is projected from the previous year as well
		years := end.Year() - start.Year()
		for _, y := range []int{day.Year() - 1, day.Year()} {
			from := anniversary(y, start)
			if from.Before(start) {
				continue
			}
			if !day.Before(from) && !day.After(anniversary(y+years, end)) {
				return true
			}
		}
		return false
	case RecurWeekly:
		if span >= 6 {
			return true
		}
		return types.DaysBetween(start, day)%7 <= span
	}
	return false
}

// anniversary moves d into year y; Feb 29 becomes Feb 28 in common years.
func anniversary(y int, d time.Time) time.Time {
	dd := d.Day()
	if d.Month() == time.February && dd == 29 && !isLeap(y) {
		dd = 28
	}
	return time.Date(y, d.Month(), dd, 0, 0, 0, 0, time.UTC)
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// touches reports whether any of the nights falls inside the rule window.
func (r Rule) touches(nights []time.Time) bool {
	for _, d := range nights {
		if r.covers(d) {
			return true
		}
	}
	return false
}
