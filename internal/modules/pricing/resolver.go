// README: Pricing rule resolver; pure, deterministic nightly price over a base rate.
package pricing

import (
	"sort"
	"time"

	"tourstay/internal/types"
)

// Resolve applies the matching ACTIVE rules to the base nightly price.
//
// Matching rules are ordered by priority desc, StartDate asc, then ID. The first OVERRIDE in
// that order sets the price and every later OVERRIDE is ignored. Stacking rules ordered before
// that override are applied on top of it; stacking rules after it do not apply. Without an
// override every stacking rule applies in order. The result is clamped to >= 0 and rounded to
// minor units.
func Resolve(base types.Money, rules []Rule, stay Stay) Quote {
	nights := stay.NightDays()
	q := Quote{
		CheckIn:  types.Day(stay.CheckIn).Format(types.DayLayout),
		CheckOut: types.Day(stay.CheckOut).Format(types.DayLayout),
		Guests:   stay.Guests,
		Currency: base.Currency,
		Base:     base.Amount,
		Nightly:  base.Amount,
		Nights:   len(nights),
		Applied:  []AppliedRule{},
	}

	matched := Matching(rules, stay)
	override := -1
	for i, r := range matched {
		if r.AdjustmentType == AdjustOverride {
			override = i
			break
		}
	}

	price := float64(base.Amount)
	stacking := matched
	if override >= 0 {
		r := matched[override]
		price = r.AdjustmentValue
		q.Applied = append(q.Applied, applied(r))
		stacking = matched[:override]
	}
	for _, r := range stacking {
		switch r.AdjustmentType {
		case AdjustPercentage:
			price *= 1 + r.AdjustmentValue/100
		case AdjustFixed:
			price += r.AdjustmentValue
		default:
			continue
		}
		q.Applied = append(q.Applied, applied(r))
	}

	if price < 0 {
		price = 0
	}
	q.Nightly = types.RoundMinor(price)
	q.Total = q.Nightly * int64(q.Nights)
	return q
}

// Matching returns the ACTIVE rules that apply to stay, in resolution order.
func Matching(rules []Rule, stay Stay) []Rule {
	nights := stay.NightDays()
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.matches(stay, nights) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.ID < b.ID
	})
	return out
}

func (r Rule) matches(stay Stay, nights []time.Time) bool {
	if r.Status != RuleActive || len(nights) == 0 {
		return false
	}
	if !r.touches(nights) {
		return false
	}
	if len(r.DaysOfWeek) > 0 && !anyWeekday(nights, r.DaysOfWeek) {
		return false
	}
	n := len(nights)
	if r.MinimumNights != nil && n < *r.MinimumNights {
		return false
	}
	if r.MaximumNights != nil && n > *r.MaximumNights {
		return false
	}
	if r.MinimumGuests != nil && stay.Guests < *r.MinimumGuests {
		return false
	}
	if r.MaximumGuests != nil && stay.Guests > *r.MaximumGuests {
		return false
	}
	return true
}

func anyWeekday(nights []time.Time, days []int) bool {
	for _, d := range nights {
		wd := int(d.Weekday())
		for _, want := range days {
			if wd == want {
				return true
			}
		}
	}
	return false
}

func applied(r Rule) AppliedRule {
	return AppliedRule{
		RuleID:          r.ID,
		Type:            r.Type,
		AdjustmentType:  r.AdjustmentType,
		AdjustmentValue: r.AdjustmentValue,
		Priority:        r.Priority,
	}
}
