// README: Pricing rule, stay request and quote definitions for homestay nights.
package pricing

import (
	"time"

	"tourstay/internal/types"
)

type RuleStatus string

const (
	RuleActive   RuleStatus = "ACTIVE"
	RuleInactive RuleStatus = "INACTIVE"
	RuleExpired  RuleStatus = "EXPIRED"
)

func (s RuleStatus) Valid() bool {
	return s == RuleActive || s == RuleInactive || s == RuleExpired
}

type AdjustmentType string

const (
	// AdjustPercentage multiplies the running nightly price by 1 + value/100.
	AdjustPercentage AdjustmentType = "PERCENTAGE"
	// AdjustFixed adds value minor units to the running nightly price.
	AdjustFixed AdjustmentType = "FIXED"
	// AdjustOverride replaces the nightly price with value minor units.
	AdjustOverride AdjustmentType = "OVERRIDE"
)

func (a AdjustmentType) Valid() bool {
	return a == AdjustPercentage || a == AdjustFixed || a == AdjustOverride
}

type Recurrence string

const (
	RecurYearly Recurrence = "YEARLY"
	RecurWeekly Recurrence = "WEEKLY"
)

type Rule struct {
	ID                types.ID       `json:"id"`
	HomestayID        types.ID       `json:"homestay_id"`
	Type              string         `json:"type"`
	Status            RuleStatus     `json:"status"`
	StartDate         time.Time      `json:"start_date"`
	EndDate           time.Time      `json:"end_date"`
	DaysOfWeek        []int          `json:"days_of_week"`
	MinimumNights     *int           `json:"minimum_nights,omitempty"`
	MaximumNights     *int           `json:"maximum_nights,omitempty"`
	MinimumGuests     *int           `json:"minimum_guests,omitempty"`
	MaximumGuests     *int           `json:"maximum_guests,omitempty"`
	AdjustmentType    AdjustmentType `json:"adjustment_type"`
	AdjustmentValue   float64        `json:"adjustment_value"`
	Priority          int            `json:"priority"`
	IsRecursive       bool           `json:"is_recursive"`
	RecurrencePattern Recurrence     `json:"recurrence_pattern,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

type Homestay struct {
	ID        types.ID
	BasePrice types.Money
}

// Stay is a request for the nights [CheckIn, CheckOut).
type Stay struct {
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
}

func (s Stay) Nights() int {
	return types.DaysBetween(s.CheckIn, s.CheckOut)
}

// NightDays lists the calendar day of every night of the stay.
func (s Stay) NightDays() []time.Time {
	n := s.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, n)
	first := types.Day(s.CheckIn)
	for i := range out {
		out[i] = types.AddDays(first, i)
	}
	return out
}

type AppliedRule struct {
	RuleID          types.ID       `json:"rule_id"`
	Type            string         `json:"type"`
	AdjustmentType  AdjustmentType `json:"adjustment_type"`
	AdjustmentValue float64        `json:"adjustment_value"`
	Priority        int            `json:"priority"`
}

// Quote amounts are minor units of Currency.
type Quote struct {
	HomestayID types.ID      `json:"homestay_id"`
	CheckIn    string        `json:"check_in"`
	CheckOut   string        `json:"check_out"`
	Guests     int           `json:"guests"`
	Currency   string        `json:"currency"`
	Base       int64         `json:"base"`
	Nightly    int64         `json:"nightly"`
	Nights     int           `json:"nights"`
	Total      int64         `json:"total"`
	Applied    []AppliedRule `json:"applied"`
}
