// README: DB-backed pricing store tests against TOURSTAY_TEST_DSN.
package pricing

import (
	"context"
	"errors"
	"testing"

	"tourstay/internal/testutil"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.OpenDB(t)
	testutil.Seed(t, db, `INSERT INTO homestays (id, name, base_price, currency) VALUES ('hs-1', 'Tea hill house', 1000, 'TWD')`)
	return NewStore(db)
}

func TestStoreRulesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	svc := NewService(store, nil, nil, nil)

	weekendRule, err := svc.CreateRule(ctx, CreateRuleCommand{
		HomestayID:      "hs-1",
		Type:            "WEEKEND",
		StartDate:       "2026-01-01",
		EndDate:         "2026-12-31",
		DaysOfWeek:      []int{5, 6},
		MaximumGuests:   intp(4),
		AdjustmentType:  AdjustPercentage,
		AdjustmentValue: 25,
		Priority:        2,
	})
	if err != nil {
		t.Fatalf("create weekend rule: %v", err)
	}
	if _, err := svc.CreateRule(ctx, CreateRuleCommand{
		HomestayID:        "hs-1",
		Type:              "HOLIDAY",
		StartDate:         "2025-12-28",
		EndDate:           "2026-01-03",
		AdjustmentType:    AdjustOverride,
		AdjustmentValue:   3000,
		Priority:          9,
		IsRecursive:       true,
		RecurrencePattern: RecurYearly,
	}); err != nil {
		t.Fatalf("create holiday rule: %v", err)
	}

	rules, err := svc.ListRules(ctx, "hs-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 2 || rules[0].Type != "HOLIDAY" || rules[0].RecurrencePattern != RecurYearly {
		t.Fatalf("unexpected rules: %+v", rules)
	}
	if got := rules[1].DaysOfWeek; len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("days_of_week round trip: %v", got)
	}
	if rules[1].MaximumGuests == nil || *rules[1].MaximumGuests != 4 || rules[1].MinimumGuests != nil {
		t.Fatalf("guest bounds round trip: %+v", rules[1])
	}

	q, err := svc.Quote(ctx, weekendRequest())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Nightly != 1250 {
		t.Fatalf("nightly = %d, want 1250", q.Nightly)
	}

	if _, err := svc.SetRuleStatus(ctx, weekendRule.ID, RuleExpired); err != nil {
		t.Fatalf("expire: %v", err)
	}
	active, err := store.ActiveRules(ctx, "hs-1")
	if err != nil {
		t.Fatalf("active rules: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active rule, got %d", len(active))
	}
	if _, err := svc.SetRuleStatus(ctx, "missing", RuleActive); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}
