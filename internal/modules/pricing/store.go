// README: Pricing store backed by PostgreSQL (homestay base rates and pricing rules).
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tourstay/internal/types"
)

// RuleSource is the read side the quote path needs.
type RuleSource interface {
	Homestay(ctx context.Context, id types.ID) (*Homestay, error)
	ActiveRules(ctx context.Context, homestayID types.ID) ([]Rule, error)
}

type Repository interface {
	RuleSource
	ListRules(ctx context.Context, homestayID types.ID) ([]Rule, error)
	InsertRule(ctx context.Context, r *Rule) error
	SetRuleStatus(ctx context.Context, id types.ID, status RuleStatus) (*Rule, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Homestay(ctx context.Context, id types.ID) (*Homestay, error) {
	var h Homestay
	err := s.db.QueryRow(ctx, `SELECT id, base_price, currency FROM homestays WHERE id = $1`, string(id)).
		Scan(&h.ID, &h.BasePrice.Amount, &h.BasePrice.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrHomestayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get homestay: %w", err)
	}
	return &h, nil
}

func (s *Store) ActiveRules(ctx context.Context, homestayID types.ID) ([]Rule, error) {
	return s.queryRules(ctx, selectRule+` WHERE homestay_id = $1 AND status = $2 ORDER BY priority DESC, start_date, id`,
		string(homestayID), string(RuleActive))
}

func (s *Store) ListRules(ctx context.Context, homestayID types.ID) ([]Rule, error) {
	return s.queryRules(ctx, selectRule+` WHERE homestay_id = $1 ORDER BY priority DESC, start_date, id`, string(homestayID))
}

func (s *Store) InsertRule(ctx context.Context, r *Rule) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO pricing_rules (
            id, homestay_id, type, status, start_date, end_date, days_of_week,
            minimum_nights, maximum_nights, minimum_guests, maximum_guests,
            adjustment_type, adjustment_value, priority, is_recursive, recurrence_pattern, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		string(r.ID), string(r.HomestayID), r.Type, string(r.Status), r.StartDate, r.EndDate, daysParam(r.DaysOfWeek),
		r.MinimumNights, r.MaximumNights, r.MinimumGuests, r.MaximumGuests,
		string(r.AdjustmentType), r.AdjustmentValue, r.Priority, r.IsRecursive, patternParam(r.RecurrencePattern), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pricing rule: %w", err)
	}
	return nil
}

func (s *Store) SetRuleStatus(ctx context.Context, id types.ID, status RuleStatus) (*Rule, error) {
	rows, err := s.db.Query(ctx, `
        UPDATE pricing_rules SET status = $1 WHERE id = $2
        RETURNING `+ruleColumns, string(status), string(id))
	if err != nil {
		return nil, fmt.Errorf("update pricing rule status: %w", err)
	}
	rules, err := collectRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, ErrRuleNotFound
	}
	return &rules[0], nil
}

const ruleColumns = `id, homestay_id, type, status, start_date, end_date, days_of_week,
            minimum_nights, maximum_nights, minimum_guests, maximum_guests,
            adjustment_type, adjustment_value, priority, is_recursive, recurrence_pattern, created_at`

const selectRule = `
        SELECT ` + ruleColumns + `
        FROM pricing_rules`

func (s *Store) queryRules(ctx context.Context, sql string, args ...any) ([]Rule, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query pricing rules: %w", err)
	}
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]Rule, error) {
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		var (
			r       Rule
			days    []int32
			pattern *string
		)
		if err := rows.Scan(
			&r.ID, &r.HomestayID, &r.Type, &r.Status, &r.StartDate, &r.EndDate, &days,
			&r.MinimumNights, &r.MaximumNights, &r.MinimumGuests, &r.MaximumGuests,
			&r.AdjustmentType, &r.AdjustmentValue, &r.Priority, &r.IsRecursive, &pattern, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pricing rule: %w", err)
		}
		r.DaysOfWeek = make([]int, len(days))
		for i, d := range days {
			r.DaysOfWeek[i] = int(d)
		}
		if pattern != nil {
			r.RecurrencePattern = Recurrence(*pattern)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing rules: %w", err)
	}
	return out, nil
}

func daysParam(days []int) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func patternParam(p Recurrence) *string {
	if p == "" {
		return nil
	}
	s := string(p)
	return &s
}
