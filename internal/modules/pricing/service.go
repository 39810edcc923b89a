// README: Pricing service quotes stays and administers homestay pricing rules.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tourstay/internal/events"
	"tourstay/internal/types"
)

var (
	ErrValidation       = errors.New("invalid pricing input")
	ErrHomestayNotFound = errors.New("homestay not found")
	ErrRuleNotFound     = errors.New("pricing rule not found")
)

// MaxNights bounds one quoted stay.
const MaxNights = 365

type Service struct {
	repo      Repository
	cache     QuoteCache
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, cache QuoteCache, publisher events.Publisher, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, publisher: publisher, logger: logger, now: time.Now}
}

type QuoteRequest struct {
	HomestayID types.ID
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
}

// Quote resolves the nightly price of a stay. Cache failures degrade to an uncached resolve.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	stay := Stay{CheckIn: types.Day(req.CheckIn), CheckOut: types.Day(req.CheckOut), Guests: req.Guests}
	switch n := stay.Nights(); {
	case req.HomestayID == "":
		return Quote{}, fmt.Errorf("%w: homestay_id is required", ErrValidation)
	case n <= 0:
		return Quote{}, fmt.Errorf("%w: check_out must be after check_in", ErrValidation)
	case n > MaxNights:
		return Quote{}, fmt.Errorf("%w: stay longer than %d nights", ErrValidation, MaxNights)
	case req.Guests <= 0:
		return Quote{}, fmt.Errorf("%w: guests must be positive", ErrValidation)
	}

	version, err := s.cache.Version(ctx, req.HomestayID)
	cacheable := err == nil
	if err != nil {
		s.logger.Warn("quote cache version lookup failed", "homestay_id", req.HomestayID, "error", err)
	}
	key := quoteKey(req.HomestayID, version, stay)
	if cacheable {
		if q, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("quote cache read failed", "key", key, "error", err)
		} else if ok {
			return *q, nil
		}
	}

	h, err := s.repo.Homestay(ctx, req.HomestayID)
	if err != nil {
		return Quote{}, err
	}
	rules, err := s.repo.ActiveRules(ctx, req.HomestayID)
	if err != nil {
		return Quote{}, err
	}
	q := Resolve(h.BasePrice, rules, stay)
	q.HomestayID = req.HomestayID

	if cacheable {
		if err := s.cache.Set(ctx, key, q); err != nil {
			s.logger.Warn("quote cache write failed", "key", key, "error", err)
		}
	}
	s.logger.Debug("quote resolved", "homestay_id", req.HomestayID, "nightly", q.Nightly, "nights", q.Nights, "applied", len(q.Applied))
	return q, nil
}

type CreateRuleCommand struct {
	HomestayID        types.ID
	Type              string
	Status            RuleStatus
	StartDate         string
	EndDate           string
	DaysOfWeek        []int
	MinimumNights     *int
	MaximumNights     *int
	MinimumGuests     *int
	MaximumGuests     *int
	AdjustmentType    AdjustmentType
	AdjustmentValue   float64
	Priority          int
	IsRecursive       bool
	RecurrencePattern Recurrence
}

func (s *Service) CreateRule(ctx context.Context, cmd CreateRuleCommand) (*Rule, error) {
	r, err := buildRule(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Homestay(ctx, r.HomestayID); err != nil {
		return nil, err
	}
	r.ID = types.NewID()
	r.CreatedAt = s.now().UTC()
	if err := s.repo.InsertRule(ctx, r); err != nil {
		return nil, err
	}
	s.rulesChanged(ctx, r.HomestayID, r.ID)
	return r, nil
}

func (s *Service) SetRuleStatus(ctx context.Context, id types.ID, status RuleStatus) (*Rule, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: rule id is required", ErrValidation)
	}
	status = RuleStatus(strings.ToUpper(string(status)))
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	r, err := s.repo.SetRuleStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.rulesChanged(ctx, r.HomestayID, r.ID)
	return r, nil
}

func (s *Service) ListRules(ctx context.Context, homestayID types.ID) ([]Rule, error) {
	if homestayID == "" {
		return nil, fmt.Errorf("%w: homestay_id is required", ErrValidation)
	}
	if _, err := s.repo.Homestay(ctx, homestayID); err != nil {
		return nil, err
	}
	return s.repo.ListRules(ctx, homestayID)
}

// rulesChanged runs after the rule write; a failed bump leaves stale quotes until their TTL.
func (s *Service) rulesChanged(ctx context.Context, homestayID, ruleID types.ID) {
	if err := s.cache.Bump(ctx, homestayID); err != nil {
		s.logger.Warn("quote cache invalidation failed", "homestay_id", homestayID, "error", err)
	}
	payload := map[string]string{"homestay_id": string(homestayID), "rule_id": string(ruleID)}
	if err := s.publisher.Publish(ctx, events.New(events.TypePricingRulesChanged, string(homestayID), payload)); err != nil {
		s.logger.Warn("publish pricing event failed", "homestay_id", homestayID, "error", err)
	}
}

func buildRule(cmd CreateRuleCommand) (*Rule, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
	}
	if cmd.HomestayID == "" {
		return nil, invalid("homestay_id is required")
	}
	start, err := types.ParseDay(cmd.StartDate)
	if err != nil {
		return nil, invalid("start_date %q is not YYYY-MM-DD", cmd.StartDate)
	}
	end, err := types.ParseDay(cmd.EndDate)
	if err != nil {
		return nil, invalid("end_date %q is not YYYY-MM-DD", cmd.EndDate)
	}
	if end.Before(start) {
		return nil, invalid("end_date is before start_date")
	}
	if cmd.Status == "" {
		cmd.Status = RuleActive
	}
	cmd.Status = RuleStatus(strings.ToUpper(string(cmd.Status)))
	if !cmd.Status.Valid() {
		return nil, invalid("unknown status %q", cmd.Status)
	}
	cmd.AdjustmentType = AdjustmentType(strings.ToUpper(string(cmd.AdjustmentType)))
	if !cmd.AdjustmentType.Valid() {
		return nil, invalid("unknown adjustment_type %q", cmd.AdjustmentType)
	}
	if cmd.AdjustmentType == AdjustOverride && cmd.AdjustmentValue < 0 {
		return nil, invalid("override price must not be negative")
	}
	seen := map[int]bool{}
	for _, d := range cmd.DaysOfWeek {
		if d < 0 || d > 6 {
			return nil, invalid("days_of_week entries must be 0-6")
		}
		if seen[d] {
			return nil, invalid("days_of_week lists %d twice", d)
		}
		seen[d] = true
	}
	for _, b := range []struct {
		name     string
		min, max *int
	}{{"nights", cmd.MinimumNights, cmd.MaximumNights}, {"guests", cmd.MinimumGuests, cmd.MaximumGuests}} {
		if (b.min != nil && *b.min < 0) || (b.max != nil && *b.max < 0) {
			return nil, invalid("%s bounds must not be negative", b.name)
		}
		if b.min != nil && b.max != nil && *b.min > *b.max {
			return nil, invalid("minimum %s exceeds maximum", b.name)
		}
	}
	cmd.RecurrencePattern = Recurrence(strings.ToUpper(string(cmd.RecurrencePattern)))
	switch {
	case cmd.IsRecursive && cmd.RecurrencePattern != RecurYearly && cmd.RecurrencePattern != RecurWeekly:
		return nil, invalid("recursive rules need recurrence_pattern YEARLY or WEEKLY")
	case !cmd.IsRecursive && cmd.RecurrencePattern != "":
		return nil, invalid("recurrence_pattern requires is_recursive")
	case cmd.IsRecursive && cmd.RecurrencePattern == RecurYearly && types.DaysBetween(start, end) >= 365:
		return nil, invalid("yearly window must be shorter than a year")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return nil, invalid("type is required")
	}

	days := cmd.DaysOfWeek
	if days == nil {
		days = []int{}
	}
	return &Rule{
		HomestayID:        cmd.HomestayID,
		Type:              strings.ToUpper(strings.TrimSpace(cmd.Type)),
		Status:            cmd.Status,
		StartDate:         start,
		EndDate:           end,
		DaysOfWeek:        days,
		MinimumNights:     cmd.MinimumNights,
		MaximumNights:     cmd.MaximumNights,
		MinimumGuests:     cmd.MinimumGuests,
		MaximumGuests:     cmd.MaximumGuests,
		AdjustmentType:    cmd.AdjustmentType,
		AdjustmentValue:   cmd.AdjustmentValue,
		Priority:          cmd.Priority,
		IsRecursive:       cmd.IsRecursive,
		RecurrencePattern: cmd.RecurrencePattern,
	}, nil
}
