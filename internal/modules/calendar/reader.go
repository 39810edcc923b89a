// README: Public room availability reader; gap-free, defaults synthesized for missing days.
package calendar

import (
	"context"
	"fmt"
	"time"

	"tourstay/internal/types"
)

// ReadAvailability returns one entry per day in [start, end]. Nil bounds default to today and
// today plus the default span; end is clamped to the maximum span. The room need not exist.
func (s *Service) ReadAvailability(ctx context.Context, room types.ID, start, end *time.Time) ([]DayAvailability, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrValidation)
	}
	from, to := s.window(start, end)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrValidation, to.Format(types.DayLayout), from.Format(types.DayLayout))
	}

	stored, err := s.repo.ListRange(ctx, room, from, to)
	if err != nil {
		return nil, err
	}
	nights := fillRange(room, from, to, stored)
	out := make([]DayAvailability, len(nights))
	for i, n := range nights {
		out[i] = n.rec.View()
	}
	return out, nil
}

func (s *Service) window(start, end *time.Time) (time.Time, time.Time) {
	from := types.Day(s.now().UTC())
	if start != nil {
		from = types.Day(*start)
	}
	to := types.AddDays(from, s.limits.DefaultSpanDays)
	if end != nil {
		to = types.Day(*end)
	}
	if limit := types.AddDays(from, s.limits.MaxSpanDays); to.After(limit) {
		to = limit
	}
	return from, to
}
