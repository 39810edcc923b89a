// README: Calendar service applies operator batches and booking holds under the room lock.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tourstay/internal/events"
	"tourstay/internal/types"
)

const (
	DefaultSpanDays = 30
	MaxSpanDays     = 120
)

// Limits bounds the public read window. Zero fields take the package defaults.
type Limits struct {
	DefaultSpanDays int
	MaxSpanDays     int
}

type Service struct {
	repo      Repository
	publisher events.Publisher
	logger    *slog.Logger
	limits    Limits
	now       func() time.Time
}

func NewService(repo Repository, publisher events.Publisher, logger *slog.Logger, limits Limits) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if limits.DefaultSpanDays <= 0 {
		limits.DefaultSpanDays = DefaultSpanDays
	}
	if limits.MaxSpanDays <= 0 {
		limits.MaxSpanDays = MaxSpanDays
	}
	if limits.DefaultSpanDays > limits.MaxSpanDays {
		limits.DefaultSpanDays = limits.MaxSpanDays
	}
	return &Service{repo: repo, publisher: publisher, logger: logger, limits: limits, now: time.Now}
}

type ApplyResult struct {
	RoomID   types.ID  `json:"room_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Upserted int       `json:"upserted"`
	Deleted  int       `json:"deleted"`
}

// Changed is the payload of a room calendar event.
type Changed struct {
	RoomID types.ID `json:"room_id"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	Reason string   `json:"reason"`
}

// ApplyEntries writes a validated batch atomically. With overwriteRange every stored day
// between the earliest and latest entry is cleared first.
func (s *Service) ApplyEntries(ctx context.Context, room types.ID, entries []EntryInput, overwriteRange bool) (ApplyResult, error) {
	records, err := NormalizeEntries(room, entries)
	if err != nil {
		return ApplyResult{}, err
	}
	res := ApplyResult{RoomID: room, From: records[0].Day, To: records[len(records)-1].Day}
	now := s.now().UTC()

	err = s.repo.InTx(ctx, func(tx Tx) error {
		res.Upserted, res.Deleted = 0, 0
		if err := tx.LockRoom(ctx, room); err != nil {
			return err
		}
		if overwriteRange {
			n, err := tx.DeleteRange(ctx, room, res.From, res.To)
			if err != nil {
				return err
			}
			res.Deleted += n
		}
		for _, rec := range records {
			if rec.IsDefault() {
				n, err := tx.DeleteDay(ctx, room, rec.Day)
				if err != nil {
					return err
				}
				res.Deleted += n
				continue
			}
			rec.UpdatedAt = now
			if err := tx.Upsert(ctx, rec); err != nil {
				return err
			}
			res.Upserted++
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	s.logger.Info("room calendar updated",
		"room_id", room,
		"from", res.From.Format(types.DayLayout),
		"to", res.To.Format(types.DayLayout),
		"upserted", res.Upserted,
		"deleted", res.Deleted,
		"overwrite_range", overwriteRange,
	)
	s.publishChanged(ctx, room, res.From, res.To, "entries")
	return res, nil
}

// Hold reserves units on every night in [checkIn, checkOut). Nothing is written unless
// every night is OPEN with enough free units.
func (s *Service) Hold(ctx context.Context, room types.ID, checkIn, checkOut time.Time, units int) error {
	if err := validUnits(units); err != nil {
		return err
	}
	return s.adjust(ctx, room, checkIn, checkOut, units, "hold")
}

// Release returns units on every night in [checkIn, checkOut), flooring at zero.
func (s *Service) Release(ctx context.Context, room types.ID, checkIn, checkOut time.Time, units int) error {
	if err := validUnits(units); err != nil {
		return err
	}
	return s.adjust(ctx, room, checkIn, checkOut, -units, "release")
}

func validUnits(units int) error {
	if units < 1 || units > MaxUnits {
		return fmt.Errorf("%w: units must be between 1 and %d", ErrValidation, MaxUnits)
	}
	return nil
}

func (s *Service) adjust(ctx context.Context, room types.ID, checkIn, checkOut time.Time, delta int, reason string) error {
	checkIn, checkOut = types.Day(checkIn), types.Day(checkOut)
	switch {
	case room == "":
		return fmt.Errorf("%w: room id is required", ErrValidation)
	case !checkOut.After(checkIn):
		return fmt.Errorf("%w: check_out must be after check_in", ErrValidation)
	case types.DaysBetween(checkIn, checkOut) > s.limits.MaxSpanDays:
		return fmt.Errorf("%w: stay longer than %d nights", ErrValidation, s.limits.MaxSpanDays)
	}
	lastNight := types.AddDays(checkOut, -1)
	now := s.now().UTC()

	err := s.repo.InTx(ctx, func(tx Tx) error {
		if err := tx.LockRoom(ctx, room); err != nil {
			return err
		}
		stored, err := tx.ListRange(ctx, room, checkIn, lastNight)
		if err != nil {
			return err
		}
		nights := fillRange(room, checkIn, lastNight, stored)

		for i := range nights {
			n := &nights[i]
			if delta > 0 {
				if n.rec.Status != StatusOpen || n.rec.ReservedUnits+delta > n.rec.TotalUnits {
					return fmt.Errorf("%w: %s has %d of %d units free (%s)", ErrUnavailable,
						n.rec.Day.Format(types.DayLayout), n.rec.AvailableUnits(), n.rec.TotalUnits, n.rec.Status)
				}
			}
			n.rec.ReservedUnits = max(n.rec.ReservedUnits+delta, 0)
		}
		for _, n := range nights {
			if n.rec.IsDefault() {
				if n.stored {
					if _, err := tx.DeleteDay(ctx, room, n.rec.Day); err != nil {
						return err
					}
				}
				continue
			}
			n.rec.UpdatedAt = now
			if err := tx.Upsert(ctx, n.rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("room nights adjusted", "room_id", room, "check_in", checkIn.Format(types.DayLayout), "check_out", checkOut.Format(types.DayLayout), "delta", delta)
	s.publishChanged(ctx, room, checkIn, lastNight, reason)
	return nil
}

type night struct {
	rec    Record
	stored bool
}

// fillRange expands stored rows to one record per day in [from, to], synthesizing defaults.
func fillRange(room types.ID, from, to time.Time, stored []Record) []night {
	byDay := make(map[string]Record, len(stored))
	for _, r := range stored {
		byDay[r.Day.Format(types.DayLayout)] = r
	}
	var out []night
	types.EachDay(from, to, func(d time.Time) {
		if r, ok := byDay[d.Format(types.DayLayout)]; ok {
			out = append(out, night{rec: r, stored: true})
			return
		}
		out = append(out, night{rec: DefaultRecord(room, d)})
	})
	return out
}

func (s *Service) publishChanged(ctx context.Context, room types.ID, from, to time.Time, reason string) {
	payload := Changed{RoomID: room, From: from.Format(types.DayLayout), To: to.Format(types.DayLayout), Reason: reason}
	if err := s.publisher.Publish(ctx, events.New(events.TypeRoomCalendarChanged, string(room), payload)); err != nil {
		s.logger.Warn("publish calendar event failed", "room_id", room, "error", err)
	}
}
