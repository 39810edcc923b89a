// README: Room-night calendar records, input normalization and the sparse default.
package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tourstay/internal/types"
)

var (
	ErrValidation   = errors.New("invalid calendar input")
	ErrRoomNotFound = errors.New("room not found")
	ErrUnavailable  = errors.New("room nights unavailable")
)

type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusBlocked Status = "BLOCKED"
	StatusClosed  Status = "CLOSED"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusBlocked || s == StatusClosed
}

// MaxUnits caps both total and reserved units of one room-night.
const MaxUnits = 50

// Record is one stored room-night. Days without a row read as DefaultRecord.
type Record struct {
	RoomID        types.ID
	Day           time.Time
	TotalUnits    int
	ReservedUnits int
	Status        Status
	UpdatedAt     time.Time
}

// DefaultRecord is the value of every room-night that has no stored row.
func DefaultRecord(room types.ID, day time.Time) Record {
	return Record{RoomID: room, Day: types.Day(day), TotalUnits: 1, ReservedUnits: 0, Status: StatusOpen}
}

// IsDefault reports whether r carries nothing beyond DefaultRecord and can be pruned.
func (r Record) IsDefault() bool {
	return r.Status == StatusOpen && r.TotalUnits <= 1 && r.ReservedUnits == 0
}

func (r Record) AvailableUnits() int {
	return max(r.TotalUnits-r.ReservedUnits, 0)
}

// EntryInput is one operator-supplied calendar line. Nil units take the defaults.
type EntryInput struct {
	Date          string `json:"date"`
	TotalUnits    *int   `json:"total_units"`
	ReservedUnits *int   `json:"reserved_units"`
	Status        Status `json:"status"`
}

// NormalizeEntries validates the whole batch and returns one record per day, ordered by day.
// A day listed twice keeps its last entry.
func NormalizeEntries(room types.ID, entries []EntryInput) ([]Record, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrValidation)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrValidation)
	}
	byDay := make(map[string]Record, len(entries))
	for i, in := range entries {
		rec, err := normalize(room, in)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %s", ErrValidation, i, err)
		}
		byDay[rec.Day.Format(types.DayLayout)] = rec
	}
	out := make([]Record, 0, len(byDay))
	for _, rec := range byDay {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func normalize(room types.ID, in EntryInput) (Record, error) {
	day, err := types.ParseDay(in.Date)
	if err != nil {
		return Record{}, fmt.Errorf("date %q is not YYYY-MM-DD", in.Date)
	}
	rec := DefaultRecord(room, day)
	if in.TotalUnits != nil {
		rec.TotalUnits = *in.TotalUnits
	}
	if in.ReservedUnits != nil {
		rec.ReservedUnits = *in.ReservedUnits
	}
	if in.Status != "" {
		rec.Status = Status(strings.ToUpper(string(in.Status)))
	}

	switch {
	case !rec.Status.Valid():
		return Record{}, fmt.Errorf("unknown status %q", in.Status)
	case rec.TotalUnits < 0 || rec.TotalUnits > MaxUnits:
		return Record{}, fmt.Errorf("total_units must be between 0 and %d", MaxUnits)
	case rec.ReservedUnits < 0 || rec.ReservedUnits > MaxUnits:
		return Record{}, fmt.Errorf("reserved_units must be between 0 and %d", MaxUnits)
	case rec.ReservedUnits > rec.TotalUnits:
		return Record{}, fmt.Errorf("reserved_units %d exceeds total_units %d", rec.ReservedUnits, rec.TotalUnits)
	}
	return rec, nil
}

// DayAvailability is one day of the public calendar view.
type DayAvailability struct {
	Date           string `json:"date"`
	Status         Status `json:"status"`
	TotalUnits     int    `json:"total_units"`
	ReservedUnits  int    `json:"reserved_units"`
	AvailableUnits int    `json:"available_units"`
}

func (r Record) View() DayAvailability {
	return DayAvailability{
		Date:           r.Day.Format(types.DayLayout),
		Status:         r.Status,
		TotalUnits:     r.TotalUnits,
		ReservedUnits:  r.ReservedUnits,
		AvailableUnits: r.AvailableUnits(),
	}
}
