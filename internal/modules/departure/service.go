// README: Departure service recalculates seat availability and runs the reservation lifecycle.
package departure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tourstay/internal/events"
	"tourstay/internal/types"
)

var (
	ErrNotFound            = errors.New("departure not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrBadRequest          = errors.New("bad request")
	ErrSoldOut             = errors.New("not enough seats available")
	ErrDepartureClosed     = errors.New("departure is cancelled or completed")
	ErrForbidden           = errors.New("reservation belongs to another caller")
)

type Service struct {
	repo      Repository
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, logger: logger, now: time.Now}
}

// Actor is the caller a reservation is read or changed for. Only the owner or an admin passes.
type Actor struct {
	UID   string
	Admin bool
}

func (a Actor) mayAccess(r *Reservation) bool {
	return a.Admin || r.OwnerUID == a.UID
}

type CreateDepartureCommand struct {
	TourID        types.ID
	DepartureDate time.Time
	SeatsTotal    int
}

type CreateReservationCommand struct {
	DepartureID types.ID
	OwnerUID    string
	Adults      *int
	Children    *int
	Infants     *int
	Status      ReservationStatus
}

type UpdateReservationCommand struct {
	ReservationID types.ID
	Actor         Actor
	Adults        *int
	Children      *int
	Infants       *int
}

type ChangeReservationStatusCommand struct {
	ReservationID types.ID
	Actor         Actor
	Status        ReservationStatus
}

// Get returns the cached capacity row without recomputing it.
func (s *Service) Get(ctx context.Context, id types.ID) (*Departure, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetReservation(ctx context.Context, id types.ID, actor Actor) (*Reservation, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.mayAccess(r) {
		return nil, ErrForbidden
	}
	return r, nil
}

// CreateDeparture opens a departure with every seat available.
func (s *Service) CreateDeparture(ctx context.Context, cmd CreateDepartureCommand) (*Departure, error) {
	switch {
	case cmd.TourID == "":
		return nil, fmt.Errorf("%w: tour_id is required", ErrBadRequest)
	case cmd.DepartureDate.IsZero():
		return nil, fmt.Errorf("%w: departure_date is required", ErrBadRequest)
	case cmd.SeatsTotal < 0:
		return nil, fmt.Errorf("%w: seats_total must not be negative", ErrBadRequest)
	}
	d := &Departure{
		ID:             types.NewID(),
		TourID:         cmd.TourID,
		DepartureDate:  types.Day(cmd.DepartureDate),
		SeatsTotal:     cmd.SeatsTotal,
		SeatsAvailable: cmd.SeatsTotal,
		Status:         DeriveStatus(StatusScheduled, cmd.SeatsTotal, cmd.SeatsTotal),
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateDeparture(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("departure created", "departure_id", d.ID, "tour_id", d.TourID, "seats_total", d.SeatsTotal)
	s.publishAvailability(ctx, Availability{
		DepartureID:    d.ID,
		SeatsAvailable: d.SeatsAvailable,
		SeatsTotal:     d.SeatsTotal,
		Status:         d.Status,
		LowThreshold:   LowThreshold(d.SeatsTotal),
	})
	return d, nil
}

// Recalculate refreshes seats_available and status of one departure. ErrNotFound means the
// departure is gone; callers treat it as a no-op.
func (s *Service) Recalculate(ctx context.Context, id types.ID) (Availability, error) {
	if id == "" {
		return Availability{}, ErrBadRequest
	}
	var out Availability
	err := s.repo.InTx(ctx, func(tx Tx) error {
		d, err := tx.LockDeparture(ctx, id)
		if err != nil {
			return err
		}
		out, err = s.recalculate(ctx, tx, d)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("recalculate skipped, departure not found", "departure_id", id)
		return Availability{}, ErrNotFound
	}
	if err != nil {
		return Availability{}, err
	}
	s.publishAvailability(ctx, out)
	return out, nil
}

// RecalculateMany refreshes several departures in one transaction. Missing ids are skipped.
func (s *Service) RecalculateMany(ctx context.Context, ids []types.ID) ([]Availability, error) {
	unique := make([]types.ID, 0, len(ids))
	seen := make(map[types.ID]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	// lock in a stable order so two batch recomputes cannot deadlock
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	var out []Availability
	err := s.repo.InTx(ctx, func(tx Tx) error {
		out = out[:0]
		locked := make([]*Departure, 0, len(unique))
		for _, id := range unique {
			d, err := tx.LockDeparture(ctx, id)
			if errors.Is(err, ErrNotFound) {
				s.logger.Info("recalculate skipped, departure not found", "departure_id", id)
				continue
			}
			if err != nil {
				return err
			}
			locked = append(locked, d)
		}
		lockedIDs := make([]types.ID, len(locked))
		for i, d := range locked {
			lockedIDs[i] = d.ID
		}
		booked, err := BookedGuests(ctx, tx, lockedIDs...)
		if err != nil {
			return fmt.Errorf("aggregate occupancy: %w", err)
		}
		for _, d := range locked {
			a, err := s.apply(ctx, tx, d, booked[d.ID])
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, a := range out {
		s.publishAvailability(ctx, a)
	}
	return out, nil
}

func (s *Service) CreateReservation(ctx context.Context, cmd CreateReservationCommand) (*Reservation, Availability, error) {
	if cmd.DepartureID == "" {
		return nil, Availability{}, fmt.Errorf("%w: departure_id is required", ErrBadRequest)
	}
	if cmd.Status == "" {
		cmd.Status = ReservationPending
	}
	if !cmd.Status.Valid() {
		return nil, Availability{}, fmt.Errorf("%w: unknown status %q", ErrBadRequest, cmd.Status)
	}
	if err := validateParty(cmd.Adults, cmd.Children, cmd.Infants); err != nil {
		return nil, Availability{}, err
	}

	now := s.now().UTC()
	r := &Reservation{
		ID:          types.NewID(),
		DepartureID: cmd.DepartureID,
		OwnerUID:    cmd.OwnerUID,
		Adults:      cmd.Adults,
		Children:    cmd.Children,
		Infants:     cmd.Infants,
		Status:      cmd.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var out Availability
	err := s.repo.InTx(ctx, func(tx Tx) error {
		d, err := tx.LockDeparture(ctx, cmd.DepartureID)
		if err != nil {
			return err
		}
		if d.Status.Terminal() {
			return ErrDepartureClosed
		}
		if r.Status.Active() {
			if err := ensureSeats(ctx, tx, d, r.Guests()); err != nil {
				return err
			}
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		out, err = s.recalculate(ctx, tx, d)
		return err
	})
	if err != nil {
		return nil, Availability{}, err
	}
	s.publishAvailability(ctx, out)
	return r, out, nil
}

func (s *Service) UpdateReservation(ctx context.Context, cmd UpdateReservationCommand) (*Reservation, Availability, error) {
	if cmd.ReservationID == "" {
		return nil, Availability{}, fmt.Errorf("%w: reservation id is required", ErrBadRequest)
	}
	if err := validateParty(cmd.Adults, cmd.Children, cmd.Infants); err != nil {
		return nil, Availability{}, err
	}
	return s.mutateReservation(ctx, cmd.ReservationID, cmd.Actor, func(r *Reservation) {
		r.Adults, r.Children, r.Infants = cmd.Adults, cmd.Children, cmd.Infants
	})
}

func (s *Service) ChangeReservationStatus(ctx context.Context, cmd ChangeReservationStatusCommand) (*Reservation, Availability, error) {
	if cmd.ReservationID == "" {
		return nil, Availability{}, fmt.Errorf("%w: reservation id is required", ErrBadRequest)
	}
	if !cmd.Status.Valid() {
		return nil, Availability{}, fmt.Errorf("%w: unknown status %q", ErrBadRequest, cmd.Status)
	}
	return s.mutateReservation(ctx, cmd.ReservationID, cmd.Actor, func(r *Reservation) {
		r.Status = cmd.Status
	})
}

// DeleteReservation removes a reservation and reverses its contribution to occupancy.
func (s *Service) DeleteReservation(ctx context.Context, id types.ID) (Availability, error) {
	if id == "" {
		return Availability{}, fmt.Errorf("%w: reservation id is required", ErrBadRequest)
	}
	current, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return Availability{}, err
	}
	var out Availability
	err = s.repo.InTx(ctx, func(tx Tx) error {
		d, err := tx.LockDeparture(ctx, current.DepartureID)
		if err != nil {
			return err
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return err
		}
		out, err = s.recalculate(ctx, tx, d)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		// the departure was deleted concurrently and took the reservation with it
		s.logger.Info("reservation delete skipped, departure not found", "reservation_id", id, "departure_id", current.DepartureID)
		return Availability{}, nil
	}
	if err != nil {
		return Availability{}, err
	}
	s.publishAvailability(ctx, out)
	return out, nil
}

// Cancel marks a departure CANCELLED; capacity math never touches it afterwards.
func (s *Service) Cancel(ctx context.Context, id types.ID) (*Departure, error) {
	return s.setTerminal(ctx, id, StatusCancelled)
}

func (s *Service) Complete(ctx context.Context, id types.ID) (*Departure, error) {
	return s.setTerminal(ctx, id, StatusCompleted)
}

func (s *Service) setTerminal(ctx context.Context, id types.ID, status Status) (*Departure, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	var out *Departure
	err := s.repo.InTx(ctx, func(tx Tx) error {
		d, err := tx.LockDeparture(ctx, id)
		if err != nil {
			return err
		}
		if d.Status.Terminal() {
			out = d
			return nil
		}
		now := s.now().UTC()
		if err := tx.SaveAvailability(ctx, id, d.SeatsAvailable, status, now); err != nil {
			return err
		}
		d.Status, d.UpdatedAt = status, now
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishAvailability(ctx, Availability{
		DepartureID:    out.ID,
		SeatsAvailable: out.SeatsAvailable,
		SeatsTotal:     out.SeatsTotal,
		Status:         out.Status,
		LowThreshold:   LowThreshold(out.SeatsTotal),
	})
	return out, nil
}

func (s *Service) mutateReservation(ctx context.Context, id types.ID, actor Actor, mutate func(r *Reservation)) (*Reservation, Availability, error) {
	current, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, Availability{}, err
	}
	// the owner never changes, so checking outside the transaction is enough
	if !actor.mayAccess(current) {
		return nil, Availability{}, ErrForbidden
	}
	var (
		updated *Reservation
		out     Availability
	)
	err = s.repo.InTx(ctx, func(tx Tx) error {
		// lock the departure before the reservation row, the same order CreateReservation uses
		d, err := tx.LockDeparture(ctx, current.DepartureID)
		if err != nil {
			return err
		}
		r, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		before := *r
		mutate(r)
		r.UpdatedAt = s.now().UTC()

		if r.Status.Active() && !d.Status.Terminal() {
			extra := r.Guests()
			if before.Status.Active() {
				extra -= before.Guests()
			}
			if extra > 0 {
				if err := ensureSeats(ctx, tx, d, extra); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		updated = r
		out, err = s.recalculate(ctx, tx, d)
		return err
	})
	if err != nil {
		return nil, Availability{}, err
	}
	s.publishAvailability(ctx, out)
	return updated, out, nil
}

// recalculate assumes d is locked by tx.
func (s *Service) recalculate(ctx context.Context, tx Tx, d *Departure) (Availability, error) {
	booked, err := BookedGuests(ctx, tx, d.ID)
	if err != nil {
		return Availability{}, fmt.Errorf("aggregate occupancy: %w", err)
	}
	return s.apply(ctx, tx, d, booked[d.ID])
}

func (s *Service) apply(ctx context.Context, tx Tx, d *Departure, booked int) (Availability, error) {
	a := Availability{
		DepartureID:    d.ID,
		SeatsTotal:     d.SeatsTotal,
		BookedGuests:   booked,
		LowThreshold:   LowThreshold(d.SeatsTotal),
		SeatsAvailable: d.SeatsAvailable,
		Status:         d.Status,
	}
	if d.Status.Terminal() {
		return a, nil
	}
	remaining := d.SeatsTotal - booked
	if remaining < 0 {
		remaining = 0
	}
	a.SeatsAvailable = remaining
	a.Status = DeriveStatus(d.Status, remaining, d.SeatsTotal)

	now := s.now().UTC()
	if err := tx.SaveAvailability(ctx, d.ID, a.SeatsAvailable, a.Status, now); err != nil {
		return Availability{}, err
	}
	d.SeatsAvailable, d.Status, d.UpdatedAt = a.SeatsAvailable, a.Status, now
	s.logger.Debug("departure availability recalculated",
		"departure_id", d.ID,
		"seats_available", a.SeatsAvailable,
		"seats_total", a.SeatsTotal,
		"booked_guests", a.BookedGuests,
		"status", a.Status,
	)
	return a, nil
}

func ensureSeats(ctx context.Context, tx Tx, d *Departure, guests int) error {
	booked, err := BookedGuests(ctx, tx, d.ID)
	if err != nil {
		return fmt.Errorf("aggregate occupancy: %w", err)
	}
	if booked[d.ID]+guests > d.SeatsTotal {
		return fmt.Errorf("%w: %d requested, %d left", ErrSoldOut, guests, max(d.SeatsTotal-booked[d.ID], 0))
	}
	return nil
}

func validateParty(adults, children, infants *int) error {
	counts := []struct {
		name string
		v    *int
	}{{"adults", adults}, {"children", children}, {"infants", infants}}
	for _, c := range counts {
		if c.v != nil && *c.v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrBadRequest, c.name)
		}
	}
	if CountGuests(adults, children, infants) == 0 {
		return fmt.Errorf("%w: reservation needs at least one guest", ErrBadRequest)
	}
	return nil
}

func (s *Service) publishAvailability(ctx context.Context, a Availability) {
	if err := s.publisher.Publish(ctx, events.New(events.TypeDepartureAvailabilityChanged, string(a.DepartureID), a)); err != nil {
		s.logger.Warn("publish availability event failed", "departure_id", a.DepartureID, "error", err)
	}
}
