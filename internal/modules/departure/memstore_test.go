package departure

import (
	"context"
	"errors"
	"sync"
	"time"

	"tourstay/internal/types"
)

// memRepo serializes transactions on one mutex and discards the working copy on error,
// which models the row lock plus rollback of the Postgres store.
type memRepo struct {
	mu           sync.Mutex
	departures   map[types.ID]Departure
	reservations map[types.ID]Reservation
	saveErr      error
	saves        int
}

func newMemRepo() *memRepo {
	return &memRepo{
		departures:   map[types.ID]Departure{},
		reservations: map[types.ID]Reservation{},
	}
}

func (m *memRepo) addDeparture(id types.ID, seats int, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departures[id] = Departure{ID: id, TourID: "tour-1", SeatsTotal: seats, SeatsAvailable: seats, Status: status}
}

func (m *memRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{repo: m, departures: map[types.ID]Departure{}, reservations: map[types.ID]Reservation{}}
	for k, v := range m.departures {
		tx.departures[k] = v
	}
	for k, v := range m.reservations {
		tx.reservations[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.departures, m.reservations = tx.departures, tx.reservations
	m.saves += tx.saves
	return nil
}

func (m *memRepo) Get(_ context.Context, id types.ID) (*Departure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.departures[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *memRepo) CreateDeparture(_ context.Context, d *Departure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.departures[d.ID]; ok {
		return errors.New("duplicate departure id")
	}
	m.departures[d.ID] = *d
	return nil
}

func (m *memRepo) GetReservation(_ context.Context, id types.ID) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	return &r, nil
}

type memTx struct {
	repo         *memRepo
	departures   map[types.ID]Departure
	reservations map[types.ID]Reservation
	saves        int
}

func (t *memTx) LockDeparture(_ context.Context, id types.ID) (*Departure, error) {
	d, ok := t.departures[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (t *memTx) FindActiveReservations(_ context.Context, ids []types.ID) ([]ReservationLine, error) {
	want := map[types.ID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var lines []ReservationLine
	for _, r := range t.reservations {
		if want[r.DepartureID] && r.Status.Active() {
			lines = append(lines, ReservationLine{DepartureID: r.DepartureID, Adults: r.Adults, Children: r.Children, Infants: r.Infants})
		}
	}
	return lines, nil
}

func (t *memTx) SaveAvailability(_ context.Context, id types.ID, seats int, status Status, at time.Time) error {
	if t.repo.saveErr != nil {
		return t.repo.saveErr
	}
	d, ok := t.departures[id]
	if !ok {
		return ErrNotFound
	}
	d.SeatsAvailable, d.Status, d.UpdatedAt = seats, status, at
	t.departures[id] = d
	t.saves++
	return nil
}

func (t *memTx) GetReservation(_ context.Context, id types.ID) (*Reservation, error) {
	r, ok := t.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	return &r, nil
}

func (t *memTx) InsertReservation(_ context.Context, r *Reservation) error {
	t.reservations[r.ID] = *r
	return nil
}

func (t *memTx) UpdateReservation(_ context.Context, r *Reservation) error {
	if _, ok := t.reservations[r.ID]; !ok {
		return ErrReservationNotFound
	}
	t.reservations[r.ID] = *r
	return nil
}

func (t *memTx) DeleteReservation(_ context.Context, id types.ID) error {
	if _, ok := t.reservations[id]; !ok {
		return ErrReservationNotFound
	}
	delete(t.reservations, id)
	return nil
}
