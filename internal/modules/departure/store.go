// README: Departure and reservation store backed by PostgreSQL.
package departure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tourstay/internal/types"
)

// Tx is the set of queries available inside one departure transaction.
type Tx interface {
	ReservationFinder
	// LockDeparture reads the capacity row with SELECT ... FOR UPDATE.
	LockDeparture(ctx context.Context, id types.ID) (*Departure, error)
	SaveAvailability(ctx context.Context, id types.ID, seatsAvailable int, status Status, at time.Time) error
	GetReservation(ctx context.Context, id types.ID) (*Reservation, error)
	InsertReservation(ctx context.Context, r *Reservation) error
	UpdateReservation(ctx context.Context, r *Reservation) error
	DeleteReservation(ctx context.Context, id types.ID) error
}

type Repository interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Get(ctx context.Context, id types.ID) (*Departure, error)
	GetReservation(ctx context.Context, id types.ID) (*Reservation, error)
	CreateDeparture(ctx context.Context, d *Departure) error
}

// SQLSTATE raised when tour_id does not reference a tour.
const foreignKeyViolation = "23503"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// InTx runs fn at READ COMMITTED; callers serialize on the departure row lock, and every
// statement after the lock sees the latest committed reservations.
func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Departure, error) {
	return scanDeparture(s.db.QueryRow(ctx, `
        SELECT id, tour_id, departure_date, seats_total, seats_available, status, updated_at
        FROM departures
        WHERE id = $1`, string(id),
	))
}

func (s *Store) GetReservation(ctx context.Context, id types.ID) (*Reservation, error) {
	return scanReservation(s.db.QueryRow(ctx, selectReservation+` WHERE id = $1`, string(id)))
}

// CreateDeparture inserts a departure with all seats available. An unknown tour is ErrBadRequest.
func (s *Store) CreateDeparture(ctx context.Context, d *Departure) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO departures (id, tour_id, departure_date, seats_total, seats_available, status, updated_at)
        VALUES ($1, $2, $3, $4, $4, $5, $6)`,
		string(d.ID), string(d.TourID), d.DepartureDate, d.SeatsTotal, string(d.Status), d.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: unknown tour %s", ErrBadRequest, d.TourID)
	}
	if err != nil {
		return fmt.Errorf("insert departure: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (q *pgTx) LockDeparture(ctx context.Context, id types.ID) (*Departure, error) {
	return scanDeparture(q.tx.QueryRow(ctx, `
        SELECT id, tour_id, departure_date, seats_total, seats_available, status, updated_at
        FROM departures
        WHERE id = $1
        FOR UPDATE`, string(id),
	))
}

func (q *pgTx) FindActiveReservations(ctx context.Context, departureIDs []types.ID) ([]ReservationLine, error) {
	ids := make([]string, len(departureIDs))
	for i, id := range departureIDs {
		ids[i] = string(id)
	}
	statuses := make([]string, len(ActiveReservationStatuses))
	for i, st := range ActiveReservationStatuses {
		statuses[i] = string(st)
	}
	rows, err := q.tx.Query(ctx, `
        SELECT departure_id, adults, children, infants
        FROM reservations
        WHERE departure_id = ANY($1) AND status = ANY($2)`, ids, statuses,
	)
	if err != nil {
		return nil, fmt.Errorf("query active reservations: %w", err)
	}
	defer rows.Close()

	var lines []ReservationLine
	for rows.Next() {
		var l ReservationLine
		if err := rows.Scan(&l.DepartureID, &l.Adults, &l.Children, &l.Infants); err != nil {
			return nil, fmt.Errorf("scan reservation line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation lines: %w", err)
	}
	return lines, nil
}

func (q *pgTx) SaveAvailability(ctx context.Context, id types.ID, seatsAvailable int, status Status, at time.Time) error {
	tag, err := q.tx.Exec(ctx, `
        UPDATE departures
        SET seats_available = $1,
            status = $2,
            updated_at = $3
        WHERE id = $4`,
		seatsAvailable, string(status), at, string(id),
	)
	if err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *pgTx) GetReservation(ctx context.Context, id types.ID) (*Reservation, error) {
	return scanReservation(q.tx.QueryRow(ctx, selectReservation+` WHERE id = $1 FOR UPDATE`, string(id)))
}

func (q *pgTx) InsertReservation(ctx context.Context, r *Reservation) error {
	_, err := q.tx.Exec(ctx, `
        INSERT INTO reservations (id, departure_id, owner_uid, adults, children, infants, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(r.ID), string(r.DepartureID), r.OwnerUID, r.Adults, r.Children, r.Infants, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (q *pgTx) UpdateReservation(ctx context.Context, r *Reservation) error {
	tag, err := q.tx.Exec(ctx, `
        UPDATE reservations
        SET adults = $1, children = $2, infants = $3, status = $4, updated_at = $5
        WHERE id = $6`,
		r.Adults, r.Children, r.Infants, string(r.Status), r.UpdatedAt, string(r.ID),
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (q *pgTx) DeleteReservation(ctx context.Context, id types.ID) error {
	tag, err := q.tx.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}

const selectReservation = `
        SELECT id, departure_id, owner_uid, adults, children, infants, status, created_at, updated_at
        FROM reservations`

func scanDeparture(row pgx.Row) (*Departure, error) {
	var d Departure
	err := row.Scan(&d.ID, &d.TourID, &d.DepartureDate, &d.SeatsTotal, &d.SeatsAvailable, &d.Status, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan departure: %w", err)
	}
	return &d, nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	err := row.Scan(&r.ID, &r.DepartureID, &r.OwnerUID, &r.Adults, &r.Children, &r.Infants, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	return &r, nil
}
