// README: Room calendar store backed by PostgreSQL (one row per non-default room-night).
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tourstay/internal/types"
)

type Reader interface {
	// ListRange returns stored rows for room within [from, to] inclusive, ordered by day.
	ListRange(ctx context.Context, room types.ID, from, to time.Time) ([]Record, error)
}

// Tx is the set of calendar queries available while the room row is locked.
type Tx interface {
	Reader
	LockRoom(ctx context.Context, room types.ID) error
	DeleteRange(ctx context.Context, room types.ID, from, to time.Time) (int, error)
	DeleteDay(ctx context.Context, room types.ID, day time.Time) (int, error)
	Upsert(ctx context.Context, rec Record) error
}

type Repository interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

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

func (s *Store) ListRange(ctx context.Context, room types.ID, from, to time.Time) ([]Record, error) {
	return listRange(ctx, s.db, room, from, to)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listRange(ctx context.Context, q querier, room types.ID, from, to time.Time) ([]Record, error) {
	rows, err := q.Query(ctx, `
        SELECT room_id, day, total_units, reserved_units, status, updated_at
        FROM room_availability
        WHERE room_id = $1 AND day BETWEEN $2 AND $3
        ORDER BY day`,
		string(room), types.Day(from), types.Day(to),
	)
	if err != nil {
		return nil, fmt.Errorf("query room calendar: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.RoomID, &r.Day, &r.TotalUnits, &r.ReservedUnits, &r.Status, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan room night: %w", err)
		}
		r.Day = types.Day(r.Day)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate room calendar: %w", err)
	}
	return out, nil
}

type pgTx struct {
	tx pgx.Tx
}

// LockRoom takes the room-level lock that serializes batch writes with holds.
func (q *pgTx) LockRoom(ctx context.Context, room types.ID) error {
	var id string
	err := q.tx.QueryRow(ctx, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, string(room)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("lock room: %w", err)
	}
	return nil
}

func (q *pgTx) ListRange(ctx context.Context, room types.ID, from, to time.Time) ([]Record, error) {
	return listRange(ctx, q.tx, room, from, to)
}

func (q *pgTx) DeleteRange(ctx context.Context, room types.ID, from, to time.Time) (int, error) {
	tag, err := q.tx.Exec(ctx, `
        DELETE FROM room_availability
        WHERE room_id = $1 AND day BETWEEN $2 AND $3`,
		string(room), types.Day(from), types.Day(to),
	)
	if err != nil {
		return 0, fmt.Errorf("delete room range: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (q *pgTx) DeleteDay(ctx context.Context, room types.ID, day time.Time) (int, error) {
	tag, err := q.tx.Exec(ctx, `DELETE FROM room_availability WHERE room_id = $1 AND day = $2`, string(room), types.Day(day))
	if err != nil {
		return 0, fmt.Errorf("delete room night: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (q *pgTx) Upsert(ctx context.Context, rec Record) error {
	_, err := q.tx.Exec(ctx, `
        INSERT INTO room_availability (room_id, day, total_units, reserved_units, status, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (room_id, day) DO UPDATE
        SET total_units = EXCLUDED.total_units,
            reserved_units = EXCLUDED.reserved_units,
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at`,
		string(rec.RoomID), types.Day(rec.Day), rec.TotalUnits, rec.ReservedUnits, string(rec.Status), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert room night: %w", err)
	}
	return nil
}
