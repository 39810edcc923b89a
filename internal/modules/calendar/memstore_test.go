package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"tourstay/internal/types"
)

type memRepo struct {
	mu     sync.Mutex
	rooms  map[types.ID]bool
	nights map[string]Record
	// failUpsertAfter makes the n-th upsert of a transaction fail when > 0.
	failUpsertAfter int
}

func newMemRepo(rooms ...types.ID) *memRepo {
	m := &memRepo{rooms: map[types.ID]bool{}, nights: map[string]Record{}}
	for _, r := range rooms {
		m.rooms[r] = true
	}
	return m
}

func nightKey(room types.ID, day time.Time) string {
	return string(room) + "/" + day.Format(types.DayLayout)
}

func (m *memRepo) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{repo: m, nights: map[string]Record{}}
	for k, v := range m.nights {
		tx.nights[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.nights = tx.nights
	return nil
}

func (m *memRepo) ListRange(_ context.Context, room types.ID, from, to time.Time) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return collect(m.nights, room, from, to), nil
}

func (m *memRepo) stored(room types.ID, day string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.nights[string(room)+"/"+day]
	return r, ok
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nights)
}

func collect(nights map[string]Record, room types.ID, from, to time.Time) []Record {
	var out []Record
	for _, r := range nights {
		if r.RoomID == room && !r.Day.Before(types.Day(from)) && !r.Day.After(types.Day(to)) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

type memTx struct {
	repo    *memRepo
	nights  map[string]Record
	upserts int
}

func (t *memTx) LockRoom(_ context.Context, room types.ID) error {
	if !t.repo.rooms[room] {
		return ErrRoomNotFound
	}
	return nil
}

func (t *memTx) ListRange(_ context.Context, room types.ID, from, to time.Time) ([]Record, error) {
	return collect(t.nights, room, from, to), nil
}

func (t *memTx) DeleteRange(_ context.Context, room types.ID, from, to time.Time) (int, error) {
	n := 0
	for _, r := range collect(t.nights, room, from, to) {
		delete(t.nights, nightKey(room, r.Day))
		n++
	}
	return n, nil
}

func (t *memTx) DeleteDay(_ context.Context, room types.ID, day time.Time) (int, error) {
	k := nightKey(room, day)
	if _, ok := t.nights[k]; !ok {
		return 0, nil
	}
	delete(t.nights, k)
	return 1, nil
}

func (t *memTx) Upsert(_ context.Context, rec Record) error {
	t.upserts++
	if t.repo.failUpsertAfter > 0 && t.upserts >= t.repo.failUpsertAfter {
		return errUpsertFailed
	}
	t.nights[nightKey(rec.RoomID, rec.Day)] = rec
	return nil
}
