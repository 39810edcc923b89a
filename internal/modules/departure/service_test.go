// README: Departure service tests (recompute scenarios, lifecycle, oversell protection).
package departure

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tourstay/internal/events"
	"tourstay/internal/types"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newTestService(t *testing.T) (*Service, *memRepo, *recordingPublisher) {
	t.Helper()
	repo := newMemRepo()
	pub := &recordingPublisher{}
	return NewService(repo, pub, nil), repo, pub
}

// guest owns every reservation mustBook creates.
var guest = Actor{UID: "guest-1"}

func mustBook(t *testing.T, svc *Service, departureID types.ID, adults int) *Reservation {
	t.Helper()
	r, _, err := svc.CreateReservation(context.Background(), CreateReservationCommand{
		DepartureID: departureID,
		OwnerUID:    guest.UID,
		Adults:      intp(adults),
		Status:      ReservationConfirmed,
	})
	if err != nil {
		t.Fatalf("book %d guests: %v", adults, err)
	}
	return r
}

func assertAvailability(t *testing.T, svc *Service, id types.ID, seats int, status Status) {
	t.Helper()
	d, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get departure: %v", err)
	}
	if d.SeatsAvailable != seats || d.Status != status {
		t.Fatalf("departure %s: got (%d, %s), want (%d, %s)", id, d.SeatsAvailable, d.Status, seats, status)
	}
}

func TestTwentySeatDepartureScenario(t *testing.T) {
	svc, repo, pub := newTestService(t)
	repo.addDeparture("dep-20", 20, StatusScheduled)

	mustBook(t, svc, "dep-20", 5)
	mustBook(t, svc, "dep-20", 4)
	mustBook(t, svc, "dep-20", 3)
	assertAvailability(t, svc, "dep-20", 8, StatusScheduled)

	mustBook(t, svc, "dep-20", 5)
	assertAvailability(t, svc, "dep-20", 3, StatusLowAvailability)

	mustBook(t, svc, "dep-20", 3)
	assertAvailability(t, svc, "dep-20", 0, StatusSoldOut)

	_, _, err := svc.CreateReservation(context.Background(), CreateReservationCommand{
		DepartureID: "dep-20",
		Adults:      intp(1),
	})
	if !errors.Is(err, ErrSoldOut) {
		t.Fatalf("expected ErrSoldOut, got %v", err)
	}
	assertAvailability(t, svc, "dep-20", 0, StatusSoldOut)

	if pub.count() != 5 {
		t.Errorf("expected 5 availability events, got %d", pub.count())
	}
}

func TestRecalculateIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.addDeparture("dep-1", 10, StatusScheduled)
	repo.reservations["r1"] = Reservation{ID: "r1", DepartureID: "dep-1", Adults: intp(3), Children: intp(2), Status: ReservationConfirmed}
	repo.reservations["r2"] = Reservation{ID: "r2", DepartureID: "dep-1", Adults: intp(4), Status: ReservationCancelled}
	repo.reservations["r3"] = Reservation{ID: "r3", DepartureID: "dep-1", Adults: intp(1), Status: ReservationPending}

	ctx := context.Background()
	first, err := svc.Recalculate(ctx, "dep-1")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	second, err := svc.Recalculate(ctx, "dep-1")
	if err != nil {
		t.Fatalf("recalculate again: %v", err)
	}
	if first != second {
		t.Fatalf("recalculate not idempotent: %+v vs %+v", first, second)
	}
	if first.BookedGuests != 6 || first.SeatsAvailable != 4 || first.Status != StatusScheduled {
		t.Fatalf("unexpected availability: %+v", first)
	}
	if first.LowThreshold != 2 {
		t.Errorf("low threshold = %d, want 2", first.LowThreshold)
	}
}

func TestRecalculateOverbookedFloorsAtZero(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.addDeparture("dep-1", 4, StatusScheduled)
	repo.reservations["r1"] = Reservation{ID: "r1", DepartureID: "dep-1", Adults: intp(6), Status: ReservationConfirmed}

	a, err := svc.Recalculate(context.Background(), "dep-1")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if a.SeatsAvailable != 0 || a.Status != StatusSoldOut || a.BookedGuests != 6 {
		t.Fatalf("unexpected availability: %+v", a)
	}
}

func TestRecalculateNotFound(t *testing.T) {
	svc, _, pub := newTestService(t)
	if _, err := svc.Recalculate(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if pub.count() != 0 {
		t.Errorf("no event expected for missing departure")
	}
}

func TestTerminalDepartureIsSticky(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.addDeparture("dep-1", 10, StatusScheduled)
	mustBook(t, svc, "dep-1", 9)
	assertAvailability(t, svc, "dep-1", 1, StatusLowAvailability)

	ctx := context.Background()
	if _, err := svc.Cancel(ctx, "dep-1"); err != nil {
		t.Fatalf("cancel departure: %v", err)
	}
	a, err := svc.Recalculate(ctx, "dep-1")
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if a.Status != StatusCancelled || a.SeatsAvailable != 1 {
		t.Fatalf("terminal departure changed by recompute: %+v", a)
	}
	if _, _, err := svc.CreateReservation(ctx, CreateReservationCommand{DepartureID: "dep-1", Adults: intp(1)}); !errors.Is(err, ErrDepartureClosed) {
		t.Fatalf("expected ErrDepartureClosed, got %v", err)
	}
	if _, err := svc.Complete(ctx, "dep-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	assertAvailability(t, svc, "dep-1", 1, StatusCancelled)
}

func TestReservationLifecycleRecomputes(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.addDeparture("dep-1", 10, StatusScheduled)
	ctx := context.Background()

	r := mustBook(t, svc, "dep-1", 6)
	assertAvailability(t, svc, "dep-1", 4, StatusScheduled)

	if _, _, err := svc.UpdateReservation(ctx, UpdateReservationCommand{ReservationID: r.ID, Actor: guest, Adults: intp(7), Children: intp(1)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertAvailability(t, svc, "dep-1", 2, StatusLowAvailability)

	if _, _, err := svc.UpdateReservation(ctx, UpdateReservationCommand{ReservationID: r.ID, Actor: guest, Adults: intp(11)}); !errors.Is(err, ErrSoldOut) {
		t.Fatalf("expected ErrSoldOut on growth beyond capacity, got %v", err)
	}
	assertAvailability(t, svc, "dep-1", 2, StatusLowAvailability)

	if _, _, err := svc.ChangeReservationStatus(ctx, ChangeReservationStatusCommand{ReservationID: r.ID, Actor: guest, Status: ReservationCancelled}); err != nil {
		t.Fatalf("cancel reservation: %v", err)
	}
	assertAvailability(t, svc, "dep-1", 10, StatusScheduled)

	other := mustBook(t, svc, "dep-1", 5)
	if _, _, err := svc.ChangeReservationStatus(ctx, ChangeReservationStatusCommand{ReservationID: r.ID, Actor: guest, Status: ReservationConfirmed}); !errors.Is(err, ErrSoldOut) {
		t.Fatalf("expected ErrSoldOut when reactivating, got %v", err)
	}

	if _, err := svc.DeleteReservation(ctx, other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertAvailability(t, svc, "dep-1", 10, StatusScheduled)
	if _, err := svc.GetReservation(ctx, other.ID, guest); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("expected deleted reservation to be gone, got %v", err)
	}
}

func TestReservationOwnership(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.addDeparture("dep-1", 10, StatusScheduled)
	ctx := context.Background()
	r := mustBook(t, svc, "dep-1", 4)
	stranger := Actor{UID: "guest-2"}

	if _, err := svc.GetReservation(ctx, r.ID, stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("read by another caller: expected ErrForbidden, got %v", err)
	}
	if _, _, err := svc.ChangeReservationStatus(ctx, ChangeReservationStatusCommand{ReservationID: r.ID, Actor: stranger, Status: ReservationCancelled}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cancel by another caller: expected ErrForbidden, got %v", err)
	}
	if _, _, err := svc.UpdateReservation(ctx, UpdateReservationCommand{ReservationID: r.ID, Actor: stranger, Adults: intp(1)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("update by another caller: expected ErrForbidden, got %v", err)
	}
	assertAvailability(t, svc, "dep-1", 6, StatusScheduled)

	got, err := svc.GetReservation(ctx, r.ID, guest)
	if err != nil || got.OwnerUID != guest.UID {
		t.Fatalf("owner read: %+v %v", got, err)
	}
	admin := Actor{UID: "ops-1", Admin: true}
	if _, _, err := svc.ChangeReservationStatus(ctx, ChangeReservationStatusCommand{ReservationID: r.ID, Actor: admin, Status: ReservationCancelled}); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	assertAvailability(t, svc, "dep-1", 10, StatusScheduled)
}

func TestCreateDeparture(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()
	date, _ := types.ParseDay("2026-09-01")

	bad := []CreateDepartureCommand{
		{DepartureDate: date, SeatsTotal: 10},
		{TourID: "tour-1", SeatsTotal: 10},
		{TourID: "tour-1", DepartureDate: date, SeatsTotal: -1},
	}
	for i, cmd := range bad {
		if _, err := svc.CreateDeparture(ctx, cmd); !errors.Is(err, ErrBadRequest) {
			t.Errorf("case %d: expected ErrBadRequest, got %v", i, err)
		}
	}

	d, err := svc.CreateDeparture(ctx, CreateDepartureCommand{TourID: "tour-1", DepartureDate: date, SeatsTotal: 12})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assertAvailability(t, svc, d.ID, 12, StatusScheduled)

	empty, err := svc.CreateDeparture(ctx, CreateDepartureCommand{TourID: "tour-1", DepartureDate: date})
	if err != nil {
		t.Fatalf("create empty: %v", err)
	}
	assertAvailability(t, svc, empty.ID, 0, StatusSoldOut)
	if pub.count() != 2 {
		t.Fatalf("expected 2 events, got %d", pub.count())
	}
}

func TestCreateReservationValidation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.addDeparture("dep-1", 10, StatusScheduled)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateReservationCommand
	}{
		{"missing departure", CreateReservationCommand{Adults: intp(1)}},
		{"no guests", CreateReservationCommand{DepartureID: "dep-1"}},
		{"negative children", CreateReservationCommand{DepartureID: "dep-1", Adults: intp(2), Children: intp(-1)}},
		{"unknown status", CreateReservationCommand{DepartureID: "dep-1", Adults: intp(1), Status: "HOLD"}},
	}
	for _, tc := range cases {
		if _, _, err := svc.CreateReservation(ctx, tc.cmd); !errors.Is(err, ErrBadRequest) {
			t.Errorf("%s: expected ErrBadRequest, got %v", tc.name, err)
		}
	}
	if _, _, err := svc.CreateReservation(ctx, CreateReservationCommand{DepartureID: "nope", Adults: intp(1)}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown departure, got %v", err)
	}
}

func TestInactiveReservationDoesNotConsumeSeats(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.addDeparture("dep-1", 2, StatusScheduled)
	_, a, err := svc.CreateReservation(context.Background(), CreateReservationCommand{
		DepartureID: "dep-1",
		Adults:      intp(5),
		Status:      ReservationRejected,
	})
	if err != nil {
		t.Fatalf("create rejected reservation: %v", err)
	}
	if a.SeatsAvailable != 2 || a.BookedGuests != 0 {
		t.Fatalf("rejected reservation consumed seats: %+v", a)
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	svc, repo, pub := newTestService(t)
	repo.addDeparture("dep-1", 10, StatusScheduled)
	boom := errors.New("disk full")
	repo.saveErr = boom

	if _, _, err := svc.CreateReservation(context.Background(), CreateReservationCommand{DepartureID: "dep-1", Adults: intp(2)}); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if len(repo.reservations) != 0 {
		t.Fatalf("reservation survived a rolled back transaction")
	}
	if pub.count() != 0 {
		t.Fatalf("event published for a rolled back transaction")
	}
}

func TestRecalculateMany(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.addDeparture("a", 10, StatusScheduled)
	repo.addDeparture("b", 5, StatusScheduled)
	repo.addDeparture("c", 5, StatusCompleted)
	repo.reservations["r1"] = Reservation{ID: "r1", DepartureID: "a", Adults: intp(8), Status: ReservationConfirmed}
	repo.reservations["r2"] = Reservation{ID: "r2", DepartureID: "b", Adults: intp(5), Status: ReservationPending}
	repo.reservations["r3"] = Reservation{ID: "r3", DepartureID: "c", Adults: intp(5), Status: ReservationCompleted}

	out, err := svc.RecalculateMany(context.Background(), []types.ID{"b", "a", "missing", "a", "c"})
	if err != nil {
		t.Fatalf("recalculate many: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	got := map[types.ID]Availability{}
	for _, a := range out {
		got[a.DepartureID] = a
	}
	if got["a"].Status != StatusLowAvailability || got["a"].SeatsAvailable != 2 {
		t.Errorf("a: %+v", got["a"])
	}
	if got["b"].Status != StatusSoldOut || got["b"].SeatsAvailable != 0 {
		t.Errorf("b: %+v", got["b"])
	}
	if got["c"].Status != StatusCompleted || got["c"].SeatsAvailable != 5 {
		t.Errorf("c should be untouched: %+v", got["c"])
	}
}

func TestConcurrentBookingsNeverOversell(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.addDeparture("dep-1", 20, StatusScheduled)

	const attempts = 35
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := svc.CreateReservation(context.Background(), CreateReservationCommand{DepartureID: "dep-1", Adults: intp(1)})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrSoldOut) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 20 {
		t.Fatalf("expected exactly 20 successful bookings, got %d", success)
	}
	assertAvailability(t, svc, "dep-1", 0, StatusSoldOut)
}
