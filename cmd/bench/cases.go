// README: Bench cases covering env checks, public reads, auth gates and the concurrent oversell probe.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tourstay/internal/infra"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"

	homestayBasePrice = 2400
)

type Runner struct {
	cfg     Config
	httpc   *http.Client
	db      *pgxpool.Pool
	redis   *redis.Client
	fixture *fixture
}

// fixture is seeded straight into Postgres so the probe does not depend on admin routes.
type fixture struct {
	departureID string
	seats       int
	homestayID  string
	roomID      string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: apply (optional)", Run: applyMigrations},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", "", nil, http.StatusOK, nil)
		}},
		{Name: "Fixture: seed departure, homestay and room", Run: seedFixture},

		// Departures
		{Name: "Departure: availability read", Run: withFixture(func(ctx context.Context, r *Runner, f *fixture) Result {
			var body struct {
				SeatsAvailable int    `json:"seats_available"`
				Status         string `json:"status"`
			}
			res := r.expect(ctx, http.MethodGet, "/api/departures/"+f.departureID+"/availability", "", nil, http.StatusOK, &body)
			if res.Status == statusPass && body.SeatsAvailable != f.seats {
				return Result{Status: statusFail, Note: fmt.Sprintf("seats_available=%d want %d", body.SeatsAvailable, f.seats)}
			}
			return res
		})},
		{Name: "Departure: unknown id -> 404", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/api/departures/"+uuid.NewString()+"/availability", "", nil, http.StatusNotFound, nil)
		}},
		{Name: "Reservation: anonymous write -> 401", Run: withFixture(func(ctx context.Context, r *Runner, f *fixture) Result {
			return r.expect(ctx, http.MethodPost, "/api/reservations", "", map[string]any{"departure_id": f.departureID, "adults": 1}, http.StatusUnauthorized, nil)
		})},
		{Name: "Reservation: concurrent bookings never oversell", Run: withFixture(oversellProbe)},
		{Name: "Consistency: seats_available matches active reservations", Run: withFixture(checkSeatConsistency)},

		// Room calendar
		{Name: "Calendar: 3-day read is gap-free", Run: withFixture(func(ctx context.Context, r *Runner, f *fixture) Result {
			start := time.Now().UTC().AddDate(0, 0, 30)
			path := fmt.Sprintf("/api/rooms/%s/availability?start=%s&end=%s", f.roomID, start.Format("2006-01-02"), start.AddDate(0, 0, 2).Format("2006-01-02"))
			var body struct {
				Days []struct {
					Date   string `json:"date"`
					Status string `json:"status"`
				} `json:"days"`
			}
			res := r.expect(ctx, http.MethodGet, path, "", nil, http.StatusOK, &body)
			if res.Status == statusPass && (len(body.Days) != 3 || body.Days[0].Status != "OPEN") {
				return Result{Status: statusFail, Note: fmt.Sprintf("days=%d", len(body.Days))}
			}
			return res
		})},
		{Name: "Calendar: admin write without token -> 401", Run: withFixture(func(ctx context.Context, r *Runner, f *fixture) Result {
			return r.expect(ctx, http.MethodPut, "/api/admin/rooms/"+f.roomID+"/availability", "", map[string]any{"entries": []any{}}, http.StatusUnauthorized, nil)
		})},

		// Pricing
		{Name: "Quote: two nights at base price", Run: withFixture(func(ctx context.Context, r *Runner, f *fixture) Result {
			checkIn := time.Now().UTC().AddDate(0, 0, 60)
			var body struct {
				Nights int   `json:"nights"`
				Total  int64 `json:"total"`
			}
			res := r.expect(ctx, http.MethodPost, "/api/quotes", "", map[string]any{
				"homestay_id": f.homestayID,
				"check_in":    checkIn.Format("2006-01-02"),
				"check_out":   checkIn.AddDate(0, 0, 2).Format("2006-01-02"),
				"guests":      2,
			}, http.StatusOK, &body)
			if res.Status == statusPass && (body.Nights != 2 || body.Total != 2*homestayBasePrice) {
				return Result{Status: statusFail, Note: fmt.Sprintf("nights=%d total=%d", body.Nights, body.Total)}
			}
			return res
		})},
		{Name: "Quote: check_out before check_in -> 400", Run: withFixture(func(ctx context.Context, r *Runner, f *fixture) Result {
			return r.expect(ctx, http.MethodPost, "/api/quotes", "", map[string]any{
				"homestay_id": f.homestayID,
				"check_in":    "2026-05-03",
				"check_out":   "2026-05-01",
				"guests":      1,
			}, http.StatusBadRequest, nil)
		})},

		// Performance
		{Name: "Perf: departure availability read throughput", Run: withFixture(func(ctx context.Context, r *Runner, f *fixture) Result {
			return perfLoad(ctx, r, http.MethodGet, r.cfg.BaseURL+"/api/departures/"+f.departureID+"/availability")
		})},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusFail, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func applyMigrations(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	if err := infra.ApplyMigrations(ctx, r.db, r.cfg.MigrationDir); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationDir)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("%d tables", len(tables))}
}

func seedFixture(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	suffix := uuid.NewString()[:8]
	f := &fixture{
		departureID: "bench-dep-" + suffix,
		seats:       max(r.cfg.Concurrency/2, 1),
		homestayID:  "bench-hs-" + suffix,
		roomID:      "bench-room-" + suffix,
	}
	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO tours (id, name) VALUES ($1, 'bench tour')`, []any{"bench-tour-" + suffix}},
		{`INSERT INTO departures (id, tour_id, departure_date, seats_total, seats_available, status)
            VALUES ($1, $2, CURRENT_DATE + 30, $3, $3, 'SCHEDULED')`, []any{f.departureID, "bench-tour-" + suffix, f.seats}},
		{`INSERT INTO homestays (id, name, base_price) VALUES ($1, 'bench homestay', $2)`, []any{f.homestayID, homestayBasePrice}},
		{`INSERT INTO rooms (id, homestay_id, name) VALUES ($1, $2, 'bench room')`, []any{f.roomID, f.homestayID}},
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(ctx, s.sql, s.args...); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
	}
	r.fixture = f
	return Result{Status: statusPass, Note: fmt.Sprintf("departure=%s seats=%d", f.departureID, f.seats)}
}

func withFixture(fn func(ctx context.Context, r *Runner, f *fixture) Result) func(ctx context.Context, r *Runner) Result {
	return func(ctx context.Context, r *Runner) Result {
		if r.fixture == nil {
			return Result{Status: statusSkip, Note: "fixture not seeded"}
		}
		return fn(ctx, r, r.fixture)
	}
}

// oversellProbe books one adult per client against a departure seeded with half as many seats.
func oversellProbe(ctx context.Context, r *Runner, f *fixture) Result {
	if r.cfg.Token == "" {
		return Result{Status: statusSkip, Note: "TOURSTAY_BENCH_TOKEN not set"}
	}
	payload, _ := json.Marshal(map[string]any{"departure_id": f.departureID, "adults": 1, "status": "CONFIRMED"})

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	start := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := r.send(ctx, http.MethodPost, "/api/reservations", r.cfg.Token, payload, nil)
			if err != nil {
				code = -1
			}
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	latency := time.Since(start)

	note := formatCodes(codes)
	if codes[http.StatusCreated] > f.seats {
		return Result{Status: statusFail, Latency: latency, Note: "oversold: " + note}
	}
	if codes[http.StatusCreated]+codes[http.StatusConflict] != r.cfg.Concurrency {
		return Result{Status: statusFail, Latency: latency, Note: "unexpected responses: " + note}
	}
	return Result{Status: statusPass, Latency: latency, Note: note}
}

func checkSeatConsistency(ctx context.Context, r *Runner, f *fixture) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	var available, total, booked int
	var status string
	err := r.db.QueryRow(ctx, `
        SELECT d.seats_available, d.seats_total, d.status,
               COALESCE(SUM(COALESCE(r.adults, 0) + COALESCE(r.children, 0) + COALESCE(r.infants, 0)), 0)
        FROM departures d
        LEFT JOIN reservations r
          ON r.departure_id = d.id AND r.status IN ('PENDING', 'CONFIRMED', 'COMPLETED')
        WHERE d.id = $1
        GROUP BY d.id`, f.departureID,
	).Scan(&available, &total, &status, &booked)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if available != max(total-booked, 0) {
		return Result{Status: statusFail, Note: fmt.Sprintf("seats_available=%d total=%d booked=%d", available, total, booked)}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("booked=%d available=%d status=%s", booked, available, status)}
}

// expect sends one request and passes when the status matches; out, when set, receives the JSON body.
func (r *Runner) expect(ctx context.Context, method, path, token string, body any, want int, out any) Result {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	start := time.Now()
	code, err := r.send(ctx, method, path, token, payload, out)
	latency := time.Since(start)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want %d", code, want)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
}

func (r *Runner) send(ctx context.Context, method, path, token string, payload []byte, out any) (int, error) {
	var reader io.Reader
	if payload != nil {
		reader = strings.NewReader(string(payload))
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode body: %w", err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func perfLoad(ctx context.Context, r *Runner, method, url string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, method, url, nil)
				resp, err := r.httpc.Do(req)
				mu.Lock()
				if err != nil {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func formatCodes(codes map[int]int) string {
	keys := make([]int, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d=%d", k, codes[k]))
	}
	return strings.Join(parts, " ")
}

func extractTables(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	var tables []string
	for _, path := range files {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, m := range re.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables found under %s", dir)
	}
	return tables, nil
}
