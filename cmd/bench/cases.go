// README: Smoke cases: environment, registration, ride lifecycle, accept race, reviews and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ridehail/migrations"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	flow  flowState
}

// flowState carries ids and tokens from one case to the next.
type flowState struct {
	runID          string
	passengerToken string
	passengerEmail string
	drivers        []driverAccount
	rideID         string
	winner         int
}

type driverAccount struct {
	id    string
	token string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		flow:  flowState{runID: uuid.NewString()[:8], winner: -1},
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
		{
			Name:  "Env: Postgres connect",
			Focus: "database reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusSkip, Note: "dsn not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "session revocation store reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "every table in the embedded migrations is present",
			Run:   checkTables,
		},
		expectCase("API: health", http.MethodGet, "/health", nil, noAuth, http.StatusOK),
		{
			Name:  "Pricing: quote economy 5km/10min",
			Focus: "50 + 10*5 + 2*10 = 120",
			Run: func(ctx context.Context, r *Runner) Result {
				res, body := r.call(ctx, http.MethodGet, "/api/tariffs/economy/quote?distance_km=5&duration_min=10", nil, "")
				if res.Status != statusPass || res.Note != "status=200" {
					return fail(res, "unexpected response")
				}
				total, _ := body["total_cost"].(map[string]any)
				if total["amount"] != "120.00" {
					return fail(res, fmt.Sprintf("total=%v", total["amount"]))
				}
				return res
			},
		},
		{
			Name:  "Account: register passenger",
			Focus: "201 and a session token",
			Run:   registerPassenger,
		},
		{
			Name:  "Account: duplicate passenger -> 409",
			Focus: "email uniqueness",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.flow.passengerEmail == "" {
					return Result{Status: statusSkip, Note: "no passenger registered"}
				}
				res, _ := r.call(ctx, http.MethodPost, "/api/passengers/register", map[string]any{
					"full_name": "Bench Duplicate",
					"email":     r.flow.passengerEmail,
					"phone":     r.phone(99),
					"password":  "bench-password",
				}, "")
				return expectStatus(res, http.StatusConflict)
			},
		},
		{
			Name:  "Account: register drivers",
			Focus: "one driver per racer, each with a car",
			Run:   registerDrivers,
		},
		{
			Name:  "Ride: passenger creates ride",
			Focus: "status new, cost from tariff",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.flow.passengerToken == "" {
					return Result{Status: statusSkip, Note: "no passenger session"}
				}
				res, body := r.call(ctx, http.MethodPost, "/api/rides", map[string]any{
					"tariff_id":           "economy",
					"pickup_address":      "Khreshchatyk 22",
					"destination_address": "Podil, Kontraktova sq.",
					"distance_km":         5,
					"duration_min":        "10",
				}, r.flow.passengerToken)
				if res = expectStatus(res, http.StatusCreated); res.Status != statusPass {
					return res
				}
				id, _ := body["id"].(string)
				if id == "" || body["status"] != "new" {
					return fail(res, fmt.Sprintf("body=%v", body))
				}
				r.flow.rideID = id
				return res
			},
		},
		{
			Name:  "Ride: on_way before accept -> 404",
			Focus: "no skipping states",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.flow.rideID == "" || len(r.flow.drivers) == 0 {
					return Result{Status: statusSkip, Note: "no ride or driver"}
				}
				res, _ := r.call(ctx, http.MethodPost, "/api/drivers/orders/"+r.flow.rideID+"/on_way", nil, r.flow.drivers[0].token)
				return expectStatus(res, http.StatusNotFound)
			},
		},
		{
			Name:  "Concurrency: drivers race to accept one ride",
			Focus: "exactly one accept succeeds",
			Run:   concurrentAccept,
		},
		{
			Name:  "Ride: winner goes on_way",
			Focus: "accepted -> on_way",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.winnerTransition(ctx, "on_way", http.StatusOK)
			},
		},
		{
			Name:  "Ride: winner completes",
			Focus: "on_way -> completed",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.winnerTransition(ctx, "complete", http.StatusOK)
			},
		},
		{
			Name:  "Ride: repeated complete -> 404",
			Focus: "completed is terminal",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.winnerTransition(ctx, "complete", http.StatusNotFound)
			},
		},
		{
			Name:  "Review: passenger rates the ride",
			Focus: "first review sets the driver rating",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.flow.rideID == "" || r.flow.winner < 0 {
					return Result{Status: statusSkip, Note: "no completed ride"}
				}
				res, body := r.call(ctx, http.MethodPost, "/api/rides/"+r.flow.rideID+"/review", map[string]any{
					"rating":  4,
					"comment": "smooth ride",
				}, r.flow.passengerToken)
				if res = expectStatus(res, http.StatusCreated); res.Status != statusPass {
					return res
				}
				if rating, _ := body["driver_rating"].(float64); rating != 4 {
					return fail(res, fmt.Sprintf("driver_rating=%v", body["driver_rating"]))
				}
				return res
			},
		},
		{
			Name:  "Review: duplicate -> 409",
			Focus: "one review per ride and passenger",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.flow.rideID == "" || r.flow.winner < 0 {
					return Result{Status: statusSkip, Note: "no completed ride"}
				}
				res, _ := r.call(ctx, http.MethodPost, "/api/rides/"+r.flow.rideID+"/review", map[string]any{"rating": 1}, r.flow.passengerToken)
				return expectStatus(res, http.StatusConflict)
			},
		},
		{
			Name:  "Consistency: driver rating equals review mean",
			Focus: "drivers.rating = AVG(reviews.rating)",
			Run:   checkRating,
		},
		{
			Name:  "Account: logout revokes token",
			Focus: "token rejected after logout",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.flow.passengerToken == "" {
					return Result{Status: statusSkip, Note: "no passenger session"}
				}
				res, _ := r.call(ctx, http.MethodPost, "/api/logout", nil, r.flow.passengerToken)
				if res = expectStatus(res, http.StatusNoContent); res.Status != statusPass {
					return res
				}
				after, _ := r.call(ctx, http.MethodGet, "/api/passengers/me", nil, r.flow.passengerToken)
				return expectStatus(after, http.StatusUnauthorized)
			},
		},
		{
			Name:  "Perf: quote throughput",
			Focus: "read path under concurrent load",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, "/api/tariffs/comfort/quote?distance_km=12.5&duration_min=25")
			},
		},
	}
}

const noAuth = ""

func expectCase(name, method, path string, body any, token string, want int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			res, _ := r.call(ctx, method, path, body, token)
			return expectStatus(res, want)
		},
	}
}

// call performs one JSON request. The returned Result is PASS with the status
// code in Note whenever a response arrived; callers judge the code.
func (r *Runner) call(ctx context.Context, method, path string, body any, token string) (Result, map[string]any) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	latency := time.Since(start)

	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}, out
}

func expectStatus(res Result, want int) Result {
	if res.Status != statusPass {
		return res
	}
	if res.Note != fmt.Sprintf("status=%d", want) {
		return fail(res, fmt.Sprintf("want %d", want))
	}
	return res
}

func fail(res Result, why string) Result {
	res.Status = statusFail
	if res.Note != "" {
		why = res.Note + ", " + why
	}
	res.Note = why
	return res
}

func (r *Runner) phone(i int) string {
	return fmt.Sprintf("+380%02d%07d", 50+i%50, time.Now().UnixNano()%10_000_000)
}

func registerPassenger(ctx context.Context, r *Runner) Result {
	email := fmt.Sprintf("bench-%s@example.com", r.flow.runID)
	res, body := r.call(ctx, http.MethodPost, "/api/passengers/register", map[string]any{
		"full_name": "Bench Passenger",
		"email":     email,
		"phone":     r.phone(0),
		"password":  "bench-password",
	}, "")
	if res = expectStatus(res, http.StatusCreated); res.Status != statusPass {
		return res
	}
	tok := sessionToken(body)
	if tok == "" {
		return fail(res, "no token in response")
	}
	r.flow.passengerEmail = email
	r.flow.passengerToken = tok
	return res
}

func registerDrivers(ctx context.Context, r *Runner) Result {
	var total time.Duration
	for i := 0; i < r.cfg.Concurrency; i++ {
		res, body := r.call(ctx, http.MethodPost, "/api/drivers/register", map[string]any{
			"full_name": fmt.Sprintf("Bench Driver %d", i),
			"email":     fmt.Sprintf("bench-%s-d%d@example.com", r.flow.runID, i),
			"phone":     r.phone(i + 1),
			"password":  "bench-password",
			"car": map[string]any{
				"brand":        "Skoda",
				"model":        "Octavia",
				"plate_number": fmt.Sprintf("AA%04dBE", i),
				"year":         2019,
			},
		}, "")
		if res = expectStatus(res, http.StatusCreated); res.Status != statusPass {
			return res
		}
		total += res.Latency
		driver, _ := body["driver"].(map[string]any)
		id, _ := driver["id"].(string)
		tok := sessionToken(body)
		if id == "" || tok == "" {
			return fail(res, "missing driver id or token")
		}
		r.flow.drivers = append(r.flow.drivers, driverAccount{id: id, token: tok})
	}
	return Result{Status: statusPass, Latency: total, Note: fmt.Sprintf("drivers=%d", len(r.flow.drivers))}
}

func sessionToken(body map[string]any) string {
	s, _ := body["session"].(map[string]any)
	tok, _ := s["token"].(string)
	return tok
}

func concurrentAccept(ctx context.Context, r *Runner) Result {
	if r.flow.rideID == "" || len(r.flow.drivers) < 2 {
		return Result{Status: statusSkip, Note: "need a ride and at least two drivers"}
	}
	path := "/api/drivers/orders/" + r.flow.rideID + "/accept"

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		succ    int
		lost    int
		other   []string
		winner  = -1
		start   = make(chan struct{})
		started = time.Now()
	)
	for i, d := range r.flow.drivers {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			<-start
			res, _ := r.call(ctx, http.MethodPost, path, nil, token)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.Status == statusPass && res.Note == "status=200":
				succ++
				winner = i
			case res.Status == statusPass && res.Note == "status=404":
				lost++
			default:
				other = append(other, res.Note)
			}
		}(i, d.token)
	}
	close(start)
	wg.Wait()

	res := Result{Latency: time.Since(started), Note: fmt.Sprintf("success=%d lost=%d", succ, lost)}
	if succ != 1 || len(other) > 0 {
		return fail(res, fmt.Sprintf("unexpected=%v", other))
	}
	r.flow.winner = winner
	res.Status = statusPass
	return res
}

func (r *Runner) winnerTransition(ctx context.Context, action string, want int) Result {
	if r.flow.rideID == "" || r.flow.winner < 0 {
		return Result{Status: statusSkip, Note: "no accepted ride"}
	}
	d := r.flow.drivers[r.flow.winner]
	res, _ := r.call(ctx, http.MethodPost, "/api/drivers/orders/"+r.flow.rideID+"/"+action, nil, d.token)
	return expectStatus(res, want)
}

var createTable = regexp.MustCompile(`(?i)create\s+table\s+(?:if\s+not\s+exists\s+)?([a-z0-9_]+)`)

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not configured"}
	}
	files, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	var tables []string
	for _, f := range files {
		b, err := fs.ReadFile(migrations.FS, f)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		for _, m := range createTable.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
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
	return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
}

func checkRating(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not configured"}
	}
	if r.flow.winner < 0 {
		return Result{Status: statusSkip, Note: "no reviewed driver"}
	}
	var stored, mean *float64
	err := r.db.QueryRow(ctx, `
        SELECT d.rating::FLOAT8,
               (SELECT AVG(rating)::FLOAT8 FROM reviews WHERE driver_id = d.id)
        FROM drivers d WHERE d.id = $1`,
		r.flow.drivers[r.flow.winner].id,
	).Scan(&stored, &mean)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if stored == nil || mean == nil || math.Abs(*stored-*mean) > 0.005 {
		return Result{Status: statusFail, Note: fmt.Sprintf("rating=%v mean=%v", deref(stored), deref(mean))}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("rating=%.2f", *stored)}
}

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func perfLoad(ctx context.Context, r *Runner, path string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		count, errCount int64
		mu              sync.Mutex
		wg              sync.WaitGroup
	)

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				res, _ := r.call(ctx, http.MethodGet, path, nil, "")
				mu.Lock()
				if res.Status == statusPass && res.Note == "status=200" {
					count++
				} else {
					errCount++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("no requests completed, errors=%d", errCount)}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}
