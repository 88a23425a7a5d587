// README: Shared Postgres fixture for tests that need a real database.
package testdb

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/infra"
)

const dsnEnv = "RIDEHAIL_TEST_DSN"

var migrateOnce sync.Once

// Open connects to RIDEHAIL_TEST_DSN, migrates once per process and empties
// every table except the seeded tariffs. The test is skipped when the
// variable is unset.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skip(dsnEnv + " not set")
	}

	var migrateErr error
	migrateOnce.Do(func() { migrateErr = infra.Migrate(dsn) })
	if migrateErr != nil {
		t.Fatalf("migrate: %v", migrateErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `TRUNCATE ride_events, reviews, rides, cars, drivers, users CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

// Exec runs a fixture statement and fails the test on error.
func Exec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("exec fixture: %v", err)
	}
}

// SeedPassenger inserts a user row directly, bypassing bcrypt.
func SeedPassenger(t *testing.T, pool *pgxpool.Pool, id, name string) {
	t.Helper()
	Exec(t, pool, `INSERT INTO users (id, full_name, email, phone, password_hash) VALUES ($1, $2, $3, $4, 'x')`,
		id, name, id+"@example.com", "+380"+id)
}

// SeedDriver inserts a driver and its car directly.
func SeedDriver(t *testing.T, pool *pgxpool.Pool, id, name string) {
	t.Helper()
	Exec(t, pool, `INSERT INTO drivers (id, full_name, email, phone, password_hash, status) VALUES ($1, $2, $3, $4, 'x', 'active')`,
		id, name, id+"@example.com", "+380"+id)
	Exec(t, pool, `INSERT INTO cars (id, driver_id, brand, model, plate_number, year) VALUES ($1, $2, 'Skoda', 'Octavia', 'AA1234BB', 2019)`,
		"car-"+id, id)
}
