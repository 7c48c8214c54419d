package helpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sharedOnce sync.Once
	sharedDSN  string
	sharedErr  error
)

// PostgresDSN starts one migrated PostgreSQL container per test binary and
// returns its connection string. The test is skipped in -short mode or when
// no container runtime is available.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	sharedOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:15-alpine",
			tcpostgres.WithDatabase("credportal_test"),
			tcpostgres.WithUsername("user"),
			tcpostgres.WithPassword("password"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			sharedErr = fmt.Errorf("starting postgres container: %w", err)
			return
		}
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedErr = fmt.Errorf("reading connection string: %w", err)
			return
		}
		if err := postgres.ApplyMigrations(ctx, dsn); err != nil {
			sharedErr = err
			return
		}
		sharedDSN = dsn
	})
	if sharedErr != nil {
		t.Skipf("postgres unavailable: %v", sharedErr)
	}
	return sharedDSN
}

// PostgresPool opens a pool on the shared container and truncates the given
// tables so each test starts empty.
func PostgresPool(t *testing.T, truncate ...string) *pgxpool.Pool {
	t.Helper()
	dsn := PostgresDSN(t)
	pool, err := pgxpool.New(t.Context(), dsn)
	if err != nil {
		t.Fatalf("opening pool: %v", err)
	}
	t.Cleanup(pool.Close)
	for _, table := range truncate {
		if _, err := pool.Exec(t.Context(), "TRUNCATE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			t.Fatalf("truncating %s: %v", table, err)
		}
	}
	return pool
}
