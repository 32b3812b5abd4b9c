// Package testutil starts a disposable PostgreSQL with the mediafeed schema
// for integration tests.
package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MigrationsDir is resolved from the calling package's directory.
var MigrationsDir = "../../../migrations"

// PostgresImage is the server every integration test runs against.
const PostgresImage = "postgres:17-alpine"

// Tables in truncation order.
const tables = "category_channels, categories, raw_feed_entries, videos, channels, users"

// Store is a migrated database in a container.
type Store struct {
	Pool    *pgxpool.Pool
	ConnStr string
}

// NewStore starts PostgreSQL, migrates it up and connects a pool. The pool
// and the container are released when t finishes.
func NewStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, PostgresImage,
		postgres.WithDatabase("mediafeed_test"),
		postgres.WithUsername("mediafeed"),
		postgres.WithPassword("mediafeed"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	migrateUp(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	return &Store{Pool: pool, ConnStr: connStr}
}

func migrateUp(t *testing.T, connStr string) {
	t.Helper()

	dir, err := filepath.Abs(MigrationsDir)
	require.NoError(t, err)

	m, err := migrate.New("file://"+dir, connStr)
	require.NoError(t, err)
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
}

// Reset empties every table and restarts identities, so insertion-order
// tie-breaks start from 1 again.
func (s *Store) Reset(t *testing.T) {
	t.Helper()
	_, err := s.Pool.Exec(context.Background(), "TRUNCATE TABLE "+tables+" RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}
