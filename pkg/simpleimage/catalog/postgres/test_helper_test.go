package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image/pkg/simpleimage/catalog/postgres"
)

// TestDB represents a test database connection
type TestDB struct {
	Pool   *pgxpool.Pool
	Schema string
}

// RunTest runs testFunc against a fresh schema. It is skipped unless
// SIMPLEIMAGE_TEST_DATABASE_URL is set.
func RunTest(t *testing.T, testFunc func(t *testing.T, catalog *postgres.Catalog, db *TestDB)) {
	t.Helper()

	connString := os.Getenv("SIMPLEIMAGE_TEST_DATABASE_URL")
	if connString == "" || testing.Short() {
		t.Skip("SIMPLEIMAGE_TEST_DATABASE_URL not set, skipping postgres catalog test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")

	db := &TestDB{Pool: pool, Schema: fmt.Sprintf("simpleimage_test_%d", time.Now().UnixNano())}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+pgx.Identifier{db.Schema}.Sanitize()+" CASCADE")
		pool.Close()
	})

	catalog := postgres.NewWithPool(pool, db.Schema)
	require.NoError(t, catalog.Migrate(ctx, db.Schema))

	testFunc(t, catalog, db)
}
