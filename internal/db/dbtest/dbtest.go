// Package dbtest gives store tests a migrated Postgres database. Tests are
// skipped unless TEST_POSTGRES_DSN names one.
package dbtest

import (
	"context"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

// migrateLock serializes migrations when several packages test against the
// same database at once.
const migrateLock = 4170

func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{MaxConns: 4, StatementTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	_, err = conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrateLock)
	require.NoError(t, err)
	defer conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, migrateLock)

	_, err = db.Migrate(ctx, pool, zerolog.Nop())
	require.NoError(t, err)
	return pool
}

var seq atomic.Int64

// uniqueDigits never repeats within a process and rarely across runs.
func uniqueDigits() string {
	return strconv.FormatInt(time.Now().UnixNano()+seq.Add(1), 10)
}

// Doctor inserts a doctor with fake details.
func Doctor(t *testing.T, pool *pgxpool.Pool) *registry.Doctor {
	t.Helper()
	d := &registry.Doctor{
		Name:           gofakeit.Name(),
		Gender:         "Female",
		Specialization: "Cardiology",
		Experience:     gofakeit.IntRange(1, 30),
		Contact:        uniqueDigits(),
		Email:          gofakeit.Email(),
	}
	require.NoError(t, registry.NewPgDoctors(pool).Insert(context.Background(), d))
	return d
}

// Patient inserts a patient with fake details.
func Patient(t *testing.T, pool *pgxpool.Pool) *registry.Patient {
	t.Helper()
	p := &registry.Patient{
		Name:       gofakeit.Name(),
		Gender:     "Male",
		Age:        gofakeit.IntRange(1, 90),
		BloodGroup: "O+",
		Contact:    uniqueDigits(),
	}
	require.NoError(t, registry.NewPgPatients(pool).Insert(context.Background(), p))
	return p
}
