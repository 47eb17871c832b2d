// Package app connects the stores and builds the scheduling engine shared by
// the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/ident"
	"github.com/hackgods/clinic-scheduling/internal/identity"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/registry"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type App struct {
	Pool        *pgxpool.Pool
	Redis       *redis.Client // nil when Redis could not be reached
	Engine      *scheduling.Engine
	Patients    *registry.PgPatients
	Doctors     *registry.PgDoctors
	Departments *registry.PgDepartments
	Metrics     *metrics.Metrics

	log zerolog.Logger
}

// Open connects to Postgres and Redis. Redis is optional: without it
// bookings are serialized by the database constraints alone.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns:         cfg.DBMaxConns,
		StatementTimeout: cfg.StoreTimeout,
		ConnectTimeout:   5 * time.Second,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	log.Info().Msg("connected to Postgres")

	a := &App{
		Pool:        pool,
		Patients:    registry.NewPgPatients(pool),
		Doctors:     registry.NewPgDoctors(pool),
		Departments: registry.NewPgDepartments(pool),
		Metrics:     metrics.New(),
		log:         log,
	}

	var locker redisclient.Locker
	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, booking locks disabled")
	} else {
		log.Info().Msg("connected to Redis")
		a.Redis = rdb
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	}

	a.Engine = scheduling.NewEngine(scheduling.Deps{
		Appointments: appointment.NewPgStore(pool),
		Slots:        availability.NewPgStore(pool),
		Tx:           db.NewTransactor(pool),
		Patients:     a.Patients,
		Doctors:      a.Doctors,
		Issuer:       identity.NewPgIssuer(pool),
		Locker:       locker,
		IDs:          ident.NewGenerator(time.Now).Generate,
		Logger:       log,
		Metrics:      a.Metrics,
		StoreTimeout: cfg.StoreTimeout,
	})

	return a, nil
}

// PingRedis is a nil-safe health check for the lock store.
func (a *App) PingRedis(ctx context.Context) error {
	if a.Redis == nil {
		return redis.ErrClosed
	}
	return a.Redis.Ping(ctx).Err()
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Error().Err(err).Msg("error closing redis")
		}
	}
	a.Pool.Close()
}
