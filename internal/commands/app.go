package commands

import (
	"context"
	"fmt"
	"log/slog"

	portsrepo "github.com/SscSPs/pfm_backend/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/pfm_backend/internal/core/ports/services"
	"github.com/SscSPs/pfm_backend/internal/core/services"
	"github.com/SscSPs/pfm_backend/internal/platform/config"
	"github.com/SscSPs/pfm_backend/internal/platform/lock"
	"github.com/SscSPs/pfm_backend/internal/repositories/database/pgsql"
	"github.com/SscSPs/pfm_backend/internal/repositories/memory"
	"github.com/SscSPs/pfm_backend/pkg/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// app holds the wired storage, locking and services shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	repos    portsrepo.RepositoryProvider
	services *portssvc.ServiceContainer
	pool     *pgxpool.Pool
	redis    *redis.Client
}

// newApp connects storage and the lock backend and builds the service container.
// With migrate set, pending migrations are applied before the pool is opened.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, data is lost on exit")
		a.repos = memory.NewRepositoryProvider()
	case config.StoragePostgres:
		if migrate {
			if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
				return nil, err
			}
		}
		pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		a.pool = pool
		a.repos = pgsql.NewRepositoryProvider(pool)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.services = services.NewServiceContainer(cfg, a.repos, locker)
	return a, nil
}

func (a *app) newLocker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.RedisURL == "" {
		a.logger.Info("REDIS_URL not set, account locks are process-local")
		return lock.NewKeyedMutex(), nil
	}
	client, err := lock.NewRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	locker, err := lock.NewRedisLocker(client, lock.DefaultOptions(), a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Using Redis account locks")
	return locker, nil
}

// Close releases the connections opened by newApp.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", slog.String("error", err.Error()))
		}
	}
	database.ClosePgxPool(a.pool, a.logger)
}
