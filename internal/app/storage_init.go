package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	healthcheck "github.com/joeltadeu/pact-shopping-api/internal/health"
	"github.com/joeltadeu/pact-shopping-api/internal/storage/memory"
	"github.com/joeltadeu/pact-shopping-api/internal/storage/postgres"
)

// runtimeDependencies: хранилища, выбранные по StorageDriver.
type runtimeDependencies struct {
	repo            domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

// initRuntimeDependencies открывает хранилище. Для postgres при необходимости
// применяет миграции; closeFn закрывает пул соединений.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		repo := memory.NewOrderRepository()
		logger.Info("using in-memory storage")
		return runtimeDependencies{
			repo:            repo,
			outboxRepo:      memory.NewOutboxRepository(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", func(context.Context) error {
				return nil
			}),
			closeFn: func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return runtimeDependencies{}, errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return runtimeDependencies{
			repo:            postgres.NewOrderRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewPingChecker("storage", store),
			closeFn:         store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
