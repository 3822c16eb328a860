package app

import (
	"context"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/joeltadeu/pact-shopping-api/internal/health"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	for _, driver := range []string{"", StorageDriverMemory, " MEMORY "} {
		cfg := DefaultConfig()
		cfg.StorageDriver = driver

		deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "memory-init"))
		if err != nil {
			t.Fatalf("driver %q: unexpected error: %v", driver, err)
		}
		if deps.repo == nil || deps.outboxRepo == nil || deps.idempotencyRepo == nil {
			t.Fatalf("driver %q: memory dependencies must be initialized: %+v", driver, deps)
		}
		if check := deps.storageChecker.Check(context.Background()); check.Status != healthcheck.StatusHealthy {
			t.Fatalf("driver %q: expected healthy storage, got %+v", driver, check)
		}
		if err := deps.closeFn(); err != nil {
			t.Fatalf("driver %q: close: %v", driver, err)
		}
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "mongo"

	_, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "invalid"))
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = "  "

	_, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-dsn"))
	if err == nil || !strings.Contains(err.Error(), "postgres dsn is required") {
		t.Fatalf("expected missing dsn error, got %v", err)
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := postgresTestDSNCandidate()
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer func() { _ = deps.closeFn() }()

	if deps.repo == nil || deps.outboxRepo == nil || deps.idempotencyRepo == nil {
		t.Fatalf("postgres dependencies must be initialized: %+v", deps)
	}
	if check := deps.storageChecker.Check(context.Background()); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy storage checker, got %+v", check)
	}
}
