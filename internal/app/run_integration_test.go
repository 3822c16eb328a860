package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func localConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory
	return cfg
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, localConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_RestartInSameProcess(t *testing.T) {
	// Повторный запуск не должен падать на повторной регистрации метрик.
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		err := Run(ctx, localConfig())
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("run %d: expected context.DeadlineExceeded, got %v", i, err)
		}
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := localConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_MockIntegrationsDisabled(t *testing.T) {
	cfg := localConfig()
	cfg.AllowMockIntegrations = false

	err := Run(context.Background(), cfg)
	if !errors.Is(err, errMockIntegrationsDisabled) {
		t.Fatalf("expected mock integrations error, got %v", err)
	}
}

func TestRun_ListenError(t *testing.T) {
	cfg := localConfig()
	cfg.HTTPAddr = "bad-address"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "listen http") {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func postgresTestDSNCandidate() string {
	if dsn := strings.TrimSpace(os.Getenv("ORDER_POSTGRES_TEST_DSN")); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(os.Getenv("ORDER_POSTGRES_DSN"))
}
