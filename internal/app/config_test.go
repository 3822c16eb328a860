package app

import "testing"

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != ":50051" {
		t.Errorf("expected GRPCAddr :50051, got %s", cfg.GRPCAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be true")
	}
	if !cfg.AllowMockIntegrations {
		t.Error("expected AllowMockIntegrations to be true")
	}
	if cfg.UpstreamTimeout <= 0 || cfg.UpstreamRetryAttempts <= 0 {
		t.Error("expected bounded upstream timeout and retry attempts")
	}
	if cfg.KafkaBrokers != "" {
		t.Errorf("expected kafka to be disabled by default, got %q", cfg.KafkaBrokers)
	}
	if cfg.KafkaTopic == "" || cfg.KafkaDLQ == "" {
		t.Error("expected default kafka topics")
	}
	if cfg.OutboxPollInterval <= 0 {
		t.Error("expected OutboxPollInterval to be > 0")
	}
	if cfg.OutboxBatchSize <= 0 {
		t.Error("expected OutboxBatchSize to be > 0")
	}
	if cfg.OutboxMaxAttempts <= 0 {
		t.Error("expected OutboxMaxAttempts to be > 0")
	}
	if cfg.OutboxRetryDelay < 0 {
		t.Error("expected OutboxRetryDelay to be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		t.Error("expected IdempotencyTTL to be > 0")
	}
	if cfg.IdempotencyCleanupInterval <= 0 {
		t.Error("expected IdempotencyCleanupInterval to be > 0")
	}
	if cfg.IdempotencyCleanupBatchSize <= 0 {
		t.Error("expected IdempotencyCleanupBatchSize to be > 0")
	}
}

func TestConfig_Comparable(t *testing.T) {
	if DefaultConfig() != DefaultConfig() {
		t.Fatal("DefaultConfig must be deterministic")
	}
}
