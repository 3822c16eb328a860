package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/app"
	"github.com/joeltadeu/pact-shopping-api/internal/version"
)

const (
	envLogLevel  = "ORDER_LOG_LEVEL"
	envLogFormat = "ORDER_LOG_FORMAT"

	envHTTPAddr                    = "ORDER_HTTP_ADDR"
	envGRPCAddr                    = "ORDER_GRPC_ADDR"
	envMetricsAddr                 = "ORDER_METRICS_ADDR"
	envStorageDriver               = "ORDER_STORAGE_DRIVER"
	envPostgresDSN                 = "ORDER_POSTGRES_DSN"
	envPostgresAutoMigrate         = "ORDER_POSTGRES_AUTO_MIGRATE"
	envCustomerServiceURL          = "ORDER_CUSTOMER_SERVICE_URL"
	envProductServiceURL           = "ORDER_PRODUCT_SERVICE_URL"
	envPriceServiceURL             = "ORDER_PRICE_SERVICE_URL"
	envAllowMockIntegrations       = "ORDER_ALLOW_MOCK_INTEGRATIONS"
	envUpstreamTimeout             = "ORDER_UPSTREAM_TIMEOUT"
	envUpstreamRetryAttempts       = "ORDER_UPSTREAM_RETRY_ATTEMPTS"
	envUpstreamRetryDelay          = "ORDER_UPSTREAM_RETRY_DELAY"
	envBreakerMaxFailures          = "ORDER_BREAKER_MAX_FAILURES"
	envBreakerResetTimeout         = "ORDER_BREAKER_RESET_TIMEOUT"
	envKafkaBrokers                = "ORDER_KAFKA_BROKERS"
	envKafkaTopic                  = "ORDER_KAFKA_TOPIC"
	envKafkaDLQ                    = "ORDER_KAFKA_DLQ_TOPIC"
	envOutboxPollInterval          = "ORDER_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "ORDER_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "ORDER_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "ORDER_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending            = "ORDER_OUTBOX_MAX_PENDING"
	envIdempotencyTTL              = "ORDER_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "ORDER_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "ORDER_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level, format string) error {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level = strings.TrimSpace(level)
	if level == "" {
		log.SetLevel(log.InfoLevel)
		return nil
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректное значение не прерывает запуск: остаётся значение по умолчанию
// и возвращается предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		v, err := parseBool(raw)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = v
	}
	integer := func(key string, dst *int, validate func(int) bool, msg string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		v, err := parseInt(raw, validate, msg)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = v
	}
	duration := func(key string, dst *time.Duration, validate func(time.Duration) bool, msg string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		v, err := parseDuration(raw, validate, msg)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = v
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDur := func(v time.Duration) bool { return v > 0 }
	nonNegativeDur := func(v time.Duration) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	str(envCustomerServiceURL, &cfg.CustomerServiceURL)
	str(envProductServiceURL, &cfg.ProductServiceURL)
	str(envPriceServiceURL, &cfg.PriceServiceURL)
	boolean(envAllowMockIntegrations, &cfg.AllowMockIntegrations)
	duration(envUpstreamTimeout, &cfg.UpstreamTimeout, positiveDur, "must be > 0")
	integer(envUpstreamRetryAttempts, &cfg.UpstreamRetryAttempts, positive, "must be > 0")
	duration(envUpstreamRetryDelay, &cfg.UpstreamRetryDelay, nonNegativeDur, "must be >= 0")
	integer(envBreakerMaxFailures, &cfg.BreakerMaxFailures, positive, "must be > 0")
	duration(envBreakerResetTimeout, &cfg.BreakerResetTimeout, positiveDur, "must be > 0")

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaTopic, &cfg.KafkaTopic)
	str(envKafkaDLQ, &cfg.KafkaDLQ)
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDur, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDur, "must be >= 0")
	integer(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")

	duration(envIdempotencyTTL, &cfg.IdempotencyTTL, positiveDur, "must be > 0")
	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDur, "must be > 0")
	integer(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, validate func(int) bool, msg string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if validate != nil && !validate(v) {
		return 0, errors.New(msg)
	}
	return v, nil
}

func parseDuration(raw string, validate func(time.Duration) bool, msg string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if validate != nil && !validate(v) {
		return 0, errors.New(msg)
	}
	return v, nil
}

func main() {
	if err := setupLogger(os.Getenv(envLogLevel), os.Getenv(envLogFormat)); err != nil {
		log.WithError(err).Warn("некорректный уровень логирования, используется info")
	}
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":        version.GetVersion(),
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
	}).Info("запускаем order-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("order-service остановлен")
}
