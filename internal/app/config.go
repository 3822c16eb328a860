package app

import "time"

const (
	// StorageDriverMemory хранит заказы в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит заказы в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска order-service.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// Базовые URL справочников. Пустой URL означает встроенную заглушку,
	// если разрешены AllowMockIntegrations.
	CustomerServiceURL    string
	ProductServiceURL     string
	PriceServiceURL       string
	AllowMockIntegrations bool

	UpstreamTimeout       time.Duration
	UpstreamRetryAttempts int
	UpstreamRetryDelay    time.Duration
	BreakerMaxFailures    int
	BreakerResetTimeout   time.Duration

	KafkaBrokers string
	KafkaTopic   string
	KafkaDLQ     string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		AllowMockIntegrations: true,

		UpstreamTimeout:       3 * time.Second,
		UpstreamRetryAttempts: 3,
		UpstreamRetryDelay:    100 * time.Millisecond,
		BreakerMaxFailures:    5,
		BreakerResetTimeout:   30 * time.Second,

		KafkaTopic: "orders.order.events",
		KafkaDLQ:   "orders.dlq",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   200 * time.Millisecond,
		OutboxMaxPending:   1000,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}
