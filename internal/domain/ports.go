package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerSummary: данные клиента из справочника клиентов.
type CustomerSummary struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Active    bool
}

// PriceQuote: цена товара из сервиса цен.
type PriceQuote struct {
	Amount   decimal.Decimal
	Discount decimal.Decimal
	Currency Currency
}

// ProductSnapshot: состояние товара в каталоге на момент запроса.
type ProductSnapshot struct {
	ID       int64
	Name     string
	Category string
	Quantity int
	Prices   []PriceQuote
}

// CustomerLookup ищет клиента по идентификатору.
// Отсутствующий клиент: ErrNotFound, недоступный сервис, *UpstreamError.
type CustomerLookup interface {
	FindByID(ctx context.Context, id int64) (CustomerSummary, error)
}

// ProductLookup ищет товар в каталоге.
type ProductLookup interface {
	FindByID(ctx context.Context, id int64) (ProductSnapshot, error)
}

// PriceLookup возвращает цены товара; первая запись считается действующей.
type PriceLookup interface {
	FindByProductID(ctx context.Context, productID int64) ([]PriceQuote, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
