package kafka

import (
	"encoding/json"
	"time"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "orders.order.events"
	TopicDeadLetterQueue = "orders.dlq" // сообщения outbox, не опубликованные после всех попыток
)

// Kafka headers
const (
	HeaderEventType  = "x-event-type"
	HeaderOutboxID   = "x-outbox-id"
	HeaderReplayedAt = "x-replayed-at"
)

// Envelope: формат сообщения в топике событий заказов.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope оборачивает outbox-сообщение.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   publishedAt.UTC(),
	}
}

// Key возвращает ключ партиционирования, чтобы события одного заказа попадали в одну партицию.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// DeadLetter: содержимое payload DLQ-конверта, которое пишет outbox worker.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error,omitempty"`
}
