package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// Topic возвращает целевой топик.
func (p *OutboxTopicPublisher) Topic() string {
	return p.topic
}

func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	envelope := NewEnvelope(event, p.now())
	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderEventType), Value: []byte(event.EventType)},
		{Key: []byte(HeaderOutboxID), Value: []byte(event.ID)},
	}

	return p.producer.PublishEvent(ctx, p.topic, envelope.Key(), envelope, headers...)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
