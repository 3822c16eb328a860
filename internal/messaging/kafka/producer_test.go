package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var decoded map[string]any
		if err := json.Unmarshal(val, &decoded); err != nil {
			return err
		}
		if decoded["order_id"] != "42" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	producer := NewProducerFromSync(mockProducer, testLogger())

	err := producer.PublishEvent(context.Background(), TopicOrderEvents, "42", map[string]string{"order_id": "42"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerFromSync(mockProducer, testLogger())

	err := producer.PublishEvent(context.Background(), TopicOrderEvents, "42", map[string]string{})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, testLogger())

	if err := producer.PublishEvent(context.Background(), TopicOrderEvents, "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishRaw_CanceledContext(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := producer.PublishRaw(ctx, TopicOrderEvents, "k", []byte(`{}`)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_NilIsSafe(t *testing.T) {
	var producer *Producer
	if err := producer.PublishRaw(context.Background(), TopicOrderEvents, "k", nil); !errors.Is(err, errProducerNotInitialized) {
		t.Fatalf("expected not initialized error, got %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("close of nil producer must succeed, got %v", err)
	}
}

func TestProducerConfig(t *testing.T) {
	cfg := ProducerConfig("order-service")

	if cfg.ClientID != "order-service" {
		t.Fatalf("unexpected client id: %s", cfg.ClientID)
	}
	if !cfg.Producer.Idempotent || cfg.Net.MaxOpenRequests != 1 {
		t.Fatal("producer must be idempotent with a single in-flight request")
	}
	if cfg.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatalf("unexpected acks: %v", cfg.Producer.RequiredAcks)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config must be valid: %v", err)
	}
}

func TestEnvelopeKey(t *testing.T) {
	if got := (Envelope{ID: "id", AggregateID: "7"}).Key(); got != "7" {
		t.Fatalf("expected aggregate id key, got %s", got)
	}
	if got := (Envelope{ID: "id"}).Key(); got != "id" {
		t.Fatalf("expected id fallback, got %s", got)
	}
}
