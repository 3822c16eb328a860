package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	for _, brokers := range []string{"", " , ,"} {
		producer, err := initKafkaProducer(brokers, logger)
		if err != nil {
			t.Errorf("expected no error for brokers %q, got %v", brokers, err)
		}
		if producer != nil {
			t.Errorf("expected nil producer for brokers %q", brokers)
		}
	}
}

func TestSplitBrokers(t *testing.T) {
	got := splitBrokers(" broker1:9092, ,broker2:9092 ,")
	if len(got) != 2 || got[0] != "broker1:9092" || got[1] != "broker2:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}

func TestCloseKafka_NilProducer(t *testing.T) {
	logger := log.WithField("test", "kafka")

	// Не должно паниковать
	closeKafka(nil, logger)
}
