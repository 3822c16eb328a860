// Command dlq-reprocess переносит события из DLQ outbox обратно в топик событий заказов.
// По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/messaging/kafka"
)

type config struct {
	brokers []string
	replay  kafka.ReplayConfig
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig(args []string, getenv func(string) string) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: ORDER_KAFKA_BROKERS)")
	fs.StringVar(&cfg.replay.SourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	fs.StringVar(&cfg.replay.TargetTopic, "target-topic", kafka.TopicOrderEvents, "target topic for replay")
	fs.IntVar(&cfg.replay.Limit, "limit", kafka.DefaultReplayLimit, "max number of messages to scan/replay")
	fs.BoolVar(&cfg.replay.Execute, "execute", false, "execute replay; default is dry-run")
	fs.BoolVar(&cfg.replay.FromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	fs.DurationVar(&cfg.replay.IdleTimeout, "idle-timeout", kafka.DefaultReplayIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv("ORDER_KAFKA_BROKERS")
	}
	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, errors.New("kafka brokers are required (-brokers or ORDER_KAFKA_BROKERS)")
	}

	cfg.replay.SourceTopic = strings.TrimSpace(cfg.replay.SourceTopic)
	cfg.replay.TargetTopic = strings.TrimSpace(cfg.replay.TargetTopic)
	if err := cfg.replay.Validate(); err != nil {
		return config{}, err
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.replay.SourceTopic,
		"target_topic": cfg.replay.TargetTopic,
		"limit":        cfg.replay.Limit,
		"execute":      cfg.replay.Execute,
		"from_newest":  cfg.replay.FromNewest,
	}).Info("starting dlq replay")

	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	defer func() { _ = client.Close() }()

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	var producer *kafka.Producer
	if cfg.replay.Execute {
		producer, err = kafka.NewProducer(cfg.brokers, "order-dlq-reprocess", nil)
		if err != nil {
			return err
		}
		defer func() { _ = producer.Close() }()
	}

	_, err = kafka.NewReplayer(client, consumer, producer, log.WithField("component", "dlq-reprocess")).Run(ctx, cfg.replay)
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
