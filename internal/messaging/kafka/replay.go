package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultReplayLimit       = 100
	DefaultReplayIdleTimeout = 2 * time.Second
)

// ReplayConfig описывает один проход по DLQ.
type ReplayConfig struct {
	SourceTopic string
	TargetTopic string
	Limit       int
	// При Execute=false (dry-run) сообщения только логируются.
	Execute     bool
	FromNewest  bool
	IdleTimeout time.Duration
}

// Validate проверяет параметры прохода.
func (c ReplayConfig) Validate() error {
	switch {
	case c.SourceTopic == "":
		return errors.New("source topic is required")
	case c.TargetTopic == "":
		return errors.New("target topic is required")
	case c.Limit <= 0:
		return errors.New("limit must be > 0")
	case c.IdleTimeout <= 0:
		return errors.New("idle timeout must be > 0")
	}
	return nil
}

// ReplayStats: итог прохода.
type ReplayStats struct {
	Processed int
	Replayed  int
	Skipped   int
}

func (s *ReplayStats) add(other ReplayStats) {
	s.Processed += other.Processed
	s.Replayed += other.Replayed
	s.Skipped += other.Skipped
}

// OffsetClient: часть sarama.Client, нужная для чтения границ партиций.
type OffsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
}

// PartitionSource открывает чтение партиции; sarama.Consumer удовлетворяет интерфейсу.
type PartitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (sarama.PartitionConsumer, error)
}

// ReplayMessage: сообщение, готовое к повторной публикации.
type ReplayMessage struct {
	Topic string
	Key   string
	Value []byte
}

// Replayer переносит сообщения из DLQ обратно в топик событий.
type Replayer struct {
	client   OffsetClient
	source   PartitionSource
	producer *Producer
	logger   *log.Entry
	now      func() time.Time
}

// NewReplayer создаёт Replayer. producer может быть nil для dry-run.
func NewReplayer(client OffsetClient, source PartitionSource, producer *Producer, logger *log.Entry) *Replayer {
	if logger == nil {
		logger = log.WithField("component", "dlq-replayer")
	}
	return &Replayer{
		client:   client,
		source:   source,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// Run читает не более cfg.Limit сообщений из всех партиций исходного топика.
func (r *Replayer) Run(ctx context.Context, cfg ReplayConfig) (ReplayStats, error) {
	var total ReplayStats

	if err := cfg.Validate(); err != nil {
		return total, err
	}
	if r.client == nil || r.source == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if cfg.Execute && r.producer == nil {
		return total, errors.New("producer is required in execute mode")
	}

	partitions, err := r.client.Partitions(cfg.SourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", cfg.SourceTopic, err)
	}
	if len(partitions) == 0 {
		r.logger.WithField("topic", cfg.SourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		remaining := cfg.Limit - total.Processed
		if remaining <= 0 {
			break
		}

		stats, err := r.replayPartition(ctx, cfg, partition, remaining)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}

	mode := "dry-run"
	if cfg.Execute {
		mode = "execute"
	}
	r.logger.WithFields(log.Fields{
		"mode":      mode,
		"processed": total.Processed,
		"replayed":  total.Replayed,
		"skipped":   total.Skipped,
	}).Info("dlq replay finished")

	return total, nil
}

func (r *Replayer) replayPartition(ctx context.Context, cfg ReplayConfig, partition int32, limit int) (ReplayStats, error) {
	var stats ReplayStats

	oldest, err := r.client.GetOffset(cfg.SourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(cfg.SourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	start := oldest
	if cfg.FromNewest && newest-int64(limit) > oldest {
		start = newest - int64(limit)
	}

	pc, err := r.source.ConsumePartition(cfg.SourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.IdleTimeout)
	defer idle.Stop()

	errs := pc.Errors()

	for stats.Processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case consumerErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if consumerErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(cfg.IdleTimeout)

			stats.Processed++
			if err := r.handle(ctx, cfg, msg, &stats); err != nil {
				return stats, err
			}
			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}

	return stats, nil
}

func (r *Replayer) handle(ctx context.Context, cfg ReplayConfig, msg *sarama.ConsumerMessage, stats *ReplayStats) error {
	logger := r.logger.WithFields(log.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	replay, ok, err := ExtractReplay(msg.Value, cfg.TargetTopic, r.now())
	if err != nil || !ok {
		stats.Skipped++
		if err != nil {
			logger.WithError(err).Warn("skip unsupported dlq message")
		}
		return nil
	}

	if !cfg.Execute {
		logger.WithFields(log.Fields{
			"target_topic": replay.Topic,
			"key":          replay.Key,
		}).Info("dlq replay candidate")
		stats.Replayed++
		return nil
	}

	header := sarama.RecordHeader{Key: []byte(HeaderReplayedAt), Value: []byte(r.now().UTC().Format(time.RFC3339))}
	if err := r.producer.PublishRaw(ctx, replay.Topic, replay.Key, replay.Value, header); err != nil {
		return fmt.Errorf("publish replay message: %w", err)
	}
	stats.Replayed++
	return nil
}

// ExtractReplay восстанавливает исходный конверт из DLQ-сообщения outbox worker.
// ok=false означает, что сообщение не похоже на DLQ-конверт и должно быть пропущено.
func ExtractReplay(value []byte, targetTopic string, now time.Time) (ReplayMessage, bool, error) {
	var dlq Envelope
	if err := json.Unmarshal(value, &dlq); err != nil || len(dlq.Payload) == 0 {
		return ReplayMessage{}, false, nil
	}

	var dead DeadLetter
	if err := json.Unmarshal(dlq.Payload, &dead); err != nil {
		return ReplayMessage{}, false, fmt.Errorf("decode dead letter: %w", err)
	}
	if len(dead.Payload) == 0 {
		return ReplayMessage{}, false, errors.New("dead letter does not contain original event payload")
	}

	replay := Envelope{
		ID:            firstNonEmpty(dead.OutboxID, dlq.ID),
		AggregateType: firstNonEmpty(dead.AggregateType, dlq.AggregateType),
		AggregateID:   firstNonEmpty(dead.AggregateID, dlq.AggregateID),
		EventType:     firstNonEmpty(dead.EventType, dlq.EventType),
		Payload:       dead.Payload,
		PublishedAt:   now.UTC(),
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return ReplayMessage{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}

	return ReplayMessage{
		Topic: targetTopic,
		Key:   replay.Key(),
		Value: encoded,
	}, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
