package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics: метрики outbox worker.
type OutboxMetrics struct {
	publishAttempts  *prometheus.CounterVec
	pendingRecords   prometheus.Gauge
	oldestPendingAge prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox worker.
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		publishAttempts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_attempts_total",
			Help:      "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"})),
		pendingRecords: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending_records",
			Help:      "Current number of pending records in transactional outbox.",
		})),
		oldestPendingAge: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_oldest_pending_age_seconds",
			Help:      "Age in seconds of the oldest pending outbox record.",
		})),
	}
}

// RecordPublish увеличивает счётчик попыток с результатом result.
func (m *OutboxMetrics) RecordPublish(result string) {
	if m == nil {
		return
	}
	m.publishAttempts.WithLabelValues(result).Inc()
}

// SetBacklog публикует размер backlog и возраст самой старой записи.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.pendingRecords.Set(float64(pending))
	m.oldestPendingAge.Set(oldestAge.Seconds())
}

// CleanupMetrics: метрики очистки idempotency ключей.
type CleanupMetrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

// NewCleanupMetrics регистрирует метрики cleanup worker.
func NewCleanupMetrics(registerer prometheus.Registerer) *CleanupMetrics {
	return &CleanupMetrics{
		runs: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_cleanup_runs_total",
			Help:      "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"})),
		deleted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_cleanup_deleted_total",
			Help:      "Total number of deleted expired idempotency records.",
		})),
		lastDeleted: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "idempotency_cleanup_last_deleted",
			Help:      "Number of deleted records during the last cleanup run.",
		})),
	}
}

// RecordRun фиксирует завершение прохода очистки.
func (m *CleanupMetrics) RecordRun(result string, deleted int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	if result == "ok" {
		m.lastDeleted.Set(float64(deleted))
	}
}

// AddDeleted увеличивает счётчик удалённых записей.
func (m *CleanupMetrics) AddDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deleted.Add(float64(n))
}
