package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

const namespace = "orders"

// Исходы операций, используемые в label `outcome`.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeBadRequest  = "bad_request"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Outcome классифицирует ошибку по категориям таксономии.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrBadRequest):
		return OutcomeBadRequest
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}

// OrderMetrics собирает метрики сценариев создания и чтения заказов
// и обращений к удалённым справочникам.
// Нулевой указатель допустим: все методы становятся no-op.
type OrderMetrics struct {
	operations       *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	lineItems        prometheus.Histogram
	lookups          *prometheus.CounterVec
	lookupDuration   *prometheus.HistogramVec
	lookupRetries    *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	outboxEnqueueErr prometheus.Counter
}

// NewOrderMetrics регистрирует метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		operations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of order operations grouped by operation and outcome.",
		}, []string{"operation", "outcome"})),
		duration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of order operations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"})),
		lineItems: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "created_line_items",
			Help:      "Number of line items in successfully created orders.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		})),
		lookups: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Total number of remote lookups grouped by port and outcome.",
		}, []string{"port", "outcome"})),
		lookupDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Duration of remote lookups including retries.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"port"})),
		lookupRetries: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_retries_total",
			Help:      "Total number of retried remote lookup attempts.",
		}, []string{"port"})),
		breakerState: register(registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lookup_circuit_state",
			Help:      "Circuit breaker state per port: 0 closed, 1 open, 2 half-open.",
		}, []string{"port"})),
		outboxEnqueueErr: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_enqueue_failures_total",
			Help:      "Total number of order events that could not be written to the outbox.",
		})),
	}
}

// ObserveOperation фиксирует исход и длительность create/get.
func (m *OrderMetrics) ObserveOperation(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, Outcome(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveLineItems фиксирует размер созданного заказа.
func (m *OrderMetrics) ObserveLineItems(count int) {
	if m == nil {
		return
	}
	m.lineItems.Observe(float64(count))
}

// ObserveLookup фиксирует один логический вызов порта (с учётом всех повторов).
func (m *OrderMetrics) ObserveLookup(port string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(port, Outcome(err)).Inc()
	m.lookupDuration.WithLabelValues(port).Observe(elapsed.Seconds())
}

// RecordLookupRetry увеличивает счётчик повторных попыток.
func (m *OrderMetrics) RecordLookupRetry(port string) {
	if m == nil {
		return
	}
	m.lookupRetries.WithLabelValues(port).Inc()
}

// SetBreakerState публикует состояние circuit breaker.
func (m *OrderMetrics) SetBreakerState(port string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(port).Set(float64(state))
}

// RecordOutboxEnqueueFailure увеличивает счётчик неудачных записей в outbox.
func (m *OrderMetrics) RecordOutboxEnqueueFailure() {
	if m == nil {
		return
	}
	m.outboxEnqueueErr.Inc()
}
