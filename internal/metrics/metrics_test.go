package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}
	for _, pair := range metric.GetLabel() {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: OutcomeOK},
		{name: "not found", err: &domain.NotFoundError{Entity: domain.EntityCustomer, ID: 1}, want: OutcomeNotFound},
		{name: "bad request", err: domain.InsufficientStock(10), want: OutcomeBadRequest},
		{name: "upstream", err: fmt.Errorf("wrap: %w", &domain.UpstreamError{Service: "price"}), want: OutcomeUnavailable},
		{name: "other", err: errors.New("boom"), want: OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func TestOrderMetrics_ObserveOperationAndLookup(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.ObserveOperation("create", nil, 10*time.Millisecond)
	m.ObserveOperation("create", domain.InsufficientStock(10), time.Millisecond)
	m.ObserveLineItems(2)
	m.ObserveLookup("product", nil, time.Millisecond)
	m.RecordLookupRetry("product")
	m.SetBreakerState("product", 1)
	m.RecordOutboxEnqueueFailure()

	require.Equal(t, 1.0, findMetric(t, reg, "orders_operations_total",
		map[string]string{"operation": "create", "outcome": "ok"}).GetCounter().GetValue())
	require.Equal(t, 1.0, findMetric(t, reg, "orders_operations_total",
		map[string]string{"operation": "create", "outcome": "bad_request"}).GetCounter().GetValue())
	require.Equal(t, uint64(2), findMetric(t, reg, "orders_operation_duration_seconds",
		map[string]string{"operation": "create"}).GetHistogram().GetSampleCount())
	require.Equal(t, 1.0, findMetric(t, reg, "orders_lookups_total",
		map[string]string{"port": "product", "outcome": "ok"}).GetCounter().GetValue())
	require.Equal(t, 1.0, findMetric(t, reg, "orders_lookup_retries_total",
		map[string]string{"port": "product"}).GetCounter().GetValue())
	require.Equal(t, 1.0, findMetric(t, reg, "orders_lookup_circuit_state",
		map[string]string{"port": "product"}).GetGauge().GetValue())
	require.Equal(t, 1.0, findMetric(t, reg, "orders_outbox_enqueue_failures_total", nil).GetCounter().GetValue())
}

func TestOrderMetrics_NilIsNoop(t *testing.T) {
	var m *OrderMetrics

	require.NotPanics(t, func() {
		m.ObserveOperation("get", nil, time.Millisecond)
		m.ObserveLineItems(1)
		m.ObserveLookup("customer", nil, time.Millisecond)
		m.RecordLookupRetry("customer")
		m.SetBreakerState("customer", 0)
		m.RecordOutboxEnqueueFailure()
	})
}

func TestRegisterReturnsExistingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)
	first.RecordOutboxEnqueueFailure()
	second.RecordOutboxEnqueueFailure()

	require.Equal(t, 2.0, findMetric(t, reg, "orders_outbox_enqueue_failures_total", nil).GetCounter().GetValue())
}

func TestWorkerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	outbox := NewOutboxMetrics(reg)
	cleanup := NewCleanupMetrics(reg)

	outbox.RecordPublish("sent")
	outbox.SetBacklog(3, -time.Second)
	cleanup.RecordRun("ok", 4)
	cleanup.AddDeleted(4)
	cleanup.AddDeleted(0)

	require.Equal(t, 1.0, findMetric(t, reg, "orders_outbox_publish_attempts_total",
		map[string]string{"result": "sent"}).GetCounter().GetValue())
	require.Equal(t, 3.0, findMetric(t, reg, "orders_outbox_pending_records", nil).GetGauge().GetValue())
	require.Equal(t, 0.0, findMetric(t, reg, "orders_outbox_oldest_pending_age_seconds", nil).GetGauge().GetValue())
	require.Equal(t, 4.0, findMetric(t, reg, "orders_idempotency_cleanup_deleted_total", nil).GetCounter().GetValue())
	require.Equal(t, 4.0, findMetric(t, reg, "orders_idempotency_cleanup_last_deleted", nil).GetGauge().GetValue())
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Started()
	require.Equal(t, 1.0, findMetric(t, reg, "orders_http_requests_in_flight", nil).GetGauge().GetValue())

	m.Finished("POST", "/v1/customers/{customerId}/orders", 201, 5*time.Millisecond)
	require.Equal(t, 0.0, findMetric(t, reg, "orders_http_requests_in_flight", nil).GetGauge().GetValue())
	require.Equal(t, 1.0, findMetric(t, reg, "orders_http_requests_total", map[string]string{
		"method": "POST", "route": "/v1/customers/{customerId}/orders", "status": "201",
	}).GetCounter().GetValue())
}
