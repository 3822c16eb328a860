package lookup

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	"github.com/joeltadeu/pact-shopping-api/internal/metrics"
)

// Имена портов в логах и метриках.
const (
	PortCustomer = "customer"
	PortProduct  = "product"
	PortPrice    = "price"
)

// Policy объединяет настройки устойчивости для одного порта.
type Policy struct {
	Retry           RetryConfig
	BreakerFailures int
	BreakerReset    time.Duration
	Logger          *log.Entry
	Metrics         *metrics.OrderMetrics
}

// DefaultPolicy: три попытки и размыкание после пяти ошибок подряд на 30 секунд.
func DefaultPolicy() Policy {
	return Policy{
		Retry:           DefaultRetryConfig(),
		BreakerFailures: 5,
		BreakerReset:    30 * time.Second,
	}
}

// guard объединяет retry поверх circuit breaker для всех портов.
type guard struct {
	port    string
	retrier *Retrier
	breaker *CircuitBreaker
	metrics *metrics.OrderMetrics
}

func newGuard(port string, policy Policy) *guard {
	logger := policy.Logger
	if logger == nil {
		logger = log.WithField("component", "lookup")
	}
	logger = logger.WithField("port", port)

	g := &guard{
		port:    port,
		retrier: NewRetrier(policy.Retry, logger),
		breaker: NewCircuitBreaker(port, policy.BreakerFailures, policy.BreakerReset, logger),
		metrics: policy.Metrics,
	}
	g.retrier.onRetry = func(int, error) { g.metrics.RecordLookupRetry(port) }
	g.breaker.onChange = func(state CircuitState) { g.metrics.SetBreakerState(port, int(state)) }
	g.metrics.SetBreakerState(port, int(CircuitClosed))
	return g
}

func (g *guard) do(ctx context.Context, fn func(ctx context.Context) error) error {
	started := time.Now()
	err := g.retrier.Do(ctx, g.port, func(attemptCtx context.Context) error {
		return g.breaker.Execute(func() error { return fn(attemptCtx) })
	})
	g.metrics.ObserveLookup(g.port, err, time.Since(started))
	return err
}

type resilientCustomers struct {
	next  domain.CustomerLookup
	guard *guard
}

// WithResilienceCustomers оборачивает CustomerLookup повторами, circuit breaker и метриками.
func WithResilienceCustomers(next domain.CustomerLookup, policy Policy) domain.CustomerLookup {
	return &resilientCustomers{next: next, guard: newGuard(PortCustomer, policy)}
}

func (r *resilientCustomers) FindByID(ctx context.Context, id int64) (customer domain.CustomerSummary, err error) {
	err = r.guard.do(ctx, func(ctx context.Context) error {
		customer, err = r.next.FindByID(ctx, id)
		return err
	})
	return customer, err
}

type resilientProducts struct {
	next  domain.ProductLookup
	guard *guard
}

// WithResilienceProducts оборачивает ProductLookup.
func WithResilienceProducts(next domain.ProductLookup, policy Policy) domain.ProductLookup {
	return &resilientProducts{next: next, guard: newGuard(PortProduct, policy)}
}

func (r *resilientProducts) FindByID(ctx context.Context, id int64) (product domain.ProductSnapshot, err error) {
	err = r.guard.do(ctx, func(ctx context.Context) error {
		product, err = r.next.FindByID(ctx, id)
		return err
	})
	return product, err
}

type resilientPrices struct {
	next  domain.PriceLookup
	guard *guard
}

// WithResiliencePrices оборачивает PriceLookup.
func WithResiliencePrices(next domain.PriceLookup, policy Policy) domain.PriceLookup {
	return &resilientPrices{next: next, guard: newGuard(PortPrice, policy)}
}

func (r *resilientPrices) FindByProductID(ctx context.Context, productID int64) (prices []domain.PriceQuote, err error) {
	err = r.guard.do(ctx, func(ctx context.Context) error {
		prices, err = r.next.FindByProductID(ctx, productID)
		return err
	})
	return prices, err
}

var (
	_ domain.CustomerLookup = (*resilientCustomers)(nil)
	_ domain.ProductLookup  = (*resilientProducts)(nil)
	_ domain.PriceLookup    = (*resilientPrices)(nil)
)
