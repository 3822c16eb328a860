// Package order содержит сценарии создания и чтения заказов.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	"github.com/joeltadeu/pact-shopping-api/internal/metrics"
)

// Имена операций в метриках.
const (
	OperationCreate = "create"
	OperationGet    = "get"
)

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics задаёт метрики сценариев.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithOutbox включает запись события order.created после сохранения заказа.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Service) {
		s.outbox = repo
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRefGenerator подменяет генератор внешних ссылок заказа.
func WithRefGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newRef = gen
		}
	}
}

// Service оркестрирует обращения к справочникам и хранилищу заказов.
// Обращения выполняются последовательно, по одной строке за раз.
type Service struct {
	repo      domain.OrderRepository
	customers domain.CustomerLookup
	products  domain.ProductLookup
	prices    domain.PriceLookup

	outbox  domain.OutboxRepository
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
	newRef  func() string
}

// NewService создаёт сервис заказов.
func NewService(
	repo domain.OrderRepository,
	customers domain.CustomerLookup,
	products domain.ProductLookup,
	prices domain.PriceLookup,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		customers: customers,
		products:  products,
		prices:    prices,
		logger:    log.WithField("component", "order-service"),
		now:       func() time.Time { return time.Now().UTC() },
		newRef:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder проверяет клиента, остатки и цены по каждой строке и сохраняет
// заказ одной операцией. До сохранения отказ не оставляет следов в хранилище.
func (s *Service) CreateOrder(ctx context.Context, customerID int64, req domain.CreateOrderRequest) (resp domain.OrderResponse, err error) {
	started := time.Now()
	logger := s.logger.WithFields(log.Fields{
		"operation":   OperationCreate,
		"customer_id": customerID,
		"lines":       len(req.Items),
	})
	defer func() {
		s.metrics.ObserveOperation(OperationCreate, err, time.Since(started))
		s.logOutcome(logger, err)
	}()

	if customerID <= 0 {
		return domain.OrderResponse{}, &domain.BadRequestError{Reason: "customer id must be positive"}
	}
	if err := req.Validate(); err != nil {
		return domain.OrderResponse{}, err
	}

	customer, err := s.findCustomer(ctx, customerID, true)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	order := NewAggregate(customerID, req, s.now(), s.newRef())
	products := make([]domain.ProductSnapshot, len(order.Items))

	for idx := range order.Items {
		item := &order.Items[idx]

		product, err := s.findProduct(ctx, item.ProductID)
		if err != nil {
			return domain.OrderResponse{}, err
		}
		if product.Quantity-item.Quantity < 0 {
			return domain.OrderResponse{}, domain.InsufficientStock(item.ProductID)
		}

		quote, err := s.currentPrice(ctx, item.ProductID)
		if err != nil {
			return domain.OrderResponse{}, err
		}
		price := FreezePrice(quote)
		item.Price = &price
		products[idx] = product
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.OrderResponse{}, fmt.Errorf("order invariants violated: %w", errors.Join(errs...))
	}

	saved, err := s.repo.Save(ctx, order)
	if err != nil {
		return domain.OrderResponse{}, fmt.Errorf("save order: %w", err)
	}
	logger = logger.WithFields(log.Fields{
		"order_id":     saved.ID,
		"external_ref": saved.ExternalRef,
	})

	s.enqueueCreated(ctx, logger, saved)
	s.metrics.ObserveLineItems(len(saved.Items))

	views := make([]domain.OrderItemResponse, 0, len(saved.Items))
	for idx, item := range saved.Items {
		views = append(views, ItemView(item, products[idx]))
	}
	return BuildResponse(saved, customer, views), nil
}

// GetOrder возвращает заказ клиента, дополненный данными клиента и названиями товаров.
func (s *Service) GetOrder(ctx context.Context, customerID, orderID int64) (resp domain.OrderResponse, err error) {
	started := time.Now()
	logger := s.logger.WithFields(log.Fields{
		"operation":   OperationGet,
		"customer_id": customerID,
		"order_id":    orderID,
	})
	defer func() {
		s.metrics.ObserveOperation(OperationGet, err, time.Since(started))
		s.logOutcome(logger, err)
	}()

	order, err := s.repo.FindByCustomerAndID(ctx, customerID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.OrderResponse{}, &domain.NotFoundError{
				Entity:     domain.EntityOrder,
				ID:         orderID,
				CustomerID: customerID,
			}
		}
		return domain.OrderResponse{}, fmt.Errorf("find order: %w", err)
	}

	customer, err := s.findCustomer(ctx, customerID, false)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	views := make([]domain.OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		product, err := s.findProduct(ctx, item.ProductID)
		if err != nil {
			return domain.OrderResponse{}, err
		}
		views = append(views, ItemView(item, product))
	}

	return BuildResponse(order, customer, views), nil
}

// findCustomer: неактивный клиент при создании заказа считается отсутствующим.
func (s *Service) findCustomer(ctx context.Context, customerID int64, requireActive bool) (domain.CustomerSummary, error) {
	customer, err := s.customers.FindByID(ctx, customerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.CustomerSummary{}, &domain.NotFoundError{Entity: domain.EntityCustomer, ID: customerID}
	case err != nil:
		return domain.CustomerSummary{}, fmt.Errorf("lookup customer %d: %w", customerID, err)
	case requireActive && !customer.Active:
		return domain.CustomerSummary{}, &domain.NotFoundError{Entity: domain.EntityCustomer, ID: customerID}
	}
	if customer.ID == 0 {
		customer.ID = customerID
	}
	return customer, nil
}

func (s *Service) findProduct(ctx context.Context, productID int64) (domain.ProductSnapshot, error) {
	product, err := s.products.FindByID(ctx, productID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ProductSnapshot{}, &domain.NotFoundError{Entity: domain.EntityProduct, ID: productID}
	case err != nil:
		return domain.ProductSnapshot{}, fmt.Errorf("lookup product %d: %w", productID, err)
	}
	return product, nil
}

// currentPrice возвращает действующую цену: первую в списке сервиса цен.
func (s *Service) currentPrice(ctx context.Context, productID int64) (domain.PriceQuote, error) {
	quotes, err := s.prices.FindByProductID(ctx, productID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.PriceQuote{}, &domain.NotFoundError{Entity: domain.EntityPrice, ID: productID}
	case err != nil:
		return domain.PriceQuote{}, fmt.Errorf("lookup price for product %d: %w", productID, err)
	case len(quotes) == 0:
		return domain.PriceQuote{}, &domain.NotFoundError{Entity: domain.EntityPrice, ID: productID}
	}
	return quotes[0], nil
}

// enqueueCreated пишет событие в outbox. Заказ уже сохранён, поэтому ошибка
// только логируется и учитывается в метриках.
func (s *Service) enqueueCreated(ctx context.Context, logger *log.Entry, order domain.Order) {
	if s.outbox == nil {
		return
	}

	msg, err := newCreatedMessage(order)
	if err == nil {
		_, err = s.outbox.Enqueue(ctx, msg)
	}
	if err != nil {
		s.metrics.RecordOutboxEnqueueFailure()
		logger.WithError(err).Error("failed to enqueue order.created event")
	}
}

func (s *Service) logOutcome(logger *log.Entry, err error) {
	switch {
	case err == nil:
		logger.Info("order operation completed")
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrBadRequest):
		logger.WithError(err).Warn("order operation rejected")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		logger.WithError(err).Warn("order operation failed: upstream unavailable")
	default:
		logger.WithError(err).Error("order operation failed")
	}
}
