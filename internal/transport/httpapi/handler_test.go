package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	"github.com/joeltadeu/pact-shopping-api/internal/metrics"
	"github.com/joeltadeu/pact-shopping-api/internal/service/idempotency"
	"github.com/joeltadeu/pact-shopping-api/internal/service/lookup"
	"github.com/joeltadeu/pact-shopping-api/internal/service/order"
	"github.com/joeltadeu/pact-shopping-api/internal/storage/memory"
	"github.com/joeltadeu/pact-shopping-api/internal/transport/httpapi"
)

type HandlerSuite struct {
	suite.Suite

	customers *lookup.StubCustomers
	products  *lookup.StubProducts
	prices    *lookup.StubPrices
	registry  *prometheus.Registry
	server    *httptest.Server
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func (s *HandlerSuite) SetupTest() {
	s.customers = lookup.NewStubCustomers()
	s.products = lookup.NewStubProducts()
	s.prices = lookup.NewStubPrices()
	lookup.SeedDemoCatalog(s.customers, s.products, s.prices)

	service := order.NewService(memory.NewOrderRepository(), s.customers, s.products, s.prices,
		order.WithLogger(quietLogger()),
		order.WithClock(func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }),
	)

	s.registry = prometheus.NewRegistry()
	handler := httpapi.NewHandler(service,
		httpapi.WithLogger(quietLogger()),
		httpapi.WithMetrics(metrics.NewHTTPMetrics(s.registry)),
		httpapi.WithIdempotency(idempotency.NewGuard(memory.NewIdempotencyRepository(), time.Hour, quietLogger())),
	)
	s.server = httptest.NewServer(handler)
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerSuite) post(path, body string, headers map[string]string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *HandlerSuite) get(path string) *http.Response {
	resp, err := s.server.Client().Get(s.server.URL + path)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeOrder(t *testing.T, resp *http.Response) httpapi.OrderResponse {
	t.Helper()
	var out httpapi.OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func decodeError(t *testing.T, resp *http.Response) httpapi.ErrorResponse {
	t.Helper()
	var out httpapi.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) TestCreateOrderReturnsCreatedWithLocation() {
	resp := s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":2}]}`, nil)

	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("application/json", resp.Header.Get("Content-Type"))

	body := decodeOrder(s.T(), resp)
	s.Equal("/v1/customers/10/orders/"+jsonID(body.ID), resp.Header.Get("Location"))
	s.Equal("DONE", body.Status)
	s.Equal(int64(10), body.Customer.ID)
	s.Equal("John", body.Customer.FirstName)
	s.Equal("Fox", body.Customer.LastName)
	s.Require().Len(body.Items, 1)
	s.Equal("Samsung TV Neo QLED 8K 85 QE85QN800B", body.Items[0].Name)
	s.Equal(2, body.Items[0].Quantity)
	s.Equal(json.Number("145.78"), body.Items[0].Price.Amount)
	s.Equal(json.Number("291.56"), body.Items[0].Price.Total)
	s.Equal("USD", body.Items[0].Price.Currency.ISO)
	s.Equal("$", body.Items[0].Price.Currency.Symbol)
	s.Equal(json.Number("291.56"), body.Total)
}

func (s *HandlerSuite) TestCreateThenGetReturnsSameOrder() {
	created := decodeOrder(s.T(), s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":3}]}`, nil))

	resp := s.get("/v1/customers/10/orders/" + jsonID(created.ID))
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	fetched := decodeOrder(s.T(), resp)
	s.Equal(created, fetched)
}

func (s *HandlerSuite) TestStockViolationIsBadRequest() {
	resp := s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":11}]}`, nil)

	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	body := decodeError(s.T(), resp)
	s.Equal(http.StatusBadRequest, body.Status)
	s.Equal("Bad Request", body.Error)
	s.Equal("Product id 10 not available on stock", body.Message)
}

func (s *HandlerSuite) TestUnknownCustomerIsNotFound() {
	resp := s.post("/v1/customers/99/orders", `{"items":[{"id":10,"quantity":1}]}`, nil)

	s.Require().Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal("Customer id '99' not found", decodeError(s.T(), resp).Message)
	s.Equal(0, s.products.Calls())
}

func (s *HandlerSuite) TestMalformedBodyIsBadRequest() {
	resp := s.post("/v1/customers/10/orders", `{"items":`, nil)

	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("malformed request body", decodeError(s.T(), resp).Message)
	s.Equal(0, s.customers.Calls())
}

func (s *HandlerSuite) TestEmptyItemsIsBadRequest() {
	resp := s.post("/v1/customers/10/orders", `{"items":[]}`, nil)

	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal(domain.ErrItemsRequired.Error(), decodeError(s.T(), resp).Message)
}

func (s *HandlerSuite) TestInvalidPathIDIsBadRequest() {
	resp := s.get("/v1/customers/abc/orders/1")

	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("customerId must be a positive integer", decodeError(s.T(), resp).Message)
}

func (s *HandlerSuite) TestGetOrderOfAnotherCustomerIsNotFound() {
	s.customers.Put(domain.CustomerSummary{ID: 20, FirstName: "Ann", LastName: "Lee", Active: true})
	created := decodeOrder(s.T(), s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":1}]}`, nil))

	resp := s.get("/v1/customers/20/orders/" + jsonID(created.ID))

	s.Require().Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal("Order id '"+jsonID(created.ID)+"' for the customer '20' not found", decodeError(s.T(), resp).Message)
}

func (s *HandlerSuite) TestUnknownRouteAndMethod() {
	s.Equal(http.StatusNotFound, s.get("/v1/unknown").StatusCode)

	req, err := http.NewRequest(http.MethodDelete, s.server.URL+"/v1/customers/10/orders/1", nil)
	s.Require().NoError(err)
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	s.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func (s *HandlerSuite) TestIdempotentRetryReplaysStoredResponse() {
	headers := map[string]string{httpapi.HeaderIdempotencyKey: "key-1"}
	first := s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":1}]}`, headers)
	s.Require().Equal(http.StatusCreated, first.StatusCode)
	firstBody := decodeOrder(s.T(), first)

	second := s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":1}]}`, headers)
	s.Require().Equal(http.StatusCreated, second.StatusCode)
	s.Equal("true", second.Header.Get(httpapi.HeaderIdempotentReplay))
	s.Equal(first.Header.Get("Location"), second.Header.Get("Location"))
	s.Equal(firstBody, decodeOrder(s.T(), second))

	// Повтор не дошёл до справочников.
	s.Equal(1, s.customers.Calls())
}

func (s *HandlerSuite) TestIdempotencyKeyWithDifferentBodyIsConflict() {
	headers := map[string]string{httpapi.HeaderIdempotencyKey: "key-2"}
	s.Require().Equal(http.StatusCreated, s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":1}]}`, headers).StatusCode)

	resp := s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":2}]}`, headers)

	s.Require().Equal(http.StatusConflict, resp.StatusCode)
	s.Equal(domain.ErrIdempotencyHashMismatch.Error(), decodeError(s.T(), resp).Message)
}

func (s *HandlerSuite) TestIdempotentRejectionIsReplayed() {
	headers := map[string]string{httpapi.HeaderIdempotencyKey: "key-3"}
	s.Require().Equal(http.StatusBadRequest, s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":50}]}`, headers).StatusCode)

	s.products.Put(domain.ProductSnapshot{ID: 10, Name: "Samsung TV Neo QLED 8K 85 QE85QN800B", Quantity: 100})
	resp := s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":50}]}`, headers)

	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("true", resp.Header.Get(httpapi.HeaderIdempotentReplay))
}

func (s *HandlerSuite) TestMetricsUseRouteTemplate() {
	s.post("/v1/customers/10/orders", `{"items":[{"id":10,"quantity":1}]}`, nil)
	s.get("/v1/customers/10/orders/1")

	families, err := s.registry.Gather()
	s.Require().NoError(err)

	routes := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "orders_http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "route" {
					routes[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	s.Equal(float64(1), routes["/v1/customers/{customerId}/orders"])
	s.Equal(float64(1), routes["/v1/customers/{customerId}/orders/{orderId}"])
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}

type failingService struct {
	err error
}

func (f failingService) CreateOrder(context.Context, int64, domain.CreateOrderRequest) (domain.OrderResponse, error) {
	return domain.OrderResponse{}, f.err
}

func (f failingService) GetOrder(context.Context, int64, int64) (domain.OrderResponse, error) {
	return domain.OrderResponse{}, f.err
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "upstream unavailable",
			err:     &domain.UpstreamError{Service: "product", Err: errors.New("dial tcp: connection refused")},
			status:  http.StatusServiceUnavailable,
			message: "product service unavailable",
		},
		{
			name:    "wrapped upstream",
			err:     errors.Join(errors.New("lookup"), &domain.UpstreamError{Service: "price"}),
			status:  http.StatusServiceUnavailable,
			message: "price service unavailable",
		},
		{
			name:    "internal error hides details",
			err:     errors.New("save order: pq: connection reset"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
		{
			name:    "request in progress",
			err:     idempotency.ErrRequestInProgress,
			status:  http.StatusConflict,
			message: idempotency.ErrRequestInProgress.Error(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := httpapi.NewHandler(failingService{err: tc.err}, httpapi.WithLogger(quietLogger()))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/customers/1/orders/1", nil))

			require.Equal(t, tc.status, rec.Code)
			var body httpapi.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, tc.message, body.Message)
		})
	}
}

type panickingService struct{ failingService }

func (panickingService) GetOrder(context.Context, int64, int64) (domain.OrderResponse, error) {
	panic("boom")
}

func TestPanicBecomesInternalError(t *testing.T) {
	handler := httpapi.NewHandler(panickingService{}, httpapi.WithLogger(quietLogger()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/customers/1/orders/1", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
