// Package httpapi публикует сценарии заказов как REST API поверх gorilla/mux.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	"github.com/joeltadeu/pact-shopping-api/internal/metrics"
	"github.com/joeltadeu/pact-shopping-api/internal/service/idempotency"
)

const (
	// HeaderIdempotencyKey: необязательный ключ идемпотентности для POST.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay выставляется, если ответ взят из сохранённого.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	routeCreateOrder = "createOrder"
	routeGetOrder    = "getOrder"

	maxBodyBytes = 1 << 20
)

// OrderService: сценарии, которые обслуживает API.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID int64, req domain.CreateOrderRequest) (domain.OrderResponse, error)
	GetOrder(ctx context.Context, customerID, orderID int64) (domain.OrderResponse, error)
}

// Option настраивает Handler.
type Option func(*Handler)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics подключает метрики HTTP.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithIdempotency включает обработку заголовка Idempotency-Key.
func WithIdempotency(guard *idempotency.Guard) Option {
	return func(h *Handler) {
		h.guard = guard
	}
}

// Handler обслуживает маршруты /v1/customers/{customerId}/orders.
type Handler struct {
	service OrderService
	guard   *idempotency.Guard
	metrics *metrics.HTTPMetrics
	logger  *log.Entry
	router  *mux.Router
}

// NewHandler собирает маршрутизатор API.
func NewHandler(service OrderService, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		logger:  log.WithField("component", "http-api"),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody(http.StatusNotFound, "route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody(http.StatusMethodNotAllowed, "method not allowed"))
	})
	r.Use(h.instrument, h.recoverer)

	v1 := r.PathPrefix("/v1/customers/{customerId}").Subrouter()
	v1.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost).Name(routeCreateOrder)
	v1.HandleFunc("/orders/{orderId}", h.getOrder).Methods(http.MethodGet).Name(routeGetOrder)

	h.router = r
	return h
}

// ServeHTTP делегирует запрос маршрутизатору.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, err.Error()))
		return
	}
	logger := h.logger.WithFields(log.Fields{
		"operation":   "create",
		"customer_id": customerID,
	})

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, "request body is too large or unreadable"))
		return
	}

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key == "" || h.guard == nil {
		status, payload := h.executeCreate(r.Context(), logger, customerID, body)
		h.writeResult(w, customerID, status, payload, false)
		return
	}

	logger = logger.WithField("idempotency_key", key)
	decision, err := h.guard.Begin(r.Context(), key, idempotency.HashRequest([]byte(r.URL.Path), body))
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	if decision.Replay {
		h.writeResult(w, customerID, decision.Status, decision.Body, true)
		return
	}

	status, payload := h.executeCreate(r.Context(), logger, customerID, body)
	// Ответ сохраняется даже при обрыве соединения клиента.
	_ = h.guard.Complete(context.WithoutCancel(r.Context()), key, status, payload)
	h.writeResult(w, customerID, status, payload, false)
}

// executeCreate выполняет сценарий и возвращает статус с готовым телом ответа.
func (h *Handler) executeCreate(ctx context.Context, logger *log.Entry, customerID int64, body []byte) (int, []byte) {
	var req OrderRequest
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&req); err != nil {
		return encode(http.StatusBadRequest, errorBody(http.StatusBadRequest, "malformed request body"))
	}

	order, err := h.service.CreateOrder(ctx, customerID, req.toDomain())
	if err != nil {
		status, message := statusFor(err)
		if status == http.StatusInternalServerError {
			logger.WithError(err).Error("request failed")
		}
		return encode(status, errorBody(status, message))
	}
	return encode(http.StatusCreated, FromDomain(order))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, err.Error()))
		return
	}
	orderID, err := pathID(r, "orderId")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, err.Error()))
		return
	}
	logger := h.logger.WithFields(log.Fields{
		"operation":   "get",
		"customer_id": customerID,
		"order_id":    orderID,
	})

	order, err := h.service.GetOrder(r.Context(), customerID, orderID)
	if err != nil {
		h.writeError(w, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, FromDomain(order))
}

// writeResult пишет готовый ответ; для 201 выставляет Location на созданный заказ.
func (h *Handler) writeResult(w http.ResponseWriter, customerID int64, status int, payload []byte, replayed bool) {
	if status == http.StatusCreated {
		var created struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(payload, &created); err == nil {
			if location, err := h.orderLocation(customerID, created.ID); err == nil {
				w.Header().Set("Location", location)
			}
		}
	}
	if replayed {
		w.Header().Set(HeaderIdempotentReplay, "true")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func (h *Handler) orderLocation(customerID, orderID int64) (string, error) {
	u, err := h.router.Get(routeGetOrder).URL(
		"customerId", strconv.FormatInt(customerID, 10),
		"orderId", strconv.FormatInt(orderID, 10),
	)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func encode(status int, body any) (int, []byte) {
	payload, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		payload, _ = json.Marshal(errorBody(status, internalErrorMessage))
	}
	return status, append(payload, '\n')
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return id, nil
}
