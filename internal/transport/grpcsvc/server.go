package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	"github.com/joeltadeu/pact-shopping-api/internal/service/idempotency"
)

const (
	idempotencyKeyHeader = "idempotency-key"
	maxExactInt          = 1 << 53
)

// OrderService: сценарии, которые обслуживает gRPC-сервер.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID int64, req domain.CreateOrderRequest) (domain.OrderResponse, error)
	GetOrder(ctx context.Context, customerID, orderID int64) (domain.OrderResponse, error)
}

// Server реализует OrderServer поверх сценариев заказов.
type Server struct {
	service OrderService
	guard   *idempotency.Guard
	logger  *log.Entry
}

// NewServer создаёт сервер; guard может быть nil, тогда idempotency-key игнорируется.
func NewServer(service OrderService, guard *idempotency.Guard, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "grpc-order-service")
	}
	return &Server{service: service, guard: guard, logger: logger}
}

// CreateOrder принимает {customer_id, items: [{id, quantity}]}.
func (s *Server) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	fields := req.GetFields()
	customerID, err := intField(fields, "customer_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	orderReq, err := lineItems(fields["items"])
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	key := idempotencyKey(ctx)
	if key == "" || s.guard == nil {
		return s.createOrder(ctx, customerID, orderReq)
	}

	raw, err := proto.MarshalOptions{Deterministic: true}.Marshal(req)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to hash request")
	}
	decision, err := s.guard.Begin(ctx, key, idempotency.HashRequest([]byte(MethodCreateOrder), raw))
	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return nil, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, idempotency.ErrRequestInProgress):
		return nil, status.Error(codes.Aborted, err.Error())
	case err != nil:
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to reserve idempotency key")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
	if decision.Replay {
		out := new(structpb.Struct)
		if err := protojson.Unmarshal(decision.Body, out); err != nil {
			return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
		}
		return out, nil
	}

	out, err := s.createOrder(ctx, customerID, orderReq)
	store := context.WithoutCancel(ctx)
	if err != nil {
		// Отказ не кешируется: повтор с тем же ключом выполнит сценарий заново.
		_ = s.guard.Complete(store, key, http.StatusInternalServerError, nil)
		return nil, err
	}
	body, marshalErr := protojson.Marshal(out)
	if marshalErr != nil {
		_ = s.guard.Complete(store, key, http.StatusInternalServerError, nil)
		return out, nil
	}
	_ = s.guard.Complete(store, key, http.StatusOK, body)
	return out, nil
}

func (s *Server) createOrder(ctx context.Context, customerID int64, req domain.CreateOrderRequest) (*structpb.Struct, error) {
	order, err := s.service.CreateOrder(ctx, customerID, req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return orderStruct(order)
}

// GetOrder принимает {customer_id, order_id}.
func (s *Server) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	fields := req.GetFields()
	customerID, err := intField(fields, "customer_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	orderID, err := intField(fields, "order_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	order, err := s.service.GetOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return orderStruct(order)
}

func (s *Server) toStatus(err error) error {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &upstream):
		return status.Errorf(codes.Unavailable, "%s service unavailable", upstream.Service)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return status.Error(codes.Unavailable, "upstream service unavailable")
	default:
		s.logger.WithError(err).Error("grpc request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

// UnaryLoggingInterceptor пишет метод, код и длительность каждого вызова.
func UnaryLoggingInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = log.WithField("component", "grpc")
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logger.WithFields(log.Fields{
			"method":      info.FullMethod,
			"code":        status.Code(err).String(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if status.Code(err) == codes.Internal {
			entry.Warn("grpc call failed")
		} else {
			entry.Debug("grpc call served")
		}
		return resp, err
	}
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(idempotencyKeyHeader)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func intField(fields map[string]*structpb.Value, name string) (int64, error) {
	value, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}
	return toInt(value, name)
}

func toInt(value *structpb.Value, name string) (int64, error) {
	number, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	n := number.NumberValue
	// Числа в Struct: float64, целые точны только до 2^53.
	if n != math.Trunc(n) || math.Abs(n) > maxExactInt {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return int64(n), nil
}

func lineItems(value *structpb.Value) (domain.CreateOrderRequest, error) {
	var req domain.CreateOrderRequest
	if value == nil {
		return req, nil
	}
	list := value.GetListValue()
	if list == nil {
		return req, errors.New("items must be a list")
	}
	for idx, raw := range list.GetValues() {
		item := raw.GetStructValue()
		if item == nil {
			return req, fmt.Errorf("items[%d] must be an object", idx)
		}
		productID, err := itemField(item.GetFields(), "id", idx)
		if err != nil {
			return req, err
		}
		quantity, err := itemField(item.GetFields(), "quantity", idx)
		if err != nil {
			return req, err
		}
		if quantity > math.MaxInt32 {
			return req, fmt.Errorf("items[%d].quantity is too large", idx)
		}
		req.Items = append(req.Items, domain.LineItem{ProductID: productID, Quantity: int(quantity)})
	}
	return req, nil
}

func itemField(fields map[string]*structpb.Value, name string, idx int) (int64, error) {
	label := fmt.Sprintf("items[%d].%s", idx, name)
	value, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", label)
	}
	return toInt(value, label)
}

func orderStruct(order domain.OrderResponse) (*structpb.Struct, error) {
	items := make([]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"id":         item.ID,
			"product_id": item.ProductID,
			"name":       item.Name,
			"quantity":   item.Quantity,
			"price": map[string]any{
				"amount":   item.Price.Amount.String(),
				"discount": item.Price.Discount.String(),
				"total":    item.Price.Total.String(),
				"currency": map[string]any{
					"symbol": item.Price.Currency.Symbol,
					"iso":    item.Price.Currency.ISO,
				},
			},
		})
	}

	out, err := structpb.NewStruct(map[string]any{
		"id":           order.ID,
		"external_ref": order.ExternalRef,
		"created_at":   order.CreatedAt.UTC().Format(time.RFC3339Nano),
		"status":       string(order.Status),
		"customer": map[string]any{
			"id":         order.Customer.ID,
			"first_name": order.Customer.FirstName,
			"last_name":  order.Customer.LastName,
		},
		"items": items,
		"total": order.Total.String(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	return out, nil
}
