package httpapi

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

// OrderItemRequest описывает строку тела POST (идентификатор товара и количество).
type OrderItemRequest struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

// OrderRequest: тело POST /v1/customers/{customerId}/orders.
type OrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

func (r OrderRequest) toDomain() domain.CreateOrderRequest {
	lines := make([]domain.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, domain.LineItem{ProductID: item.ID, Quantity: item.Quantity})
	}
	return domain.CreateOrderRequest{Items: lines}
}

// CurrencyResponse описывает валюту цены.
type CurrencyResponse struct {
	Symbol string `json:"symbol"`
	ISO    string `json:"iso"`
}

// PriceResponse: цена позиции. Денежные значения отдаются JSON-числами.
type PriceResponse struct {
	Amount   json.Number      `json:"amount"`
	Discount json.Number      `json:"discount"`
	Total    json.Number      `json:"total"`
	Currency CurrencyResponse `json:"currency"`
}

// OrderItemResponse: позиция заказа в ответе.
type OrderItemResponse struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Quantity int           `json:"quantity"`
	Price    PriceResponse `json:"price"`
}

// CustomerResponse: клиент в составе заказа.
type CustomerResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// OrderResponse: тело ответа для создания и чтения заказа.
type OrderResponse struct {
	ID        int64               `json:"id"`
	CreatedAt time.Time           `json:"createdAt"`
	Status    string              `json:"status"`
	Customer  CustomerResponse    `json:"customer"`
	Items     []OrderItemResponse `json:"items"`
	Total     json.Number         `json:"total"`
}

// ErrorResponse: тело ответа с ошибкой.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FromDomain переводит доменное представление заказа в формат API.
func FromDomain(order domain.OrderResponse) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price: PriceResponse{
				Amount:   number(item.Price.Amount),
				Discount: number(item.Price.Discount),
				Total:    number(item.Price.Total),
				Currency: CurrencyResponse{
					Symbol: item.Price.Currency.Symbol,
					ISO:    item.Price.Currency.ISO,
				},
			},
		})
	}

	return OrderResponse{
		ID:        order.ID,
		CreatedAt: order.CreatedAt.UTC(),
		Status:    string(order.Status),
		Customer: CustomerResponse{
			ID:        order.Customer.ID,
			FirstName: order.Customer.FirstName,
			LastName:  order.Customer.LastName,
		},
		Items: items,
		Total: number(order.Total),
	}
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
