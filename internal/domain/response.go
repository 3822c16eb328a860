package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderCustomer: клиент в составе ответа.
type OrderCustomer struct {
	ID        int64
	FirstName string
	LastName  string
}

// PriceView: цена позиции в ответе вместе с суммой по позиции.
type PriceView struct {
	Amount   decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Currency Currency
}

// OrderItemResponse: позиция, обогащённая названием товара.
type OrderItemResponse struct {
	ID        int64
	ProductID int64
	Name      string
	Quantity  int
	Price     PriceView
}

// OrderResponse: производное представление заказа, не хранится.
type OrderResponse struct {
	ID          int64
	ExternalRef string
	CreatedAt   time.Time
	Status      OrderStatus
	Customer    OrderCustomer
	Items       []OrderItemResponse
	Total       decimal.Decimal
}
