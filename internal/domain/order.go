package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает состояние заказа.
type OrderStatus string

const (
	// OrderStatusDone: единственный статус, который сейчас присваивается заказу при создании.
	OrderStatusDone OrderStatus = "DONE"
)

// Currency: валюта цены, копируется в позицию вместе с ценой.
type Currency struct {
	Symbol string
	ISO    string
}

// OrderPrice: снимок цены на момент создания заказа. Хранится по значению,
// последующие изменения в сервисе цен на него не влияют.
type OrderPrice struct {
	Amount   decimal.Decimal
	Discount decimal.Decimal
	Currency Currency
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID назначается хранилищем при сохранении.
	ID        int64
	ProductID int64
	Quantity  int
	// Price пуст до прохождения проверки остатков.
	Price *OrderPrice
}

// Total возвращает сумму позиции: amount * quantity.
// Для позиции без цены возвращается ноль.
func (i OrderItem) Total() decimal.Decimal {
	if i.Price == nil {
		return decimal.Zero
	}
	return i.Price.Amount.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order агрегирует заказ и его позиции. Позиции принадлежат заказу
// и сохраняются вместе с ним одной операцией.
type Order struct {
	ID          int64
	ExternalRef string
	CreatedAt   time.Time
	Status      OrderStatus
	CustomerID  int64
	Items       []OrderItem
}

// Total вычисляется при каждом чтении и нигде не хранится.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Total())
	}
	return total
}

// Clone возвращает глубокую копию заказа вместе с ценами позиций.
func (o Order) Clone() Order {
	dst := o
	if o.Items == nil {
		return dst
	}
	dst.Items = make([]OrderItem, len(o.Items))
	for idx, item := range o.Items {
		if item.Price != nil {
			price := *item.Price
			item.Price = &price
		}
		dst.Items[idx] = item
	}
	return dst
}

// ValidateInvariants проверяет инварианты агрегата перед сохранением.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID <= 0 {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.ExternalRef == "" {
		errs = append(errs, ErrExternalRefRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price == nil {
			errs = append(errs, ErrItemPriceMissing)
			continue
		}
		if item.Price.Amount.IsNegative() || item.Price.Discount.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.Price.Currency.ISO == "" {
			errs = append(errs, ErrCurrencyRequired)
		}
	}

	return errs
}

// LineItem описывает одну строку запроса (товар и количество).
type LineItem struct {
	ProductID int64
	Quantity  int
}

// CreateOrderRequest: входные данные для создания заказа.
type CreateOrderRequest struct {
	Items []LineItem
}

// Validate выполняет локальную проверку запроса до любых удалённых вызовов.
func (r CreateOrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return &BadRequestError{Reason: ErrItemsRequired.Error()}
	}
	for idx, line := range r.Items {
		if line.ProductID <= 0 {
			return &BadRequestError{Reason: fmt.Sprintf("items[%d].id must be positive", idx)}
		}
		if line.Quantity <= 0 {
			return &BadRequestError{
				Reason:    fmt.Sprintf("items[%d].quantity must be greater than zero", idx),
				ProductID: line.ProductID,
			}
		}
	}
	return nil
}
