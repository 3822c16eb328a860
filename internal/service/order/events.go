package order

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

const (
	// AggregateTypeOrder: тип агрегата в outbox.
	AggregateTypeOrder = "order"
	// EventOrderCreated публикуется после сохранения заказа.
	EventOrderCreated = "order.created"
)

// CreatedEventItem: позиция в событии order.created.
type CreatedEventItem struct {
	ItemID    int64           `json:"itemId"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// CreatedEvent: полезная нагрузка события order.created.
type CreatedEvent struct {
	OrderID     int64              `json:"orderId"`
	ExternalRef string             `json:"externalRef"`
	CustomerID  int64              `json:"customerId"`
	Status      domain.OrderStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	Items       []CreatedEventItem `json:"items"`
	Total       decimal.Decimal    `json:"total"`
}

func newCreatedMessage(order domain.Order) (domain.OutboxMessage, error) {
	event := CreatedEvent{
		OrderID:     order.ID,
		ExternalRef: order.ExternalRef,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		CreatedAt:   order.CreatedAt.UTC(),
		Items:       make([]CreatedEventItem, 0, len(order.Items)),
		Total:       order.Total(),
	}
	for _, item := range order.Items {
		eventItem := CreatedEventItem{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if item.Price != nil {
			eventItem.Amount = item.Price.Amount
			eventItem.Currency = item.Price.Currency.ISO
		}
		event.Items = append(event.Items, eventItem)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s event: %w", EventOrderCreated, err)
	}

	return domain.OutboxMessage{
		AggregateType: AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     EventOrderCreated,
		Payload:       payload,
	}, nil
}
