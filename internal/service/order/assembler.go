package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

// NewAggregate собирает каркас заказа из запроса: статус DONE, внешняя ссылка,
// время создания и по одной неоценённой позиции на каждую строку в исходном порядке.
func NewAggregate(customerID int64, req domain.CreateOrderRequest, now time.Time, externalRef string) domain.Order {
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	return domain.Order{
		ExternalRef: externalRef,
		CreatedAt:   now,
		Status:      domain.OrderStatusDone,
		CustomerID:  customerID,
		Items:       items,
	}
}

// FreezePrice копирует цену из ответа сервиса цен в значение, принадлежащее позиции.
func FreezePrice(quote domain.PriceQuote) domain.OrderPrice {
	return domain.OrderPrice{
		Amount:   quote.Amount,
		Discount: quote.Discount,
		Currency: quote.Currency,
	}
}

// ItemView строит позицию ответа из сохранённой позиции и данных каталога.
// Цена берётся из снимка позиции, из каталога используется только название.
func ItemView(item domain.OrderItem, product domain.ProductSnapshot) domain.OrderItemResponse {
	view := domain.OrderItemResponse{
		ID:        item.ID,
		ProductID: item.ProductID,
		Name:      product.Name,
		Quantity:  item.Quantity,
		Price: domain.PriceView{
			Amount:   decimal.Zero,
			Discount: decimal.Zero,
			Total:    item.Total(),
		},
	}
	if item.Price != nil {
		view.Price.Amount = item.Price.Amount
		view.Price.Discount = item.Price.Discount
		view.Price.Currency = item.Price.Currency
	}
	return view
}

// BuildResponse собирает вложенное представление заказа; total = сумма по позициям.
func BuildResponse(order domain.Order, customer domain.CustomerSummary, items []domain.OrderItemResponse) domain.OrderResponse {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Total)
	}
	if items == nil {
		items = []domain.OrderItemResponse{}
	}

	return domain.OrderResponse{
		ID:          order.ID,
		ExternalRef: order.ExternalRef,
		CreatedAt:   order.CreatedAt,
		Status:      order.Status,
		Customer: domain.OrderCustomer{
			ID:        customer.ID,
			FirstName: customer.FirstName,
			LastName:  customer.LastName,
		},
		Items: items,
		Total: total,
	}
}
