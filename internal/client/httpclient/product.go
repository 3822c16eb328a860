package httpclient

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

type currencyPayload struct {
	Symbol string `json:"symbol"`
	ISO    string `json:"iso"`
}

type pricePayload struct {
	Amount   decimal.Decimal `json:"amount"`
	Discount decimal.Decimal `json:"discount"`
	Currency currencyPayload `json:"currency"`
}

func (p pricePayload) toDomain() domain.PriceQuote {
	return domain.PriceQuote{
		Amount:   p.Amount,
		Discount: p.Discount,
		Currency: domain.Currency{Symbol: p.Currency.Symbol, ISO: p.Currency.ISO},
	}
}

type productPayload struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Category string         `json:"category"`
	Quantity int            `json:"quantity"`
	Prices   []pricePayload `json:"prices"`
}

// ProductClient: клиент каталога товаров (`GET /v1/products/{id}`).
type ProductClient struct {
	base baseClient
}

// NewProductClient создаёт клиент каталога.
func NewProductClient(baseURL string, opts ...Option) *ProductClient {
	return &ProductClient{base: newBaseClient("product", baseURL, opts...)}
}

// FindByID загружает текущее состояние товара, включая остаток.
func (c *ProductClient) FindByID(ctx context.Context, id int64) (domain.ProductSnapshot, error) {
	var payload productPayload
	if err := c.base.getJSON(ctx, fmt.Sprintf("/v1/products/%d", id), &payload); err != nil {
		return domain.ProductSnapshot{}, err
	}

	product := domain.ProductSnapshot{
		ID:       payload.ID,
		Name:     payload.Name,
		Category: payload.Category,
		Quantity: payload.Quantity,
		Prices:   make([]domain.PriceQuote, 0, len(payload.Prices)),
	}
	for _, price := range payload.Prices {
		product.Prices = append(product.Prices, price.toDomain())
	}
	return product, nil
}

// PriceClient: клиент сервиса цен (`GET /v1/products/{id}/prices`).
type PriceClient struct {
	base baseClient
}

// NewPriceClient создаёт клиент сервиса цен.
func NewPriceClient(baseURL string, opts ...Option) *PriceClient {
	return &PriceClient{base: newBaseClient("price", baseURL, opts...)}
}

// FindByProductID возвращает цены товара в порядке ответа сервиса.
func (c *PriceClient) FindByProductID(ctx context.Context, productID int64) ([]domain.PriceQuote, error) {
	var payload []pricePayload
	if err := c.base.getJSON(ctx, fmt.Sprintf("/v1/products/%d/prices", productID), &payload); err != nil {
		return nil, err
	}

	quotes := make([]domain.PriceQuote, 0, len(payload))
	for _, price := range payload {
		quotes = append(quotes, price.toDomain())
	}
	return quotes, nil
}

var (
	_ domain.ProductLookup = (*ProductClient)(nil)
	_ domain.PriceLookup   = (*PriceClient)(nil)
)
