package httpclient

import (
	"context"
	"fmt"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

type customerPayload struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Active    *bool  `json:"active"`
}

// CustomerClient: клиент справочника клиентов (`GET /v1/customers/{id}`).
type CustomerClient struct {
	base baseClient
}

// NewCustomerClient создаёт клиент для сервиса по адресу baseURL.
func NewCustomerClient(baseURL string, opts ...Option) *CustomerClient {
	return &CustomerClient{base: newBaseClient("customer", baseURL, opts...)}
}

// FindByID загружает клиента.
func (c *CustomerClient) FindByID(ctx context.Context, id int64) (domain.CustomerSummary, error) {
	var payload customerPayload
	if err := c.base.getJSON(ctx, fmt.Sprintf("/v1/customers/%d", id), &payload); err != nil {
		return domain.CustomerSummary{}, err
	}

	// Поле active необязательно; его отсутствие трактуется как активный клиент.
	active := payload.Active == nil || *payload.Active
	return domain.CustomerSummary{
		ID:        payload.ID,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Active:    active,
	}, nil
}

var _ domain.CustomerLookup = (*CustomerClient)(nil)
