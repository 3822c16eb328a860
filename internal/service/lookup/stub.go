package lookup

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

// StubCustomers: конфигурируемая in-process реализация CustomerLookup.
// Используется в тестах и при запуске без адресов upstream-сервисов.
type StubCustomers struct {
	mu        sync.Mutex
	customers map[int64]domain.CustomerSummary

	// Err, если задан, возвращается на каждый вызов.
	Err   error
	calls int
}

// NewStubCustomers возвращает пустой справочник клиентов.
func NewStubCustomers() *StubCustomers {
	return &StubCustomers{customers: make(map[int64]domain.CustomerSummary)}
}

// Put добавляет или заменяет клиента.
func (s *StubCustomers) Put(customer domain.CustomerSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = customer
}

// FindByID возвращает клиента или ErrNotFound и считает вызовы.
func (s *StubCustomers) FindByID(ctx context.Context, id int64) (domain.CustomerSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err := ctx.Err(); err != nil {
		return domain.CustomerSummary{}, &domain.UpstreamError{Service: PortCustomer, Err: err}
	}
	if s.Err != nil {
		return domain.CustomerSummary{}, s.Err
	}
	customer, ok := s.customers[id]
	if !ok {
		return domain.CustomerSummary{}, domain.ErrNotFound
	}
	return customer, nil
}

// Calls возвращает число вызовов FindByID.
func (s *StubCustomers) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubProducts: in-process каталог товаров.
type StubProducts struct {
	mu       sync.Mutex
	products map[int64]domain.ProductSnapshot

	Err   error
	calls map[int64]int
}

// NewStubProducts возвращает пустой каталог.
func NewStubProducts() *StubProducts {
	return &StubProducts{
		products: make(map[int64]domain.ProductSnapshot),
		calls:    make(map[int64]int),
	}
}

// Put добавляет или заменяет товар.
func (s *StubProducts) Put(product domain.ProductSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = cloneProduct(product)
}

// FindByID возвращает товар или ErrNotFound.
func (s *StubProducts) FindByID(ctx context.Context, id int64) (domain.ProductSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[id]++
	if err := ctx.Err(); err != nil {
		return domain.ProductSnapshot{}, &domain.UpstreamError{Service: PortProduct, Err: err}
	}
	if s.Err != nil {
		return domain.ProductSnapshot{}, s.Err
	}
	product, ok := s.products[id]
	if !ok {
		return domain.ProductSnapshot{}, domain.ErrNotFound
	}
	return cloneProduct(product), nil
}

// Calls возвращает общее число вызовов FindByID.
func (s *StubProducts) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// CallsFor возвращает число вызовов для конкретного товара.
func (s *StubProducts) CallsFor(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

// StubPrices: in-process сервис цен.
type StubPrices struct {
	mu     sync.Mutex
	prices map[int64][]domain.PriceQuote

	Err   error
	calls int
}

// NewStubPrices возвращает пустой сервис цен.
func NewStubPrices() *StubPrices {
	return &StubPrices{prices: make(map[int64][]domain.PriceQuote)}
}

// Put задаёт список цен товара; первая цена считается действующей.
func (s *StubPrices) Put(productID int64, quotes ...domain.PriceQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[productID] = append([]domain.PriceQuote(nil), quotes...)
}

// FindByProductID возвращает цены товара. Неизвестный товар: ErrNotFound.
func (s *StubPrices) FindByProductID(ctx context.Context, productID int64) ([]domain.PriceQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, &domain.UpstreamError{Service: PortPrice, Err: err}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	quotes, ok := s.prices[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.PriceQuote(nil), quotes...), nil
}

// Calls возвращает число вызовов FindByProductID.
func (s *StubPrices) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Демонстрационные данные справочников.
const (
	DemoCustomerID int64 = 10
	DemoProductID  int64 = 10
)

// SeedDemoCatalog наполняет заглушки демонстрационными данными: клиент 10,
// телевизор с остатком 10 шт. по цене 145.78 USD.
func SeedDemoCatalog(customers *StubCustomers, products *StubProducts, prices *StubPrices) {
	usd := domain.Currency{Symbol: "$", ISO: "USD"}
	quote := domain.PriceQuote{
		Amount:   decimal.RequireFromString("145.78"),
		Discount: decimal.Zero,
		Currency: usd,
	}

	customers.Put(domain.CustomerSummary{
		ID:        DemoCustomerID,
		FirstName: "John",
		LastName:  "Fox",
		Email:     "john.fox@gmail.com",
		Active:    true,
	})
	products.Put(domain.ProductSnapshot{
		ID:       DemoProductID,
		Name:     "Samsung TV Neo QLED 8K 85 QE85QN800B",
		Category: "ELECTRONICS",
		Quantity: 10,
		Prices:   []domain.PriceQuote{quote},
	})
	prices.Put(DemoProductID, quote)
}

func cloneProduct(p domain.ProductSnapshot) domain.ProductSnapshot {
	p.Prices = append([]domain.PriceQuote(nil), p.Prices...)
	return p
}

var (
	_ domain.CustomerLookup = (*StubCustomers)(nil)
	_ domain.ProductLookup  = (*StubProducts)(nil)
	_ domain.PriceLookup    = (*StubPrices)(nil)
)
