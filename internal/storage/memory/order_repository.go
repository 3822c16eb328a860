package memory

import (
	"context"
	"sync"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

// orderRepositoryInMemory: in-memory реализация OrderRepository с монотонными идентификаторами.
type orderRepositoryInMemory struct {
	mu         sync.RWMutex
	items      map[int64]domain.Order
	byRef      map[string]int64
	nextOrder  int64
	nextItemID int64
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[int64]domain.Order),
		byRef: make(map[string]int64),
	}
}

// Save сохраняет заказ вместе с позициями и назначает идентификаторы.
// Заказ с уже занятой внешней ссылкой отклоняется целиком.
func (r *orderRepositoryInMemory) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byRef[order.ExternalRef]; exists {
		return domain.Order{}, domain.ErrOrderConflict
	}

	stored := order.Clone()
	r.nextOrder++
	stored.ID = r.nextOrder
	for idx := range stored.Items {
		r.nextItemID++
		stored.Items[idx].ID = r.nextItemID
	}

	r.items[stored.ID] = stored
	r.byRef[stored.ExternalRef] = stored.ID
	// Наружу отдаём копию, чтобы вызывающий код не мутировал хранимое состояние.
	return stored.Clone(), nil
}

// FindByCustomerAndID возвращает заказ клиента или ErrOrderNotFound, если его нет
// или он принадлежит другому клиенту.
func (r *orderRepositoryInMemory) FindByCustomerAndID(ctx context.Context, customerID, id int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok || order.CustomerID != customerID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// Ping всегда успешен: хранилище живёт в памяти процесса.
func (r *orderRepositoryInMemory) Ping(context.Context) error {
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
