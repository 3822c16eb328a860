package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Save атомарно сохраняет заказ вместе с позициями и возвращает его
	// с назначенными идентификаторами.
	Save(ctx context.Context, order Order) (Order, error)
	// FindByCustomerAndID возвращает заказ клиента или ErrOrderNotFound.
	// Заказ другого клиента считается отсутствующим.
	FindByCustomerAndID(ctx context.Context, customerID, id int64) (Order, error)
}
