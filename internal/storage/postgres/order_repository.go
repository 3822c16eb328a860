package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	pgUniqueViolation = "23505"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Save записывает заказ и позиции в одной транзакции. Идентификаторы
// назначаются последовательностями БД.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) (saved domain.Order, err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	saved = order.Clone()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (external_ref, customer_id, status, created_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`,
		order.ExternalRef, order.CustomerID, string(order.Status), order.CreatedAt.UTC(),
	).Scan(&saved.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, domain.ErrOrderConflict
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for idx := range saved.Items {
		item := &saved.Items[idx]
		if item.Price == nil {
			err = domain.ErrItemPriceMissing
			return domain.Order{}, fmt.Errorf("insert order item %d: %w", idx, err)
		}
		if err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (
				order_id, position, product_id, quantity,
				amount, discount, currency_symbol, currency_iso
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING id
		`,
			saved.ID, idx, item.ProductID, item.Quantity,
			item.Price.Amount, item.Price.Discount, item.Price.Currency.Symbol, item.Price.Currency.ISO,
		).Scan(&item.ID); err != nil {
			return domain.Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order: %w", err)
	}

	return saved, nil
}

// FindByCustomerAndID ищет заказ по паре (клиент, заказ).
func (r *orderRepository) FindByCustomerAndID(ctx context.Context, customerID, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		order  domain.Order
		status string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, external_ref, customer_id, status, created_at
		FROM orders
		WHERE id = $1 AND customer_id = $2
	`, id, customerID).Scan(
		&order.ID, &order.ExternalRef, &order.CustomerID, &status, &order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, amount, discount, currency_symbol, currency_iso
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var (
			item  domain.OrderItem
			price domain.OrderPrice
		)
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.Quantity,
			&price.Amount, &price.Discount, &price.Currency.Symbol, &price.Currency.ISO,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Price = &price
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
