package domain

import (
	"errors"
	"fmt"
)

// Категории ошибок, на которые граница (HTTP/gRPC) отображает коды статусов.
var (
	// ErrNotFound: сущность подтверждённо отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest: запрос нельзя выполнить без изменения его содержимого.
	ErrBadRequest = errors.New("bad request")
	// ErrUpstreamUnavailable: удалённый сервис недоступен, отсутствие сущности не подтверждено.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующей внешней ссылки заказа.
	ErrExternalRefRequired = errors.New("external_ref is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если позиции не назначена цена.
	ErrItemPriceMissing = errors.New("item price is required")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// ErrOrderNotFound возвращается репозиторием, если заказа нет.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrOrderConflict: заказ с такой внешней ссылкой уже сохранён.
	ErrOrderConflict = errors.New("order with the same external_ref already exists")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired: пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой hash запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists: ключ уже использован с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ уже использован с другим запросом.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound: запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// Entity называет сущность в сообщениях об ошибках.
type Entity string

const (
	EntityCustomer Entity = "customer"
	EntityProduct  Entity = "product"
	EntityPrice    Entity = "price"
	EntityOrder    Entity = "order"
)

// NotFoundError сообщает, какая сущность отсутствует.
type NotFoundError struct {
	Entity Entity
	ID     int64
	// CustomerID заполняется для заказа: заказ ищется по паре (клиент, заказ).
	CustomerID int64
}

func (e *NotFoundError) Error() string {
	switch e.Entity {
	case EntityOrder:
		return fmt.Sprintf("Order id '%d' for the customer '%d' not found", e.ID, e.CustomerID)
	case EntityCustomer:
		return fmt.Sprintf("Customer id '%d' not found", e.ID)
	case EntityProduct:
		return fmt.Sprintf("Product id '%d' not found", e.ID)
	case EntityPrice:
		return fmt.Sprintf("Price for product id '%d' not found", e.ID)
	default:
		return fmt.Sprintf("%s id '%d' not found", e.Entity, e.ID)
	}
}

// Is относит ошибку к категории ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// BadRequestError: бизнес-отказ; ProductID указывает на проблемную строку, если она есть.
type BadRequestError struct {
	Reason    string
	ProductID int64
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

// Is относит ошибку к категории ErrBadRequest.
func (e *BadRequestError) Is(target error) bool {
	return target == ErrBadRequest
}

// InsufficientStock формирует отказ для строки, превышающей остаток.
func InsufficientStock(productID int64) *BadRequestError {
	return &BadRequestError{
		Reason:    fmt.Sprintf("Product id %d not available on stock", productID),
		ProductID: productID,
	}
}

// UpstreamError: удалённый сервис не ответил или ответил ошибкой.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s service unavailable", e.Service)
	}
	return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is относит ошибку к категории ErrUpstreamUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// IsNotFound проверяет категорию «не найдено».
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUpstreamUnavailable проверяет, что ошибка вызвана недоступностью удалённого сервиса.
func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// IsIdempotencyConflict проверяет, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
