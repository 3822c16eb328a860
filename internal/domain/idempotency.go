package domain

import "time"

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing: запрос на создание заказа принят и ещё выполняется.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone: заказ создан, ответ сохранён для повтора.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed: создание завершилось отказом, ответ с ошибкой тоже сохранён.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord хранит состояние обработки POST-запроса с заголовком Idempotency-Key.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Replayable сообщает, что у записи есть сохранённый ответ, который можно вернуть повторно.
func (r IdempotencyRecord) Replayable() bool {
	return (r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed) && r.HTTPStatus > 0
}

// Expired проверяет, истёк ли срок хранения записи к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.IsZero() && !now.Before(r.TTLAt)
}
