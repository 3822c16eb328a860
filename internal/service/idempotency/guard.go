package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

const defaultKeyTTL = 24 * time.Hour

// ErrRequestInProgress: запрос с тем же ключом ещё выполняется.
var ErrRequestInProgress = errors.New("request with the same idempotency key is in progress")

// Decision: результат Begin. Replay=true означает, что нужно вернуть сохранённый ответ.
type Decision struct {
	Replay bool
	Status int
	Body   []byte
}

// Guard связывает Idempotency-Key запроса с сохранённым ответом.
//
// Ответы со статусом < 500 сохраняются и повторяются. Ответ 5xx помечает запись
// failed без тела, и повтор с тем же ключом снова выполняет запрос.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewGuard создаёт Guard; ttl <= 0 заменяется на сутки.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = defaultKeyTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// HashRequest считает отпечаток запроса из его частей (маршрут, тело).
func HashRequest(parts ...[]byte) string {
	h := sha256.New()
	for _, part := range parts {
		_, _ = h.Write(part)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Begin резервирует ключ. Ошибки: ErrIdempotencyHashMismatch, ErrRequestInProgress.
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (Decision, error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return Decision{}, nil
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return Decision{}, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
	default:
		return Decision{}, fmt.Errorf("reserve idempotency key: %w", err)
	}

	switch {
	case record.Replayable():
		g.logger.WithField("idempotency_key", key).Debug("replaying stored response")
		return Decision{Replay: true, Status: record.HTTPStatus, Body: record.ResponseBody}, nil
	case record.Status == domain.IdempotencyStatusFailed:
		return Decision{}, nil
	default:
		return Decision{}, ErrRequestInProgress
	}
}

// Complete сохраняет ответ для последующих повторов.
func (g *Guard) Complete(ctx context.Context, key string, status int, body []byte) error {
	var err error
	if status >= http.StatusInternalServerError {
		err = g.repo.MarkFailed(ctx, key, nil, 0)
	} else {
		err = g.repo.MarkDone(ctx, key, body, status)
	}
	if err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}
