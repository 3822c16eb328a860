package lookup

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

// RetryConfig конфигурация для retry логики обращений к справочникам.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// AttemptTimeout ограничивает одну попытку; общий дедлайн задаёт ctx вызывающего.
	AttemptTimeout time.Duration
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		BackoffFactor:  2.0,
		AttemptTimeout: 3 * time.Second,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 1
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}
	return c
}

// Retrier повторяет вызов порта только при недоступности удалённого сервиса.
// Подтверждённое отсутствие (ErrNotFound) возвращается сразу.
type Retrier struct {
	config  RetryConfig
	logger  *log.Entry
	onRetry func(attempt int, err error)
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetrier создаёт Retrier.
func NewRetrier(config RetryConfig, logger *log.Entry) *Retrier {
	if logger == nil {
		logger = log.WithField("component", "lookup-retrier")
	}
	return &Retrier{
		config: config.normalized(),
		logger: logger,
		sleep:  sleepContext,
	}
}

// Do выполняет fn с повторами и экспоненциальной задержкой.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return upstreamFromContext(operation, err, lastErr)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.config.AttemptTimeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 1 {
				r.logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("lookup succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		r.logger.WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay,
			"error":     err,
		}).Warn("lookup failed, retrying")
		if r.onRetry != nil {
			r.onRetry(attempt, err)
		}

		if err := r.sleep(ctx, delay); err != nil {
			return upstreamFromContext(operation, err, lastErr)
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	r.logger.WithFields(log.Fields{
		"operation":    operation,
		"max_attempts": r.config.MaxAttempts,
		"error":        lastErr,
	}).Warn("lookup failed after all retry attempts")
	return lastErr
}

// shouldRetry: повторяем только недоступность, бизнес-ответы финальны.
func shouldRetry(err error) bool {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrBadRequest) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return errors.Is(err, domain.ErrUpstreamUnavailable)
}

func upstreamFromContext(operation string, ctxErr, lastErr error) error {
	if lastErr != nil && domain.IsUpstreamUnavailable(lastErr) {
		return lastErr
	}
	return &domain.UpstreamError{Service: operation, Err: ctxErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
