package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

func newTestRetrier(cfg RetryConfig) (*Retrier, *[]time.Duration) {
	r := NewRetrier(cfg, nil)
	var delays []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return r, &delays
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected MaxAttempts: %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay <= 0 || cfg.MaxDelay <= 0 || cfg.AttemptTimeout <= 0 {
		t.Fatalf("delays must be positive: %+v", cfg)
	}
	if cfg.BackoffFactor <= 1 {
		t.Fatalf("backoff factor should be > 1: %f", cfg.BackoffFactor)
	}
}

func TestRetryConfigNormalized(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 0, InitialDelay: -time.Second, BackoffFactor: 0.5}.normalized()

	require.Equal(t, 1, cfg.MaxAttempts)
	require.Zero(t, cfg.InitialDelay)
	require.Equal(t, 1.0, cfg.BackoffFactor)
	require.Equal(t, DefaultRetryConfig().AttemptTimeout, cfg.AttemptTimeout)
}

func TestRetrier_RetriesUpstreamWithBackoff(t *testing.T) {
	r, delays := newTestRetrier(RetryConfig{
		MaxAttempts:   4,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      25 * time.Millisecond,
		BackoffFactor: 2,
	})

	calls := 0
	err := r.Do(context.Background(), PortProduct, func(context.Context) error {
		calls++
		if calls < 4 {
			return &domain.UpstreamError{Service: PortProduct, Err: errors.New("503")}
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 4, calls)
	require.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond}, *delays)
}

func TestRetrier_NotFoundIsFinal(t *testing.T) {
	r, delays := newTestRetrier(RetryConfig{MaxAttempts: 3})

	calls := 0
	err := r.Do(context.Background(), PortCustomer, func(context.Context) error {
		calls++
		return domain.ErrNotFound
	})

	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, 1, calls)
	require.Empty(t, *delays)
}

func TestRetrier_UnknownErrorIsNotRetried(t *testing.T) {
	r, _ := newTestRetrier(RetryConfig{MaxAttempts: 3})

	calls := 0
	boom := errors.New("decode failure")
	err := r.Do(context.Background(), PortPrice, func(context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestRetrier_ExhaustedReturnsLastUpstreamError(t *testing.T) {
	r, _ := newTestRetrier(RetryConfig{MaxAttempts: 2})

	retries := 0
	r.onRetry = func(int, error) { retries++ }

	err := r.Do(context.Background(), PortPrice, func(context.Context) error {
		return &domain.UpstreamError{Service: PortPrice}
	})

	require.True(t, domain.IsUpstreamUnavailable(err))
	require.Equal(t, 1, retries)
}

func TestRetrier_AttemptTimeoutApplied(t *testing.T) {
	r, _ := newTestRetrier(RetryConfig{MaxAttempts: 1, AttemptTimeout: 50 * time.Millisecond})

	err := r.Do(context.Background(), PortCustomer, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "attempt context must carry a deadline")
		require.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
}

func TestRetrier_CanceledContextIsUpstream(t *testing.T) {
	r, _ := newTestRetrier(RetryConfig{MaxAttempts: 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.Do(ctx, PortCustomer, func(context.Context) error {
		calls++
		return nil
	})

	require.True(t, domain.IsUpstreamUnavailable(err))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}
