// Package httpclient реализует порты справочников поверх JSON/HTTP.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	"github.com/joeltadeu/pact-shopping-api/internal/version"
)

const (
	defaultTimeout = 5 * time.Second
	maxErrorBody   = 512
)

// Option настраивает базовый клиент.
type Option func(*baseClient)

// WithHTTPClient подменяет *http.Client (например, в тестах).
func WithHTTPClient(client *http.Client) Option {
	return func(c *baseClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout задаёт таймаут одного HTTP-запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(c *baseClient) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(c *baseClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type baseClient struct {
	service string
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

func newBaseClient(service, baseURL string, opts ...Option) baseClient {
	c := baseClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  log.WithField("component", service+"-client"),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// getJSON выполняет GET и декодирует тело в out.
// 404 означает подтверждённое отсутствие, всё остальное непредвиденное: недоступность.
func (c baseClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent("order-service"))

	resp, err := c.http.Do(req)
	if err != nil {
		return c.unavailable(fmt.Errorf("GET %s: %w", path, err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.WithFields(log.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("unexpected upstream response")
		return c.unavailable(fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.unavailable(fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

func (c baseClient) unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.WithError(err).Debug("upstream call interrupted")
	}
	return &domain.UpstreamError{Service: c.service, Err: err}
}
