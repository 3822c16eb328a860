package lookup

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

// ErrCircuitOpen: вызов отклонён без обращения к сервису.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState: состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker размыкает цепь после maxFailures подряд ошибок недоступности
// и пропускает одну пробную попытку после resetTimeout.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	logger       *log.Entry
	now          func() time.Time
	onChange     func(CircuitState)

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
	probing     bool
}

// NewCircuitBreaker создаёт новый circuit breaker. maxFailures <= 0 отключает размыкание.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.WithField("component", "circuit-breaker")
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		logger:       logger.WithField("port", name),
		now:          time.Now,
		state:        CircuitClosed,
	}
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute выполняет операцию через circuit breaker. В счёт ошибок идут только
// ошибки недоступности: ответ «не найдено» означает, что сервис жив.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.acquire(); err != nil {
		return err
	}

	err := fn()
	cb.release(err)
	return err
}

func (cb *CircuitBreaker) acquire() error {
	if cb.maxFailures <= 0 {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			return &domain.UpstreamError{Service: cb.name, Err: ErrCircuitOpen}
		}
		cb.setStateLocked(CircuitHalfOpen)
		cb.probing = true
		return nil
	case CircuitHalfOpen:
		if cb.probing {
			return &domain.UpstreamError{Service: cb.name, Err: ErrCircuitOpen}
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) release(err error) {
	if cb.maxFailures <= 0 {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil && domain.IsUpstreamUnavailable(err) {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			if cb.state != CircuitOpen {
				cb.logger.WithField("failures", cb.failures).Warn("circuit breaker opened")
			}
			cb.setStateLocked(CircuitOpen)
		}
		return
	}

	if cb.state == CircuitHalfOpen {
		cb.logger.Info("circuit breaker closed")
	}
	cb.failures = 0
	cb.setStateLocked(CircuitClosed)
}

func (cb *CircuitBreaker) setStateLocked(state CircuitState) {
	if cb.state == state {
		return
	}
	cb.state = state
	if cb.onChange != nil {
		cb.onChange(state)
	}
}
