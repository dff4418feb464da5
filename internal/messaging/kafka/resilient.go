package kafka

import (
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// ErrCircuitOpen возвращается, пока breaker не пропускает публикацию.
var ErrCircuitOpen = errors.New("kafka circuit breaker is open")

// RetryConfig задаёт повторы публикации поверх ретраев самого sarama.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig держит задержки короткими: публикация идёт внутри
// операции над заказом.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// CircuitState — состояние breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker размыкается после maxFailures ошибок подряд и через
// resetTimeout пропускает одну пробную операцию.
type CircuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
	failures     int
	lastFailure  time.Time
	state        CircuitState
	logger       *log.Entry
	now          func() time.Time
}

// NewCircuitBreaker создаёт breaker в замкнутом состоянии.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	if logger == nil {
		logger = log.WithField("component", "kafka-circuit-breaker")
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
		logger:       logger,
		now:          time.Now,
	}
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute выполняет fn, если breaker её пропускает.
func (cb *CircuitBreaker) Execute(operation string, fn func() error) error {
	if !cb.allow(operation) {
		return ErrCircuitOpen
	}
	err := fn()
	cb.done(operation, err)
	return err
}

func (cb *CircuitBreaker) allow(operation string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.logger.WithField("operation", operation).Info("circuit breaker half-open")
		return true
	case CircuitHalfOpen:
		// пробная операция уже идёт
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) done(operation string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == CircuitHalfOpen {
			cb.logger.WithField("operation", operation).Info("circuit breaker closed")
		}
		cb.state = CircuitClosed
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != CircuitOpen {
			cb.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  cb.failures,
			}).Warn("circuit breaker opened")
		}
		cb.state = CircuitOpen
	}
}

// ResilientPublisher оборачивает publisher повторами с экспоненциальной
// задержкой и circuit breaker, чтобы недоступная Kafka не тормозила заказы.
type ResilientPublisher struct {
	next    domain.EventPublisher
	retry   RetryConfig
	breaker *CircuitBreaker
	logger  *log.Entry
	sleep   func(time.Duration)
}

// NewResilientPublisher собирает обёртку. breaker nil означает публикацию
// без размыкания.
func NewResilientPublisher(next domain.EventPublisher, retry RetryConfig, breaker *CircuitBreaker, logger *log.Entry) *ResilientPublisher {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffFactor < 1 {
		retry.BackoffFactor = 1
	}
	if logger == nil {
		logger = log.WithField("component", "kafka-publisher")
	}
	return &ResilientPublisher{
		next:    next,
		retry:   retry,
		breaker: breaker,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// PublishOrderEvent публикует событие с повторами.
func (p *ResilientPublisher) PublishOrderEvent(event domain.OrderEvent) error {
	if p.breaker == nil {
		return p.publishWithRetry(event)
	}
	err := p.breaker.Execute("publish_order_event", func() error {
		return p.publishWithRetry(event)
	})
	if errors.Is(err, ErrCircuitOpen) {
		p.logger.WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.Type,
		}).Debug("order event skipped, circuit breaker is open")
	}
	return err
}

func (p *ResilientPublisher) publishWithRetry(event domain.OrderEvent) error {
	delay := p.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		lastErr = p.next.PublishOrderEvent(event)
		if lastErr == nil {
			if attempt > 1 {
				p.logger.WithFields(log.Fields{
					"order_id": event.OrderID,
					"attempt":  attempt,
				}).Info("order event published after retry")
			}
			return nil
		}
		if !shouldRetry(lastErr) || attempt == p.retry.MaxAttempts {
			break
		}

		p.logger.WithError(lastErr).WithFields(log.Fields{
			"order_id": event.OrderID,
			"attempt":  attempt,
			"delay":    delay,
		}).Warn("order event publish failed, retrying")
		p.sleep(delay)

		delay = time.Duration(float64(delay) * p.retry.BackoffFactor)
		if p.retry.MaxDelay > 0 && delay > p.retry.MaxDelay {
			delay = p.retry.MaxDelay
		}
	}
	return lastErr
}

// shouldRetry отсекает ошибки, которые не исправятся повтором.
func shouldRetry(err error) bool {
	return !errors.Is(err, sarama.ErrMessageSizeTooLarge) &&
		!errors.Is(err, sarama.ErrInvalidMessage) &&
		!errors.Is(err, sarama.ErrClosedClient)
}

var _ domain.EventPublisher = (*ResilientPublisher)(nil)
