package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

type publisherFunc func(domain.OrderEvent) error

func (f publisherFunc) PublishOrderEvent(event domain.OrderEvent) error { return f(event) }

func quietEntry() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func failingTimes(n int, err error, calls *int) publisherFunc {
	return func(domain.OrderEvent) error {
		*calls++
		if *calls <= n {
			return err
		}
		return nil
	}
}

func TestResilientPublisher_RetriesWithBackoff(t *testing.T) {
	calls := 0
	var delays []time.Duration
	p := NewResilientPublisher(failingTimes(2, errors.New("broker down"), &calls), RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      15 * time.Millisecond,
		BackoffFactor: 2,
	}, nil, quietEntry())
	p.sleep = func(d time.Duration) { delays = append(delays, d) }

	require.NoError(t, p.PublishOrderEvent(testEvent()))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, delays)
}

func TestResilientPublisher_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("broker down")
	p := NewResilientPublisher(failingTimes(10, boom, &calls), RetryConfig{MaxAttempts: 2}, nil, quietEntry())
	p.sleep = func(time.Duration) {}

	assert.ErrorIs(t, p.PublishOrderEvent(testEvent()), boom)
	assert.Equal(t, 2, calls)
}

func TestResilientPublisher_NoRetryForPermanentErrors(t *testing.T) {
	calls := 0
	p := NewResilientPublisher(failingTimes(10, sarama.ErrMessageSizeTooLarge, &calls), DefaultRetryConfig(), nil, quietEntry())
	p.sleep = func(time.Duration) { t.Fatal("must not sleep") }

	assert.ErrorIs(t, p.PublishOrderEvent(testEvent()), sarama.ErrMessageSizeTooLarge)
	assert.Equal(t, 1, calls)
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, time.Minute, quietEntry())
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	fail := func() error { return boom }
	ok := func() error { return nil }

	assert.ErrorIs(t, cb.Execute("op", fail), boom)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.ErrorIs(t, cb.Execute("op", fail), boom)
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Execute("op", func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	// после resetTimeout одна пробная операция; ошибка снова размыкает
	now = now.Add(time.Minute)
	assert.ErrorIs(t, cb.Execute("op", fail), boom)
	assert.Equal(t, CircuitOpen, cb.State())

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute("op", ok))
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}

func TestResilientPublisher_BreakerSkipsWhileOpen(t *testing.T) {
	calls := 0
	p := NewResilientPublisher(failingTimes(100, errors.New("down"), &calls), RetryConfig{MaxAttempts: 1},
		NewCircuitBreaker(1, time.Hour, quietEntry()), quietEntry())

	assert.Error(t, p.PublishOrderEvent(testEvent()))
	assert.ErrorIs(t, p.PublishOrderEvent(testEvent()), ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}

func TestResilientPublisher_OverSaramaProducer(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrNotEnoughReplicas)
	mockProducer.ExpectSendMessageAndSucceed()

	p := NewResilientPublisher(NewProducerFromSync(mockProducer, "", quietEntry()), RetryConfig{MaxAttempts: 2}, nil, quietEntry())
	p.sleep = func(time.Duration) {}

	require.NoError(t, p.PublishOrderEvent(testEvent()))
	require.NoError(t, mockProducer.Close())
}
