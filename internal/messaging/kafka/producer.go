package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// Producer публикует события заказов в Kafka.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *log.Entry
}

// NewProducer создаёт синхронный идемпотентный producer.
func NewProducer(brokers []string, topic string, logger *log.Entry) (*Producer, error) {
	config := sarama.NewConfig()
	config.ClientID = "inventory-service"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // требование idempotent producer

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducerFromSync(producer, topic, logger), nil
}

// NewProducerFromSync оборачивает готовый SyncProducer, например mock из sarama/mocks.
func NewProducerFromSync(producer sarama.SyncProducer, topic string, logger *log.Entry) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Topic возвращает топик, в который пишет producer.
func (p *Producer) Topic() string {
	return p.topic
}

// PublishOrderEvent отправляет событие. Ключ сообщения — ID заказа, поэтому
// события одного заказа попадают в одну партицию и сохраняют порядок.
func (p *Producer) PublishOrderEvent(event domain.OrderEvent) error {
	payload, err := json.Marshal(NewOrderEventMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	key := strconv.FormatInt(event.OrderID, 10)
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderEventType), Value: []byte(event.Type)},
			{Key: []byte(HeaderSchemaVersion), Value: []byte(schemaVersion)},
		},
	}
	if !event.Occurred.IsZero() {
		msg.Timestamp = event.Occurred
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic":      p.topic,
			"order_id":   event.OrderID,
			"event_type": event.Type,
		}).Error("failed to send order event to kafka")
		return fmt.Errorf("failed to send order event: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"topic":      p.topic,
		"order_id":   event.OrderID,
		"event_type": event.Type,
		"partition":  partition,
		"offset":     offset,
	}).Debug("order event sent to kafka")
	return nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}

var _ domain.EventPublisher = (*Producer)(nil)
