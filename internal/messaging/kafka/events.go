package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// DefaultTopic — топик событий заказов по умолчанию.
const DefaultTopic = "ims.order.events"

// Заголовки сообщения: тип события и версия схемы payload.
const (
	HeaderEventType     = "x-event-type"
	HeaderSchemaVersion = "x-schema-version"

	schemaVersion = "1"
)

// OrderLineMessage — позиция заказа в сообщении.
type OrderLineMessage struct {
	ItemID int64 `json:"item_id"`
	Qty    int   `json:"qty"`
}

// OrderEventMessage — JSON-представление события заказа в Kafka.
type OrderEventMessage struct {
	EventID   string             `json:"event_id"`
	EventType string             `json:"event_type"`
	OrderID   int64              `json:"order_id"`
	Status    string             `json:"status"`
	Total     string             `json:"total"`
	Lines     []OrderLineMessage `json:"lines"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewOrderEventMessage переводит доменное событие в сообщение.
func NewOrderEventMessage(event domain.OrderEvent) OrderEventMessage {
	lines := make([]OrderLineMessage, 0, len(event.Lines))
	for _, line := range event.Lines {
		lines = append(lines, OrderLineMessage{ItemID: line.ItemID, Qty: line.Qty})
	}

	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	return OrderEventMessage{
		EventID:   event.ID,
		EventType: string(event.Type),
		OrderID:   event.OrderID,
		Status:    string(event.Status),
		Total:     event.Total.StringFixed(2),
		Lines:     lines,
		Timestamp: occurred,
	}
}
