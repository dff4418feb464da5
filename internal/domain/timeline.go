package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventType — тип события жизненного цикла заказа.
type OrderEventType string

const (
	OrderEventCreated   OrderEventType = "order.created"
	OrderEventCancelled OrderEventType = "order.cancelled"
	OrderEventProcessed OrderEventType = "order.processed"
)

// OrderEvent описывает событие в жизненном цикле заказа.
type OrderEvent struct {
	ID       string
	Type     OrderEventType
	OrderID  int64
	Status   OrderStatus
	Total    decimal.Decimal
	Lines    []OrderLine
	Occurred time.Time
}
