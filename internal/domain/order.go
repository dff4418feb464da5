package domain

import (
	"sort"
	"time"
)

// OrderStatus описывает жизненный цикл заказа в книге заказов.
type OrderStatus string

const (
	// OrderStatusOpen — заказ создан, товар зарезервирован, оплаты ещё нет.
	OrderStatusOpen OrderStatus = "open"
	// OrderStatusProcessed — оплата авторизована, продажа завершена.
	OrderStatusProcessed OrderStatus = "processed"
	// OrderStatusCancelled — заказ отменён, резерв возвращён на склад.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderLine — одна позиция заказа: товар и количество.
type OrderLine struct {
	ItemID int64
	Qty    int
}

// Order — снимок запрошенных позиций и текущий статус.
// Позиции не меняются после создания и наружу отдаются только копией.
type Order struct {
	ID        int64
	Status    OrderStatus
	CreatedAt time.Time
	lines     []OrderLine
}

// NewOrder собирает заказ из пар item-id -> qty. Позиции сортируются по ID товара.
func NewOrder(id int64, createdAt time.Time, lines map[int64]int) (Order, error) {
	normalized, err := NormalizeLines(lines)
	if err != nil {
		return Order{}, err
	}
	return Order{
		ID:        id,
		Status:    OrderStatusOpen,
		CreatedAt: createdAt,
		lines:     normalized,
	}, nil
}

// NormalizeLines проверяет позиции и возвращает их отсортированными по ID товара.
func NormalizeLines(lines map[int64]int) ([]OrderLine, error) {
	if len(lines) == 0 {
		return nil, ErrOrderLinesRequired
	}

	result := make([]OrderLine, 0, len(lines))
	for itemID, qty := range lines {
		if qty <= 0 {
			return nil, ErrInvalidOrderLine
		}
		result = append(result, OrderLine{ItemID: itemID, Qty: qty})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ItemID < result[j].ItemID
	})
	return result, nil
}

// Lines возвращает копию позиций заказа.
func (o Order) Lines() []OrderLine {
	result := make([]OrderLine, len(o.lines))
	copy(result, o.lines)
	return result
}

// LineMap возвращает позиции в виде новой карты item-id -> qty.
func (o Order) LineMap() map[int64]int {
	result := make(map[int64]int, len(o.lines))
	for _, line := range o.lines {
		result[line.ItemID] = line.Qty
	}
	return result
}

// Qty возвращает заказанное количество товара (0, если позиции нет).
func (o Order) Qty(itemID int64) int {
	for _, line := range o.lines {
		if line.ItemID == itemID {
			return line.Qty
		}
	}
	return 0
}
