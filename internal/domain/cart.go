package domain

import "fmt"

// Cart накапливает позиции до оформления заказа.
type Cart struct {
	items map[int64]int
}

// NewCart возвращает пустую корзину.
func NewCart() *Cart {
	return &Cart{items: make(map[int64]int)}
}

// Add добавляет qty единиц товара; повторное добавление суммирует количество.
func (c *Cart) Add(itemID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidOrderLine
	}
	c.items[itemID] += qty
	return nil
}

// Remove убирает позицию из корзины целиком.
func (c *Cart) Remove(itemID int64) error {
	if _, ok := c.items[itemID]; !ok {
		return fmt.Errorf("%w: id=%d", ErrCartItemNotFound, itemID)
	}
	delete(c.items, itemID)
	return nil
}

// Lines возвращает копию содержимого корзины.
func (c *Cart) Lines() map[int64]int {
	result := make(map[int64]int, len(c.items))
	for id, qty := range c.items {
		result[id] = qty
	}
	return result
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

func (c *Cart) Clear() {
	c.items = make(map[int64]int)
}
