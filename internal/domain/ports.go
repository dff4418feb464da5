package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// InventoryStore описывает склад: владеет товарами и их остатками.
type InventoryStore interface {
	// Add добавляет товар. ErrDuplicateItemID, если ID уже занят.
	Add(item Item) error
	// Remove удаляет товар или возвращает ErrItemNotFound.
	Remove(id int64) error
	// Get возвращает копию товара или ErrItemNotFound.
	Get(id int64) (Item, error)
	// List возвращает все товары в порядке добавления.
	List() []Item
	// ByCategory возвращает товары категории (без учёта регистра) в порядке добавления.
	ByCategory(category string) []Item
	// SetQuantity меняет остаток товара.
	SetQuantity(id int64, qty int) error
	// SetPrice меняет цену товара.
	SetPrice(id int64, price decimal.Decimal) error
	// Reserve списывает остатки по всем позициям или не меняет ничего.
	Reserve(lines []OrderLine) error
	// Release возвращает остатки; позиции удалённых товаров пропускаются и
	// возвращаются вызывающему.
	Release(lines []OrderLine) []OrderLine
	// Replace атомарно заменяет всё содержимое склада.
	Replace(items []Item) error
	// Len возвращает количество товаров.
	Len() int
}

// OrderRepository хранит открытые заказы книги заказов.
type OrderRepository interface {
	// Create сохраняет заказ. ErrOrderExists, если ID уже занят.
	Create(order Order) error
	// Get возвращает заказ или ErrOrderNotFound.
	Get(id int64) (Order, error)
	// Delete удаляет заказ или возвращает ErrOrderNotFound.
	Delete(id int64) error
	// List возвращает заказы по возрастанию ID.
	List() ([]Order, error)
}

// PaymentAuthorizer авторизует оплату по зарегистрированному методу.
type PaymentAuthorizer interface {
	Authorize(payment Payment) (Authorization, error)
}

// EventPublisher публикует события заказов наружу (например, в Kafka).
type EventPublisher interface {
	PublishOrderEvent(event OrderEvent) error
}

// TimelineRepository хранит события жизненного цикла заказов.
type TimelineRepository interface {
	Append(event OrderEvent) error
	List(orderID int64) ([]OrderEvent, error)
}

// SnapshotRepository сохраняет и загружает снимок склада.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot Snapshot) error
	// Load возвращает последний сохранённый снимок или ErrSnapshotNotFound.
	Load(ctx context.Context) (Snapshot, error)
}
