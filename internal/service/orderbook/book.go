package orderbook

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/snapshot"
)

// BookOptions задаёт необязательные зависимости книги заказов.
type BookOptions struct {
	Logger    *log.Entry
	Metrics   *metrics.InventoryMetrics
	Timeline  domain.TimelineRepository
	Publisher domain.EventPublisher
	Now       func() time.Time
}

// Option настраивает Book.
type Option func(*BookOptions)

// WithLogger задаёт logger книги заказов.
func WithLogger(logger *log.Entry) Option {
	return func(opts *BookOptions) {
		opts.Logger = logger
	}
}

// WithMetrics включает prometheus-метрики.
func WithMetrics(m *metrics.InventoryMetrics) Option {
	return func(opts *BookOptions) {
		opts.Metrics = m
	}
}

// WithTimeline задаёт хранилище истории заказов.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(opts *BookOptions) {
		opts.Timeline = timeline
	}
}

// WithPublisher задаёт внешний publisher событий (например, Kafka).
func WithPublisher(publisher domain.EventPublisher) Option {
	return func(opts *BookOptions) {
		opts.Publisher = publisher
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(opts *BookOptions) {
		opts.Now = now
	}
}

// Receipt — результат успешной обработки заказа.
type Receipt struct {
	Order         domain.Order
	Total         decimal.Decimal
	Authorization domain.Authorization
}

// Book — книга открытых заказов. Резервирует остатки при создании заказа,
// возвращает их при отмене и завершает продажу при оплате.
type Book struct {
	// mu сериализует create/cancel/process: выдача ID и связка reserve→insert атомарны.
	// Публикация событий во внешний брокер идёт уже без mu.
	mu sync.Mutex

	store     domain.InventoryStore
	orders    domain.OrderRepository
	payments  domain.PaymentAuthorizer
	timeline  domain.TimelineRepository
	publisher domain.EventPublisher
	metrics   *metrics.InventoryMetrics
	logger    *log.Entry
	now       func() time.Time

	nextID int64
}

// NewBook создаёт книгу заказов поверх склада. Номера заказов начинаются с 1.
func NewBook(store domain.InventoryStore, orders domain.OrderRepository, payments domain.PaymentAuthorizer, opts ...Option) *Book {
	options := BookOptions{Now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.Logger == nil {
		options.Logger = log.WithField("component", "orderbook")
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	return &Book{
		store:     store,
		orders:    orders,
		payments:  payments,
		timeline:  options.Timeline,
		publisher: options.Publisher,
		metrics:   options.Metrics,
		logger:    options.Logger,
		now:       options.Now,
		nextID:    1,
	}
}

// CreateOrder резервирует остатки по всем позициям и открывает заказ.
// При любой ошибке склад и книга не меняются.
func (b *Book) CreateOrder(lines map[int64]int) (domain.Order, error) {
	start := time.Now()
	defer func() { b.metrics.RecordOperationDuration("create_order", time.Since(start)) }()

	normalized, err := domain.NormalizeLines(lines)
	if err != nil {
		b.reject(err)
		return domain.Order{}, err
	}

	var pending *domain.OrderEvent
	defer func() { b.publish(pending) }()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.Reserve(normalized); err != nil {
		b.reject(err)
		b.logger.WithError(err).WithField("lines", len(normalized)).Warn("order rejected")
		return domain.Order{}, err
	}

	order, err := domain.NewOrder(b.nextID, b.now().UTC(), lines)
	if err == nil {
		err = b.orders.Create(order)
	}
	if err != nil {
		b.store.Release(normalized)
		return domain.Order{}, fmt.Errorf("store order %d: %w", b.nextID, err)
	}
	b.nextID++

	total, _ := b.computeTotal(order)
	b.metrics.RecordOrderCreated()
	b.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"lines":    len(normalized),
		"total":    total.StringFixed(2),
	}).Info("order created")
	pending = b.recordEvent(domain.OrderEventCreated, order, total)

	return order, nil
}

// CancelOrder удаляет заказ и возвращает зарезервированные остатки.
func (b *Book) CancelOrder(id int64) (domain.Order, error) {
	start := time.Now()
	defer func() { b.metrics.RecordOperationDuration("cancel_order", time.Since(start)) }()

	var pending *domain.OrderEvent
	defer func() { b.publish(pending) }()

	b.mu.Lock()
	defer b.mu.Unlock()

	order, err := b.orders.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	if err := b.orders.Delete(id); err != nil {
		return domain.Order{}, err
	}

	if skipped := b.store.Release(order.Lines()); len(skipped) > 0 {
		for _, line := range skipped {
			b.logger.WithFields(log.Fields{
				"order_id": id,
				"item_id":  line.ItemID,
				"qty":      line.Qty,
			}).Warn("item removed from inventory, reservation not restored")
		}
	}

	order.Status = domain.OrderStatusCancelled
	b.metrics.RecordOrderCancelled()
	b.logger.WithField("order_id", id).Info("order cancelled")
	pending = b.recordEvent(domain.OrderEventCancelled, order, decimal.Zero)

	return order, nil
}

// ComputeTotal считает стоимость заказа по текущим ценам товаров.
func (b *Book) ComputeTotal(id int64) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, err := b.orders.Get(id)
	if err != nil {
		return decimal.Zero, err
	}
	return b.computeTotal(order)
}

func (b *Book) computeTotal(order domain.Order) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, line := range order.Lines() {
		item, err := b.store.Get(line.ItemID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("order %d: %w", order.ID, err)
		}
		total = total.Add(item.Valuate(line.Qty))
	}
	return total, nil
}

// ProcessOrder проверяет сумму, авторизует платёж и закрывает заказ.
// Остатки не возвращаются: продажа завершена.
func (b *Book) ProcessOrder(id int64, payment domain.Payment) (Receipt, error) {
	start := time.Now()
	defer func() { b.metrics.RecordOperationDuration("process_order", time.Since(start)) }()

	var pending *domain.OrderEvent
	defer func() { b.publish(pending) }()

	b.mu.Lock()
	defer b.mu.Unlock()

	order, err := b.orders.Get(id)
	if err != nil {
		return Receipt{}, err
	}

	total, err := b.computeTotal(order)
	if err != nil {
		b.reject(err)
		return Receipt{}, err
	}
	if payment.Amount.LessThan(total) {
		b.reject(domain.ErrInsufficientPayment)
		b.logger.WithFields(log.Fields{
			"order_id": id,
			"total":    total.StringFixed(2),
			"amount":   payment.Amount.String(),
		}).Warn("insufficient payment")
		return Receipt{}, fmt.Errorf("%w: total %s, paid %s",
			domain.ErrInsufficientPayment, total.StringFixed(2), payment.Amount.String())
	}

	auth, err := b.payments.Authorize(payment)
	if err != nil {
		b.reject(err)
		return Receipt{}, err
	}

	if err := b.orders.Delete(id); err != nil {
		return Receipt{}, err
	}

	order.Status = domain.OrderStatusProcessed
	b.metrics.RecordOrderProcessed()
	b.logger.WithFields(log.Fields{
		"order_id":         id,
		"total":            total.StringFixed(2),
		"authorization_id": auth.ID,
	}).Info("order processed")
	pending = b.recordEvent(domain.OrderEventProcessed, order, total)

	return Receipt{Order: order, Total: total, Authorization: auth}, nil
}

// RemoveItem удаляет товар со склада. Товар, зарезервированный открытым
// заказом, не удаляется: иначе заказ нельзя ни оплатить, ни оценить.
func (b *Book) RemoveItem(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders, err := b.orders.List()
	if err != nil {
		return err
	}
	for _, order := range orders {
		for _, line := range order.Lines() {
			if line.ItemID == id {
				b.logger.WithFields(log.Fields{
					"item_id":  id,
					"order_id": order.ID,
				}).Warn("remove rejected, item reserved")
				return fmt.Errorf("%w: item %d, order %d", domain.ErrItemReserved, id, order.ID)
			}
		}
	}
	return b.store.Remove(id)
}

// ImportSnapshot заменяет содержимое склада снимком. Пока в книге есть
// открытые заказы, замена запрещена: отмена вернула бы резерв поверх
// остатков из снимка.
func (b *Book) ImportSnapshot(snap domain.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders, err := b.orders.List()
	if err != nil {
		return err
	}
	if len(orders) > 0 {
		return fmt.Errorf("%w: %d", domain.ErrOpenOrders, len(orders))
	}
	return snapshot.Import(b.store, snap)
}

// Get возвращает открытый заказ.
func (b *Book) Get(id int64) (domain.Order, error) {
	return b.orders.Get(id)
}

// List возвращает открытые заказы по возрастанию ID.
func (b *Book) List() ([]domain.Order, error) {
	return b.orders.List()
}

// Timeline возвращает историю заказа, в том числе уже закрытого.
func (b *Book) Timeline(id int64) ([]domain.OrderEvent, error) {
	if b.timeline == nil {
		return nil, domain.ErrOrderNotFound
	}
	events, err := b.timeline.List(id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrOrderNotFound
	}
	return events, nil
}

// recordEvent пишет событие в историю под mu и возвращает его для публикации.
func (b *Book) recordEvent(eventType domain.OrderEventType, order domain.Order, total decimal.Decimal) *domain.OrderEvent {
	event := domain.OrderEvent{
		ID:       uuid.NewString(),
		Type:     eventType,
		OrderID:  order.ID,
		Status:   order.Status,
		Total:    total,
		Lines:    order.Lines(),
		Occurred: b.now().UTC(),
	}

	if b.timeline != nil {
		if err := b.timeline.Append(event); err != nil {
			b.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to append timeline event")
		}
	}
	return &event
}

func (b *Book) publish(event *domain.OrderEvent) {
	if event == nil || b.publisher == nil {
		return
	}
	if err := b.publisher.PublishOrderEvent(*event); err != nil {
		b.logger.WithError(err).WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.Type,
		}).Error("failed to publish order event")
	}
}

func (b *Book) reject(err error) {
	b.metrics.RecordRejection(rejectionReason(err))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.ReasonInsufficientStock
	case errors.Is(err, domain.ErrItemNotFound):
		return metrics.ReasonItemNotFound
	case errors.Is(err, domain.ErrInsufficientPayment):
		return metrics.ReasonInsufficientPayment
	case errors.Is(err, domain.ErrCredentialNotFound),
		errors.Is(err, domain.ErrInvalidCredential):
		return metrics.ReasonPaymentRejected
	default:
		return metrics.ReasonInvalidOrder
	}
}
