package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины отказа в оформлении/обработке заказа.
const (
	ReasonInsufficientStock   = "insufficient_stock"
	ReasonItemNotFound        = "item_not_found"
	ReasonInvalidOrder        = "invalid_order"
	ReasonPaymentRejected     = "payment_rejected"
	ReasonInsufficientPayment = "insufficient_payment"
)

// Результаты авторизации платежа.
const (
	AuthorizationApproved = "approved"
	AuthorizationDeclined = "declined"
)

// InventoryMetrics содержит метрики склада и книги заказов.
type InventoryMetrics struct {
	// Счётчики жизненного цикла заказов
	ordersCreated   prometheus.Counter
	ordersCancelled prometheus.Counter
	ordersProcessed prometheus.Counter

	orderRejections *prometheus.CounterVec
	authorizations  *prometheus.CounterVec

	// Открытые заказы (остатки по ним зарезервированы)
	openOrders prometheus.Gauge

	operationDuration *prometheus.HistogramVec
	snapshotItems     prometheus.Gauge
}

// NewInventoryMetrics создаёт метрики в DefaultRegisterer.
func NewInventoryMetrics() *InventoryMetrics {
	return NewInventoryMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewInventoryMetricsWithRegisterer создаёт метрики в указанном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewInventoryMetricsWithRegisterer(registerer prometheus.Registerer) *InventoryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &InventoryMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_orders_created_total",
			Help: "Total number of orders created with reserved stock",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_orders_cancelled_total",
			Help: "Total number of orders cancelled and released",
		}),
		ordersProcessed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ims_orders_processed_total",
			Help: "Total number of orders paid and finalized",
		}),
		orderRejections: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ims_order_rejections_total",
			Help: "Total number of rejected order operations by reason",
		}, []string{"reason"}),
		authorizations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ims_payment_authorizations_total",
			Help: "Total number of payment authorizations by result",
		}, []string{"result"}),
		openOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ims_open_orders",
			Help: "Number of orders holding reserved stock",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "ims_operation_duration_seconds",
			Help:    "Duration of order book operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"operation"}),
		snapshotItems: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ims_snapshot_items",
			Help: "Number of items in the last saved or loaded snapshot",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated учитывает новый заказ и увеличивает число открытых.
func (m *InventoryMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.openOrders.Inc()
}

// RecordOrderCancelled учитывает отмену заказа.
func (m *InventoryMetrics) RecordOrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
	m.openOrders.Dec()
}

// RecordOrderProcessed учитывает оплаченный заказ.
func (m *InventoryMetrics) RecordOrderProcessed() {
	if m == nil {
		return
	}
	m.ordersProcessed.Inc()
	m.openOrders.Dec()
}

// RecordRejection учитывает отказ по причине reason.
func (m *InventoryMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.orderRejections.WithLabelValues(reason).Inc()
}

// RecordAuthorization учитывает результат авторизации платежа.
func (m *InventoryMetrics) RecordAuthorization(approved bool) {
	if m == nil {
		return
	}
	result := AuthorizationDeclined
	if approved {
		result = AuthorizationApproved
	}
	m.authorizations.WithLabelValues(result).Inc()
}

// RecordOperationDuration записывает длительность операции книги заказов.
func (m *InventoryMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetSnapshotItems фиксирует размер последнего снимка.
func (m *InventoryMetrics) SetSnapshotItems(n int) {
	if m == nil {
		return
	}
	m.snapshotItems.Set(float64(n))
}
