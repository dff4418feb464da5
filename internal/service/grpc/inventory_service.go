package grpcsvc

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/orderbook"
	"github.com/vladislavdragonenkov/ims/internal/service/payment"
)

const tracerName = "github.com/vladislavdragonenkov/ims/internal/service/grpc"

// InventoryService реализует gRPC API склада, книги заказов и платёжного реестра.
type InventoryService struct {
	store    domain.InventoryStore
	book     *orderbook.Book
	payments *payment.Registry
	logger   *log.Entry
	tracer   trace.Tracer
	now      func() time.Time
}

// ServiceOption настраивает InventoryService.
type ServiceOption func(*InventoryService)

// WithTracerProvider задаёт provider span-ов. По умолчанию берётся глобальный
// provider otel, установленный при старте сервиса.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *InventoryService) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewInventoryService конструирует сервис с зависимостями.
func NewInventoryService(
	store domain.InventoryStore,
	book *orderbook.Book,
	payments *payment.Registry,
	logger *log.Entry,
	opts ...ServiceOption,
) *InventoryService {
	if logger == nil {
		logger = log.WithField("component", "inventory-service")
	}
	s := &InventoryService{
		store:    store,
		book:     book,
		payments: payments,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// startSpan открывает серверный span вида "ims.v1.InventoryService/AddItem".
func (s *InventoryService) startSpan(ctx context.Context, method string) trace.Span {
	_, span := s.tracer.Start(ctx, ServiceName+"/"+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", ServiceName),
			attribute.String("rpc.method", method),
		),
	)
	return span
}

// AddItem добавляет товар. Вариант задаётся полем kind.
func (s *InventoryService) AddItem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodAddItem)
	defer span.End()

	req := newRequest(in)
	kind, err := domain.ParseItemKind(req.string("kind"))
	if err != nil {
		return nil, s.fail(span, MethodAddItem, err)
	}
	id, err := req.int64("id")
	if err != nil {
		return nil, s.fail(span, MethodAddItem, err)
	}
	price, err := req.decimal("price")
	if err != nil {
		return nil, s.fail(span, MethodAddItem, err)
	}
	qty, err := req.int("quantity")
	if err != nil {
		return nil, s.fail(span, MethodAddItem, err)
	}
	weight, err := req.float("weight")
	if err != nil {
		return nil, s.fail(span, MethodAddItem, err)
	}
	span.SetAttributes(attribute.Int64("item.id", id), attribute.String("item.kind", string(kind)))

	record := domain.ItemRecord{
		ID:             id,
		Kind:           kind,
		Name:           req.string("name"),
		Description:    req.string("description"),
		Price:          price,
		Quantity:       qty,
		WarrantyExpiry: req.string("warranty_expiry"),
		ExpirationDate: req.string("expiration_date"),
		Weight:         weight,
	}
	item, err := record.ToItem()
	if err != nil {
		// Ошибки разбора дат тоже относятся к входным данным.
		return nil, s.fail(span, MethodAddItem, status.Error(codes.InvalidArgument, err.Error()))
	}
	if err := s.store.Add(item); err != nil {
		return nil, s.fail(span, MethodAddItem, err)
	}

	s.logger.WithFields(log.Fields{
		"item_id": id,
		"kind":    kind,
	}).Info("item added")
	return toStruct(itemFields(item, s.now()))
}

// RemoveItem удаляет товар со склада.
func (s *InventoryService) RemoveItem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodRemoveItem)
	defer span.End()

	id, err := newRequest(in).int64("id")
	if err != nil {
		return nil, s.fail(span, MethodRemoveItem, err)
	}
	if err := s.book.RemoveItem(id); err != nil {
		return nil, s.fail(span, MethodRemoveItem, err)
	}

	s.logger.WithField("item_id", id).Info("item removed")
	return toStruct(map[string]any{"id": id})
}

// GetItem возвращает товар с деталями и предупреждением варианта.
func (s *InventoryService) GetItem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodGetItem)
	defer span.End()

	id, err := newRequest(in).int64("id")
	if err != nil {
		return nil, s.fail(span, MethodGetItem, err)
	}
	item, err := s.store.Get(id)
	if err != nil {
		return nil, s.fail(span, MethodGetItem, err)
	}
	return toStruct(itemFields(item, s.now()))
}

// ListItems возвращает товары, при заданном category — только этой категории.
func (s *InventoryService) ListItems(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodListItems)
	defer span.End()

	category := newRequest(in).string("category")
	items := s.store.List()
	if category != "" {
		items = s.store.ByCategory(category)
	}

	now := s.now()
	result := make([]any, 0, len(items))
	for _, item := range items {
		result = append(result, itemFields(item, now))
	}
	span.SetAttributes(attribute.Int("items.count", len(result)))
	return toStruct(map[string]any{"items": result})
}

// UpdateItem меняет цену и/или остаток товара.
func (s *InventoryService) UpdateItem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodUpdateItem)
	defer span.End()

	req := newRequest(in)
	id, err := req.int64("id")
	if err != nil {
		return nil, s.fail(span, MethodUpdateItem, err)
	}
	if !req.has("price") && !req.has("quantity") {
		return nil, s.fail(span, MethodUpdateItem, status.Error(codes.InvalidArgument, "price or quantity is required"))
	}

	// Значения проверяются до изменения, чтобы не применить одно поле из двух.
	if req.has("price") {
		price, err := req.decimal("price")
		if err != nil {
			return nil, s.fail(span, MethodUpdateItem, err)
		}
		if !price.IsPositive() {
			return nil, s.fail(span, MethodUpdateItem, domain.ErrInvalidPrice)
		}
	}
	if req.has("quantity") {
		qty, err := req.int("quantity")
		if err != nil {
			return nil, s.fail(span, MethodUpdateItem, err)
		}
		if qty < 0 {
			return nil, s.fail(span, MethodUpdateItem, domain.ErrInvalidQuantity)
		}
	}

	if req.has("price") {
		price, _ := req.decimal("price")
		if err := s.store.SetPrice(id, price); err != nil {
			return nil, s.fail(span, MethodUpdateItem, err)
		}
	}
	if req.has("quantity") {
		qty, _ := req.int("quantity")
		if err := s.store.SetQuantity(id, qty); err != nil {
			return nil, s.fail(span, MethodUpdateItem, err)
		}
	}

	item, err := s.store.Get(id)
	if err != nil {
		return nil, s.fail(span, MethodUpdateItem, err)
	}
	s.logger.WithField("item_id", id).Info("item updated")
	return toStruct(itemFields(item, s.now()))
}

// CreateOrder резервирует остатки и открывает заказ.
func (s *InventoryService) CreateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodCreateOrder)
	defer span.End()

	lines, err := newRequest(in).lines("lines")
	if err != nil {
		return nil, s.fail(span, MethodCreateOrder, err)
	}
	order, err := s.book.CreateOrder(lines)
	if err != nil {
		return nil, s.fail(span, MethodCreateOrder, err)
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	fields := orderFields(order, nil)
	if total, err := s.book.ComputeTotal(order.ID); err == nil {
		fields["total"] = total.StringFixed(2)
	}
	return toStruct(fields)
}

// CancelOrder отменяет заказ и возвращает остатки.
func (s *InventoryService) CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodCancelOrder)
	defer span.End()

	id, err := newRequest(in).int64("id")
	if err != nil {
		return nil, s.fail(span, MethodCancelOrder, err)
	}
	span.SetAttributes(attribute.Int64("order.id", id))

	order, err := s.book.CancelOrder(id)
	if err != nil {
		return nil, s.fail(span, MethodCancelOrder, err)
	}
	return toStruct(orderFields(order, nil))
}

// GetOrder возвращает открытый заказ с текущей суммой.
func (s *InventoryService) GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodGetOrder)
	defer span.End()

	id, err := newRequest(in).int64("id")
	if err != nil {
		return nil, s.fail(span, MethodGetOrder, err)
	}
	order, err := s.book.Get(id)
	if err != nil {
		return nil, s.fail(span, MethodGetOrder, err)
	}
	total, err := s.book.ComputeTotal(id)
	if err != nil {
		return nil, s.fail(span, MethodGetOrder, err)
	}
	return toStruct(orderFields(order, &total))
}

// ListOrders возвращает открытые заказы с суммами.
func (s *InventoryService) ListOrders(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodListOrders)
	defer span.End()

	orders, err := s.book.List()
	if err != nil {
		return nil, s.fail(span, MethodListOrders, err)
	}

	result := make([]any, 0, len(orders))
	for _, order := range orders {
		fields := orderFields(order, nil)
		if total, err := s.book.ComputeTotal(order.ID); err == nil {
			fields["total"] = total.StringFixed(2)
		}
		result = append(result, fields)
	}
	return toStruct(map[string]any{"orders": result})
}

// ProcessOrder авторизует платёж и закрывает заказ.
func (s *InventoryService) ProcessOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodProcessOrder)
	defer span.End()

	req := newRequest(in)
	id, err := req.int64("id")
	if err != nil {
		return nil, s.fail(span, MethodProcessOrder, err)
	}
	span.SetAttributes(attribute.Int64("order.id", id))

	var kind domain.PaymentKind
	if raw := req.string("kind"); raw != "" {
		if kind, err = domain.ParsePaymentKind(raw); err != nil {
			return nil, s.fail(span, MethodProcessOrder, err)
		}
	}
	key, err := req.requiredString("key")
	if err != nil {
		return nil, s.fail(span, MethodProcessOrder, err)
	}
	amount, err := req.decimal("amount")
	if err != nil {
		return nil, s.fail(span, MethodProcessOrder, err)
	}

	receipt, err := s.book.ProcessOrder(id, domain.Payment{
		Kind:   kind,
		Key:    key,
		Secret: req.string("secret"),
		Amount: amount,
	})
	if err != nil {
		return nil, s.fail(span, MethodProcessOrder, err)
	}

	fields := orderFields(receipt.Order, &receipt.Total)
	fields["authorization_id"] = receipt.Authorization.ID
	return toStruct(fields)
}

// GetOrderTimeline возвращает историю заказа, в том числе закрытого.
func (s *InventoryService) GetOrderTimeline(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodGetOrderTimeline)
	defer span.End()

	id, err := newRequest(in).int64("id")
	if err != nil {
		return nil, s.fail(span, MethodGetOrderTimeline, err)
	}
	events, err := s.book.Timeline(id)
	if err != nil {
		return nil, s.fail(span, MethodGetOrderTimeline, err)
	}

	result := make([]any, 0, len(events))
	for _, event := range events {
		result = append(result, eventFields(event))
	}
	return toStruct(map[string]any{"order_id": id, "events": result})
}

// RegisterPaymentMethod регистрирует карту (number, holder, expiry, cvv)
// или PayPal (email, password) с проверкой формата.
func (s *InventoryService) RegisterPaymentMethod(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodRegisterPaymentMethod)
	defer span.End()

	req := newRequest(in)
	kind, err := domain.ParsePaymentKind(req.string("kind"))
	if err != nil {
		return nil, s.fail(span, MethodRegisterPaymentMethod, err)
	}
	span.SetAttributes(attribute.String("payment.kind", string(kind)))

	var key string
	switch kind {
	case domain.PaymentKindCreditCard:
		key = req.string("number")
		err = s.payments.RegisterCreditCard(key, req.string("holder"), req.string("expiry"), req.string("cvv"))
	case domain.PaymentKindPayPal:
		key = req.string("email")
		err = s.payments.RegisterPayPal(key, req.string("password"))
	}
	if err != nil {
		return nil, s.fail(span, MethodRegisterPaymentMethod, err)
	}
	return toStruct(map[string]any{"key": key, "kind": string(kind)})
}

// UnregisterPaymentMethod удаляет платёжный метод.
func (s *InventoryService) UnregisterPaymentMethod(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodUnregisterPaymentMethod)
	defer span.End()

	key, err := newRequest(in).requiredString("key")
	if err != nil {
		return nil, s.fail(span, MethodUnregisterPaymentMethod, err)
	}
	if err := s.payments.Unregister(key); err != nil {
		return nil, s.fail(span, MethodUnregisterPaymentMethod, err)
	}
	return toStruct(map[string]any{"key": key})
}

// ListPaymentMethods возвращает зарегистрированные методы без секретов.
func (s *InventoryService) ListPaymentMethods(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	span := s.startSpan(ctx, MethodListPaymentMethods)
	defer span.End()

	credentials := s.payments.List()
	result := make([]any, 0, len(credentials))
	for _, c := range credentials {
		result = append(result, map[string]any{
			"key":           c.Key,
			"kind":          string(c.Kind),
			"label":         c.Kind.Label(),
			"registered_at": c.RegisteredAt.Format(time.RFC3339),
		})
	}
	return toStruct(map[string]any{"methods": result})
}

// fail переводит ошибку в gRPC-статус и отмечает span.
func (s *InventoryService) fail(span trace.Span, method string, err error) error {
	st := toStatus(err)
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, st.Message())
	span.SetAttributes(attribute.String("rpc.grpc.status", st.Code().String()))

	entry := s.logger.WithError(err).WithFields(log.Fields{
		"method": method,
		"code":   st.Code().String(),
	})
	if st.Code() == codes.Internal {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	return st.Err()
}

func toStatus(err error) *status.Status {
	if st, ok := status.FromError(err); ok {
		return st
	}
	switch {
	case domain.IsNotFound(err):
		return status.New(codes.NotFound, err.Error())
	case domain.IsConflict(err):
		return status.New(codes.AlreadyExists, err.Error())
	case domain.IsInvalidArgument(err):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInsufficientPayment),
		errors.Is(err, domain.ErrItemReserved),
		errors.Is(err, domain.ErrOpenOrders):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidCredential):
		return status.New(codes.PermissionDenied, err.Error())
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	default:
		return status.New(codes.Internal, "internal error")
	}
}

var _ InventoryServer = (*InventoryService)(nil)
