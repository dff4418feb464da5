package grpcsvc

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// request — обёртка для чтения полей Struct с ошибками InvalidArgument.
type request struct {
	fields map[string]*structpb.Value
}

func newRequest(in *structpb.Struct) request {
	if in == nil {
		return request{}
	}
	return request{fields: in.GetFields()}
}

func (r request) has(name string) bool {
	v, ok := r.fields[name]
	if !ok || v == nil {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func (r request) string(name string) string {
	if v, ok := r.fields[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

func (r request) requiredString(name string) (string, error) {
	s := r.string(name)
	if s == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return s, nil
}

func (r request) int64(name string) (int64, error) {
	if !r.has(name) {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return valueToInt64(name, r.fields[name])
}

func (r request) int(name string) (int, error) {
	v, err := r.int64(name)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s is out of range", name)
	}
	return int(v), nil
}

func (r request) float(name string) (float64, error) {
	if !r.has(name) {
		return 0, nil
	}
	switch kind := r.fields[name].GetKind().(type) {
	case *structpb.Value_NumberValue:
		return kind.NumberValue, nil
	case *structpb.Value_StringValue:
		f, err := strconv.ParseFloat(kind.StringValue, 64)
		if err != nil {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
		}
		return f, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
}

// decimal принимает сумму строкой ("18.00") или числом.
func (r request) decimal(name string) (decimal.Decimal, error) {
	if !r.has(name) {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	switch kind := r.fields[name].GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s must be a decimal: %v", name, err)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(kind.NumberValue), nil
	default:
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s must be a decimal", name)
	}
}

// lines читает позиции заказа: [{"item_id": 1, "qty": 2}, ...].
func (r request) lines(name string) (map[int64]int, error) {
	list := r.fields[name].GetListValue()
	if list == nil || len(list.GetValues()) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "%s must contain at least one line", name)
	}

	result := make(map[int64]int, len(list.GetValues()))
	for idx, value := range list.GetValues() {
		line := newRequest(value.GetStructValue())
		itemID, err := line.int64("item_id")
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "%s[%d]: %s", name, idx, status.Convert(err).Message())
		}
		qty, err := line.int("qty")
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "%s[%d]: %s", name, idx, status.Convert(err).Message())
		}
		result[itemID] += qty
	}
	return result, nil
}

func valueToInt64(name string, v *structpb.Value) (int64, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		return int64(n), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		return n, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
}

func itemFields(item domain.Item, now time.Time) map[string]any {
	details := make([]any, 0, 6)
	for _, d := range item.Details() {
		details = append(details, map[string]any{"label": d.Label, "value": d.Value})
	}

	fields := map[string]any{
		"id":          item.ID(),
		"kind":        string(item.Kind()),
		"name":        item.Name(),
		"description": item.Description(),
		"category":    item.Category(),
		"price":       item.Price().StringFixed(2),
		"quantity":    item.Quantity(),
		"breakable":   item.Breakable(),
		"perishable":  item.Perishable(),
		"details":     details,
	}
	switch item.Kind() {
	case domain.ItemKindElectronics:
		fields["warranty_expiry"] = item.WarrantyExpiry().Format(domain.DateLayout)
		fields["notice"] = item.BreakageNotice(now)
	case domain.ItemKindGrocery:
		fields["expiration_date"] = item.ExpirationDate().Format(domain.DateLayout)
		fields["notice"] = item.ExpirationNotice(now)
	case domain.ItemKindFragile:
		fields["weight"] = item.Weight()
		fields["notice"] = item.BreakageNotice(now)
	}
	return fields
}

func orderFields(order domain.Order, total *decimal.Decimal) map[string]any {
	lines := make([]any, 0, len(order.Lines()))
	for _, line := range order.Lines() {
		lines = append(lines, map[string]any{"item_id": line.ItemID, "qty": line.Qty})
	}
	fields := map[string]any{
		"id":         order.ID,
		"status":     string(order.Status),
		"created_at": order.CreatedAt.Format(time.RFC3339),
		"lines":      lines,
	}
	if total != nil {
		fields["total"] = total.StringFixed(2)
	}
	return fields
}

func eventFields(event domain.OrderEvent) map[string]any {
	return map[string]any{
		"id":       event.ID,
		"type":     string(event.Type),
		"status":   string(event.Status),
		"total":    event.Total.StringFixed(2),
		"occurred": event.Occurred.Format(time.RFC3339Nano),
	}
}

func toStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
