package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"item not found", domain.ErrItemNotFound, codes.NotFound},
		{"wrapped order not found", fmt.Errorf("get: %w", domain.ErrOrderNotFound), codes.NotFound},
		{"duplicate item", domain.ErrDuplicateItemID, codes.AlreadyExists},
		{"invalid price", domain.ErrInvalidPrice, codes.InvalidArgument},
		{"insufficient stock", domain.ErrInsufficientStock, codes.FailedPrecondition},
		{"insufficient payment", domain.ErrInsufficientPayment, codes.FailedPrecondition},
		{"invalid credential", domain.ErrInvalidCredential, codes.PermissionDenied},
		{"canceled", context.Canceled, codes.Canceled},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"status passthrough", status.Error(codes.Unavailable, "down"), codes.Unavailable},
		{"unknown", errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toStatus(tt.err).Code())
		})
	}

	assert.Equal(t, "internal error", toStatus(errors.New("secret details")).Message())
}

func TestRequest_Numbers(t *testing.T) {
	req := newRequest(mustStruct(t, map[string]any{
		"id":     "42",
		"qty":    3,
		"bad":    2.5,
		"price":  "19.99",
		"amount": 18,
		"weight": "1.5",
		"null":   nil,
	}))

	id, err := req.int64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	qty, err := req.int("qty")
	require.NoError(t, err)
	assert.Equal(t, 3, qty)

	_, err = req.int64("bad")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = req.int64("missing")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	assert.False(t, req.has("null"))

	price, err := req.decimal("price")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("19.99")))

	amount, err := req.decimal("amount")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(18)))

	weight, err := req.float("weight")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, weight, 1e-9)

	absent, err := req.float("missing")
	require.NoError(t, err)
	assert.Zero(t, absent)
}

func TestRequest_Lines(t *testing.T) {
	req := newRequest(mustStruct(t, map[string]any{
		"lines": []any{
			map[string]any{"item_id": 1, "qty": 2},
			map[string]any{"item_id": 1, "qty": 1},
			map[string]any{"item_id": 5, "qty": 4},
		},
		"broken": []any{map[string]any{"item_id": 1}},
	}))

	lines, err := req.lines("lines")
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 3, 5: 4}, lines)

	_, err = req.lines("broken")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "broken[0]")

	_, err = req.lines("absent")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestItemFields(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	item, err := domain.NewFragile(domain.ItemSpec{
		ID:       3,
		Name:     "Vase",
		Price:    decimal.NewFromInt(10),
		Quantity: 2,
	}, 1.5)
	require.NoError(t, err)

	fields := itemFields(item, now)
	assert.Equal(t, "Fragile", fields["category"])
	assert.Equal(t, "10.00", fields["price"])
	assert.Equal(t, true, fields["breakable"])
	assert.Equal(t, 1.5, fields["weight"])
	assert.NotEmpty(t, fields["notice"])

	_, err = toStruct(fields)
	require.NoError(t, err)
}
