package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
	"github.com/vladislavdragonenkov/ims/internal/service/orderbook"
	"github.com/vladislavdragonenkov/ims/internal/service/payment"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

var fixedNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     domain.InventoryStore
	book      *orderbook.Book
	payments  *payment.Registry
	snapshots map[string]domain.SnapshotRepository
}

func newFixture() *fixture {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	entry := log.NewEntry(logger)

	m := metrics.NewInventoryMetricsWithRegisterer(prometheus.NewRegistry())
	store := memory.NewInventoryStore()
	payments := payment.NewRegistry(payment.WithHashCost(bcrypt.MinCost), payment.WithLogger(entry), payment.WithMetrics(m))
	book := orderbook.NewBook(store, memory.NewOrderRepository(), payments,
		orderbook.WithLogger(entry), orderbook.WithMetrics(m))

	return &fixture{
		store:     store,
		book:      book,
		payments:  payments,
		snapshots: map[string]domain.SnapshotRepository{},
	}
}

func (f *fixture) run(t *testing.T, script ...string) string {
	t.Helper()

	var out bytes.Buffer
	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	menu := NewMenu(strings.NewReader(strings.Join(script, "\n")+"\n"), &out, f.store, f.book, f.payments,
		WithLogger(log.NewEntry(logger)),
		WithClock(func() time.Time { return fixedNow }),
		WithSnapshotOpener(func(name string) (domain.SnapshotRepository, error) {
			if name == "broken" {
				return nil, errors.New("cannot open broken")
			}
			repo, ok := f.snapshots[name]
			if !ok {
				repo = memory.NewSnapshotRepository()
				f.snapshots[name] = repo
			}
			return repo, nil
		}),
	)
	require.NoError(t, menu.Run(context.Background()))
	return out.String()
}

func addGrocery(id, price, qty string) []string {
	return []string{"1", "grocery", "Apples", id, qty, "Fresh", price, "2099-01-01"}
}

func TestMenu_EndToEndOrderFlow(t *testing.T) {
	f := newFixture()

	script := addGrocery("1", "10", "5")
	script = append(script,
		"5", "1", "1", "2", // заказ: 2 шт. товара 1
		"7",
		"8", "PayPal", "a@b.com", "pw",
		"10",
		"11", "1", "18", "paypal", "a@b.com", "pw",
		"3",
		"14",
	)
	out := f.run(t, script...)

	assert.Contains(t, out, "Welcome to the Inventory Management System")
	assert.Contains(t, out, "Item added successfully.")
	assert.Contains(t, out, "Order 1 created successfully with total: 18.00")
	assert.Contains(t, out, "Order 1 [open]: 1 x2")
	assert.Contains(t, out, "Order total: 18.00")
	assert.Contains(t, out, "PayPal account a@b.com is successfully added to the system!")
	assert.Contains(t, out, "  a@b.com (PayPal)")
	assert.Contains(t, out, "Payment with PayPal a@b.com for 18.00 is completed!")
	assert.Contains(t, out, "Order with ID 1 and total 18.00 was successfully processed")
	assert.Contains(t, out, "[ID 1, Qty 3] Name: Apples, Category: Grocery, Price: 10.00, Expiration Date: 2099-01-01")
	assert.Contains(t, out, "Product Apples is still good to use!")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))

	_, err := f.book.Get(1)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMenu_AddItemVariantsAndCategorize(t *testing.T) {
	f := newFixture()

	out := f.run(t,
		"1", "Electronics", "TV", "1", "2", "4K", "200", "2030-01-01",
		"1", "fragile", "Vase", "2", "1", "", "30", "2.5",
		"1", "furniture",
		"1", "fragile", "Cup", "2", "1", "", "3", "1",
		"1", "grocery", "Milk", "3", "1", "", "1.5", "tomorrow",
		"4",
		"14",
	)

	assert.Equal(t, 2, strings.Count(out, "Item added successfully."))
	assert.Contains(t, out, "Invalid item type.")
	assert.Contains(t, out, "item id already in use")
	assert.Contains(t, out, "parse expiration_date")
	assert.Contains(t, out, "List of Electronics Items:")
	assert.Contains(t, out, "Product TV is broken but is still in warranty so it will be replaced!")
	assert.Contains(t, out, "No items found in category: Grocery")
	assert.Contains(t, out, "[ID 2, Qty 1] Name: Vase, Category: Fragile, Price: 30.00, Weight: 2.5")
	assert.Contains(t, out, "  Name: Vase, Category: Fragile, Price: 30.00, Weight: 2.5 is fragile and has broken.")
	assert.Equal(t, 2, f.store.Len())
}

func TestMenu_EmptyStatesAndInvalidChoice(t *testing.T) {
	f := newFixture()

	out := f.run(t, "2", "4", "5", "6", "7", "9", "10", "11", "abc", "42", "3", "14")

	assert.Contains(t, out, "No items in inventory.")
	assert.Contains(t, out, "There are no items in the inventory!")
	assert.Contains(t, out, "There are no orders placed!")
	assert.Contains(t, out, "There are no payment methods added to the system!")
	assert.Equal(t, 2, strings.Count(out, "Invalid command. Please enter a number from 1 to 14."))
}

func TestMenu_PlaceOrderRejections(t *testing.T) {
	f := newFixture()

	script := addGrocery("1", "10", "2")
	script = append(script,
		"5", "1", "99", // неизвестный товар
		"5", "1", "1", "0", // нулевое количество
		"5", "1", "1", "3", // больше остатка
		"5", "x",
		"14",
	)
	out := f.run(t, script...)

	assert.Contains(t, out, "Item with ID 99 not found.")
	assert.Contains(t, out, "order line qty must be greater than zero")
	assert.Contains(t, out, "insufficient stock")
	assert.Contains(t, out, "Invalid input. Please enter valid details.")

	item, err := f.store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity())
}

func TestMenu_RemoveOrderRestoresStock(t *testing.T) {
	f := newFixture()

	script := addGrocery("1", "10", "5")
	script = append(script,
		"5", "2", "1", "2", "1", "1", // две строки одного товара суммируются в корзине
		"6", "7",
		"6", "1",
		"14",
	)
	out := f.run(t, script...)

	assert.Contains(t, out, "Order 1 created successfully with total: 27.00")
	assert.Contains(t, out, "order not found")
	assert.Contains(t, out, "Order with ID 1 is removed successfully!")

	item, err := f.store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity())
}

func TestMenu_PaymentMethods(t *testing.T) {
	f := newFixture()

	out := f.run(t,
		"8", "credit card", "123", "Ivan", "12/28", "123",
		"8", "Credit Card", "1234567890123456", "Ivan", "12/28", "123",
		"8", "paypal", "", "pw",
		"8", "bitcoin",
		"10",
		"9", "missing",
		"9", "1234567890123456",
		"14",
	)

	assert.Contains(t, out, "Invalid card details. Card Number must be 16 symbols, CVV is 3 symbols. All fields are required.")
	assert.Contains(t, out, "Credit card 1234567890123456 is successfully added to the system!")
	assert.Contains(t, out, "Invalid PayPal credentials. Email or password can't be empty!")
	assert.Contains(t, out, "Invalid payment method!")
	assert.Contains(t, out, "  1234567890123456 (Credit Card)")
	assert.Contains(t, out, "Payment method with credential 1234567890123456 is removed successfully!")
	assert.Zero(t, f.payments.Len())
}

func TestMenu_ProcessOrderRejections(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.payments.RegisterPayPal("a@b.com", "pw"))

	script := addGrocery("1", "10", "5")
	script = append(script,
		"5", "1", "1", "2",
		"11", "9",
		"11", "1", "-5",
		"11", "1", "10", "paypal", "a@b.com", "pw",
		"11", "1", "18", "paypal", "a@b.com", "wrong",
		"11", "1", "18", "cash",
		"",
		"",
		"14",
	)
	out := f.run(t, script...)

	assert.Contains(t, out, "Order with ID 9 doesn't exist!")
	assert.Contains(t, out, "Payment amount must be greater than 0!")
	assert.Contains(t, out, "insufficient payment")
	assert.Contains(t, out, "invalid")
	assert.Contains(t, out, "Invalid payment method!")

	_, err := f.book.Get(1)
	require.NoError(t, err, "rejected payments keep the order open")
}

func TestMenu_SaveAndLoadInventory(t *testing.T) {
	f := newFixture()

	script := addGrocery("1", "10", "5")
	script = append(script, "12", "backup.json", "2", "1", "13", "backup.json", "13", "broken", "13", "empty", "14")
	out := f.run(t, script...)

	assert.Contains(t, out, "Inventory saved successfully to file: backup.json (1 items)")
	assert.Contains(t, out, "Item removed successfully.")
	assert.Contains(t, out, "Inventory loaded successfully from file: backup.json (1 items)")
	assert.Contains(t, out, "cannot open broken")
	assert.Contains(t, out, "Error loading inventory: inventory snapshot not found")

	item, err := f.store.Get(1)
	require.NoError(t, err)
	assert.True(t, item.Price().Equal(decimal.NewFromInt(10)))

	snap, err := f.snapshots["backup.json"].Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.TakenAt.Equal(fixedNow))
}

func TestMenu_OpenOrderGuardsInventory(t *testing.T) {
	f := newFixture()

	script := addGrocery("1", "10", "5")
	script = append(script,
		"12", "backup.json",
		"5", "1", "1", "2",
		"2", "1",
		"13", "backup.json",
		"6", "1",
		"13", "backup.json",
		"14",
	)
	out := f.run(t, script...)

	assert.Contains(t, out, "item is reserved by an open order")
	assert.NotContains(t, out, "Item removed successfully.")
	assert.Contains(t, out, "Error loading inventory: inventory has open orders")
	assert.Contains(t, out, "Order with ID 1 is removed successfully!")
	assert.Contains(t, out, "Inventory loaded successfully from file: backup.json (1 items)")

	item, err := f.store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity())
}

func TestMenu_WithoutSnapshotOpener(t *testing.T) {
	f := newFixture()
	var out bytes.Buffer

	menu := NewMenu(strings.NewReader("12\n14\n"), &out, f.store, f.book, f.payments)
	require.NoError(t, menu.Run(context.Background()))
	assert.Contains(t, out.String(), "Saving and loading inventory is not configured.")
}

func TestMenu_EndOfInputMidDialog(t *testing.T) {
	f := newFixture()
	var out bytes.Buffer

	menu := NewMenu(strings.NewReader("1\ngrocery\nApples"), &out, f.store, f.book, f.payments)
	require.NoError(t, menu.Run(context.Background()))
	assert.Zero(t, f.store.Len())
}

func TestMenu_CancelledContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	menu := NewMenu(strings.NewReader("3\n"), &bytes.Buffer{}, f.store, f.book, f.payments)
	assert.ErrorIs(t, menu.Run(ctx), context.Canceled)
}
