// Package cli реализует построчное текстовое меню склада поверх io.Reader/io.Writer.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/service/orderbook"
	"github.com/vladislavdragonenkov/ims/internal/service/payment"
	"github.com/vladislavdragonenkov/ims/internal/snapshot"
)

// Пункты меню.
const (
	ActionAddItem = iota + 1
	ActionRemoveItem
	ActionDisplayItems
	ActionCategorizeItems
	ActionPlaceOrder
	ActionRemoveOrder
	ActionListOrders
	ActionAddPaymentMethod
	ActionRemovePaymentMethod
	ActionListPaymentMethods
	ActionProcessOrder
	ActionSaveInventory
	ActionLoadInventory
	ActionExit
)

var menuLines = []string{
	"Add New Item",
	"Remove Item by ID",
	"Display List of Items",
	"Categorize Items",
	"Place Order",
	"Remove Order",
	"List Orders",
	"Add Payment Method",
	"Remove Payment Method",
	"List Payment Methods",
	"Process Payment and Complete Order",
	"Save Inventory",
	"Load Inventory",
	"Exit",
}

// errEndOfInput — вход закончился посреди диалога.
var errEndOfInput = errors.New("end of input")

// SnapshotOpener возвращает хранилище снимков по имени, введённому пользователем.
// Пустое имя означает хранилище по умолчанию.
type SnapshotOpener func(name string) (domain.SnapshotRepository, error)

// Option настраивает Menu.
type Option func(*Menu)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(m *Menu) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSnapshotOpener включает пункты сохранения и загрузки склада.
func WithSnapshotOpener(open SnapshotOpener) Option {
	return func(m *Menu) { m.openSnapshots = open }
}

// WithClock подменяет источник времени (предупреждения о сроках, время снимка).
func WithClock(now func() time.Time) Option {
	return func(m *Menu) {
		if now != nil {
			m.now = now
		}
	}
}

// Menu — интерактивное меню из 14 пунктов.
type Menu struct {
	in            *bufio.Scanner
	out           io.Writer
	store         domain.InventoryStore
	book          *orderbook.Book
	payments      *payment.Registry
	openSnapshots SnapshotOpener
	logger        *log.Entry
	now           func() time.Time
}

// NewMenu собирает меню над складом, книгой заказов и платёжным реестром.
func NewMenu(in io.Reader, out io.Writer, store domain.InventoryStore, book *orderbook.Book, payments *payment.Registry, opts ...Option) *Menu {
	m := &Menu{
		in:       bufio.NewScanner(in),
		out:      out,
		store:    store,
		book:     book,
		payments: payments,
		logger:   log.WithField("component", "cli"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run показывает меню и выполняет команды до пункта Exit, конца ввода
// или отмены ctx.
func (m *Menu) Run(ctx context.Context) error {
	m.println("Welcome to the Inventory Management System")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.displayMenu()

		line, err := m.readLine()
		if errors.Is(err, errEndOfInput) {
			return nil
		}
		if err != nil {
			return err
		}

		choice, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr != nil {
			choice = 0
		}
		if choice == ActionExit {
			m.println("Exiting the Inventory Management System.......")
			m.println("Goodbye!")
			return nil
		}

		err = m.dispatch(ctx, choice)
		if errors.Is(err, errEndOfInput) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (m *Menu) dispatch(ctx context.Context, choice int) error {
	switch choice {
	case ActionAddItem:
		return m.addItem()
	case ActionRemoveItem:
		return m.removeItem()
	case ActionDisplayItems:
		m.displayItems()
	case ActionCategorizeItems:
		m.categorizeItems()
	case ActionPlaceOrder:
		return m.placeOrder()
	case ActionRemoveOrder:
		return m.removeOrder()
	case ActionListOrders:
		m.listOrders()
	case ActionAddPaymentMethod:
		return m.addPaymentMethod()
	case ActionRemovePaymentMethod:
		return m.removePaymentMethod()
	case ActionListPaymentMethods:
		m.listPaymentMethods()
	case ActionProcessOrder:
		return m.processOrder()
	case ActionSaveInventory:
		return m.saveInventory(ctx)
	case ActionLoadInventory:
		return m.loadInventory(ctx)
	default:
		m.println(fmt.Sprintf("Invalid command. Please enter a number from 1 to %d.", ActionExit))
		m.println("")
	}
	return nil
}

func (m *Menu) displayMenu() {
	m.println(fmt.Sprintf("Menu [Enter your choice (1 - %d)]:", ActionExit))
	for i, line := range menuLines {
		m.println(fmt.Sprintf("%d. %s", i+1, line))
	}
	m.println("")
}

func (m *Menu) addItem() error {
	kindRaw, err := m.prompt("Enter item type (Electronics, Grocery, Fragile): ")
	if err != nil {
		return err
	}
	kind, err := domain.ParseItemKind(kindRaw)
	if err != nil {
		m.fail("Invalid item type.")
		return nil
	}

	m.println("Enter item details:")
	fields := []string{"Name: ", "Item ID: ", "Quantity: ", "Description: ", "Price: "}
	answers := make([]string, len(fields))
	for i, label := range fields {
		if answers[i], err = m.prompt(label); err != nil {
			return err
		}
	}

	record := domain.ItemRecord{Kind: kind, Name: answers[0], Description: answers[3]}
	if record.ID, err = strconv.ParseInt(strings.TrimSpace(answers[1]), 10, 64); err != nil {
		m.fail("Invalid input. Please enter valid details.")
		return nil
	}
	if record.Quantity, err = strconv.Atoi(strings.TrimSpace(answers[2])); err != nil {
		m.fail("Invalid input. Please enter valid details.")
		return nil
	}
	if record.Price, err = decimal.NewFromString(strings.TrimSpace(answers[4])); err != nil {
		m.fail("Invalid input. Please enter valid details.")
		return nil
	}

	switch kind {
	case domain.ItemKindElectronics:
		if record.WarrantyExpiry, err = m.prompt("Warranty Date (YYYY-MM-DD): "); err != nil {
			return err
		}
	case domain.ItemKindGrocery:
		if record.ExpirationDate, err = m.prompt("Expiration Date (YYYY-MM-DD): "); err != nil {
			return err
		}
	case domain.ItemKindFragile:
		raw, err := m.prompt("Weight: ")
		if err != nil {
			return err
		}
		if record.Weight, err = strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
			m.fail("Invalid input. Please enter valid details.")
			return nil
		}
	}

	item, err := record.ToItem()
	if err != nil {
		m.fail(err.Error())
		return nil
	}
	if err := m.store.Add(item); err != nil {
		m.fail(err.Error())
		return nil
	}
	m.println("Item added successfully.")
	m.println("")
	return nil
}

func (m *Menu) removeItem() error {
	if m.noItems() {
		return nil
	}
	id, ok, err := m.promptID("Enter Item ID to remove: ")
	if err != nil || !ok {
		return err
	}
	if err := m.book.RemoveItem(id); err != nil {
		m.fail(err.Error())
		return nil
	}
	m.println("Item removed successfully.")
	m.println("")
	return nil
}

func (m *Menu) displayItems() {
	m.println("Inventory Items:")
	items := m.store.List()
	if len(items) == 0 {
		m.println("No items in inventory.")
	}
	now := m.now()
	for _, item := range items {
		m.printItem(item, now)
	}
	m.println("")
}

func (m *Menu) categorizeItems() {
	if m.noItems() {
		return
	}
	now := m.now()
	for _, category := range []string{domain.CategoryElectronics, domain.CategoryGrocery, domain.CategoryFragile} {
		m.println(fmt.Sprintf("List of %s Items:", category))
		items := m.store.ByCategory(category)
		if len(items) == 0 {
			m.println("No items found in category: " + category)
		}
		for _, item := range items {
			m.printItem(item, now)
		}
		m.println("")
	}
}

func (m *Menu) printItem(item domain.Item, now time.Time) {
	m.println(fmt.Sprintf("[ID %d, Qty %d] %s", item.ID(), item.Quantity(), domain.FormatDetails(item.Details())))
	switch {
	case item.Perishable():
		m.println("  " + item.ExpirationNotice(now))
	case item.Breakable():
		m.println("  " + item.BreakageNotice(now))
	}
}

func (m *Menu) placeOrder() error {
	if m.store.Len() == 0 {
		m.fail("There are no items in the inventory!")
		return nil
	}

	m.println("Enter order details:")
	raw, err := m.prompt("Number of items to order: ")
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || count <= 0 {
		m.fail("Invalid input. Please enter valid details.")
		return nil
	}

	cart := domain.NewCart()
	for i := 1; i <= count; i++ {
		id, ok, err := m.promptID(fmt.Sprintf("Enter Item ID for item %d: ", i))
		if err != nil || !ok {
			return err
		}
		if _, err := m.store.Get(id); err != nil {
			m.fail(fmt.Sprintf("Item with ID %d not found.", id))
			return nil
		}

		rawQty, err := m.prompt(fmt.Sprintf("Enter quantity for item %d: ", i))
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(strings.TrimSpace(rawQty))
		if err != nil {
			m.fail("Invalid input. Please enter valid details.")
			return nil
		}
		if err := cart.Add(id, qty); err != nil {
			m.fail("Invalid input. Please enter valid details.\n" + err.Error())
			return nil
		}
	}

	order, err := m.book.CreateOrder(cart.Lines())
	if err != nil {
		m.fail(err.Error())
		return nil
	}
	total, err := m.book.ComputeTotal(order.ID)
	if err != nil {
		m.fail(err.Error())
		return nil
	}
	m.println(fmt.Sprintf("Order %d created successfully with total: %s", order.ID, total.StringFixed(2)))
	m.println("")
	return nil
}

func (m *Menu) removeOrder() error {
	if m.noOrders() {
		return nil
	}
	id, ok, err := m.promptID("Enter the ID of the order you want to remove: ")
	if err != nil || !ok {
		return err
	}
	if _, err := m.book.CancelOrder(id); err != nil {
		m.fail(err.Error())
		return nil
	}
	m.println(fmt.Sprintf("Order with ID %d is removed successfully!", id))
	m.println("")
	return nil
}

func (m *Menu) listOrders() {
	if m.noOrders() {
		return
	}
	orders, err := m.book.List()
	if err != nil {
		m.fail(err.Error())
		return
	}

	m.println("List Of Orders:")
	for _, order := range orders {
		parts := make([]string, 0, len(order.Lines()))
		for _, line := range order.Lines() {
			parts = append(parts, fmt.Sprintf("%d x%d", line.ItemID, line.Qty))
		}
		m.println(fmt.Sprintf("Order %d [%s]: %s", order.ID, order.Status, strings.Join(parts, ", ")))

		total, err := m.book.ComputeTotal(order.ID)
		if err != nil {
			m.println("Order total: unavailable (" + err.Error() + ")")
			continue
		}
		m.println("Order total: " + total.StringFixed(2))
	}
	m.println("")
}

func (m *Menu) addPaymentMethod() error {
	raw, err := m.prompt("Enter payment type (Credit Card or PayPal): ")
	if err != nil {
		return err
	}
	kind, err := domain.ParsePaymentKind(raw)
	if err != nil {
		m.fail("Invalid payment method!")
		return nil
	}

	switch kind {
	case domain.PaymentKindCreditCard:
		answers, err := m.promptAll("Enter card number: ", "Enter holder's name: ", "Enter expiration date: ", "Enter CVV: ")
		if err != nil {
			return err
		}
		err = m.payments.RegisterCreditCard(answers[0], answers[1], answers[2], answers[3])
		switch {
		case errors.Is(err, domain.ErrInvalidPaymentDetails):
			m.fail("Invalid card details. Card Number must be 16 symbols, CVV is 3 symbols. All fields are required.")
		case err != nil:
			m.fail(err.Error())
		default:
			m.println(fmt.Sprintf("Credit card %s is successfully added to the system!", answers[0]))
			m.println("")
		}
	case domain.PaymentKindPayPal:
		answers, err := m.promptAll("Enter PayPal account's email: ", "Enter PayPal account's password: ")
		if err != nil {
			return err
		}
		err = m.payments.RegisterPayPal(answers[0], answers[1])
		switch {
		case errors.Is(err, domain.ErrInvalidPaymentDetails):
			m.fail("Invalid PayPal credentials. Email or password can't be empty!")
		case err != nil:
			m.fail(err.Error())
		default:
			m.println(fmt.Sprintf("PayPal account %s is successfully added to the system!", answers[0]))
			m.println("")
		}
	}
	return nil
}

func (m *Menu) removePaymentMethod() error {
	if m.noPaymentMethods("") {
		return nil
	}
	key, err := m.prompt("Enter the key of the payment method you want to remove (Credit card number or PayPal email): ")
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if err := m.payments.Unregister(key); err != nil {
		m.fail(err.Error())
		return nil
	}
	m.println(fmt.Sprintf("Payment method with credential %s is removed successfully!", key))
	m.println("")
	return nil
}

func (m *Menu) listPaymentMethods() {
	if m.noPaymentMethods("") {
		return
	}
	m.println("List of payment methods:")
	for _, c := range m.payments.List() {
		m.println(fmt.Sprintf("  %s (%s)", c.Key, c.Kind.Label()))
	}
	m.println("")
}

func (m *Menu) processOrder() error {
	if m.noOrders() {
		return nil
	}
	if m.noPaymentMethods(" Add at least one to process an order!") {
		return nil
	}

	id, ok, err := m.promptID("Enter the ID of the order you want to process: ")
	if err != nil || !ok {
		return err
	}
	if _, err := m.book.Get(id); err != nil {
		m.fail(fmt.Sprintf("Order with ID %d doesn't exist!", id))
		return nil
	}

	rawAmount, err := m.prompt("Enter payment amount: ")
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rawAmount))
	if err != nil {
		m.fail("Invalid input. Please enter a valid amount.")
		return nil
	}
	if !amount.IsPositive() {
		m.fail("Payment amount must be greater than 0!")
		return nil
	}

	answers, err := m.promptAll(
		"Enter payment method (Credit Card or PayPal): ",
		"Enter payment key (Card number or PayPal email): ",
		"Enter payment credential (Card CVV or PayPal password): ",
	)
	if err != nil {
		return err
	}
	kind, err := domain.ParsePaymentKind(answers[0])
	if err != nil {
		m.fail("Invalid payment method!")
		return nil
	}

	receipt, err := m.book.ProcessOrder(id, domain.Payment{
		Kind:   kind,
		Key:    strings.TrimSpace(answers[1]),
		Secret: answers[2],
		Amount: amount,
	})
	if err != nil {
		m.fail(err.Error())
		return nil
	}

	m.println(fmt.Sprintf("Payment with %s %s for %s is completed!", kind.Label(), receipt.Authorization.Key, amount.StringFixed(2)))
	m.println(fmt.Sprintf("Order with ID %d and total %s was successfully processed", id, receipt.Total.StringFixed(2)))
	m.println("")
	return nil
}

func (m *Menu) saveInventory(ctx context.Context) error {
	repo, name, ok, err := m.snapshotRepository("Enter file name to save inventory (e.g., inventory.json): ")
	if err != nil || !ok {
		return err
	}
	snap := snapshot.Export(m.store, m.now().UTC())
	if err := repo.Save(ctx, snap); err != nil {
		m.logger.WithError(err).WithField("target", name).Warn("save inventory failed")
		m.fail("Error saving inventory: " + err.Error())
		return nil
	}
	m.println(fmt.Sprintf("Inventory saved successfully to file: %s (%d items)", name, len(snap.Items)))
	m.println("")
	return nil
}

func (m *Menu) loadInventory(ctx context.Context) error {
	repo, name, ok, err := m.snapshotRepository("Enter file name to load inventory (e.g., inventory.json): ")
	if err != nil || !ok {
		return err
	}
	snap, err := repo.Load(ctx)
	if err == nil {
		err = m.book.ImportSnapshot(snap)
	}
	if err != nil {
		m.logger.WithError(err).WithField("source", name).Warn("load inventory failed")
		m.fail("Error loading inventory: " + err.Error())
		return nil
	}
	m.println(fmt.Sprintf("Inventory loaded successfully from file: %s (%d items)", name, len(snap.Items)))
	m.println("")
	return nil
}

func (m *Menu) snapshotRepository(label string) (domain.SnapshotRepository, string, bool, error) {
	if m.openSnapshots == nil {
		m.fail("Saving and loading inventory is not configured.")
		return nil, "", false, nil
	}
	name, err := m.prompt(label)
	if err != nil {
		return nil, "", false, err
	}
	name = strings.TrimSpace(name)
	repo, err := m.openSnapshots(name)
	if err != nil {
		m.fail(err.Error())
		return nil, "", false, nil
	}
	if name == "" {
		name = "default location"
	}
	return repo, name, true, nil
}

func (m *Menu) noItems() bool {
	if m.store.Len() > 0 {
		return false
	}
	m.fail("No items in inventory.")
	return true
}

func (m *Menu) noOrders() bool {
	orders, err := m.book.List()
	if err == nil && len(orders) > 0 {
		return false
	}
	m.fail("There are no orders placed!")
	return true
}

func (m *Menu) noPaymentMethods(hint string) bool {
	if m.payments.Len() > 0 {
		return false
	}
	m.fail("There are no payment methods added to the system!" + hint)
	return true
}

// promptID читает целочисленный идентификатор; ok=false, если ввод не число.
func (m *Menu) promptID(label string) (int64, bool, error) {
	raw, err := m.prompt(label)
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		m.fail("Invalid input. Please enter a valid ID.")
		return 0, false, nil
	}
	return id, true, nil
}

func (m *Menu) promptAll(labels ...string) ([]string, error) {
	answers := make([]string, len(labels))
	for i, label := range labels {
		answer, err := m.prompt(label)
		if err != nil {
			return nil, err
		}
		answers[i] = answer
	}
	return answers, nil
}

func (m *Menu) prompt(label string) (string, error) {
	_, _ = io.WriteString(m.out, label)
	return m.readLine()
}

func (m *Menu) readLine() (string, error) {
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errEndOfInput
	}
	return m.in.Text(), nil
}

func (m *Menu) fail(message string) {
	m.println(message)
	m.println("")
}

func (m *Menu) println(line string) {
	_, _ = fmt.Fprintln(m.out, line)
}
