package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind — дискриминатор варианта товара.
type ItemKind string

const (
	// Электроника с гарантией: бьётся, не портится.
	ItemKindElectronics ItemKind = "electronics"
	// Продукты со сроком годности и скидкой 10% при оценке.
	ItemKindGrocery ItemKind = "grocery"
	// Хрупкий товар, к оценке добавляется надбавка за вес.
	ItemKindFragile ItemKind = "fragile"
)

// Категории, которые варианты выставляют при создании.
const (
	CategoryElectronics = "Electronics"
	CategoryGrocery     = "Grocery"
	CategoryFragile     = "Fragile"
)

// DateLayout — формат дат гарантии и срока годности (YYYY-MM-DD).
const DateLayout = "2006-01-02"

var (
	groceryDiscountFactor  = decimal.New(9, -1)
	fragileWeightSurcharge = decimal.NewFromInt(5)
)

// ParseItemKind разбирает тип товара без учёта регистра и пробелов.
func ParseItemKind(raw string) (ItemKind, error) {
	switch kind := ItemKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case ItemKindElectronics, ItemKindGrocery, ItemKindFragile:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownItemKind, raw)
	}
}

// ItemSpec содержит общие поля, которые нужны любому варианту товара.
type ItemSpec struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
}

// Item — товар склада. Вариант фиксируется при создании и дальше не меняется,
// поэтому поля закрыты и меняются только через валидирующие методы.
type Item struct {
	id          int64
	kind        ItemKind
	name        string
	description string
	category    string
	price       decimal.Decimal
	quantity    int

	// Поля вариантов: заполнено только то, что относится к kind.
	warrantyExpiry time.Time
	expirationDate time.Time
	weight         float64
}

// NewElectronics создаёт товар-электронику с датой окончания гарантии.
func NewElectronics(spec ItemSpec, warrantyExpiry time.Time) (Item, error) {
	item, err := newItem(spec, ItemKindElectronics, CategoryElectronics)
	if err != nil {
		return Item{}, err
	}
	item.warrantyExpiry = dateOnly(warrantyExpiry)
	return item, nil
}

// NewGrocery создаёт продуктовый товар со сроком годности.
func NewGrocery(spec ItemSpec, expirationDate time.Time) (Item, error) {
	item, err := newItem(spec, ItemKindGrocery, CategoryGrocery)
	if err != nil {
		return Item{}, err
	}
	item.expirationDate = dateOnly(expirationDate)
	return item, nil
}

// NewFragile создаёт хрупкий товар с весом (>= 0).
func NewFragile(spec ItemSpec, weight float64) (Item, error) {
	if weight < 0 {
		return Item{}, ErrInvalidWeight
	}
	item, err := newItem(spec, ItemKindFragile, CategoryFragile)
	if err != nil {
		return Item{}, err
	}
	item.weight = weight
	return item, nil
}

func newItem(spec ItemSpec, kind ItemKind, category string) (Item, error) {
	switch {
	case spec.ID < 0:
		return Item{}, ErrInvalidItemID
	case strings.TrimSpace(spec.Name) == "":
		return Item{}, ErrItemNameRequired
	case !spec.Price.IsPositive():
		return Item{}, ErrInvalidPrice
	case spec.Quantity < 0:
		return Item{}, ErrInvalidQuantity
	}

	item := Item{
		id:          spec.ID,
		kind:        kind,
		name:        spec.Name,
		description: spec.Description,
		price:       spec.Price,
		quantity:    spec.Quantity,
	}
	if err := item.SetCategory(category); err != nil {
		return Item{}, err
	}
	return item, nil
}

func (i Item) ID() int64 { return i.id }
func (i Item) Kind() ItemKind { return i.kind }
func (i Item) Name() string { return i.name }
func (i Item) Description() string { return i.description }
func (i Item) Category() string { return i.category }
func (i Item) Price() decimal.Decimal { return i.price }
func (i Item) Quantity() int { return i.quantity }
func (i Item) WarrantyExpiry() time.Time { return i.warrantyExpiry }
func (i Item) ExpirationDate() time.Time { return i.expirationDate }
func (i Item) Weight() float64 { return i.weight }

// Breakable сообщает, может ли товар разбиться.
func (i Item) Breakable() bool {
	return i.kind == ItemKindElectronics || i.kind == ItemKindFragile
}

// Perishable сообщает, может ли товар испортиться.
func (i Item) Perishable() bool {
	return i.kind == ItemKindGrocery
}

// SetCategory выставляет категорию только один раз.
func (i *Item) SetCategory(category string) error {
	if i.category != "" {
		return ErrCategoryImmutable
	}
	i.category = category
	return nil
}

// SetPrice меняет цену; цена должна быть строго положительной.
func (i *Item) SetPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	i.price = price
	return nil
}

// SetQuantity меняет остаток; отрицательный остаток недопустим.
func (i *Item) SetQuantity(qty int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	i.quantity = qty
	return nil
}

// Valuate считает стоимость qty единиц товара по правилу его варианта.
func (i Item) Valuate(qty int) decimal.Decimal {
	base := i.price.Mul(decimal.NewFromInt(int64(qty)))

	switch i.kind {
	case ItemKindElectronics:
		return base
	case ItemKindGrocery:
		return base.Mul(groceryDiscountFactor)
	case ItemKindFragile:
		// Надбавка за вес не зависит от количества.
		return base.Add(fragileWeightSurcharge.Mul(decimal.NewFromFloat(i.weight)))
	default:
		return base
	}
}

// Detail — одна пара "название поля: значение" в описании товара.
type Detail struct {
	Label string
	Value string
}

// Details возвращает базовые поля (название, категория, цена) и поля варианта.
func (i Item) Details() []Detail {
	details := []Detail{
		{Label: "Name", Value: i.name},
		{Label: "Category", Value: i.category},
		{Label: "Price", Value: i.price.StringFixed(2)},
	}

	switch i.kind {
	case ItemKindElectronics:
		details = append(details, Detail{Label: "Warranty", Value: i.warrantyExpiry.Format(DateLayout)})
	case ItemKindGrocery:
		details = append(details, Detail{Label: "Expiration Date", Value: i.expirationDate.Format(DateLayout)})
	case ItemKindFragile:
		details = append(details, Detail{Label: "Weight", Value: strconv.FormatFloat(i.weight, 'f', -1, 64)})
	}

	return details
}

// FormatDetails склеивает детали в строку вида "Name: x, Category: y".
func FormatDetails(details []Detail) string {
	parts := make([]string, 0, len(details))
	for _, d := range details {
		parts = append(parts, d.Label+": "+d.Value)
	}
	return strings.Join(parts, ", ")
}

// BreakageNotice возвращает информационное сообщение о поломке товара.
// Состояние товара не меняется.
func (i Item) BreakageNotice(now time.Time) string {
	switch i.kind {
	case ItemKindElectronics:
		if !dateOnly(now).After(i.warrantyExpiry) {
			return "Product " + i.name + " is broken but is still in warranty so it will be replaced!"
		}
		return "Product " + i.name + " is broken and out of warranty! No replacement!"
	case ItemKindFragile:
		return FormatDetails(i.Details()) + " is fragile and has broken."
	default:
		return "Product " + i.name + " is not breakable!"
	}
}

// ExpirationNotice возвращает информационное сообщение о сроке годности.
func (i Item) ExpirationNotice(now time.Time) string {
	if i.kind != ItemKindGrocery {
		return "Product " + i.name + " is not perishable!"
	}
	if dateOnly(now).Before(i.expirationDate) {
		return "Product " + i.name + " is still good to use!"
	}
	return "Product " + i.name + " has expired"
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
