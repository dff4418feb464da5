package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotFormatVersion — версия формата снимка склада.
const SnapshotFormatVersion = 1

// Snapshot — полное содержимое склада для сохранения во внешнее хранилище.
// Заказы и платёжные методы в снимок не входят.
type Snapshot struct {
	Version int          `json:"version"`
	TakenAt time.Time    `json:"taken_at"`
	Items   []ItemRecord `json:"items"`
}

// ItemRecord — плоская запись товара с дискриминатором kind.
type ItemRecord struct {
	ID             int64           `json:"id"`
	Kind           ItemKind        `json:"kind"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	WarrantyExpiry string          `json:"warranty_expiry,omitempty"`
	ExpirationDate string          `json:"expiration_date,omitempty"`
	Weight         float64         `json:"weight,omitempty"`
}

// RecordFromItem переводит товар в запись снимка.
func RecordFromItem(item Item) ItemRecord {
	record := ItemRecord{
		ID:          item.ID(),
		Kind:        item.Kind(),
		Name:        item.Name(),
		Description: item.Description(),
		Category:    item.Category(),
		Price:       item.Price(),
		Quantity:    item.Quantity(),
	}

	switch item.Kind() {
	case ItemKindElectronics:
		record.WarrantyExpiry = item.WarrantyExpiry().Format(DateLayout)
	case ItemKindGrocery:
		record.ExpirationDate = item.ExpirationDate().Format(DateLayout)
	case ItemKindFragile:
		record.Weight = item.Weight()
	}

	return record
}

// ToItem восстанавливает товар из записи через конструктор варианта,
// поэтому все инварианты проверяются заново.
func (r ItemRecord) ToItem() (Item, error) {
	spec := ItemSpec{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    r.Quantity,
	}

	switch r.Kind {
	case ItemKindElectronics:
		warranty, err := time.Parse(DateLayout, r.WarrantyExpiry)
		if err != nil {
			return Item{}, fmt.Errorf("item %d: parse warranty_expiry: %w", r.ID, err)
		}
		return NewElectronics(spec, warranty)
	case ItemKindGrocery:
		expiration, err := time.Parse(DateLayout, r.ExpirationDate)
		if err != nil {
			return Item{}, fmt.Errorf("item %d: parse expiration_date: %w", r.ID, err)
		}
		return NewGrocery(spec, expiration)
	case ItemKindFragile:
		return NewFragile(spec, r.Weight)
	default:
		return Item{}, fmt.Errorf("item %d: %w: %q", r.ID, ErrUnknownItemKind, r.Kind)
	}
}
