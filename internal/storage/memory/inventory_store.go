package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// inventoryStoreInMemory — склад в памяти. Уникальность ID проверяется только
// среди товаров, которые сейчас лежат в этом складе.
type inventoryStoreInMemory struct {
	mu    sync.RWMutex
	items map[int64]domain.Item
	// order хранит порядок добавления для List/ByCategory.
	order []int64
}

// NewInventoryStore возвращает пустой in-memory склад.
func NewInventoryStore() domain.InventoryStore {
	return &inventoryStoreInMemory{
		items: make(map[int64]domain.Item),
	}
}

// Add добавляет товар, если его ID не занят.
func (s *inventoryStoreInMemory) Add(item domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID()]; exists {
		return fmt.Errorf("%w: id=%d", domain.ErrDuplicateItemID, item.ID())
	}
	s.items[item.ID()] = item
	s.order = append(s.order, item.ID())
	return nil
}

// Remove удаляет товар. Освободившийся ID можно занять снова.
func (s *inventoryStoreInMemory) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return fmt.Errorf("%w: id=%d", domain.ErrItemNotFound, id)
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get возвращает копию товара или ErrItemNotFound.
func (s *inventoryStoreInMemory) Get(id int64) (domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: id=%d", domain.ErrItemNotFound, id)
	}
	return item, nil
}

// List возвращает товары в порядке добавления.
func (s *inventoryStoreInMemory) List() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Item, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.items[id])
	}
	return result
}

// ByCategory возвращает товары категории без учёта регистра.
func (s *inventoryStoreInMemory) ByCategory(category string) []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Item, 0)
	for _, id := range s.order {
		item := s.items[id]
		if strings.EqualFold(item.Category(), category) {
			result = append(result, item)
		}
	}
	return result
}

// SetQuantity меняет остаток товара.
func (s *inventoryStoreInMemory) SetQuantity(id int64, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", domain.ErrItemNotFound, id)
	}
	if err := item.SetQuantity(qty); err != nil {
		return err
	}
	s.items[id] = item
	return nil
}

// SetPrice меняет цену товара.
func (s *inventoryStoreInMemory) SetPrice(id int64, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", domain.ErrItemNotFound, id)
	}
	if err := item.SetPrice(price); err != nil {
		return err
	}
	s.items[id] = item
	return nil
}

// Reserve сначала проверяет все позиции и только потом списывает остатки,
// поэтому при ошибке склад не меняется.
func (s *inventoryStoreInMemory) Reserve(lines []domain.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	requested := make(map[int64]int, len(lines))
	for _, line := range lines {
		if line.Qty <= 0 {
			return domain.ErrInvalidOrderLine
		}
		item, ok := s.items[line.ItemID]
		if !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrItemNotFound, line.ItemID)
		}
		requested[line.ItemID] += line.Qty
		if item.Quantity() < requested[line.ItemID] {
			return fmt.Errorf("%w: item %d has %d, requested %d",
				domain.ErrInsufficientStock, line.ItemID, item.Quantity(), requested[line.ItemID])
		}
	}

	for _, line := range lines {
		item := s.items[line.ItemID]
		// Проверено выше: остаток не уйдёт в минус.
		_ = item.SetQuantity(item.Quantity() - line.Qty)
		s.items[line.ItemID] = item
	}
	return nil
}

// Release возвращает остатки на склад. Позиции товаров, удалённых после
// резервирования, пропускаются и возвращаются вызывающему.
func (s *inventoryStoreInMemory) Release(lines []domain.OrderLine) []domain.OrderLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skipped []domain.OrderLine
	for _, line := range lines {
		item, ok := s.items[line.ItemID]
		if !ok {
			skipped = append(skipped, line)
			continue
		}
		_ = item.SetQuantity(item.Quantity() + line.Qty)
		s.items[line.ItemID] = item
	}
	return skipped
}

// Replace заменяет содержимое склада целиком. При дубликатах ID склад не меняется.
func (s *inventoryStoreInMemory) Replace(items []domain.Item) error {
	next := make(map[int64]domain.Item, len(items))
	order := make([]int64, 0, len(items))
	for _, item := range items {
		if _, exists := next[item.ID()]; exists {
			return fmt.Errorf("%w: id=%d", domain.ErrDuplicateItemID, item.ID())
		}
		next[item.ID()] = item
		order = append(order, item.ID())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = next
	s.order = order
	return nil
}

// Len возвращает количество товаров на складе.
func (s *inventoryStoreInMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var _ domain.InventoryStore = (*inventoryStoreInMemory)(nil)
