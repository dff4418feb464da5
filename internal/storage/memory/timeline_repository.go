package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// timelineRepositoryInMemory хранит события заказов в памяти. История
// остаётся и после того, как заказ покинул книгу заказов.
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[int64][]domain.OrderEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[int64][]domain.OrderEvent)}
}

// Append добавляет событие в хранилище.
func (r *timelineRepositoryInMemory) Append(event domain.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.Lines = append([]domain.OrderLine(nil), event.Lines...)
	events := append(r.events[event.OrderID], event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	r.events[event.OrderID] = events

	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(orderID int64) ([]domain.OrderEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[orderID]
	result := make([]domain.OrderEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
