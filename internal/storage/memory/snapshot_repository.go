package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// snapshotRepositoryInMemory держит последний снимок склада (для dev и тестов).
type snapshotRepositoryInMemory struct {
	mu       sync.RWMutex
	snapshot *domain.Snapshot
}

// NewSnapshotRepository создаёт in-memory реализацию SnapshotRepository.
func NewSnapshotRepository() domain.SnapshotRepository {
	return &snapshotRepositoryInMemory{}
}

func (r *snapshotRepositoryInMemory) Save(_ context.Context, snapshot domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot.Items = append([]domain.ItemRecord(nil), snapshot.Items...)
	r.snapshot = &snapshot
	return nil
}

func (r *snapshotRepositoryInMemory) Load(_ context.Context) (domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.snapshot == nil {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	snapshot := *r.snapshot
	snapshot.Items = append([]domain.ItemRecord(nil), snapshot.Items...)
	return snapshot, nil
}

var _ domain.SnapshotRepository = (*snapshotRepositoryInMemory)(nil)
