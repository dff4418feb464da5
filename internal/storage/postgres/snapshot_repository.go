package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

type snapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository создаёт PostgreSQL-реализацию SnapshotRepository.
// Каждый Save добавляет строку, Load читает последнюю.
func NewSnapshotRepository(store *Store) domain.SnapshotRepository {
	return &snapshotRepository{db: store.DB()}
}

func (r *snapshotRepository) Save(ctx context.Context, snapshot domain.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_snapshots (format_version, taken_at, item_count, payload)
		VALUES ($1, $2, $3, $4)
	`, snapshot.Version, snapshot.TakenAt, len(snapshot.Items), payload); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepository) Load(ctx context.Context) (domain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT payload
		FROM inventory_snapshots
		ORDER BY saved_at DESC, id DESC
		LIMIT 1
	`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

var _ domain.SnapshotRepository = (*snapshotRepository)(nil)
