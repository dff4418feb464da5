package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

type timelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

// Append сохраняет событие. Повторная запись события с тем же ID игнорируется.
func (r *timelineRepository) Append(event domain.OrderEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	lines, err := json.Marshal(event.Lines)
	if err != nil {
		return fmt.Errorf("marshal event lines: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO order_events (id, order_id, type, status, total, lines, occurred)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.OrderID, string(event.Type), string(event.Status),
		event.Total.String(), lines, event.Occurred); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("append order event: %w", err)
	}
	return nil
}

func (r *timelineRepository) List(orderID int64) ([]domain.OrderEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, type, status, total::text, lines, occurred
		FROM order_events
		WHERE order_id = $1
		ORDER BY occurred ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.OrderEvent, 0)
	for rows.Next() {
		var (
			event  domain.OrderEvent
			total  string
			lines  []byte
			kind   string
			status string
		)
		if err := rows.Scan(&event.ID, &event.OrderID, &kind, &status, &total, &lines, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		event.Type = domain.OrderEventType(kind)
		event.Status = domain.OrderStatus(status)
		if event.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse event total %q: %w", total, err)
		}
		if err := json.Unmarshal(lines, &event.Lines); err != nil {
			return nil, fmt.Errorf("decode event lines: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order events: %w", err)
	}

	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
