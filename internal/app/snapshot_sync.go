package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/snapshot"
)

// restoreSnapshot загружает последний снимок в склад. Отсутствие снимка
// не ошибка: сервис стартует с пустым складом.
func (d *runtimeDependencies) restoreSnapshot(ctx context.Context, logger *log.Entry) error {
	snap, err := d.snapshots.Load(ctx)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		logger.Info("no inventory snapshot found, starting with empty inventory")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := d.book.ImportSnapshot(snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	d.metrics.SetSnapshotItems(len(snap.Items))
	logger.WithFields(log.Fields{
		"items":    len(snap.Items),
		"taken_at": snap.TakenAt,
	}).Info("inventory restored from snapshot")
	return nil
}

// persistSnapshot сохраняет текущее состояние склада.
func (d *runtimeDependencies) persistSnapshot(ctx context.Context, logger *log.Entry) error {
	start := time.Now()
	snap := snapshot.Export(d.store, start.UTC())
	if err := d.snapshots.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	d.metrics.SetSnapshotItems(len(snap.Items))
	d.metrics.RecordOperationDuration("snapshot_save", time.Since(start))
	logger.WithField("items", len(snap.Items)).Debug("inventory snapshot saved")
	return nil
}

// runSnapshotLoop периодически сохраняет снимок до отмены ctx.
// Ошибки сохранения логируются, цикл продолжается.
func (d *runtimeDependencies) runSnapshotLoop(ctx context.Context, interval time.Duration, logger *log.Entry) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.persistSnapshot(ctx, logger); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("periodic snapshot failed")
			}
		}
	}
}
