package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/snapshot"
)

// SnapshotRepository хранит снимок склада в JSON-файле и рядом пишет
// CSV-проекцию для просмотра человеком. Оба файла заменяются через rename.
type SnapshotRepository struct {
	path    string
	csvPath string
	logger  *log.Entry
}

// NewSnapshotRepository создаёт файловое хранилище. CSV-файл получает имя
// JSON-файла с расширением .csv.
func NewSnapshotRepository(path string, logger *log.Entry) *SnapshotRepository {
	if logger == nil {
		logger = log.WithField("component", "file-snapshot")
	}
	return &SnapshotRepository{
		path:    path,
		csvPath: strings.TrimSuffix(path, filepath.Ext(path)) + ".csv",
		logger:  logger,
	}
}

// Path возвращает путь к JSON-файлу снимка.
func (r *SnapshotRepository) Path() string { return r.path }

// CSVPath возвращает путь к CSV-проекции.
func (r *SnapshotRepository) CSVPath() string { return r.csvPath }

// Save записывает снимок и его CSV-проекцию.
func (r *SnapshotRepository) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := writeAtomic(r.path, payload); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := snapshot.WriteCSV(&buf, snapshot.Table(snap)); err != nil {
		return fmt.Errorf("render snapshot csv: %w", err)
	}
	if err := writeAtomic(r.csvPath, buf.Bytes()); err != nil {
		return err
	}

	r.logger.WithFields(log.Fields{
		"path":  r.path,
		"items": len(snap.Items),
	}).Debug("snapshot saved")
	return nil
}

// Load читает снимок из JSON-файла. ErrSnapshotNotFound, если файла ещё нет.
func (r *SnapshotRepository) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	payload, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", r.path, err)
	}
	return snap, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// После успешного rename файла уже нет, ошибка игнорируется.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

var _ domain.SnapshotRepository = (*SnapshotRepository)(nil)
