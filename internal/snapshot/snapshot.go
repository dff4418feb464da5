// Package snapshot переводит содержимое склада в снимок и обратно.
// Сам пакет не работает с файлами: запись снимка делают адаптеры storage.
package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// ErrUnsupportedVersion возвращается для снимков неизвестной версии формата.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// CSVHeader — заголовок табличной проекции склада.
var CSVHeader = []string{"ItemID", "Name", "Quantity", "Category", "Price"}

// Row — строка табличной проекции: только поля, нужные человеку.
type Row struct {
	ID       int64
	Name     string
	Quantity int
	Category string
	Price    string
}

// Export снимает полное содержимое склада в порядке добавления товаров.
func Export(store domain.InventoryStore, takenAt time.Time) domain.Snapshot {
	items := store.List()
	records := make([]domain.ItemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, domain.RecordFromItem(item))
	}
	return domain.Snapshot{
		Version: domain.SnapshotFormatVersion,
		TakenAt: takenAt.UTC(),
		Items:   records,
	}
}

// Import заменяет содержимое склада снимком. Все записи проверяются до
// замены: при ошибке склад остаётся прежним.
func Import(store domain.InventoryStore, snap domain.Snapshot) error {
	if snap.Version != domain.SnapshotFormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}

	items := make([]domain.Item, 0, len(snap.Items))
	for _, record := range snap.Items {
		item, err := record.ToItem()
		if err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
		items = append(items, item)
	}
	if err := store.Replace(items); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

// Table строит табличную проекцию снимка.
func Table(snap domain.Snapshot) []Row {
	rows := make([]Row, 0, len(snap.Items))
	for _, record := range snap.Items {
		rows = append(rows, Row{
			ID:       record.ID,
			Name:     record.Name,
			Quantity: record.Quantity,
			Category: record.Category,
			Price:    record.Price.StringFixed(2),
		})
	}
	return rows
}

// WriteCSV пишет табличную проекцию с заголовком ItemID,Name,Quantity,Category,Price.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.ID, 10),
			row.Name,
			strconv.Itoa(row.Quantity),
			row.Category,
			row.Price,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
