package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Version: domain.SnapshotFormatVersion,
		TakenAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Items: []domain.ItemRecord{
			{ID: 2, Kind: domain.ItemKindGrocery, Name: "Milk", Category: domain.CategoryGrocery,
				Price: decimal.RequireFromString("1.2"), Quantity: 40, ExpirationDate: "2026-11-01"},
			{ID: 1, Kind: domain.ItemKindFragile, Name: "Vase", Category: domain.CategoryFragile,
				Price: decimal.NewFromInt(30), Quantity: 1, Weight: 2.5},
		},
	}
}

func newTestRepo(t *testing.T) *SnapshotRepository {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return NewSnapshotRepository(filepath.Join(t.TempDir(), "data", "inventory.json"), log.NewEntry(logger))
}

func TestSnapshotRepository_LoadMissing(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestSnapshotRepository_SaveLoad(t *testing.T) {
	repo := newTestRepo(t)
	snap := testSnapshot()

	require.NoError(t, repo.Save(context.Background(), snap))

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.Version, loaded.Version)
	assert.True(t, snap.TakenAt.Equal(loaded.TakenAt))
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, int64(2), loaded.Items[0].ID)
	assert.True(t, loaded.Items[0].Price.Equal(decimal.RequireFromString("1.2")))
	assert.Equal(t, 2.5, loaded.Items[1].Weight)

	csvData, err := os.ReadFile(repo.CSVPath())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ItemID,Name,Quantity,Category,Price", lines[0])
	assert.Equal(t, "2,Milk,40,Grocery,1.20", lines[1])
}

func TestSnapshotRepository_SaveOverwritesWithoutTempFiles(t *testing.T) {
	repo := newTestRepo(t)
	snap := testSnapshot()
	require.NoError(t, repo.Save(context.Background(), snap))

	snap.Items = snap.Items[:1]
	require.NoError(t, repo.Save(context.Background(), snap))

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded.Items, 1)

	entries, err := os.ReadDir(filepath.Dir(repo.Path()))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{"inventory.json", "inventory.csv"}, names)
}

func TestSnapshotRepository_CorruptFile(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(repo.Path()), 0o755))
	require.NoError(t, os.WriteFile(repo.Path(), []byte("{not json"), 0o600))

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestSnapshotRepository_CancelledContext(t *testing.T) {
	repo := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, repo.Save(ctx, testSnapshot()), context.Canceled)
}
