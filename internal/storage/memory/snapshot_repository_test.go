package memory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

func TestSnapshotRepository_SaveLoad(t *testing.T) {
	repo := memory.NewSnapshotRepository()
	ctx := context.Background()

	_, err := repo.Load(ctx)
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	snapshot := domain.Snapshot{
		Version: domain.SnapshotFormatVersion,
		Items: []domain.ItemRecord{
			{ID: 1, Kind: domain.ItemKindFragile, Name: "Vase", Category: domain.CategoryFragile, Price: decimal.NewFromInt(3), Quantity: 1, Weight: 2},
		},
	}
	require.NoError(t, repo.Save(ctx, snapshot))

	snapshot.Items[0].Name = "mutated"

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "Vase", loaded.Items[0].Name)
}
