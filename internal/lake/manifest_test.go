package lake

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcli/internal/config"
)

func TestRunManifestStageLifecycle(t *testing.T) {
	m := NewRunManifest("run-1", "2025-03-15", 3)
	assert.Equal(t, "pending", m.Status)
	assert.Equal(t, 0, m.Progress())

	m.MarkRunning()
	assert.Equal(t, "running", m.Status)

	m.RecordStageStart("silver_clean", "Silver Cleaning")
	assert.False(t, m.IsStageCompleted("silver_clean"))

	m.RecordStageCompletion("silver_clean", []string{config.DatasetSilverSales}, map[string]interface{}{
		"rows_cleaned": 100,
	})
	assert.True(t, m.IsStageCompleted("silver_clean"))
	assert.Equal(t, 33, m.Progress())

	m.RecordStageStart("gold_facts", "Gold Facts")
	m.RecordStageFailure("gold_facts", errors.New("disk full"))

	assert.Equal(t, "failed", m.Status)
	assert.Contains(t, m.Error, "gold_facts")
	assert.False(t, m.IsStageCompleted("gold_facts"))

	// A retry resets the stage entry instead of duplicating it.
	m.RecordStageStart("gold_facts", "Gold Facts")
	require.Len(t, m.Stages, 2)
	assert.Equal(t, "running", m.Stages[1].Status)
	assert.Empty(t, m.Stages[1].Error)

	m.RecordStageCompletion("gold_facts", nil, nil)
	m.RecordStageStart("reports", "Reports")
	m.RecordStageCompletion("reports", nil, nil)
	assert.Equal(t, 100, m.Progress())

	// A completed run stays failed if a stage failed it earlier.
	m.MarkCompleted()
	assert.Equal(t, "failed", m.Status)
}

func TestRunManifestMarkCompleted(t *testing.T) {
	m := NewRunManifest("run-1", "2025-03-15", 1)
	m.MarkRunning()
	m.RecordStageStart("silver_clean", "Silver Cleaning")
	m.RecordStageCompletion("silver_clean", nil, nil)

	m.MarkCompleted()
	assert.Equal(t, "completed", m.Status)
}

func TestRunManifestDatasets(t *testing.T) {
	m := NewRunManifest("run-1", "2025-03-15", 1)

	assert.False(t, m.HasDataset(config.DatasetSilverSales))

	m.AddDataset(config.DatasetSilverSales, &DatasetInfo{
		Layer:     "silver",
		Location:  "/tmp/silver",
		RowCount:  250,
		CreatedBy: "silver_clean",
	})

	require.True(t, m.HasDataset(config.DatasetSilverSales))
	info, ok := m.GetDataset(config.DatasetSilverSales)
	require.True(t, ok)
	assert.Equal(t, int64(250), info.RowCount)
	assert.False(t, info.CreatedAt.IsZero())
}

func TestRunManifestScanDataset(t *testing.T) {
	m := NewRunManifest("run-1", "2025-03-15", 1)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales_pos_1.csv"), []byte("abc"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales_pos_2.csv"), []byte("defgh"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))

	err := m.ScanDataset("pos_batches", "bronze", dir, "sales_pos*.csv", "discovery")
	require.NoError(t, err)

	info, ok := m.GetDataset("pos_batches")
	require.True(t, ok)
	assert.Equal(t, 2, info.FileCount)
	assert.Equal(t, int64(8), info.TotalSize)
	assert.ElementsMatch(t, []string{"sales_pos_1.csv", "sales_pos_2.csv"}, info.Files)
	assert.Equal(t, "ba7816bf8f01", info.Checksums["sales_pos_1.csv"])
	assert.Len(t, info.Checksums["sales_pos_2.csv"], 12)

	err = m.ScanDataset("missing", "bronze", filepath.Join(dir, "nope"), "*", "discovery")
	assert.Error(t, err)
}

func TestRunManifestRecordFiles(t *testing.T) {
	m := NewRunManifest("run-1", "2025-03-15", 1)
	dir := t.TempDir()

	sales := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(sales, []byte("abc"), 0644))

	require.NoError(t, m.RecordFiles("sales", "silver", dir, "silver_clean", 250, sales))

	info, ok := m.GetDataset("sales")
	require.True(t, ok)
	assert.Equal(t, "silver", info.Layer)
	assert.Equal(t, dir, info.Location)
	assert.Equal(t, 1, info.FileCount)
	assert.Equal(t, int64(250), info.RowCount)
	assert.Equal(t, int64(3), info.TotalSize)
	assert.Equal(t, []string{"sales.csv"}, info.Files)
	assert.Equal(t, "ba7816bf8f01", info.Checksums["sales.csv"])
	assert.Equal(t, "silver_clean", info.CreatedBy)
	assert.False(t, info.CreatedAt.IsZero())

	err := m.RecordFiles("missing", "silver", dir, "silver_clean", 0, filepath.Join(dir, "nope.csv"))
	assert.Error(t, err)
}

func TestRunManifestSaveLoad(t *testing.T) {
	store := newTestStore(t, "none")
	require.NoError(t, store.EnsureLayout())

	m := NewRunManifest("run-9", "2025-03-15", 2)
	m.MarkRunning()
	m.RecordStageStart("silver_clean", "Silver Cleaning")
	m.RecordStageCompletion("silver_clean", []string{"sales"}, nil)
	require.NoError(t, m.Save(store))

	loaded, err := LoadRunManifest(store)
	require.NoError(t, err)
	assert.Equal(t, "run-9", loaded.RunID)
	assert.Equal(t, "2025-03-15", loaded.RunDate)
	assert.Equal(t, 2, loaded.TotalStages)
	require.Len(t, loaded.Stages, 1)
	assert.Equal(t, "completed", loaded.Stages[0].Status)
	assert.True(t, loaded.IsStageCompleted("silver_clean"))
}
