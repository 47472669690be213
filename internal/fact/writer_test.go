package fact

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcli/internal/config"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

func newTestWriter(t *testing.T) (*Writer, *lake.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := lake.NewStore(config.LakeConfig{DataDir: t.TempDir(), Compression: "none"}, logger)
	require.NoError(t, store.EnsureLayout())
	return NewWriter(store, config.PipelineConfig{MaxWorkers: 4}, logger), store
}

func salesFact(txn string, dateKey int64, amount float64) domain.SalesFact {
	return domain.SalesFact{
		TransactionID: txn,
		DateKey:       dateKey,
		CustomerKey:   1,
		ProductKey:    1,
		StoreKey:      1,
		Channel:       domain.ChannelPOS,
		Quantity:      1,
		UnitPrice:     amount,
		Amount:        amount,
		EventTime:     time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestWriteAllPartitionsByDateKey(t *testing.T) {
	writer, store := newTestWriter(t)

	result := &BuildResult{
		Sales: []domain.SalesFact{
			salesFact("T-MAR", 20250314, 10),
			salesFact("T-FEB", 20250201, 20),
			salesFact("T-MAR2", 20250320, 30),
		},
		Inventory: []domain.InventoryFact{
			{DateKey: 20250314, StoreKey: 1, ProductKey: 1, QuantityOnHand: 40},
		},
	}

	outputs, err := writer.WriteAll(context.Background(), result)
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	assert.Equal(t, config.DatasetFactSales, outputs[0].Table)
	assert.Equal(t, domain.Partition{Year: 2025, Month: 2}, outputs[0].Partition)
	assert.Equal(t, 1, outputs[0].Rows)
	assert.Equal(t, domain.Partition{Year: 2025, Month: 3}, outputs[1].Partition)
	assert.Equal(t, 2, outputs[1].Rows)
	assert.Equal(t, config.DatasetFactInventory, outputs[2].Table)

	partitions, err := store.ListPartitions(config.DatasetFactSales)
	require.NoError(t, err)
	assert.Len(t, partitions, 2)

	facts, err := ReadSalesFacts(store)
	require.NoError(t, err)
	require.Len(t, facts, 3)
	assert.Equal(t, "T-FEB", facts[0].TransactionID, "partition order, then input order within partition")
	assert.Equal(t, "T-MAR", facts[1].TransactionID)
	assert.Equal(t, "T-MAR2", facts[2].TransactionID)
	assert.Equal(t, result.Sales[1], facts[0])
}

func TestWriteAllReplacesOnlyRebuiltPartitions(t *testing.T) {
	writer, store := newTestWriter(t)

	first := &BuildResult{Sales: []domain.SalesFact{
		salesFact("T-FEB", 20250201, 20),
		salesFact("T-MAR", 20250314, 10),
	}}
	_, err := writer.WriteAll(context.Background(), first)
	require.NoError(t, err)

	second := &BuildResult{Sales: []domain.SalesFact{
		salesFact("T-MAR-NEW", 20250315, 99),
	}}
	_, err = writer.WriteAll(context.Background(), second)
	require.NoError(t, err)

	facts, err := ReadSalesFacts(store)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "T-FEB", facts[0].TransactionID, "untouched partition survives the rerun")
	assert.Equal(t, "T-MAR-NEW", facts[1].TransactionID, "rebuilt partition fully replaced")
}

func TestWriteAllEmptyResult(t *testing.T) {
	writer, store := newTestWriter(t)

	outputs, err := writer.WriteAll(context.Background(), &BuildResult{})
	require.NoError(t, err)
	assert.Empty(t, outputs)

	facts, err := ReadSalesFacts(store)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestWriteAllCancelledContext(t *testing.T) {
	writer, _ := newTestWriter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := writer.WriteAll(ctx, &BuildResult{Sales: []domain.SalesFact{
		salesFact("T1", 20250314, 10),
	}})
	assert.Error(t, err)
}
