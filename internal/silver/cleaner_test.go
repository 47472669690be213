package silver

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcli/internal/bronze"
	"retailcli/internal/config"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

var (
	testRunDate  = time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	testIngested = time.Date(2025, 3, 15, 6, 0, 0, 0, time.UTC)
)

func newTestCleaner() *Cleaner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCleaner(config.PipelineConfig{MaxWorkers: 2}, logger)
}

func batchOf(source domain.SourceType, name string, fields ...map[string]string) *bronze.Batch {
	records := make([]domain.RawRecord, 0, len(fields))
	for i, f := range fields {
		records = append(records, domain.RawRecord{
			Source:     source,
			Batch:      name,
			RowNumber:  i + 1,
			Fields:     f,
			IngestedAt: testIngested,
		})
	}
	return &bronze.Batch{
		File:    lake.SourceFile{Name: name, Source: source},
		Records: records,
	}
}

func saleFields(txn, customer, product, store, qty, price, ts string) map[string]string {
	return map[string]string{
		"transaction_id": txn,
		"customer_id":    customer,
		"product_id":     product,
		"store_id":       store,
		"quantity":       qty,
		"unit_price":     price,
		"timestamp":      ts,
	}
}

func TestCleanSchemaViolations(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		wantDetail string
	}{
		{
			name: "missing required column",
			fields: map[string]string{
				"transaction_id": "T1",
				"customer_id":    "C1",
				"product_id":     "P1",
				"quantity":       "1",
				"unit_price":     "10.00",
				"timestamp":      "2025-03-14T09:00:00Z",
			},
			wantDetail: "missing required columns: store_id",
		},
		{
			name:       "uncastable quantity",
			fields:     saleFields("T1", "C1", "P1", "S1", "two", "10.00", "2025-03-14T09:00:00Z"),
			wantDetail: `cannot cast "two" to integer`,
		},
		{
			name:       "uncastable unit price",
			fields:     saleFields("T1", "C1", "P1", "S1", "2", "ten", "2025-03-14T09:00:00Z"),
			wantDetail: `cannot cast "ten" to decimal`,
		},
		{
			name:       "uncastable timestamp",
			fields:     saleFields("T1", "C1", "P1", "S1", "2", "10.00", "last tuesday"),
			wantDetail: `cannot cast "last tuesday" to timestamp`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := batchOf(domain.SourcePOS, "sales_pos_001.csv", tt.fields)

			result, err := newTestCleaner().Clean(context.Background(), []*bronze.Batch{batch}, testRunDate)
			require.NoError(t, err)

			assert.Equal(t, 1, result.RowsIn)
			assert.Zero(t, result.RowsClean())
			require.Len(t, result.Quarantined, 1)
			assert.Equal(t, domain.ViolationSchema, result.Quarantined[0].Reason)
			assert.Contains(t, result.Quarantined[0].Detail, tt.wantDetail)
			assert.Equal(t, 1, result.ByReason[domain.ViolationSchema])
		})
	}
}

// Three rows with identical customer, product, timestamp and amount collapse
// to the single first occurrence, even when one landed through a different
// channel file.
func TestCleanDeduplicatesAcrossChannels(t *testing.T) {
	row := saleFields("T1", "C1", "P1", "S1", "2", "9.95", "2025-03-14T09:00:00Z")

	pos := batchOf(domain.SourcePOS, "sales_pos_001.csv", row, row)
	web := batchOf(domain.SourceWeb, "sales_web_001.csv", row)

	result, err := newTestCleaner().Clean(context.Background(), []*bronze.Batch{pos, web}, testRunDate)
	require.NoError(t, err)

	assert.Equal(t, 3, result.RowsIn)
	require.Len(t, result.Sales, 1)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, 2, result.ByReason[domain.ViolationDuplicateRecord])
	assert.Empty(t, result.Quarantined, "duplicates are counted, not quarantined")

	kept := result.Sales[0]
	assert.Equal(t, domain.ChannelPOS, kept.Channel, "first occurrence in ingestion order wins")
	assert.Equal(t, "sales_pos_001.csv", kept.SourceBatch)
	assert.InDelta(t, 19.90, kept.Amount, 0.001)
}

func TestCleanNullHandling(t *testing.T) {
	tests := []struct {
		name           string
		fields         map[string]string
		wantKept       bool
		wantCustomerID string
		wantDetail     string
	}{
		{
			name:           "missing customer gets sentinel",
			fields:         saleFields("T1", "", "P1", "S1", "1", "5.00", "2025-03-14T09:00:00Z"),
			wantKept:       true,
			wantCustomerID: config.UnknownCustomerID,
		},
		{
			name:       "null transaction id dropped",
			fields:     saleFields("", "C1", "P1", "S1", "1", "5.00", "2025-03-14T09:00:00Z"),
			wantDetail: "null transaction_id",
		},
		{
			name:       "null product id dropped",
			fields:     saleFields("T1", "C1", "", "S1", "1", "5.00", "2025-03-14T09:00:00Z"),
			wantDetail: "null product_id",
		},
		{
			name:       "null store id dropped",
			fields:     saleFields("T1", "C1", "P1", "", "1", "5.00", "2025-03-14T09:00:00Z"),
			wantDetail: "null store_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := batchOf(domain.SourcePOS, "sales_pos_001.csv", tt.fields)

			result, err := newTestCleaner().Clean(context.Background(), []*bronze.Batch{batch}, testRunDate)
			require.NoError(t, err)

			if tt.wantKept {
				require.Len(t, result.Sales, 1)
				assert.Equal(t, tt.wantCustomerID, result.Sales[0].CustomerID)
				assert.Empty(t, result.Quarantined)
				return
			}
			require.Len(t, result.Quarantined, 1)
			assert.Equal(t, domain.ViolationSchema, result.Quarantined[0].Reason)
			assert.Equal(t, tt.wantDetail, result.Quarantined[0].Detail)
		})
	}
}

func TestCleanRangeAndDateViolations(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		wantReason domain.ViolationType
		wantDetail string
	}{
		{
			name:       "negative unit price",
			fields:     saleFields("T1", "C1", "P1", "S1", "1", "-5", "2025-03-14T09:00:00Z"),
			wantReason: domain.ViolationRange,
			wantDetail: "unit_price -5.00 below zero",
		},
		{
			name:       "zero quantity",
			fields:     saleFields("T1", "C1", "P1", "S1", "0", "5.00", "2025-03-14T09:00:00Z"),
			wantReason: domain.ViolationRange,
			wantDetail: "quantity 0 below 1",
		},
		{
			name:       "event after run date",
			fields:     saleFields("T1", "C1", "P1", "S1", "1", "5.00", "2025-03-16T09:00:00Z"),
			wantReason: domain.ViolationFutureDate,
			wantDetail: "event date 2025-03-16 after run date 2025-03-15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := batchOf(domain.SourcePOS, "sales_pos_001.csv", tt.fields)

			result, err := newTestCleaner().Clean(context.Background(), []*bronze.Batch{batch}, testRunDate)
			require.NoError(t, err)

			assert.Zero(t, result.RowsClean())
			require.Len(t, result.Quarantined, 1)
			assert.Equal(t, tt.wantReason, result.Quarantined[0].Reason)
			assert.Equal(t, tt.wantDetail, result.Quarantined[0].Detail)
			assert.Equal(t, 1, result.ByReason[tt.wantReason])
		})
	}
}

func TestCleanSameDayEventKept(t *testing.T) {
	batch := batchOf(domain.SourcePOS, "sales_pos_001.csv",
		saleFields("T1", "C1", "P1", "S1", "1", "5.00", "2025-03-15T23:59:00Z"))

	result, err := newTestCleaner().Clean(context.Background(), []*bronze.Batch{batch}, testRunDate)
	require.NoError(t, err)

	assert.Len(t, result.Sales, 1)
	assert.Empty(t, result.Quarantined)
}

func TestCleanMergesChannels(t *testing.T) {
	pos := batchOf(domain.SourcePOS, "sales_pos_001.csv",
		saleFields("T1", "C1", "P1", "S1", "1", "5.00", "2025-03-14T09:00:00Z"))
	web := batchOf(domain.SourceWeb, "sales_web_001.csv",
		saleFields("T2", "C2", "P2", "S2", "2", "7.50", "2025-03-14T10:00:00Z"))

	result, err := newTestCleaner().Clean(context.Background(), []*bronze.Batch{pos, web}, testRunDate)
	require.NoError(t, err)

	require.Len(t, result.Sales, 2)
	assert.Equal(t, domain.ChannelPOS, result.Sales[0].Channel)
	assert.Equal(t, "T1", result.Sales[0].TransactionID)
	assert.Equal(t, domain.ChannelWeb, result.Sales[1].Channel)
	assert.Equal(t, "T2", result.Sales[1].TransactionID)
}

func TestCleanInventoryAndShipments(t *testing.T) {
	inventory := batchOf(domain.SourceInventory, "inventory_20250314.csv",
		map[string]string{
			"date": "2025-03-14", "store_id": "S1", "product_id": "P1", "quantity_on_hand": "40",
		},
		map[string]string{
			"date": "2025-03-14", "store_id": "S1", "product_id": "P2", "quantity_on_hand": "-3",
		},
	)
	shipments := batchOf(domain.SourceShipment, "shipments_20250314.csv",
		map[string]string{
			"shipment_id": "SH1", "date": "2025-03-14", "warehouse_id": "W1",
			"store_id": "S1", "product_id": "P1", "quantity": "12",
		},
	)

	result, err := newTestCleaner().Clean(context.Background(), []*bronze.Batch{inventory, shipments}, testRunDate)
	require.NoError(t, err)

	require.Len(t, result.Inventory, 1)
	assert.Equal(t, int64(40), result.Inventory[0].Quantity)
	assert.Equal(t, domain.RecordKindInventory, result.Inventory[0].Kind)

	require.Len(t, result.Shipments, 1)
	assert.Equal(t, "SH1", result.Shipments[0].ShipmentID)

	require.Len(t, result.Quarantined, 1)
	assert.Equal(t, domain.ViolationRange, result.Quarantined[0].Reason)
	assert.Equal(t, "quantity_on_hand -3 below zero", result.Quarantined[0].Detail)
}

func TestCleanDeterministicAcrossRuns(t *testing.T) {
	batches := func() []*bronze.Batch {
		dup := saleFields("T2", "C2", "P2", "S2", "1", "3.00", "2025-03-14T11:00:00Z")
		return []*bronze.Batch{
			batchOf(domain.SourcePOS, "sales_pos_001.csv",
				saleFields("T1", "C1", "P1", "S1", "1", "5.00", "2025-03-14T09:00:00Z"),
				saleFields("T9", "C9", "P9", "S9", "0", "5.00", "2025-03-14T09:30:00Z"),
				dup, dup),
			batchOf(domain.SourceWeb, "sales_web_001.csv",
				saleFields("T3", "", "P3", "S3", "2", "4.25", "2025-03-14T12:00:00Z")),
		}
	}

	first, err := newTestCleaner().Clean(context.Background(), batches(), testRunDate)
	require.NoError(t, err)
	second, err := newTestCleaner().Clean(context.Background(), batches(), testRunDate)
	require.NoError(t, err)

	assert.Equal(t, first.RowsIn, second.RowsIn)
	assert.Equal(t, first.Duplicates, second.Duplicates)
	assert.Equal(t, first.ByReason, second.ByReason)
	assert.Equal(t, first.Sales, second.Sales)
	assert.Equal(t, first.Quarantined, second.Quarantined)
}

func TestCleanCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := batchOf(domain.SourcePOS, "sales_pos_001.csv",
		saleFields("T1", "C1", "P1", "S1", "1", "5.00", "2025-03-14T09:00:00Z"))

	_, err := newTestCleaner().Clean(ctx, []*bronze.Batch{batch}, testRunDate)
	assert.Error(t, err)
}

func TestCastTimestampLayouts(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"rfc3339", "2025-03-14T09:30:00Z", time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)},
		{"t separator no zone", "2025-03-14T09:30:00", time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)},
		{"space separator", "2025-03-14 09:30:00", time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)},
		{"bare date", "2025-03-14", time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := domain.RawRecord{Fields: map[string]string{"timestamp": tt.value}}
			got, err := castTimestamp(raw, "timestamp")
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}
}
