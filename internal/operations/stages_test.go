package operations

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcli/internal/analytics"
	"retailcli/internal/anomaly"
	"retailcli/internal/config"
	"retailcli/internal/dimension"
	"retailcli/internal/fact"
	"retailcli/internal/lake"
	"retailcli/internal/quality"
)

// Fixture files for one business day. The POS file carries an exact duplicate
// of T1, a negative-price row (T4), and a sale with no customer id (T5), so a
// full run exercises dedupe, quarantine, and the unknown-customer path.
const (
	posSalesCSV = `transaction_id,customer_id,customer_name,customer_city,product_id,product_name,category,store_id,store_city,quantity,unit_price,timestamp
T1,C1,Asha Rao,Mumbai,P1,Masala Chai,Beverages,S1,Mumbai,2,12.50,2025-07-15T09:15:00Z
T2,C2,Vikram Joshi,Delhi,P2,Basmati Rice 5kg,Staples,S2,Delhi,1,6.00,2025-07-15T10:02:00Z
T3,C1,Asha Rao,Mumbai,P3,Ghee 1L,Dairy,S1,Mumbai,3,4.25,2025-07-15T11:40:00Z
T1,C1,Asha Rao,Mumbai,P1,Masala Chai,Beverages,S1,Mumbai,2,12.50,2025-07-15T09:15:00Z
T4,C3,Meera Iyer,Pune,P1,Masala Chai,Beverages,S1,Mumbai,1,-3.00,2025-07-15T12:00:00Z
T5,,,,P2,Basmati Rice 5kg,Staples,S2,Delhi,2,6.00,2025-07-15T13:30:00Z
`
	webSalesCSV = `transaction_id,customer_id,customer_name,customer_city,product_id,product_name,category,store_id,store_city,quantity,unit_price,timestamp
T6,C2,Vikram Joshi,Delhi,P1,Masala Chai,Beverages,S2,Delhi,1,12.50,2025-07-15T14:05:00Z
`
	inventoryCSV = `date,store_id,product_id,quantity_on_hand
2025-07-15,S1,P1,40
2025-07-15,S1,P3,12
2025-07-15,S2,P2,25
`
	shipmentsCSV = `shipment_id,date,warehouse_id,store_id,product_id,quantity
SH1,2025-07-15,W1,S1,P1,30
SH2,2025-07-15,W1,S2,P2,20
`
)

const fixtureRunDate = "2025-07-15"

func pipelineLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pipelineRules() *quality.RuleSet {
	return &quality.RuleSet{
		Version: 1,
		Rules: []quality.Rule{
			{
				Name:     "sale_unit_price_non_negative",
				Layers:   []string{"silver", "gold"},
				Kinds:    []string{"sale"},
				Field:    "unit_price",
				Operator: "gte",
				Value:    "0",
				Action:   "flag",
			},
			{
				Name:     "sale_has_transaction_id",
				Layers:   []string{"bronze", "silver"},
				Kinds:    []string{"sale"},
				Field:    "transaction_id",
				Operator: "not_null",
				Action:   "flag",
			},
		},
	}
}

// newRetailPipeline wires all eight stages over a throwaway lake, the shape
// the application assembles at startup.
func newRetailPipeline(t *testing.T) (*Manager, *lake.Store) {
	t.Helper()
	logger := pipelineLogger()

	store := lake.NewStore(config.LakeConfig{DataDir: t.TempDir(), Compression: "none"}, logger)
	require.NoError(t, store.EnsureLayout())

	cfg := config.Default()
	engine, err := quality.NewEngine(pipelineRules(), cfg.Quality, logger)
	require.NoError(t, err)

	registry := NewRegistry()
	stages := []Stage{
		NewBronzeStage(store, cfg.Pipeline, nil, logger),
		NewSilverStage(store, cfg.Pipeline, nil, logger),
		NewDimensionStage(store, nil, logger),
		NewCustomerStage(store, nil, logger),
		NewFactStage(store, cfg.Pipeline, nil, logger),
		NewQualityStage(store, engine, nil, logger),
		NewAnomalyStage(store, cfg.Anomaly, nil, logger),
		NewAnalyticsStage(store, cfg.Analytics, nil, logger),
	}
	for _, stage := range stages {
		require.NoError(t, registry.Register(stage))
	}

	return NewManager(store, registry, fastRetryConfig(1), nil), store
}

func seedBronze(t *testing.T, store *lake.Store) {
	t.Helper()
	files := map[string]string{
		"sales_pos_20250715.csv": posSalesCSV,
		"sales_web_20250715.csv": webSalesCSV,
		"inventory_20250715.csv": inventoryCSV,
		"shipments_20250715.csv": shipmentsCSV,
	}
	for name, contents := range files {
		path := filepath.Join(store.BronzeDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
}

func TestPipelineFullRun(t *testing.T) {
	m, store := newRetailPipeline(t)
	seedBronze(t, store)

	resp, err := m.Execute(context.Background(), RunRequest{RunDate: fixtureRunDate})
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, resp.Status)

	require.Len(t, resp.Stages, 8)
	for id, st := range resp.Stages {
		assert.Equal(t, StageStatusCompleted, st.Status, "stage %s", id)
	}

	bronzeMeta := resp.Stages[StageIDBronze].MetadataCopy()
	assert.Equal(t, 4, bronzeMeta["files"])
	assert.Equal(t, 12, bronzeMeta["rows_read"])

	silverMeta := resp.Stages[StageIDSilver].MetadataCopy()
	assert.Equal(t, 12, silverMeta["rows_in"])
	assert.Equal(t, 10, silverMeta["rows_clean"])
	assert.Equal(t, 1, silverMeta["quarantined"])
	assert.Equal(t, 1, silverMeta["duplicates"])

	for _, dataset := range []string{
		config.DatasetSilverSales, config.DatasetSilverInventory, config.DatasetSilverShipments,
	} {
		assert.FileExists(t, store.SilverPath(dataset))
	}
	assert.FileExists(t, store.QuarantinePath(fixtureRunDate, StageIDSilver))

	products, err := dimension.ReadProductDimension(store)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	stores, err := dimension.ReadStoreDimension(store)
	require.NoError(t, err)
	assert.Len(t, stores, 2)

	customers, err := dimension.ReadCustomerDimension(store)
	require.NoError(t, err)
	require.Len(t, customers, 3)
	ids := make([]string, 0, len(customers))
	for _, c := range customers {
		ids = append(ids, c.CustomerID)
		assert.True(t, c.IsCurrent, "customer %s", c.CustomerID)
		assert.Nil(t, c.ValidTo, "customer %s", c.CustomerID)
	}
	assert.ElementsMatch(t, []string{"C1", "C2", config.UnknownCustomerID}, ids)

	facts, err := fact.ReadSalesFacts(store)
	require.NoError(t, err)
	assert.Len(t, facts, 5)

	qreport, err := quality.ReadReport(store)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, qreport.RunID)
	assert.Len(t, qreport.Checks, 4)
	assert.Empty(t, qreport.FailedChecks())
	assert.Equal(t, 12, qreport.TotalRows)
	assert.NotEmpty(t, qreport.Quarantined)

	areport, err := anomaly.ReadReport(store)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, areport.RunID)

	kpi, err := analytics.ReadReport(store)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, kpi.RunID)
	assert.Equal(t, 5, kpi.Transactions)
	assert.Equal(t, int64(9), kpi.TotalUnits)
	assert.InDelta(t, 68.25, kpi.TotalRevenue, 0.001)

	cities := make(map[string]bool)
	for _, point := range kpi.RevenueByCity {
		cities[point.City] = true
	}
	assert.True(t, cities["Mumbai"])
	assert.True(t, cities["Delhi"])

	manifest, err := lake.LoadRunManifest(store)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, manifest.RunID)
	assert.Equal(t, "completed", manifest.Status)
	assert.Equal(t, 8, manifest.TotalStages)
	assert.Equal(t, 100, manifest.Progress())

	silverSales, ok := manifest.GetDataset(config.DatasetSilverSales)
	require.True(t, ok)
	assert.Equal(t, "silver", silverSales.Layer)
	assert.Equal(t, int64(5), silverSales.RowCount)
	assert.NotEmpty(t, silverSales.Checksums)

	salesFacts, ok := manifest.GetDataset(config.DatasetFactSales)
	require.True(t, ok)
	assert.Equal(t, int64(5), salesFacts.RowCount)
	assert.Equal(t, salesFacts.FileCount, len(salesFacts.Checksums))
}

// A rerun over the same landed files must replace, not accumulate: facts are
// partition-rewritten, reference dimensions gain nothing, and re-observing a
// customer's existing attributes opens no new version.
func TestPipelineRerunKeepsCountsStable(t *testing.T) {
	m, store := newRetailPipeline(t)
	seedBronze(t, store)

	first, err := m.Execute(context.Background(), RunRequest{RunDate: fixtureRunDate})
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, first.Status)

	second, err := m.Execute(context.Background(), RunRequest{RunDate: fixtureRunDate})
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, second.Status)
	require.NotEqual(t, first.ID, second.ID)

	facts, err := fact.ReadSalesFacts(store)
	require.NoError(t, err)
	assert.Len(t, facts, 5)

	products, err := dimension.ReadProductDimension(store)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	customers, err := dimension.ReadCustomerDimension(store)
	require.NoError(t, err)
	require.Len(t, customers, 3)
	for _, c := range customers {
		assert.True(t, c.IsCurrent, "customer %s", c.CustomerID)
	}

	manifest, err := lake.LoadRunManifest(store)
	require.NoError(t, err)
	assert.Equal(t, second.ID, manifest.RunID)
}

// A single-stage run finds its inputs in the lake rather than in the run.
func TestPipelineSingleStageFromLake(t *testing.T) {
	m, store := newRetailPipeline(t)
	seedBronze(t, store)

	full, err := m.Execute(context.Background(), RunRequest{RunDate: fixtureRunDate})
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, full.Status)

	resp, err := m.Execute(context.Background(), RunRequest{
		RunDate: fixtureRunDate,
		Stage:   StageIDAnalytics,
	})
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, resp.Status)
	require.Len(t, resp.Stages, 1)
	assert.Equal(t, StageStatusCompleted, resp.Stages[StageIDAnalytics].Status)

	kpi, err := analytics.ReadReport(store)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, kpi.RunID)
	assert.Equal(t, 5, kpi.Transactions)
	assert.InDelta(t, 68.25, kpi.TotalRevenue, 0.001)
}

// An empty landing share is a quiet day, not a failure: every stage completes
// and the reports carry zeros.
func TestPipelineEmptyBronzeCompletes(t *testing.T) {
	m, store := newRetailPipeline(t)

	resp, err := m.Execute(context.Background(), RunRequest{RunDate: fixtureRunDate})
	require.NoError(t, err)
	require.Equal(t, RunStatusCompleted, resp.Status)

	require.Len(t, resp.Stages, 8)
	for id, st := range resp.Stages {
		assert.Equal(t, StageStatusCompleted, st.Status, "stage %s", id)
	}
	assert.Equal(t, 0, resp.Stages[StageIDBronze].MetadataCopy()["files"])

	assert.FileExists(t, store.SilverPath(config.DatasetSilverSales))

	kpi, err := analytics.ReadReport(store)
	require.NoError(t, err)
	assert.Zero(t, kpi.Transactions)
	assert.Zero(t, kpi.TotalRevenue)

	qreport, err := quality.ReadReport(store)
	require.NoError(t, err)
	assert.Len(t, qreport.Checks, 4)
	assert.Empty(t, qreport.FailedChecks())
}
