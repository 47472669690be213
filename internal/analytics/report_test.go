package analytics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcli/internal/config"
	"retailcli/internal/lake"
)

func TestKPIReportRoundTrip(t *testing.T) {
	store := lake.NewStore(config.LakeConfig{DataDir: t.TempDir()}, discardLogger())
	require.NoError(t, store.EnsureLayout())

	s := NewSummarizer(config.AnalyticsConfig{
		RFMEnabled:       true,
		BasketEnabled:    true,
		BasketMinSupport: 0.01,
		BasketTopPairs:   20,
	}, discardLogger())
	written := s.Summarize("run-3", testInputs(), time.Date(2025, 7, 12, 0, 0, 0, 0, time.UTC))

	path, err := WriteReport(store, written, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, config.KPIReportFile, filepath.Base(path))

	read, err := ReadReport(store)
	require.NoError(t, err)
	assert.Equal(t, written.RunID, read.RunID)
	assert.Equal(t, written.TotalRevenue, read.TotalRevenue)
	assert.Equal(t, written.RevenueByCity, read.RevenueByCity)
	assert.Equal(t, written.RFM, read.RFM)

	// The CSV companions land next to the JSON for the dashboard to chart.
	cityHeader, cityRows, err := store.ReadSnapshot(store.ReportPath(config.RevenueByCityFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "group", "revenue", "transactions", "units"}, cityHeader)
	require.Len(t, cityRows, 2)
	assert.Equal(t, []string{"2025-07-10", "Mumbai", "130.00", "1", "3"}, cityRows[0])

	_, categoryRows, err := store.ReadSnapshot(store.ReportPath(config.RevenueByCategoryFile))
	require.NoError(t, err)
	assert.Len(t, categoryRows, 3)
}
