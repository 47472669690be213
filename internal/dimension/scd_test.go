package dimension

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailcli/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func currentRow(key int64, id, name, city string, from time.Time) domain.CustomerDimensionRow {
	return domain.CustomerDimensionRow{
		CustomerKey: key,
		CustomerID:  id,
		Name:        name,
		City:        city,
		ValidFrom:   from,
		IsCurrent:   true,
	}
}

func TestSnapshotsFromSalesOrdering(t *testing.T) {
	sales := []domain.SilverRecord{
		{CustomerID: "C1", CustomerCity: "Delhi", EventTime: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)},
		{CustomerID: "", CustomerCity: "Nagpur", EventTime: time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)},
		{CustomerID: "C1", CustomerCity: "Pune", EventTime: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)},
		{CustomerID: "C2", CustomerCity: "Mumbai", EventTime: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)},
	}

	snaps := SnapshotsFromSales(sales)

	require.Len(t, snaps, 3, "records without a customer id are skipped")
	assert.Equal(t, "Pune", snaps[0].City, "earlier event time first")
	assert.Equal(t, "C2", snaps[1].CustomerID, "equal timestamps fall back to input row order")
	assert.Equal(t, 3, snaps[1].RowNumber)
	assert.Equal(t, "Delhi", snaps[2].City)
}

func TestCustomerFirstAppearance(t *testing.T) {
	snaps := []domain.CustomerSnapshot{{
		CustomerID: "C1",
		Name:       "Asha Rao",
		City:       "Mumbai",
		EventTime:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}}

	rows, delta := ApplyCustomerSnapshots(nil, snaps)

	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].CustomerKey)
	assert.Equal(t, "Mumbai", rows[0].City)
	assert.True(t, rows[0].IsCurrent)
	assert.True(t, day(2025, 3, 14).Equal(rows[0].ValidFrom))
	assert.Nil(t, rows[0].ValidTo)

	require.Len(t, delta.Opened, 1)
	assert.Empty(t, delta.Closed)
	assert.Empty(t, delta.Corrected)
	assert.Equal(t, TieBreakRule, delta.TieBreakRule)
}

// A city change closes the current version at the event date and opens a new
// current one: exactly two versions, no gap and no overlap between them.
func TestCustomerCityChangeOpensVersion(t *testing.T) {
	prior := []domain.CustomerDimensionRow{
		currentRow(1, "C1", "Asha Rao", "Mumbai", day(2025, 1, 10)),
	}
	snaps := []domain.CustomerSnapshot{{
		CustomerID: "C1",
		Name:       "Asha Rao",
		City:       "Delhi",
		EventTime:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}}

	rows, delta := ApplyCustomerSnapshots(prior, snaps)

	require.Len(t, rows, 2)

	expired := rows[0]
	assert.False(t, expired.IsCurrent)
	assert.Equal(t, "Mumbai", expired.City)
	require.NotNil(t, expired.ValidTo)
	assert.True(t, day(2025, 3, 14).Equal(*expired.ValidTo))

	opened := rows[1]
	assert.True(t, opened.IsCurrent)
	assert.Equal(t, "Delhi", opened.City)
	assert.Equal(t, int64(2), opened.CustomerKey)
	assert.True(t, expired.ValidTo.Equal(opened.ValidFrom), "versions abut exactly")
	assert.Nil(t, opened.ValidTo)

	require.Len(t, delta.Opened, 1)
	require.Len(t, delta.Closed, 1)
	assert.Equal(t, int64(2), delta.Opened[0].CustomerKey)
	assert.Equal(t, int64(1), delta.Closed[0].CustomerKey)
	assert.Empty(t, delta.Corrected)
}

func TestCustomerNameOnlyCorrection(t *testing.T) {
	prior := []domain.CustomerDimensionRow{
		currentRow(1, "C1", "Asha Rao", "Mumbai", day(2025, 1, 10)),
	}
	snaps := []domain.CustomerSnapshot{{
		CustomerID: "C1",
		Name:       "Asha R. Rao",
		City:       "Mumbai",
		EventTime:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}}

	rows, delta := ApplyCustomerSnapshots(prior, snaps)

	require.Len(t, rows, 1, "name-only changes never version")
	assert.Equal(t, "Asha R. Rao", rows[0].Name)
	assert.True(t, rows[0].IsCurrent)
	assert.Nil(t, rows[0].ValidTo)
	assert.True(t, day(2025, 1, 10).Equal(rows[0].ValidFrom), "valid_from untouched by correction")

	assert.Empty(t, delta.Opened)
	assert.Empty(t, delta.Closed)
	require.Len(t, delta.Corrected, 1)
	assert.Equal(t, int64(1), delta.Corrected[0].CustomerKey)
}

// Two conflicting city changes inside one run resolve by event timestamp
// ascending; the intermediate version exists but is closed within the run.
func TestCustomerConflictingChangesSameRun(t *testing.T) {
	prior := []domain.CustomerDimensionRow{
		currentRow(1, "C1", "Asha Rao", "Mumbai", day(2025, 1, 10)),
	}
	sales := []domain.SilverRecord{
		{CustomerID: "C1", CustomerCity: "Delhi", EventTime: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)},
		{CustomerID: "C1", CustomerCity: "Pune", EventTime: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)},
	}

	rows, delta := ApplyCustomerSnapshots(prior, SnapshotsFromSales(sales))

	require.Len(t, rows, 3)
	assert.Equal(t, "Pune", rows[1].City, "earlier event applies first")
	assert.False(t, rows[1].IsCurrent)
	assert.Equal(t, "Delhi", rows[2].City)
	assert.True(t, rows[2].IsCurrent)

	require.NotNil(t, rows[1].ValidTo)
	assert.True(t, rows[1].ValidFrom.Equal(*rows[1].ValidTo),
		"same-day intermediate version is zero-width, never joinable")

	require.Len(t, delta.Opened, 2)
	assert.False(t, delta.Opened[0].IsCurrent, "delta reports final state of the intermediate version")
	require.Len(t, delta.Closed, 2)
	assert.Equal(t, []int64{1, 2}, []int64{delta.Closed[0].CustomerKey, delta.Closed[1].CustomerKey})
	assert.Equal(t, TieBreakRule, delta.TieBreakRule)
}

func TestCustomerObservationEdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		prior      domain.CustomerDimensionRow
		snap       domain.CustomerSnapshot
		wantRows   int
		wantCity   string
		wantName  string
		corrected  bool
	}{
		{
			name:      "stale observation older than current version ignored",
			prior:     currentRow(1, "C1", "Asha Rao", "Mumbai", day(2025, 3, 1)),
			snap:      domain.CustomerSnapshot{CustomerID: "C1", City: "Delhi", EventTime: day(2025, 2, 15)},
			wantRows:  1,
			wantCity:  "Mumbai",
			wantName: "Asha Rao",
		},
		{
			name:      "empty snapshot city is not a change",
			prior:     currentRow(1, "C1", "Asha Rao", "Mumbai", day(2025, 1, 10)),
			snap:      domain.CustomerSnapshot{CustomerID: "C1", EventTime: day(2025, 3, 14)},
			wantRows:  1,
			wantCity:  "Mumbai",
			wantName: "Asha Rao",
		},
		{
			name:      "city fills an empty current value without versioning",
			prior:     currentRow(1, "C1", "Asha Rao", "", day(2025, 1, 10)),
			snap:      domain.CustomerSnapshot{CustomerID: "C1", City: "Mumbai", EventTime: day(2025, 3, 14)},
			wantRows:  1,
			wantCity:  "Mumbai",
			wantName: "Asha Rao",
			corrected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, delta := ApplyCustomerSnapshots(
				[]domain.CustomerDimensionRow{tt.prior},
				[]domain.CustomerSnapshot{tt.snap},
			)

			require.Len(t, rows, tt.wantRows)
			assert.Equal(t, tt.wantCity, rows[0].City)
			assert.Equal(t, tt.wantName, rows[0].Name)
			assert.True(t, rows[0].IsCurrent)
			assert.Empty(t, delta.Opened)
			assert.Empty(t, delta.Closed)
			if tt.corrected {
				assert.Len(t, delta.Corrected, 1)
			} else {
				assert.Empty(t, delta.Corrected)
			}
		})
	}
}

func TestApplyCustomerSnapshotsIsSnapshotFunctional(t *testing.T) {
	prior := []domain.CustomerDimensionRow{
		currentRow(1, "C1", "Asha Rao", "Mumbai", day(2025, 1, 10)),
	}
	pristine := make([]domain.CustomerDimensionRow, len(prior))
	copy(pristine, prior)

	_, _ = ApplyCustomerSnapshots(prior, []domain.CustomerSnapshot{{
		CustomerID: "C1",
		Name:       "Renamed",
		City:       "Delhi",
		EventTime:  day(2025, 3, 14),
	}})

	assert.Equal(t, pristine, prior, "input snapshot must never be mutated")
}

func TestCustomerKeysNeverReused(t *testing.T) {
	prior := []domain.CustomerDimensionRow{
		currentRow(7, "C1", "Asha Rao", "Mumbai", day(2025, 1, 10)),
	}
	snaps := []domain.CustomerSnapshot{
		{CustomerID: "C1", City: "Delhi", EventTime: day(2025, 3, 14)},
		{CustomerID: "C2", City: "Pune", EventTime: day(2025, 3, 14), RowNumber: 1},
	}

	rows, _ := ApplyCustomerSnapshots(prior, snaps)

	require.Len(t, rows, 3)
	assert.Equal(t, int64(8), rows[1].CustomerKey, "minting continues above the prior maximum")
	assert.Equal(t, int64(9), rows[2].CustomerKey)
}
