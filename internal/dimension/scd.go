package dimension

import (
	"sort"
	"time"

	"retailcli/pkg/contracts/domain"
)

// TieBreakRule is the deterministic resolution order for conflicting customer
// changes inside one run. Run reports carry it verbatim so nobody has to
// guess how ambiguity was resolved.
const TieBreakRule = "event timestamp ascending, ties broken by input row order"

// SnapshotsFromSales derives customer observations from cleaned sales records
// and orders them by TieBreakRule. RowNumber is the record's position in the
// cleaned sales slice, which is stable for identical input.
func SnapshotsFromSales(sales []domain.SilverRecord) []domain.CustomerSnapshot {
	snaps := make([]domain.CustomerSnapshot, 0, len(sales))
	for i, rec := range sales {
		if rec.CustomerID == "" {
			continue
		}
		snaps = append(snaps, domain.CustomerSnapshot{
			CustomerID: rec.CustomerID,
			Name:       rec.CustomerName,
			City:       rec.CustomerCity,
			EventTime:  rec.EventTime,
			RowNumber:  i,
		})
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].EventTime.Equal(snaps[j].EventTime) {
			return snaps[i].EventTime.Before(snaps[j].EventTime)
		}
		return snaps[i].RowNumber < snaps[j].RowNumber
	})
	return snaps
}

// ApplyCustomerSnapshots folds ordered observations into the customer
// dimension. A city change closes the current version at the event date and
// opens a new one; a name-only change corrects the current version in place.
// The input snapshot is never mutated: the function returns a new dimension
// snapshot plus the delta of versions it opened, closed and corrected.
func ApplyCustomerSnapshots(prior []domain.CustomerDimensionRow, snaps []domain.CustomerSnapshot) ([]domain.CustomerDimensionRow, *domain.CustomerDelta) {
	rows := make([]domain.CustomerDimensionRow, len(prior))
	copy(rows, prior)

	current := make(map[string]int, len(rows))
	var maxKey int64
	for i, row := range rows {
		if row.CustomerKey > maxKey {
			maxKey = row.CustomerKey
		}
		if row.IsCurrent {
			current[row.CustomerID] = i
		}
	}

	var openedKeys, closedKeys []int64
	corrected := make(map[int64]bool)

	for _, snap := range snaps {
		eventDate := dayOf(snap.EventTime)

		idx, tracked := current[snap.CustomerID]
		if !tracked {
			maxKey++
			rows = append(rows, domain.CustomerDimensionRow{
				CustomerKey: maxKey,
				CustomerID:  snap.CustomerID,
				Name:        snap.Name,
				City:        snap.City,
				ValidFrom:   eventDate,
				IsCurrent:   true,
			})
			current[snap.CustomerID] = len(rows) - 1
			openedKeys = append(openedKeys, maxKey)
			continue
		}

		// History is append-only: an observation older than the current
		// version cannot rewrite closed versions and is ignored.
		if eventDate.Before(rows[idx].ValidFrom) {
			continue
		}

		cityChanged := snap.City != "" && rows[idx].City != "" && snap.City != rows[idx].City
		if cityChanged {
			closedAt := eventDate
			rows[idx].ValidTo = &closedAt
			rows[idx].IsCurrent = false
			closedKeys = append(closedKeys, rows[idx].CustomerKey)

			name := snap.Name
			if name == "" {
				name = rows[idx].Name
			}
			maxKey++
			rows = append(rows, domain.CustomerDimensionRow{
				CustomerKey: maxKey,
				CustomerID:  snap.CustomerID,
				Name:        name,
				City:        snap.City,
				ValidFrom:   eventDate,
				IsCurrent:   true,
			})
			current[snap.CustomerID] = len(rows) - 1
			openedKeys = append(openedKeys, maxKey)
			continue
		}

		if snap.Name != "" && snap.Name != rows[idx].Name {
			rows[idx].Name = snap.Name
			corrected[rows[idx].CustomerKey] = true
		}
		if rows[idx].City == "" && snap.City != "" {
			rows[idx].City = snap.City
			corrected[rows[idx].CustomerKey] = true
		}
	}

	byKey := make(map[int64]domain.CustomerDimensionRow, len(rows))
	for _, row := range rows {
		byKey[row.CustomerKey] = row
	}

	delta := &domain.CustomerDelta{TieBreakRule: TieBreakRule}
	for _, key := range openedKeys {
		delta.Opened = append(delta.Opened, byKey[key])
		delete(corrected, key)
	}
	for _, key := range closedKeys {
		delta.Closed = append(delta.Closed, byKey[key])
		delete(corrected, key)
	}
	correctedKeys := make([]int64, 0, len(corrected))
	for key := range corrected {
		correctedKeys = append(correctedKeys, key)
	}
	sort.Slice(correctedKeys, func(i, j int) bool { return correctedKeys[i] < correctedKeys[j] })
	for _, key := range correctedKeys {
		delta.Corrected = append(delta.Corrected, byKey[key])
	}

	return rows, delta
}

func dayOf(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
