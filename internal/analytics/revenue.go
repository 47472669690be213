package analytics

import (
	"sort"
	"time"

	"retailcli/pkg/contracts/domain"
)

// dailyRevenue folds lines into one point per (day, group). byCity decides
// which labeling field the point carries. Points order by date then group so
// the CSV output diffs cleanly between runs.
func dailyRevenue(lines []saleLine, groupOf func(saleLine) string, byCity bool) []domain.DailyRevenuePoint {
	type cell struct {
		revenue      float64
		units        int64
		transactions map[string]struct{}
	}
	type dayGroup struct {
		day   time.Time
		group string
	}

	cells := make(map[dayGroup]*cell)
	for _, l := range lines {
		key := dayGroup{day: l.Date, group: groupOf(l)}
		c := cells[key]
		if c == nil {
			c = &cell{transactions: make(map[string]struct{})}
			cells[key] = c
		}
		c.revenue += l.Amount
		c.units += l.Quantity
		c.transactions[l.TransactionID] = struct{}{}
	}

	points := make([]domain.DailyRevenuePoint, 0, len(cells))
	for key, c := range cells {
		point := domain.DailyRevenuePoint{
			Date:         key.day,
			Revenue:      c.revenue,
			Transactions: len(c.transactions),
			Units:        c.units,
		}
		if byCity {
			point.City = key.group
		} else {
			point.Category = key.group
		}
		points = append(points, point)
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].City+points[i].Category < points[j].City+points[j].Category
	})
	return points
}
