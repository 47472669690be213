package analytics

import (
	"log/slog"
	"strconv"

	"retailcli/internal/config"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

var revenueHeader = []string{"date", "group", "revenue", "transactions", "units"}

// WriteReport persists the KPI report JSON plus the two daily-revenue CSVs
// the dashboard charts from, and returns the JSON path.
func WriteReport(s *lake.Store, report *domain.KPIReport, logger *slog.Logger) (string, error) {
	path := s.ReportPath(config.KPIReportFile)
	if err := s.WriteJSON(path, report); err != nil {
		return "", err
	}
	if err := writeRevenueCSV(s, config.RevenueByCityFile, report.RevenueByCity); err != nil {
		return "", err
	}
	if err := writeRevenueCSV(s, config.RevenueByCategoryFile, report.RevenueByCategory); err != nil {
		return "", err
	}
	logger.Info("kpi report written",
		slog.String("path", path),
		slog.Int("city_points", len(report.RevenueByCity)),
		slog.Int("category_points", len(report.RevenueByCategory)))
	return path, nil
}

func writeRevenueCSV(s *lake.Store, name string, points []domain.DailyRevenuePoint) error {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		group := p.City
		if group == "" {
			group = p.Category
		}
		rows = append(rows, []string{
			p.Date.Format("2006-01-02"),
			group,
			strconv.FormatFloat(p.Revenue, 'f', 2, 64),
			strconv.Itoa(p.Transactions),
			strconv.FormatInt(p.Units, 10),
		})
	}
	return s.WriteSnapshot(s.ReportPath(name), lake.WriteOptions{Headers: revenueHeader, Rows: rows})
}

// ReadReport loads a previously written KPI report.
func ReadReport(s *lake.Store) (*domain.KPIReport, error) {
	var report domain.KPIReport
	if err := s.ReadJSON(s.ReportPath(config.KPIReportFile), &report); err != nil {
		return nil, err
	}
	return &report, nil
}
