package anomaly

import (
	"log/slog"
	"sort"
	"time"

	"retailcli/internal/config"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

// BuildReport assembles the run's anomaly document from merged records:
// severity and type distributions, the most affected city and product, a
// per-day timeline, and the top records capped at topN. Records arrive
// already ordered by severity, so the cap keeps the worst findings.
func BuildReport(runID string, records []domain.AnomalyRecord, generatedAt time.Time, topN int) *domain.AnomalyReport {
	summary := domain.AnomalySummary{
		TotalAnomalies: len(records),
		BySeverity:     make(map[domain.Severity]int),
		ByType:         make(map[domain.AnomalyType]int),
	}
	byCity := make(map[string]int)
	byProduct := make(map[string]int)
	byDay := make(map[string]int)
	for _, rec := range records {
		summary.BySeverity[rec.Severity]++
		summary.ByType[rec.Type]++
		if rec.City != "" {
			byCity[rec.City]++
		}
		if rec.ProductID != "" {
			byProduct[rec.ProductID]++
		}
		byDay[rec.Date.Format("2006-01-02")]++
	}
	summary.MostAffectedCity = topKey(byCity)
	summary.MostAffectedProduct = topKey(byProduct)

	timeline := make([]domain.AnomalyTimelinePoint, 0, len(byDay))
	for day, count := range byDay {
		timeline = append(timeline, domain.AnomalyTimelinePoint{Date: day, Count: count})
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Date < timeline[j].Date })

	top := records
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}
	return &domain.AnomalyReport{
		RunID:       runID,
		GeneratedAt: generatedAt.UTC(),
		Summary:     summary,
		Timeline:    timeline,
		ByCity:      byCity,
		TopRecords:  top,
	}
}

// topKey returns the key with the highest count, breaking ties on the
// lexically smaller key so reruns pick the same winner.
func topKey(counts map[string]int) string {
	best, bestCount := "", 0
	for key, count := range counts {
		if count > bestCount || (count == bestCount && best != "" && key < best) {
			best, bestCount = key, count
		}
	}
	return best
}

// WriteReport persists the anomaly report under reports/ and returns its path.
func WriteReport(s *lake.Store, report *domain.AnomalyReport, logger *slog.Logger) (string, error) {
	path := s.ReportPath(config.AnomalyReportFile)
	if err := s.WriteJSON(path, report); err != nil {
		return "", err
	}
	logger.Info("anomaly report written",
		slog.String("path", path),
		slog.Int("anomalies", report.Summary.TotalAnomalies),
		slog.Int("critical", report.Summary.BySeverity[domain.SeverityCritical]))
	return path, nil
}

// ReadReport loads a previously written anomaly report.
func ReadReport(s *lake.Store) (*domain.AnomalyReport, error) {
	var report domain.AnomalyReport
	if err := s.ReadJSON(s.ReportPath(config.AnomalyReportFile), &report); err != nil {
		return nil, err
	}
	return &report, nil
}
