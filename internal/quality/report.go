package quality

import (
	"log/slog"
	"time"

	"retailcli/internal/config"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

// RunEvaluation bundles the rows each layer contributes to a pipeline run's
// quality report, plus the quarantine tallies the cleaning and fact stages
// already produced.
type RunEvaluation struct {
	RunID       string
	At          time.Time
	Bronze      []Row
	Silver      []Row
	Gold        []Row
	Quarantined map[domain.ViolationType]int
	Notes       []string
}

// ReportForRun evaluates the rule set against every layer of the run and
// assembles one report. The report's layer is silver, where rows are admitted
// or quarantined, and total_rows counts the raw rows the run screened; bronze
// checks catch values cleaning already set aside, gold checks audit the star
// schema output.
func (e *Engine) ReportForRun(eval RunEvaluation) *domain.QualityReport {
	checks := e.Evaluate(domain.LayerBronze, eval.Bronze)
	checks = append(checks, e.Evaluate(domain.LayerSilver, eval.Silver)...)
	checks = append(checks, e.Evaluate(domain.LayerGold, eval.Gold)...)

	totalRows := len(eval.Bronze)
	if totalRows == 0 {
		totalRows = len(eval.Silver)
	}
	return &domain.QualityReport{
		RunID:        eval.RunID,
		RunTimestamp: eval.At.UTC(),
		Layer:        domain.LayerSilver,
		TotalRows:    totalRows,
		Checks:       checks,
		Quarantined:  eval.Quarantined,
		Notes:        eval.Notes,
	}
}

// ReportForLayer evaluates the rule set against a single layer's rows, the
// shape the standalone report command produces.
func (e *Engine) ReportForLayer(layer domain.Layer, rows []Row, at time.Time) *domain.QualityReport {
	return &domain.QualityReport{
		RunTimestamp: at.UTC(),
		Layer:        layer,
		TotalRows:    len(rows),
		Checks:       e.Evaluate(layer, rows),
	}
}

// WriteReport persists the quality report under reports/ and returns its path.
func WriteReport(s *lake.Store, report *domain.QualityReport, logger *slog.Logger) (string, error) {
	path := s.ReportPath(config.QualityReportFile)
	if err := s.WriteJSON(path, report); err != nil {
		return "", err
	}
	logger.Info("quality report written",
		slog.String("path", path),
		slog.Int("checks", len(report.Checks)),
		slog.Int("failed", len(report.FailedChecks())))
	return path, nil
}

// ReadReport loads a previously written quality report.
func ReadReport(s *lake.Store) (*domain.QualityReport, error) {
	var report domain.QualityReport
	if err := s.ReadJSON(s.ReportPath(config.QualityReportFile), &report); err != nil {
		return nil, err
	}
	return &report, nil
}
