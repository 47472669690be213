// Command anomaly-report screens the gold sales facts for statistical
// outliers and writes the JSON anomaly report. It exists for ad-hoc
// investigations; the anomaly stage produces the same report during a
// pipeline run.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"retailcli/internal/anomaly"
	"retailcli/internal/config"
	"retailcli/internal/dimension"
	apperrors "retailcli/internal/errors"
	"retailcli/internal/fact"
	"retailcli/internal/infrastructure"
	"retailcli/internal/lake"
	"retailcli/pkg/contracts/domain"
)

func main() {
	if err := run(); err != nil {
		slog.Error("anomaly report failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "", "data lake root directory (overrides config)")
	top := flag.Int("top", 0, "number of top records to keep (overrides config when > 0)")
	out := flag.String("out", "", "output path (defaults to the lake's anomaly report)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if *dataDir != "" {
		cfg.Lake.DataDir = *dataDir
	}
	if *top > 0 {
		cfg.Anomaly.TopRecords = *top
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	store := lake.NewStore(cfg.Lake, logger)
	if err := store.EnsureLayout(); err != nil {
		return fmt.Errorf("prepare lake layout: %w", err)
	}

	facts, stores, products, err := goldInputs(store)
	if err != nil {
		return err
	}

	engine := anomaly.NewEngine(cfg.Anomaly, logger)
	observations := anomaly.ObservationsFromFacts(facts, stores, products)
	records := engine.Detect(observations)

	runID := infrastructure.GenerateRunID()
	report := anomaly.BuildReport(runID, records, time.Now().UTC(), cfg.Anomaly.TopRecords)

	path := *out
	if path == "" {
		path, err = anomaly.WriteReport(store, report, logger)
	} else {
		err = store.WriteJSON(path, report)
	}
	if err != nil {
		return fmt.Errorf("write anomaly report: %w", err)
	}

	logger.Info("anomaly report written",
		slog.String("run_id", runID),
		slog.Int("observations", len(observations)),
		slog.Int("anomalies", len(records)),
		slog.String("path", path))
	return nil
}

// goldInputs reads the fact and dimension snapshots the detectors need.
// An empty lake yields empty slices so the report records zero anomalies
// instead of failing.
func goldInputs(store *lake.Store) ([]domain.SalesFact, []domain.StoreDimensionRow, []domain.ProductDimensionRow, error) {
	facts, err := fact.ReadSalesFacts(store)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, nil, nil, err
	}
	stores, err := dimension.ReadStoreDimension(store)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, nil, nil, err
	}
	products, err := dimension.ReadProductDimension(store)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, nil, nil, err
	}
	return facts, stores, products, nil
}
