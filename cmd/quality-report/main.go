// Command quality-report evaluates the declarative rule set against one
// medallion layer read back from the lake and writes the JSON quality
// report. It exists for spot checks between pipeline runs; the quality
// stage produces the same report across all layers during a run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"retailcli/internal/bronze"
	"retailcli/internal/config"
	apperrors "retailcli/internal/errors"
	"retailcli/internal/fact"
	"retailcli/internal/infrastructure"
	"retailcli/internal/lake"
	"retailcli/internal/quality"
	"retailcli/internal/silver"
	"retailcli/pkg/contracts/domain"
)

func main() {
	if err := run(); err != nil {
		slog.Error("quality report failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	layerFlag := flag.String("layer", "silver", "layer to evaluate: bronze, silver, or gold")
	dataDir := flag.String("data-dir", "", "data lake root directory (overrides config)")
	rules := flag.String("rules", "", "quality rule set file (overrides config)")
	out := flag.String("out", "", "output path (defaults to the lake's quality report)")
	flag.Parse()

	layer, err := parseLayer(*layerFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if *dataDir != "" {
		cfg.Lake.DataDir = *dataDir
	}
	if *rules != "" {
		cfg.Quality.RulesFile = *rules
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

	ruleSet, err := quality.LoadRuleSet(cfg.Quality.RulesFile)
	if err != nil {
		return err
	}
	engine, err := quality.NewEngine(ruleSet, cfg.Quality, logger)
	if err != nil {
		return err
	}

	rows, err := layerRows(context.Background(), layer, store, cfg, logger)
	if err != nil {
		return err
	}

	report := engine.ReportForLayer(layer, rows, time.Now().UTC())

	path := *out
	if path == "" {
		path, err = quality.WriteReport(store, report, logger)
	} else {
		err = store.WriteJSON(path, report)
	}
	if err != nil {
		return fmt.Errorf("write quality report: %w", err)
	}

	logger.Info("quality report written",
		slog.String("layer", string(layer)),
		slog.Int("rows", len(rows)),
		slog.Int("checks", len(report.Checks)),
		slog.Int("failed", len(report.FailedChecks())),
		slog.String("path", path))
	return nil
}

func parseLayer(s string) (domain.Layer, error) {
	layer := domain.Layer(s)
	switch layer {
	case domain.LayerBronze, domain.LayerSilver, domain.LayerGold:
		return layer, nil
	default:
		return "", fmt.Errorf("unknown layer %q: want bronze, silver, or gold", s)
	}
}

// layerRows reads one layer's rows back from the lake. Missing snapshots
// evaluate as empty rather than failing; rules still report zero rows.
func layerRows(ctx context.Context, layer domain.Layer, store *lake.Store, cfg *config.Config, logger *slog.Logger) ([]quality.Row, error) {
	switch layer {
	case domain.LayerBronze:
		files, err := store.DiscoverSources()
		if err != nil {
			return nil, fmt.Errorf("discover sources: %w", err)
		}
		reader := bronze.NewReader(cfg.Pipeline, logger)
		batches, err := reader.ReadAll(ctx, files)
		if err != nil {
			return nil, fmt.Errorf("read sources: %w", err)
		}
		var raw []domain.RawRecord
		for _, batch := range batches {
			raw = append(raw, batch.Records...)
		}
		return quality.FromRawRecords(raw), nil

	case domain.LayerSilver:
		var records []domain.SilverRecord
		readers := []func(*lake.Store) ([]domain.SilverRecord, error){
			silver.ReadSales,
			silver.ReadInventory,
			silver.ReadShipments,
		}
		for _, read := range readers {
			part, err := read(store)
			if err != nil {
				if apperrors.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			records = append(records, part...)
		}
		return quality.FromSilverRecords(records), nil

	default:
		facts, err := fact.ReadSalesFacts(store)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, err
		}
		return quality.FromSalesFacts(facts), nil
	}
}
