// Command pipeline runs the retail medallion pipeline end to end: bronze
// ingestion, silver cleaning, the gold star schema build, and the quality,
// anomaly, and KPI reports.
//
// By default it executes a single run and exits. With -schedule (or
// schedule.enabled in the config) it stays up and repeats the run on the
// configured interval until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retailcli/internal/app"
	"retailcli/internal/config"
)

// options collects the command-line overrides applied on top of the config.
type options struct {
	dataDir  string
	runDate  string
	rules    string
	stage    string
	schedule bool
	once     bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	opts := options{}
	flag.StringVar(&opts.dataDir, "data-dir", "", "data lake root directory (overrides config)")
	flag.StringVar(&opts.runDate, "run-date", "", "run date as YYYY-MM-DD (defaults to today, UTC)")
	flag.StringVar(&opts.rules, "rules", "", "quality rule set file (overrides config)")
	flag.StringVar(&opts.stage, "stage", "", "run a single stage instead of the full pipeline")
	flag.BoolVar(&opts.schedule, "schedule", false, "keep running on the configured interval")
	flag.BoolVar(&opts.once, "once", false, "force a single run even when scheduling is configured")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return err
	}

	application, err := app.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := application.Logger()

	if opts.stage != "" {
		resp, err := application.RunStage(ctx, opts.stage)
		if err != nil {
			return err
		}
		logger.Info("stage run completed",
			slog.String("run_id", resp.ID),
			slog.String("stage", opts.stage),
			slog.Duration("duration", resp.Duration))
		return nil
	}

	if cfg.Schedule.Enabled {
		logger.Info("starting scheduled pipeline",
			slog.Duration("interval", cfg.Schedule.Interval))
		return application.Run(ctx)
	}

	resp, err := application.RunOnce(ctx)
	if err != nil {
		return err
	}
	logger.Info("pipeline run completed",
		slog.String("run_id", resp.ID),
		slog.Duration("duration", resp.Duration))
	return nil
}

// applyOverrides layers command-line flags over the loaded configuration.
// -once wins over -schedule so an operator can force a single run without
// editing the config.
func applyOverrides(cfg *config.Config, opts options) error {
	if opts.dataDir != "" {
		cfg.Lake.DataDir = opts.dataDir
	}
	if opts.runDate != "" {
		if _, err := time.Parse("2006-01-02", opts.runDate); err != nil {
			return fmt.Errorf("invalid -run-date %q: %w", opts.runDate, err)
		}
		cfg.Pipeline.RunDate = opts.runDate
	}
	if opts.rules != "" {
		cfg.Quality.RulesFile = opts.rules
	}
	if opts.schedule {
		cfg.Schedule.Enabled = true
	}
	if opts.once {
		cfg.Schedule.Enabled = false
	}
	if cfg.Schedule.Enabled && cfg.Schedule.Interval < time.Minute {
		return fmt.Errorf("schedule interval must be at least 1m, got %s", cfg.Schedule.Interval)
	}
	return nil
}
