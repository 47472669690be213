// Package operations orchestrates the medallion pipeline as a run of
// dependent stages.
//
// A run executes the registered stages sequentially in dependency order:
// bronze ingestion, silver cleaning, the dimension and customer-history
// builds, fact assembly, and then quality, anomaly, and KPI reporting over
// the assembled star schema. Stages hand their outputs to the next stage
// through the run state's context; when a stage runs alone, it reads its
// inputs back from the lake instead.
//
// Core components:
//
// Manager: the orchestrator. It resolves execution order through the
// Registry, applies per-stage timeouts, retries transient ingestion I/O
// failures with bounded exponential backoff, skips the dependents of a
// failed stage, and keeps the run manifest on disk current after every
// stage transition.
//
// Stage: one unit of work. A stage declares the stages it depends on,
// validates the run state before executing, and records row counts and
// output paths in its stage state.
//
// Registry: stage registration and topological ordering. Ties between
// independent stages resolve in registration order so runs are
// deterministic.
//
// RunState: the mutable state of one run, deep-copyable for safe
// inspection while the run is live.
//
// ProgressSink: receives run and stage lifecycle events. The package ships
// a slog-backed sink; callers wanting a dashboard or bus attach their own.
//
// Example usage:
//
//	manager := operations.NewManager(store, registry, operations.FromPipeline(cfg.Pipeline), operations.NewLogSink(logger))
//
//	resp, err := manager.Execute(ctx, operations.RunRequest{
//		RunDate: "2025-07-15",
//	})
package operations
