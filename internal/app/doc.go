// Package app wires the retail medallion pipeline into a runnable process.
// It owns the initialization order and the process lifecycle: one-shot runs,
// interval-scheduled runs, and graceful shutdown.
//
// # Initialization Flow
//
// The initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize structured logging and telemetry providers
//	3. Open the lake store and ensure its directory layout
//	4. Load the declarative quality rule set (invalid rules abort startup)
//	5. Register the pipeline stages and build the operations manager
//
// # Usage
//
// The typical entry point:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    // configuration or rule-set errors surface here
//	}
//	defer application.Shutdown()
//	err = application.Run(ctx)
//
// # Error Handling
//
// All initialization errors are returned to the caller. The package never
// calls os.Exit() directly, so the main function controls the exit process.
package app
