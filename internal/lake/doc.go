// Package lake manages the layered data directories of the medallion lake
// on local disk.
//
// This package contains three main components:
//
// Store: Resolves the layer directories (bronze, silver, gold, reports,
// quarantine), places dataset snapshots inside them, discovers landed
// source files, and lists gold fact partitions.
//
// Snapshot I/O: CSV snapshot reading and writing with optional snappy
// compression. Every write is staged to a temporary file in the target
// directory and renamed into place, so readers never observe a partial
// snapshot and a crashed run leaves the previous snapshot intact.
//
// RunManifest: Tracks the datasets produced and the stages executed by one
// pipeline run, persisted as JSON alongside the reports.
//
// Example usage:
//
//	store := lake.NewStore(cfg.Lake, logger)
//	if err := store.EnsureLayout(); err != nil {
//	    return err
//	}
//
//	path := store.SilverPath(config.DatasetSilverSales)
//	err := store.WriteSnapshot(path, lake.WriteOptions{
//	    Headers: headers,
//	    Rows:    rows,
//	})
package lake
