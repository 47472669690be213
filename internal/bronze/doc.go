// Package bronze reads landed source files from the bronze layer into raw
// record batches.
//
// The landing gateway that produces the files is external; this package
// implements the read side of its contract: one columnar schema per source
// feed (POS sales, web orders, inventory snapshots, shipments), landed as
// .csv or .xlsx files. Records come back as untyped field maps in file order;
// all per-record validation and typing happens in the silver cleaner.
//
// Reads are the only transient I/O boundary of the pipeline, so they carry
// the bounded retry with exponential backoff and the optional rate pacing
// configured under pipeline.bronze_read_rate. A file that cannot be read
// after the configured attempts fails the run with an IngestionIOError.
package bronze
