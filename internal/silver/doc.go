// Package silver cleans raw bronze batches into the unified silver record set.
//
// Cleaning runs as five ordered steps, each idempotent and independently
// testable:
//
//  1. Structural and type validation. Records missing a required column or
//     carrying an uncastable value are quarantined as SchemaViolation.
//  2. Deduplication. Exact duplicates by composite key keep the first
//     occurrence in ingestion order; duplicates are counted, not treated as
//     errors.
//  3. Null handling. A missing customer_id is filled with the "UNKNOWN"
//     sentinel; rows with null primary or foreign keys are quarantined.
//  4. Range and date validation. unit_price < 0 or quantity < 1 quarantine as
//     RangeViolation; event dates after the run date as FutureDateViolation.
//  5. Source merge. POS and web sale rows land in one unified sales shape
//     tagged with their channel.
//
// Counts of rows in, rows cleaned, and rows quarantined by reason are
// deterministic for identical input and run date, which is what makes rerun
// verification possible.
package silver
