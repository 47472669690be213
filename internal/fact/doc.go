// Package fact joins cleaned silver records to their dimension keys and
// writes the partitioned gold fact tables.
//
// Joins are temporally correct: a sale resolves to the customer version whose
// [valid_from, valid_to) interval contains the event date, not to whichever
// version happens to be current. Records that cannot resolve every key are
// quarantined as ReferentialIntegrityViolation and excluded from fact output.
//
// Partition assignment derives from the date dimension key alone. Writes fan
// out per partition and each partition file is staged and renamed, so a rerun
// replaces affected partitions atomically and leaves the rest untouched.
package fact
