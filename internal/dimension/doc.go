// Package dimension builds the gold-layer dimensions from cleaned silver
// records.
//
// The date dimension is regenerated over the full observed span every run;
// its keys encode the calendar date, so regeneration is idempotent. Product
// and store dimensions only ever grow: prior surrogate keys are preserved and
// new natural keys mint monotonically above the previous maximum.
//
// The customer dimension keeps Type 2 history for the tracked attribute
// (city). The manager is snapshot-functional: it takes the latest dimension
// snapshot plus this run's observations and returns a new snapshot together
// with the version delta, never mutating shared state.
package dimension
