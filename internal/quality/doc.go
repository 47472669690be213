// Package quality evaluates declarative data-quality rules and assembles the
// per-run quality report.
//
// Rules are data, never code: each one names a field, an operator, a
// threshold value and an action, and the same rule set runs unmodified
// against bronze, silver, or gold rows. A failing rule is a result row in the
// report, not an error; the only error this package raises is a fatal
// RuleConfigurationError for a malformed rule set, surfaced at startup before
// anything is written.
//
// Presence and value checks compose: not_null fails rows missing the field,
// while comparison operators skip rows that do not carry it, so a price rule
// scoped to the bronze layer does not count inventory rows as violations.
package quality
