package domain

import (
	"time"
)

// Layer names a medallion layer a rule set can run against.
type Layer string

const (
	LayerBronze Layer = "bronze"
	LayerSilver Layer = "silver"
	LayerGold   Layer = "gold"
)

// RuleAction is what the engine does with rows a rule's predicate rejects.
// Failing rules are data, never control flow.
type RuleAction string

const (
	ActionFlag       RuleAction = "flag"
	ActionQuarantine RuleAction = "quarantine"
	ActionReject     RuleAction = "reject"
	ActionReportOnly RuleAction = "report-only"
)

// QualityCheckResult is one rule evaluation outcome for one run.
type QualityCheckResult struct {
	Name         string     `json:"name"`
	Passed       bool       `json:"passed"`
	RowsAffected int        `json:"rows_affected"`
	Action       RuleAction `json:"action"`
	SampleKeys   []string   `json:"sample_keys,omitempty"`
}

// QualityReport is the per-layer evidence written after each run. Quarantine
// counts and run notes make failures auditable rather than silent.
type QualityReport struct {
	RunID        string                `json:"run_id,omitempty"`
	RunTimestamp time.Time             `json:"run_timestamp"`
	Layer        Layer                 `json:"layer"`
	TotalRows    int                   `json:"total_rows"`
	Checks       []QualityCheckResult  `json:"checks"`
	Quarantined  map[ViolationType]int `json:"quarantined,omitempty"`
	Notes        []string              `json:"notes,omitempty"`
}

// FailedChecks returns the checks that did not pass.
func (r QualityReport) FailedChecks() []QualityCheckResult {
	var failed []QualityCheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}
