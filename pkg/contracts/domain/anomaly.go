package domain

import (
	"time"
)

// AnomalyType identifies the detector that flagged a record.
type AnomalyType string

const (
	AnomalyRevenueSpike    AnomalyType = "revenue_spike"
	AnomalyRevenueDrop     AnomalyType = "revenue_drop"
	AnomalyQuantityOutlier AnomalyType = "quantity_outlier"
	AnomalyPriceAnomaly    AnomalyType = "price_anomaly"
	AnomalyMultivariate    AnomalyType = "multivariate"
)

// Severity bands anomaly scores for presentation. Ordering matters: Critical
// outranks High outranks Medium outranks Low when merged records conflict.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Rank returns the severity's merge precedence, highest first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AnomalyRecord is one flagged transaction or daily aggregate. Records are
// ephemeral and regenerated on every analytics run.
type AnomalyRecord struct {
	Type          AnomalyType `json:"type"`
	Severity      Severity    `json:"severity"`
	Score         float64     `json:"score"`
	Description   string      `json:"description"`
	TransactionID string      `json:"transaction_id,omitempty"`
	City          string      `json:"city,omitempty"`
	ProductID     string      `json:"product_id,omitempty"`
	Date          time.Time   `json:"date"`
}

// MergeKey identifies the flagged entity so detectors' overlapping findings
// collapse to the highest-severity record.
func (a AnomalyRecord) MergeKey() string {
	if a.TransactionID != "" {
		return "txn:" + a.TransactionID
	}
	return "daily:" + a.City + ":" + a.Date.Format("2006-01-02")
}

// AnomalySummary aggregates a run's findings.
type AnomalySummary struct {
	TotalAnomalies      int                 `json:"total_anomalies"`
	BySeverity          map[Severity]int    `json:"by_severity"`
	ByType              map[AnomalyType]int `json:"by_type"`
	MostAffectedCity    string              `json:"most_affected_city,omitempty"`
	MostAffectedProduct string              `json:"most_affected_product,omitempty"`
}

// AnomalyTimelinePoint is one day's anomaly count.
type AnomalyTimelinePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AnomalyReport is the JSON document the external presentation layer renders.
type AnomalyReport struct {
	RunID       string                 `json:"run_id,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
	Summary     AnomalySummary         `json:"summary"`
	Timeline    []AnomalyTimelinePoint `json:"timeline"`
	ByCity      map[string]int         `json:"by_city"`
	TopRecords  []AnomalyRecord        `json:"top_records"`
}
