package operations

import (
	"time"
)

// Pipeline stage identifiers
const (
	StageIDBronze     = "bronze"
	StageIDSilver     = "silver"
	StageIDDimensions = "dimensions"
	StageIDCustomers  = "customers"
	StageIDFacts      = "facts"
	StageIDQuality    = "quality"
	StageIDAnomaly    = "anomaly"
	StageIDAnalytics  = "analytics"
)

// Pipeline stage names
const (
	StageNameBronze     = "Bronze Ingestion"
	StageNameSilver     = "Silver Cleaning"
	StageNameDimensions = "Dimension Build"
	StageNameCustomers  = "Customer History"
	StageNameFacts      = "Fact Assembly"
	StageNameQuality    = "Quality Evaluation"
	StageNameAnomaly    = "Anomaly Detection"
	StageNameAnalytics  = "KPI Summarization"
)

// Context keys for values stages hand to each other through run state
const (
	ContextKeyDataDir       = "data_dir"
	ContextKeyManifest      = "run_manifest"
	ContextKeyBatches       = "bronze_batches"
	ContextKeySilverResult  = "silver_result"
	ContextKeySilverPaths   = "silver_paths"
	ContextKeyDateRows      = "date_dimension"
	ContextKeyProductRows   = "product_dimension"
	ContextKeyStoreRows     = "store_dimension"
	ContextKeyCustomerRows  = "customer_dimension"
	ContextKeyCustomerDelta = "customer_delta"
	ContextKeyFactResult    = "fact_result"
	ContextKeyPartitions    = "fact_partitions"
	ContextKeyQualityPath   = "quality_report_path"
	ContextKeyAnomalyPath   = "anomaly_report_path"
	ContextKeyKPIPath       = "kpi_report_path"
)

// MetadataKeyOutputs is the stage metadata entry listing files the stage
// wrote; the manager copies it into the run manifest.
const MetadataKeyOutputs = "outputs"

// Default timeouts
const (
	DefaultStageTimeout      = 30 * time.Minute
	DefaultBronzeTimeout     = 15 * time.Minute
	DefaultSilverTimeout     = 30 * time.Minute
	DefaultDimensionsTimeout = 10 * time.Minute
	DefaultCustomersTimeout  = 10 * time.Minute
	DefaultFactsTimeout      = 30 * time.Minute
	DefaultQualityTimeout    = 10 * time.Minute
	DefaultAnomalyTimeout    = 10 * time.Minute
	DefaultAnalyticsTimeout  = 10 * time.Minute
)

// RetryConfig defines retry behavior for stages
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// RunRequest represents a request to execute a pipeline run
type RunRequest struct {
	ID         string                 `json:"id"`
	RunDate    string                 `json:"run_date,omitempty"`
	Stage      string                 `json:"stage,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// RunResponse represents the response from a pipeline run
type RunResponse struct {
	ID       string                 `json:"id"`
	Status   RunStatusValue         `json:"status"`
	Duration time.Duration          `json:"duration"`
	Stages   map[string]*StageState `json:"stages"`
	Error    string                 `json:"error,omitempty"`
}

// ProgressUpdate represents a progress update from a stage
type ProgressUpdate struct {
	StageID  string                 `json:"stage_id"`
	Progress float64                `json:"progress"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StageMetrics represents performance metrics for a stage
type StageMetrics struct {
	StageID         string        `json:"stage_id"`
	ExecutionCount  int           `json:"execution_count"`
	SuccessCount    int           `json:"success_count"`
	FailureCount    int           `json:"failure_count"`
	AverageDuration time.Duration `json:"average_duration"`
	LastExecution   *time.Time    `json:"last_execution,omitempty"`
}
