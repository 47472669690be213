package operations

import (
	"time"

	"retailcli/internal/config"
)

// Config represents the run execution configuration
type Config struct {
	// Stage-specific timeouts
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`

	// Retry configuration for stages
	Retry RetryConfig `json:"retry"`

	// Whether to continue past stage failures instead of skipping dependents
	ContinueOnError bool `json:"continue_on_error"`

	// Overall run timeout; zero means no limit beyond stage timeouts
	RunTimeout time.Duration `json:"run_timeout"`
}

// NewConfig returns the default run configuration
func NewConfig() *Config {
	return &Config{
		StageTimeouts: map[string]time.Duration{
			StageIDBronze:     DefaultBronzeTimeout,
			StageIDSilver:     DefaultSilverTimeout,
			StageIDDimensions: DefaultDimensionsTimeout,
			StageIDCustomers:  DefaultCustomersTimeout,
			StageIDFacts:      DefaultFactsTimeout,
			StageIDQuality:    DefaultQualityTimeout,
			StageIDAnomaly:    DefaultAnomalyTimeout,
			StageIDAnalytics:  DefaultAnalyticsTimeout,
		},
		Retry:           NewRetryConfig(),
		ContinueOnError: false,
	}
}

// FromPipeline builds a run configuration from the application pipeline
// settings. Every stage shares the configured stage timeout.
func FromPipeline(pcfg config.PipelineConfig) *Config {
	cfg := NewConfig()
	if pcfg.StageTimeout > 0 {
		for id := range cfg.StageTimeouts {
			cfg.StageTimeouts[id] = pcfg.StageTimeout
		}
	}
	if pcfg.RunTimeout > 0 {
		cfg.RunTimeout = pcfg.RunTimeout
	}
	if pcfg.Retry.MaxAttempts > 0 {
		cfg.Retry = RetryConfig{
			MaxAttempts:  pcfg.Retry.MaxAttempts,
			InitialDelay: pcfg.Retry.InitialDelay,
			MaxDelay:     pcfg.Retry.MaxDelay,
			Multiplier:   pcfg.Retry.Multiplier,
		}
	}
	return cfg
}

// GetStageTimeout returns the timeout for a specific stage
func (c *Config) GetStageTimeout(stageID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stageID]; ok {
		return timeout
	}
	return DefaultStageTimeout
}

// SetStageTimeout sets the timeout for a specific stage
func (c *Config) SetStageTimeout(stageID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stageID] = timeout
}

// ConfigBuilder provides a fluent interface for building run configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithStageTimeout sets the timeout for a stage
func (b *ConfigBuilder) WithStageTimeout(stageID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStageTimeout(stageID, timeout)
	return b
}

// WithRetry sets the retry configuration
func (b *ConfigBuilder) WithRetry(retry RetryConfig) *ConfigBuilder {
	b.config.Retry = retry
	return b
}

// WithContinueOnError sets whether to continue on errors
func (b *ConfigBuilder) WithContinueOnError(continueOnError bool) *ConfigBuilder {
	b.config.ContinueOnError = continueOnError
	return b
}

// WithRunTimeout sets the overall run timeout
func (b *ConfigBuilder) WithRunTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.RunTimeout = timeout
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
