package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Lake      LakeConfig      `yaml:"lake" envconfig:"LAKE"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Quality   QualityConfig   `yaml:"quality" envconfig:"QUALITY"`
	Anomaly   AnomalyConfig   `yaml:"anomaly" envconfig:"ANOMALY"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Schedule  ScheduleConfig  `yaml:"schedule" envconfig:"SCHEDULE"`
}

// LakeConfig locates the medallion layers on disk
type LakeConfig struct {
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data" validate:"required"`
	Compression string `yaml:"compression" envconfig:"COMPRESSION" default:"none" validate:"oneof=none snappy"`
	LogsDir     string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// PipelineConfig controls run shape, parallelism, and the ingestion boundary
type PipelineConfig struct {
	RunDate        string          `yaml:"run_date" envconfig:"RUN_DATE"` // YYYY-MM-DD, empty means today
	MaxWorkers     int             `yaml:"max_workers" envconfig:"MAX_WORKERS" default:"4" validate:"min=1,max=64"`
	StageTimeout   time.Duration   `yaml:"stage_timeout" envconfig:"STAGE_TIMEOUT" default:"30m"`
	RunTimeout     time.Duration   `yaml:"run_timeout" envconfig:"RUN_TIMEOUT" default:"2h"`
	Retry          RetryConfig     `yaml:"retry" envconfig:"RETRY"`
	BronzeReadRate BronzeRateLimit `yaml:"bronze_read_rate" envconfig:"BRONZE_READ_RATE"`
}

// RetryConfig bounds retries for transient ingestion I/O
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"3" validate:"min=1,max=10"`
	InitialDelay time.Duration `yaml:"initial_delay" envconfig:"INITIAL_DELAY" default:"500ms"`
	MaxDelay     time.Duration `yaml:"max_delay" envconfig:"MAX_DELAY" default:"10s"`
	Multiplier   float64       `yaml:"multiplier" envconfig:"MULTIPLIER" default:"2.0" validate:"min=1"`
}

// BronzeRateLimit paces reads against the landing share
type BronzeRateLimit struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// QualityConfig locates the declarative rule set
type QualityConfig struct {
	RulesFile  string `yaml:"rules_file" envconfig:"RULES_FILE" default:"config/rules.yaml"`
	SampleSize int    `yaml:"sample_size" envconfig:"SAMPLE_SIZE" default:"5" validate:"min=1,max=100"`
}

// AnomalyConfig tunes the detectors. Defaults are a starting configuration,
// not a contract; cutpoints stay fixed within a run so results reproduce.
type AnomalyConfig struct {
	ZScoreThreshold   float64 `yaml:"zscore_threshold" envconfig:"ZSCORE_THRESHOLD" default:"3.0" validate:"gt=0"`
	BaselineDays      int     `yaml:"baseline_days" envconfig:"BASELINE_DAYS" default:"30" validate:"min=7"`
	IQRMultiplier     float64 `yaml:"iqr_multiplier" envconfig:"IQR_MULTIPLIER" default:"1.5" validate:"gt=0"`
	PriceDeviationPct float64 `yaml:"price_deviation_pct" envconfig:"PRICE_DEVIATION_PCT" default:"50" validate:"gt=0"`
	EnsembleTrees     int     `yaml:"ensemble_trees" envconfig:"ENSEMBLE_TREES" default:"64" validate:"min=8"`
	EnsembleCutoff    float64 `yaml:"ensemble_cutoff" envconfig:"ENSEMBLE_CUTOFF" default:"0.62" validate:"gt=0,lt=1"`
	TopRecords        int     `yaml:"top_records" envconfig:"TOP_RECORDS" default:"50" validate:"min=1"`
}

// AnalyticsConfig tunes the KPI summarizer
type AnalyticsConfig struct {
	RFMEnabled       bool    `yaml:"rfm_enabled" envconfig:"RFM_ENABLED" default:"true"`
	BasketEnabled    bool    `yaml:"basket_enabled" envconfig:"BASKET_ENABLED" default:"true"`
	BasketMinSupport float64 `yaml:"basket_min_support" envconfig:"BASKET_MIN_SUPPORT" default:"0.01" validate:"gt=0,lt=1"`
	BasketTopPairs   int     `yaml:"basket_top_pairs" envconfig:"BASKET_TOP_PAIRS" default:"20" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// ScheduleConfig controls recurring pipeline runs
type ScheduleConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL" default:"24h"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("RETAIL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	configFile := getConfigFilePath()
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileConfig, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileConfig, cfg)
		}
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Lake.DataDir == "" {
		envConfig.Lake.DataDir = fileConfig.Lake.DataDir
	}
	if envConfig.Lake.Compression == "" {
		envConfig.Lake.Compression = fileConfig.Lake.Compression
	}
	if envConfig.Lake.LogsDir == "" {
		envConfig.Lake.LogsDir = fileConfig.Lake.LogsDir
	}
	if envConfig.Pipeline.RunDate == "" {
		envConfig.Pipeline.RunDate = fileConfig.Pipeline.RunDate
	}
	if envConfig.Pipeline.MaxWorkers == 0 {
		envConfig.Pipeline.MaxWorkers = fileConfig.Pipeline.MaxWorkers
	}
	if envConfig.Pipeline.StageTimeout == 0 {
		envConfig.Pipeline.StageTimeout = fileConfig.Pipeline.StageTimeout
	}
	if envConfig.Pipeline.RunTimeout == 0 {
		envConfig.Pipeline.RunTimeout = fileConfig.Pipeline.RunTimeout
	}
	if envConfig.Pipeline.Retry.MaxAttempts == 0 {
		envConfig.Pipeline.Retry = fileConfig.Pipeline.Retry
	}
	if !envConfig.Pipeline.BronzeReadRate.Enabled && fileConfig.Pipeline.BronzeReadRate.Enabled {
		envConfig.Pipeline.BronzeReadRate = fileConfig.Pipeline.BronzeReadRate
	}
	if envConfig.Quality.RulesFile == "" {
		envConfig.Quality.RulesFile = fileConfig.Quality.RulesFile
	}
	if envConfig.Quality.SampleSize == 0 {
		envConfig.Quality.SampleSize = fileConfig.Quality.SampleSize
	}
	if envConfig.Anomaly.ZScoreThreshold == 0 {
		envConfig.Anomaly = fileConfig.Anomaly
	}
	if envConfig.Analytics.BasketMinSupport == 0 {
		envConfig.Analytics = fileConfig.Analytics
	}
	if envConfig.Logging.Level == "" {
		envConfig.Logging = fileConfig.Logging
	}
	if !envConfig.Schedule.Enabled && fileConfig.Schedule.Enabled {
		envConfig.Schedule = fileConfig.Schedule
	}
	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	// Normalize before structural validation
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "console" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if c.Pipeline.RunDate != "" {
		if _, err := time.Parse("2006-01-02", c.Pipeline.RunDate); err != nil {
			return fmt.Errorf("invalid pipeline run_date %q: %w", c.Pipeline.RunDate, err)
		}
	}
	if c.Pipeline.Retry.MaxDelay < c.Pipeline.Retry.InitialDelay {
		return fmt.Errorf("retry max_delay %s below initial_delay %s",
			c.Pipeline.Retry.MaxDelay, c.Pipeline.Retry.InitialDelay)
	}
	if c.Schedule.Enabled && c.Schedule.Interval < time.Minute {
		return fmt.Errorf("schedule interval must be at least 1m, got %s", c.Schedule.Interval)
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// RunDate returns the configured run date, defaulting to today's date in UTC.
func (c *Config) RunDate() time.Time {
	if c.Pipeline.RunDate != "" {
		d, err := time.Parse("2006-01-02", c.Pipeline.RunDate)
		if err == nil {
			return d.UTC()
		}
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// GetDataDir returns the resolved data directory path
func (c *Config) GetDataDir() string {
	if filepath.IsAbs(c.Lake.DataDir) {
		return c.Lake.DataDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return c.Lake.DataDir
	}
	return filepath.Join(wd, c.Lake.DataDir)
}

// GetLogsDir returns the resolved logs directory path
func (c *Config) GetLogsDir() string {
	if filepath.IsAbs(c.Lake.LogsDir) {
		return c.Lake.LogsDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return c.Lake.LogsDir
	}
	return filepath.Join(wd, c.Lake.LogsDir)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"config/config.yaml",
		"../config/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Lake: LakeConfig{
			DataDir:     "data",
			Compression: "none",
			LogsDir:     "logs",
		},
		Pipeline: PipelineConfig{
			MaxWorkers:   4,
			StageTimeout: 30 * time.Minute,
			RunTimeout:   2 * time.Hour,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     10 * time.Second,
				Multiplier:   2.0,
			},
			BronzeReadRate: BronzeRateLimit{
				Enabled: false,
				RPS:     100,
				Burst:   50,
			},
		},
		Quality: QualityConfig{
			RulesFile:  "config/rules.yaml",
			SampleSize: 5,
		},
		Anomaly: AnomalyConfig{
			ZScoreThreshold:   3.0,
			BaselineDays:      30,
			IQRMultiplier:     1.5,
			PriceDeviationPct: 50,
			EnsembleTrees:     64,
			EnsembleCutoff:    0.62,
			TopRecords:        50,
		},
		Analytics: AnalyticsConfig{
			RFMEnabled:       true,
			BasketEnabled:    true,
			BasketMinSupport: 0.01,
			BasketTopPairs:   20,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "both",
			FilePath:    "logs/app.log",
			Development: false,
		},
		Schedule: ScheduleConfig{
			Enabled:  false,
			Interval: 24 * time.Hour,
		},
	}
}
