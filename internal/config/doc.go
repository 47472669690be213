// Package config provides centralized configuration management for the retail
// pipeline. It handles loading configuration from multiple sources, validation,
// and a type-safe API for accessing configuration values throughout the
// application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern RETAIL_* for namespacing:
//
//	RETAIL_LAKE_DATA_DIR=/srv/lake
//	RETAIL_LAKE_COMPRESSION=snappy
//	RETAIL_PIPELINE_RUN_DATE=2024-03-15
//	RETAIL_QUALITY_RULES_FILE=config/rules.yaml
//	RETAIL_ANOMALY_ZSCORE_THRESHOLD=3.0
//	RETAIL_LOGGING_LEVEL=debug
//
// # Validation
//
// All configuration is validated at load time with struct tags to ensure
// required fields are present, values are within acceptable ranges, and the
// run date parses. A failing validation aborts startup; the pipeline never
// runs on a half-formed configuration.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
