// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for all databases (always absolute)
	LogLevel     string
	Port         int
	DevMode      bool
	QuoteFeedURL string // WebSocket quote feed; empty disables the live client
	AutoEvalSpec string // cron spec for the auto-evaluation job; empty disables it
	Evaluation   EvaluationConfig
	Backup       *BackupConfig
}

// EvaluationConfig holds the tunable constants of the evaluation engine.
// These are design choices, not derived constants, so they live in configuration.
type EvaluationConfig struct {
	PricePerformanceWeight  float64 // share of score from price capture (default 0.7)
	StrategyAdherenceWeight float64 // share of score from plan adherence (default 0.3)
	OnTrackToleranceBand    float64 // +/- percentage points counted as on-track (default 5)
	OpportunityPercentile   float64 // top-decile threshold for missed opportunities (default 90)
	ProductionSanityCap     float64 // production estimates above this fail validation
	CashPriceCeiling        float64 // per-bushel prices above this fail validation
}

// BackupConfig holds S3-compatible backup settings. Nil when backups are disabled.
type BackupConfig struct {
	Endpoint        string // S3-compatible endpoint (e.g. Cloudflare R2)
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Keep            int // number of backups to retain
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRIGGERGRAIN_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		Port:         getEnvAsInt("PORT", 8010),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		QuoteFeedURL: getEnv("QUOTE_FEED_URL", ""),
		AutoEvalSpec: autoEvalSpec(),
		Evaluation:   loadEvaluationConfig(),
		Backup:       loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration values are consistent
func (c *Config) Validate() error {
	w := c.Evaluation.PricePerformanceWeight + c.Evaluation.StrategyAdherenceWeight
	if w <= 0 {
		return fmt.Errorf("evaluation score weights must sum to a positive value, got %f", w)
	}
	if c.Evaluation.OpportunityPercentile <= 0 || c.Evaluation.OpportunityPercentile >= 100 {
		return fmt.Errorf("opportunity percentile must be in (0, 100), got %f", c.Evaluation.OpportunityPercentile)
	}
	return nil
}

func loadEvaluationConfig() EvaluationConfig {
	return EvaluationConfig{
		PricePerformanceWeight:  getEnvAsFloat("EVAL_PRICE_WEIGHT", 0.7),
		StrategyAdherenceWeight: getEnvAsFloat("EVAL_ADHERENCE_WEIGHT", 0.3),
		OnTrackToleranceBand:    getEnvAsFloat("EVAL_TOLERANCE_BAND", 5.0),
		OpportunityPercentile:   getEnvAsFloat("EVAL_OPPORTUNITY_PERCENTILE", 90.0),
		ProductionSanityCap:     getEnvAsFloat("EVAL_PRODUCTION_CAP", 10_000_000),
		CashPriceCeiling:        getEnvAsFloat("EVAL_CASH_PRICE_CEILING", 1000),
	}
}

// loadBackupConfig returns nil unless bucket credentials are fully configured
func loadBackupConfig() *BackupConfig {
	bucket := getEnv("BACKUP_S3_BUCKET", "")
	keyID := getEnv("BACKUP_S3_ACCESS_KEY_ID", "")
	secret := getEnv("BACKUP_S3_SECRET_ACCESS_KEY", "")
	if bucket == "" || keyID == "" || secret == "" {
		return nil
	}
	return &BackupConfig{
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		Bucket:          bucket,
		AccessKeyID:     keyID,
		SecretAccessKey: secret,
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		Keep:            getEnvAsInt("BACKUP_KEEP", 7),
	}
}

// Helper functions
// autoEvalSpec reads AUTO_EVAL_CRON. An explicitly empty value disables the
// job, so unset and empty must be told apart.
func autoEvalSpec() string {
	if value, ok := os.LookupEnv("AUTO_EVAL_CRON"); ok {
		return value
	}
	return "@hourly"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
