package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "claimflow.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CLAIMFLOW_PG_MAX_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CLAIMFLOW_PG_MAX_CONN_LIFETIME")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.OpenAI.Model, "CLAIMFLOW_OPENAI_MODEL")
	setInt(&cfg.OpenAI.MaxTokens, "CLAIMFLOW_OPENAI_MAX_TOKENS")
	setDuration(&cfg.OpenAI.Timeout, "CLAIMFLOW_OPENAI_TIMEOUT")
	setString(&cfg.Logging.Level, "CLAIMFLOW_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CLAIMFLOW_LOG_SERVICE")
	setInt64(&cfg.Cache.MaxCostBytes, "CLAIMFLOW_CACHE_MAX_COST_BYTES")
	setDuration(&cfg.Cache.TermTTL, "CLAIMFLOW_CACHE_TERM_TTL")
	setFloat64(&cfg.Adjudication.ManualReviewThreshold, "CLAIMFLOW_MANUAL_REVIEW_THRESHOLD")
	setFloat64(&cfg.Adjudication.HighValueAmount, "CLAIMFLOW_HIGH_VALUE_AMOUNT")
	setFloat64(&cfg.Adjudication.MinimumClaimAmount, "CLAIMFLOW_MINIMUM_CLAIM_AMOUNT")
	setInt(&cfg.Adjudication.SubmissionDeadlineDays, "CLAIMFLOW_SUBMISSION_DEADLINE_DAYS")
	setInt(&cfg.Adjudication.FraudWindowDays, "CLAIMFLOW_FRAUD_WINDOW_DAYS")
	setInt(&cfg.Adjudication.FraudMaxClaims, "CLAIMFLOW_FRAUD_MAX_CLAIMS")
	setFloat64(&cfg.Adjudication.AmountAnomalyFactor, "CLAIMFLOW_AMOUNT_ANOMALY_FACTOR")
	setDuration(&cfg.Adjudication.FetchTimeout, "CLAIMFLOW_FETCH_TIMEOUT")
	setInt(&cfg.Retry.MaxAttempts, "CLAIMFLOW_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.Retry.InitialInterval, "CLAIMFLOW_RETRY_INITIAL_INTERVAL")
	setDuration(&cfg.Retry.MaxInterval, "CLAIMFLOW_RETRY_MAX_INTERVAL")
	setDuration(&cfg.Outbox.PollInterval, "CLAIMFLOW_OUTBOX_POLL_INTERVAL")
	setInt(&cfg.Outbox.BatchSize, "CLAIMFLOW_OUTBOX_BATCH_SIZE")
}

func validate(cfg *Config) error {
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres dsn required")
	}
	if cfg.Adjudication.ManualReviewThreshold < 0 || cfg.Adjudication.ManualReviewThreshold > 1 {
		return fmt.Errorf("manual review threshold must be in [0,1], got %v", cfg.Adjudication.ManualReviewThreshold)
	}
	if cfg.Adjudication.MinimumClaimAmount < 0 {
		return fmt.Errorf("minimum claim amount must be non-negative")
	}
	if cfg.Adjudication.SubmissionDeadlineDays <= 0 {
		return fmt.Errorf("submission deadline days must be positive")
	}
	if cfg.Adjudication.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive")
	}
	if cfg.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox batch size must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
