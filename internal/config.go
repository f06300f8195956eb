package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/arcana/internal/ai"
	"github.com/DukeRupert/arcana/internal/ai/anthropic"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/repository"
	"github.com/DukeRupert/arcana/internal/storage"
	"github.com/DukeRupert/arcana/internal/worker"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Host     string
	Port     int
	LogLevel string

	DatabaseUrl string
	DBMaxConns  int

	// Identity tokens
	AuthTokenSecret string
	AuthTokenIssuer string

	// Admin access control
	AdminEmails []string // List of email addresses with admin access

	// Allowed browser origins; empty disables CORS
	CORSOrigins []string

	// Quota configuration
	FreeDailyReadings   int
	MemberDailyReadings int
	UsageTimezone       *time.Location // Calendar used for the daily counter
	DefaultLanguage     string

	// Redeem endpoint rate limit, per user
	RedeemRateLimit  int
	RedeemRateWindow time.Duration

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2Endpoint        string // Optional, derived from the account id when empty

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// AI Provider Configuration
	AIProvider       string // "anthropic" or "mock"
	AnthropicAPIKey  string
	AnthropicModel   string
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// Metrics endpoint authentication
	// If both are empty, /metrics is open in development and hidden otherwise
	MetricsUsername string
	MetricsPassword string
}

// IsDevelopment reports whether ENV is "development".
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DailyLimits returns the per-plan reading limits.
func (c *Config) DailyLimits() domain.DailyLimits {
	return domain.DailyLimits{Free: c.FreeDailyReadings, Member: c.MemberDailyReadings}
}

// PoolConfig returns the database pool settings.
func (c *Config) PoolConfig() repository.PoolConfig {
	return repository.PoolConfig{
		DSN:             c.DatabaseUrl,
		MaxConns:        int32(c.DBMaxConns),
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// StorageConfig returns the archive storage settings.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Provider: c.StorageProvider,
		Local:    storage.LocalConfig{BasePath: c.LocalStoragePath},
		R2: storage.R2Config{
			AccountID:       c.R2AccountID,
			AccessKeyID:     c.R2AccessKeyID,
			SecretAccessKey: c.R2SecretAccessKey,
			BucketName:      c.R2BucketName,
			Endpoint:        c.R2Endpoint,
		},
	}
}

// WorkerConfig passes the env values through unchanged so Validate sees
// them; only the timeouts without an env key come from worker defaults.
func (c *Config) WorkerConfig() worker.Config {
	wc := worker.DefaultConfig()
	wc.Concurrency = c.WorkerConcurrency
	wc.PollInterval = c.WorkerPollInterval
	wc.JobTimeout = c.WorkerJobTimeout
	if wc.StaleJobThreshold <= wc.JobTimeout {
		wc.StaleJobThreshold = 10 * wc.JobTimeout
	}
	return wc
}

// AnthropicConfig returns the provider settings for AI_PROVIDER=anthropic.
func (c *Config) AnthropicConfig() anthropic.Config {
	return anthropic.Config{
		APIKey: c.AnthropicAPIKey,
		Model:  c.AnthropicModel,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     c.AIMaxRetries,
			RetryBaseDelay: c.AIRetryBaseDelay,
			RequestTimeout: c.AIRequestTimeout,
		},
	}
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Host:     getEnv("HOST", ""),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),

		AuthTokenIssuer: getEnv("AUTH_TOKEN_ISSUER", ""),

		FreeDailyReadings:   getEnvInt("FREE_DAILY_READINGS", 2),
		MemberDailyReadings: getEnvInt("MEMBER_DAILY_READINGS", 50),
		DefaultLanguage:     getEnv("DEFAULT_LANGUAGE", "en"),

		RedeemRateLimit:  getEnvInt("REDEEM_RATE_LIMIT", 10),
		RedeemRateWindow: getEnvDuration("REDEEM_RATE_WINDOW", 15*time.Minute),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("STORAGE_LOCAL_PATH", "./storage"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2Endpoint:        getEnv("R2_ENDPOINT", ""),

		// Worker defaults
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", time.Minute),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", ""),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 2),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	cfg.AdminEmails = getEnvList("ADMIN_EMAILS", strings.ToLower)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", nil)

	tz := getEnv("USAGE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("USAGE_TIMEZONE %q: %w", tz, err)
	}
	cfg.UsageTimezone = loc

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.AuthTokenSecret = os.Getenv("AUTH_TOKEN_SECRET")
	if cfg.AuthTokenSecret == "" {
		return nil, fmt.Errorf("AUTH_TOKEN_SECRET is required")
	}
	if !cfg.IsDevelopment() && len(cfg.AuthTokenSecret) < 32 {
		return nil, fmt.Errorf("AUTH_TOKEN_SECRET must be at least 32 bytes outside development")
	}

	if cfg.FreeDailyReadings < 0 || cfg.MemberDailyReadings < 0 {
		return nil, fmt.Errorf("daily reading limits must not be negative")
	}
	if cfg.RedeemRateLimit < 1 {
		return nil, fmt.Errorf("REDEEM_RATE_LIMIT must be at least 1, got %d", cfg.RedeemRateLimit)
	}

	if c := cfg.WorkerConfig(); cfg.WorkerEnabled {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("worker config: %w", err)
		}
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" && cfg.R2Endpoint == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID or R2_ENDPOINT is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate AI provider configuration
	if cfg.AIProvider == "anthropic" {
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	} else if cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'anthropic' or 'mock', got: %s", cfg.AIProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, normalize func(string) string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if normalize != nil {
			part = normalize(part)
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
