package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Analysis AnalysisConfig
	Models   ModelsConfig
	Cache    CacheConfig
	Billing  BillingConfig
	Worker   WorkerConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string
	Environment     string
	// Per-IP token bucket applied to the whole API.
	RequestsPerSecond float64
	Burst             int
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string // sqlite, postgres or pgx
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	JWTSecret string
	// TrustUserHeader accepts X-User-ID from an upstream auth proxy.
	TrustUserHeader bool
	// RequireAuth rejects anonymous analysis requests.
	RequireAuth bool
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
}

// AnalysisConfig tunes the analysis pipeline
type AnalysisConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxAttempts       int
	BackoffBase       time.Duration
	MaxImageBytes     int64
	// QuotaFailOpen lets requests through when the quota ledger is unreachable.
	QuotaFailOpen bool
	RefusalWindow int
}

// ModelSpec names one entry of the model fallback chain
type ModelSpec struct {
	Provider string
	Model    string
	Prompt   string
}

// ModelsConfig contains vision model provider configuration
type ModelsConfig struct {
	Chain         []ModelSpec
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiBaseURL string
	Timeout       time.Duration
}

// CacheConfig contains analysis cache configuration
type CacheConfig struct {
	Backend string // file, memory, s3 or gcs
	TTL     time.Duration
	Dir     string
	Bucket  string
	Prefix  string
	Region  string
	// Optional S3 overrides for S3-compatible stores; empty means the default AWS chain.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// BillingConfig contains Stripe and plan catalog configuration
type BillingConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	SuccessURL          string
	CancelURL           string
	StarterPriceID      string
	ProPriceID          string
	StarterQuota        int
	ProQuota            int
	SubscriptionPeriod  time.Duration
}

// WorkerConfig contains housekeeping schedules
type WorkerConfig struct {
	Enabled            bool
	ExpireSchedule     string
	CacheSweepSchedule string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 0),
			ShutdownTimeout:   getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:       getEnv("FRONTEND_URL", "http://localhost:3000"),
			Environment:       getEnv("ENVIRONMENT", "development"),
			RequestsPerSecond: getEnvAsFloat("SERVER_RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("SERVER_RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "muscleai"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./muscleai.db"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			TrustUserHeader: getEnvAsBool("AUTH_TRUST_USER_HEADER", false),
			RequireAuth:     getEnvAsBool("AUTH_REQUIRED", false),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Analysis: AnalysisConfig{
			RateLimitRequests: getEnvAsInt("ANALYSIS_RATE_LIMIT", 10),
			RateLimitWindow:   getEnvAsDuration("ANALYSIS_RATE_WINDOW", 30*time.Second),
			MaxAttempts:       getEnvAsInt("ANALYSIS_MAX_ATTEMPTS", 3),
			BackoffBase:       getEnvAsDuration("ANALYSIS_BACKOFF", time.Second),
			MaxImageBytes:     int64(getEnvAsInt("ANALYSIS_MAX_IMAGE_BYTES", 10<<20)),
			QuotaFailOpen:     getEnvAsBool("QUOTA_FAIL_OPEN", true),
			RefusalWindow:     getEnvAsInt("ANALYSIS_REFUSAL_WINDOW", 80),
		},
		Models: ModelsConfig{
			Chain: ParseModelChain(getEnv("VISION_MODELS",
				"openai:gpt-4o-mini:standard,openai:gpt-4o:detailed,gemini:gemini-1.5-flash:clinical")),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),
			Timeout:       getEnvAsDuration("MODEL_TIMEOUT", 60*time.Second),
		},
		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", "file"),
			TTL:     getEnvAsDuration("CACHE_TTL", 7*24*time.Hour),
			Dir:     getEnv("CACHE_DIR", ""),
			Bucket:  getEnv("CACHE_BUCKET", ""),
			Prefix:  getEnv("CACHE_PREFIX", "analysis-cache/"),
			Region:  getEnv("CACHE_REGION", "us-east-1"),

			Endpoint:        getEnv("CACHE_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("CACHE_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("CACHE_S3_SECRET_ACCESS_KEY", ""),
		},
		Billing: BillingConfig{
			StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:          getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/billing/success"),
			CancelURL:           getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/pricing"),
			StarterPriceID:      getEnv("STRIPE_PRICE_STARTER", ""),
			ProPriceID:          getEnv("STRIPE_PRICE_PRO", ""),
			StarterQuota:        getEnvAsInt("PLAN_STARTER_QUOTA", 30),
			ProQuota:            getEnvAsInt("PLAN_PRO_QUOTA", 150),
			SubscriptionPeriod:  getEnvAsDuration("SUBSCRIPTION_PERIOD", 30*24*time.Hour),
		},
		Worker: WorkerConfig{
			Enabled:            getEnvAsBool("WORKER_ENABLED", true),
			ExpireSchedule:     getEnv("WORKER_EXPIRE_SCHEDULE", "@every 1h"),
			CacheSweepSchedule: getEnv("WORKER_CACHE_SWEEP_SCHEDULE", "@daily"),
		},
	}

	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = cfg.AnalysisBudget() + writeTimeoutMargin
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// writeTimeoutMargin covers upload, cache and ledger work around the model calls
const writeTimeoutMargin = 15 * time.Second

// AnalysisBudget is the longest one analysis can spend on model calls:
// every attempt timing out plus the linear backoff between attempts.
func (c *Config) AnalysisBudget() time.Duration {
	attempts := c.Analysis.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	budget := time.Duration(attempts) * c.Models.Timeout
	for i := 1; i < attempts; i++ {
		budget += c.Analysis.BackoffBase * time.Duration(i)
	}
	return budget
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Server.Environment == "production" && c.Auth.JWTSecret == "" && !c.Auth.TrustUserHeader {
		return fmt.Errorf("JWT_SECRET or AUTH_TRUST_USER_HEADER must be set in production")
	}

	if c.Analysis.RateLimitRequests < 1 || c.Analysis.RateLimitWindow <= 0 {
		return fmt.Errorf("analysis rate limit must be positive")
	}

	if c.Analysis.MaxAttempts < 1 {
		return fmt.Errorf("ANALYSIS_MAX_ATTEMPTS must be at least 1")
	}

	if len(c.Models.Chain) == 0 {
		return fmt.Errorf("VISION_MODELS must name at least one model")
	}

	if budget := c.AnalysisBudget(); c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < budget {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) is shorter than the worst-case analysis time (%s)",
			c.Server.WriteTimeout, budget)
	}

	switch c.Cache.Backend {
	case "file", "memory":
	case "s3", "gcs":
		if c.Cache.Bucket == "" {
			return fmt.Errorf("CACHE_BUCKET is required for the %s cache backend", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}

	return nil
}

// DSN returns the data source name for the configured driver
func (c DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// ParseModelChain parses "provider:model:prompt" entries separated by commas.
// The prompt part is optional and defaults to "standard".
func ParseModelChain(raw string) []ModelSpec {
	var chain []ModelSpec
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		spec := ModelSpec{Provider: parts[0], Model: parts[1], Prompt: "standard"}
		if len(parts) == 3 && parts[2] != "" {
			spec.Prompt = parts[2]
		}
		chain = append(chain, spec)
	}
	return chain
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
