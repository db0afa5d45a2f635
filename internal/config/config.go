package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	TrustedProxies     []string
	ShutdownTimeout    time.Duration

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// Quotas and generation
	MinTxns           int
	MaxTxns           int
	ManualCap         int
	Timezone          string
	RefundProbability float64

	// Scheduler
	SchedulerEnabled bool
	SweepOnStart     bool
	SweepConcurrency int
	SeedUsers        []string

	// Auth
	AuthMode     string
	AuthTokens   string
	AuthAudience string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Logging and housekeeping
	LogLevel             string
	CacheCleanupInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DataBackend:  getEnv("DATA_BACKEND", BackendSQLite),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/simbank.db"),

		MinTxns:           getEnvInt("MIN_TXNS", 3),
		MaxTxns:           getEnvInt("MAX_TXNS", 5),
		ManualCap:         getEnvInt("MANUAL_CAP", 5),
		Timezone:          getEnv("TIMEZONE", "America/Los_Angeles"),
		RefundProbability: getEnvFloat("REFUND_PROBABILITY", 0.12),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		SweepOnStart:     getEnvBool("SWEEP_ON_START", false),
		SweepConcurrency: getEnvInt("SWEEP_CONCURRENCY", 4),
		SeedUsers:        getEnvList("SEED_USERS"),

		AuthMode:     getEnv("AUTH_MODE", "static"),
		AuthTokens:   getEnv("AUTH_TOKENS", ""),
		AuthAudience: getEnv("AUTH_AUDIENCE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "simbank"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transactions_created"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel:             getEnv("LOG_LEVEL", "info"),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// SheetsEnabled reports whether created transactions are mirrored to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate checks every setting and reports all problems at once. It does
// not check settings that only the mirror worker reads; see ValidateMirror.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
	}

	if c.MinTxns < 0 {
		errors = append(errors, fmt.Sprintf("invalid MIN_TXNS %d: must not be negative", c.MinTxns))
	}
	if c.MaxTxns < c.MinTxns {
		errors = append(errors, fmt.Sprintf("invalid MAX_TXNS %d: must be at least MIN_TXNS (%d)", c.MaxTxns, c.MinTxns))
	}
	if c.ManualCap < 0 {
		errors = append(errors, fmt.Sprintf("invalid MANUAL_CAP %d: must not be negative", c.ManualCap))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil || c.Timezone == "" {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s'", c.Timezone))
	}
	if c.RefundProbability < 0 || c.RefundProbability > 1 {
		errors = append(errors, fmt.Sprintf("invalid refund probability %v: must be between 0 and 1", c.RefundProbability))
	}
	if c.SweepConcurrency < 1 || c.SweepConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid sweep concurrency %d: must be between 1 and 64", c.SweepConcurrency))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	}

	switch c.AuthMode {
	case "static":
		if strings.TrimSpace(c.AuthTokens) == "" {
			errors = append(errors, "AUTH_TOKENS is required when AUTH_MODE is static")
		}
	case "google":
		if c.AuthAudience == "" {
			errors = append(errors, "AUTH_AUDIENCE is required when AUTH_MODE is google")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid auth mode '%s': must be one of [static google]", c.AuthMode))
	}

	errors = append(errors, c.validateAMQP()...)

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	return joinErrors(errors)
}

// ValidateMirror checks the settings the mirror worker needs: a broker to
// consume from and, when a spreadsheet is configured, its credentials.
func (c *Config) ValidateMirror() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the mirror worker")
	}
	errors = append(errors, c.validateAMQP()...)

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets mirror")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	return joinErrors(errors)
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errors
}

func joinErrors(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
