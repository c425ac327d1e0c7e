package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Storage
	DataBackend        string
	SQLiteDBPath       string
	DatabaseURL        string
	TokenEncryptionKey string

	// Bank data
	BankProvider  string
	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	// Categorization
	AIProvider    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiModel   string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Alert events
	EventsBackend string
	KafkaBrokers  []string
	KafkaTopic    string

	TelegramBotToken string
	TelegramChatID   int64

	// Worker
	SyncInterval    time.Duration
	SyncConcurrency int

	// Google Sheets report export
	GoogleSpreadsheetID   string
	GoogleReportSheet     string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string

	// Cloud Storage report copies
	GCSReportBucket string
	GCSReportPrefix string
}

var (
	validBackends       = []string{"memory", "sqlite", "postgres"}
	validBankProviders  = []string{"mock", "plaid"}
	validAIProviders    = []string{"mock", "openai", "gemini"}
	validEventsBackends = []string{"log", "amqp", "kafka", "telegram"}
	validPlaidEnvs      = []string{"sandbox", "development", "production"}
	validLogLevels      = []string{"debug", "info", "warn", "error"}
)

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		DataBackend:        getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/finlens.db"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		BankProvider:  getEnv("BANK_PROVIDER", "mock"),
		PlaidClientID: getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:   getEnv("PLAID_SECRET", ""),
		PlaidEnv:      getEnv("PLAID_ENV", "sandbox"),

		AIProvider:    getEnv("AI_PROVIDER", "mock"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finlens"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_accounts"),

		EventsBackend: getEnv("EVENTS_BACKEND", "log"),
		KafkaBrokers:  getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "finlens.alerts"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),

		SyncInterval:    getEnvDuration("SYNC_INTERVAL", 6*time.Hour),
		SyncConcurrency: getEnvInt("SYNC_CONCURRENCY", 4),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheet:     getEnv("GOOGLE_REPORT_SHEET", "Report"),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:  getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		GCSReportBucket: getEnv("GCS_REPORT_BUCKET", ""),
		GCSReportPrefix: getEnv("GCS_REPORT_PREFIX", "reports"),
	}

	return cfg
}

// SheetsExportEnabled reports whether the monthly report export is configured.
func (c *Config) SheetsExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// GCSExportEnabled reports whether monthly reports are also copied to a bucket.
func (c *Config) GCSExportEnabled() bool {
	return c.GCSReportBucket != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	}

	// Access tokens are sealed with a 32-byte key
	if c.TokenEncryptionKey != "" {
		if key, err := base64.StdEncoding.DecodeString(c.TokenEncryptionKey); err != nil || len(key) != 32 {
			errors = append(errors, "TOKEN_ENCRYPTION_KEY must be 32 bytes encoded as base64")
		}
	} else if c.DataBackend != "memory" {
		errors = append(errors, "TOKEN_ENCRYPTION_KEY is required for persistent backends")
	}

	// Providers
	if !slices.Contains(validBankProviders, c.BankProvider) {
		errors = append(errors, fmt.Sprintf("invalid bank provider '%s': must be one of %v", c.BankProvider, validBankProviders))
	}
	if c.BankProvider == "plaid" {
		if c.PlaidClientID == "" || c.PlaidSecret == "" {
			errors = append(errors, "PLAID_CLIENT_ID and PLAID_SECRET are required when using plaid provider")
		}
		if !slices.Contains(validPlaidEnvs, c.PlaidEnv) {
			errors = append(errors, fmt.Sprintf("invalid plaid environment '%s': must be one of %v", c.PlaidEnv, validPlaidEnvs))
		}
	}

	if !slices.Contains(validAIProviders, c.AIProvider) {
		errors = append(errors, fmt.Sprintf("invalid AI provider '%s': must be one of %v", c.AIProvider, validAIProviders))
	}
	if c.AIProvider == "openai" && c.OpenAIAPIKey == "" {
		errors = append(errors, "OPENAI_API_KEY is required when using openai provider")
	}
	if c.AIProvider == "gemini" && c.GeminiAPIKey == "" {
		errors = append(errors, "GEMINI_API_KEY is required when using gemini provider")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
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
	}

	// Alert events
	if !slices.Contains(validEventsBackends, c.EventsBackend) {
		errors = append(errors, fmt.Sprintf("invalid events backend '%s': must be one of %v", c.EventsBackend, validEventsBackends))
	}
	if c.EventsBackend == "amqp" && c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required when using amqp events backend")
	}
	if c.EventsBackend == "kafka" {
		if len(c.KafkaBrokers) == 0 {
			errors = append(errors, "KAFKA_BROKERS is required when using kafka events backend")
		}
		if c.KafkaTopic == "" {
			errors = append(errors, "KAFKA_TOPIC cannot be empty when using kafka events backend")
		}
	}
	if c.EventsBackend == "telegram" && (c.TelegramBotToken == "" || c.TelegramChatID == 0) {
		errors = append(errors, "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required when using telegram events backend")
	}

	// Google Sheets export
	if c.SheetsExportEnabled() {
		if c.GoogleReportSheet == "" {
			errors = append(errors, "GOOGLE_REPORT_SHEET cannot be empty when report export is enabled")
		}
		if c.GoogleOAuthClientFile == "" && c.GoogleOAuthClientJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided for report export")
		}
		if c.GoogleOAuthTokenFile == "" && c.GoogleOAuthTokenJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for report export")
		}
		if c.GoogleOAuthClientFile != "" {
			if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
			}
		}
		if c.GoogleOAuthTokenFile != "" {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
			}
		}
	}

	if c.GCSExportEnabled() && strings.HasPrefix(c.GCSReportBucket, "gs://") {
		errors = append(errors, fmt.Sprintf("invalid GCS_REPORT_BUCKET '%s': use the bare bucket name", c.GCSReportBucket))
	}

	// Validate worker configuration
	if c.SyncConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync concurrency %d: must be at least 1", c.SyncConcurrency))
	} else if c.SyncConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid sync concurrency %d: must be at most 64", c.SyncConcurrency))
	}

	if c.SyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 minute", c.SyncInterval))
	} else if c.SyncInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 7 days", c.SyncInterval))
	}

	// Return combined errors
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
