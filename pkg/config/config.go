package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	Environment    string
	HTTPPort       string
	LogLevel       string
	StorageBackend string

	Tables TableConfig

	SQSQueueURL          string
	WebsocketAPIEndpoint string
	RedisAddr            string
	EventCacheTTL        time.Duration

	Gateway GatewayConfig

	ApplyTimeout      time.Duration
	StalePendingAfter time.Duration
	SweepConcurrency  int
}

// TableConfig names the DynamoDB tables.
type TableConfig struct {
	Accounts     string
	Transactions string
	History      string
	Orphans      string
	Connections  string
}

// GatewayConfig configures the payment gateway client.
type GatewayConfig struct {
	BaseURL         string
	APIKey          string
	WebhookSecret   string
	MinChargeAmount int64
	Timeout         time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Environment:    getenv("ENVIRONMENT", "development"),
		HTTPPort:       getenv("HTTP_PORT", "8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", BackendDynamoDB)),
		Tables: TableConfig{
			Accounts:     strings.TrimSpace(os.Getenv("DYNAMODB_ACCOUNTS_TABLE_NAME")),
			Transactions: strings.TrimSpace(os.Getenv("DYNAMODB_TRANSACTIONS_TABLE_NAME")),
			History:      strings.TrimSpace(os.Getenv("DYNAMODB_HISTORY_TABLE_NAME")),
			Orphans:      strings.TrimSpace(os.Getenv("DYNAMODB_ORPHANS_TABLE_NAME")),
			Connections:  strings.TrimSpace(os.Getenv("DYNAMODB_CONNECTIONS_TABLE_NAME")),
		},
		SQSQueueURL:          strings.TrimSpace(os.Getenv("SQS_QUEUE_URL")),
		WebsocketAPIEndpoint: strings.TrimSpace(os.Getenv("WEBSOCKET_API_ENDPOINT")),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		EventCacheTTL:        getenvDuration("EVENT_CACHE_TTL", 72*time.Hour),
		Gateway: GatewayConfig{
			BaseURL:         getenv("GATEWAY_BASE_URL", "https://api.stripe.com"),
			APIKey:          strings.TrimSpace(os.Getenv("GATEWAY_API_KEY")),
			WebhookSecret:   strings.TrimSpace(os.Getenv("GATEWAY_WEBHOOK_SECRET")),
			MinChargeAmount: getenvInt64("GATEWAY_MIN_CHARGE_AMOUNT", 50),
			Timeout:         getenvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		ApplyTimeout:      getenvDuration("APPLY_TIMEOUT", 10*time.Second),
		StalePendingAfter: getenvDuration("STALE_PENDING_AFTER", 20*time.Minute),
		SweepConcurrency:  int(getenvInt64("SWEEP_CONCURRENCY", 8)),
	}
}

// ValidateDynamoDB reports missing table names.
func (c Config) ValidateDynamoDB() error {
	var missing []string
	for _, table := range []struct{ key, value string }{
		{"DYNAMODB_ACCOUNTS_TABLE_NAME", c.Tables.Accounts},
		{"DYNAMODB_TRANSACTIONS_TABLE_NAME", c.Tables.Transactions},
		{"DYNAMODB_HISTORY_TABLE_NAME", c.Tables.History},
		{"DYNAMODB_ORPHANS_TABLE_NAME", c.Tables.Orphans},
		{"DYNAMODB_CONNECTIONS_TABLE_NAME", c.Tables.Connections},
	} {
		if table.value == "" {
			missing = append(missing, table.key)
		}
	}
	if len(missing) > 0 {
		return errors.New("missing DynamoDB table environment variables: " + strings.Join(missing, ", "))
	}
	return nil
}

// ValidateGateway reports missing gateway credentials.
func (c Config) ValidateGateway() error {
	if c.Gateway.APIKey == "" {
		return errors.New("GATEWAY_API_KEY environment variable not set")
	}
	if c.Gateway.WebhookSecret == "" {
		return errors.New("GATEWAY_WEBHOOK_SECRET environment variable not set")
	}
	return nil
}

// NewLogger returns a JSON slog logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(c.LogLevel)})).
		With("env", c.Environment)
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
