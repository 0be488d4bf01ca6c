// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// LogLevel is the logrus level name (debug, info, warn, error).
	LogLevel string

	// DBDSN is the ClickHouse connection string.
	DBDSN string

	// Engine contains resolution engine limits shared by all providers.
	Engine EngineConfig

	// Cache contains quotation and dividend cache settings.
	Cache CacheConfig

	// Providers contains per-upstream settings.
	Providers ProvidersConfig

	// KafkaQuote contains Kafka connection settings for quote events.
	KafkaQuote KafkaConfig

	// KafkaDividend contains Kafka connection settings for dividend events.
	KafkaDividend KafkaConfig

	// Ingester contains settings for the Kafka-to-ClickHouse ingester.
	Ingester IngesterConfig

	// Poller contains the watchlist poller schedule.
	Poller PollerConfig
}

// EngineConfig holds global resolution limits.
type EngineConfig struct {
	// GlobalTimeout caps every provider's per-attempt timeout.
	GlobalTimeout time.Duration

	// GlobalMaxRetries caps every provider's retry count.
	GlobalMaxRetries int

	// ConcurrencyLimit bounds in-flight upstream calls.
	ConcurrencyLimit int

	// BatchSize caps the chunk size of batch resolution.
	BatchSize int

	// RequestInterval is the pause between batch chunks.
	RequestInterval time.Duration

	// CircuitThreshold is the consecutive failure count that opens a circuit.
	CircuitThreshold int

	// CircuitCoolDown is how long an open circuit rejects calls before probing.
	CircuitCoolDown time.Duration

	// HealthCheckInterval is the period of background provider probes.
	HealthCheckInterval time.Duration
}

// CacheConfig holds TTL cache settings.
type CacheConfig struct {
	// TTL is the lifetime of a cached quotation.
	TTL time.Duration

	// MaxSize is the entry count above which least recently used entries are evicted.
	MaxSize int

	// CleanupInterval is the period of the expired-entry sweep.
	CleanupInterval time.Duration

	// DividendTTL is the lifetime of a cached dividend history.
	DividendTTL time.Duration
}

// ProviderConfig holds settings for a single upstream.
type ProviderConfig struct {
	Enabled           bool
	Priority          int
	Timeout           time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RequestsPerSecond float64

	// BaseURL overrides the upstream endpoint. Empty means the public default.
	BaseURL string
}

// ProvidersConfig groups the four upstreams.
type ProvidersConfig struct {
	TWSE     ProviderConfig
	Yahoo    ProviderConfig
	FinMind  ProviderConfig
	GoodInfo ProviderConfig

	// FinMindToken is the optional API token; anonymous access is rate limited harder.
	FinMindToken string

	// GoodInfoRedirectDelay is the pause before following a JS redirect stub.
	GoodInfoRedirectDelay time.Duration
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic.
	Topic string

	// GroupID is the consumer group ID for the ingester.
	GroupID string
}

// IngesterConfig holds settings for batch processing.
type IngesterConfig struct {
	// BatchSize is the maximum number of rows to accumulate before flushing.
	BatchSize int

	// BatchTimeoutSeconds is the maximum seconds to wait before flushing.
	BatchTimeoutSeconds int
}

// PollerConfig holds the watchlist and its cron schedules.
type PollerConfig struct {
	// Symbols is the watchlist (comma-separated in env).
	Symbols []string

	// QuoteSchedule is a cron spec (seconds field enabled) or "@every" expression.
	QuoteSchedule string

	// DividendSchedule is the cron spec of the dividend refresh.
	// Default: 18:00 every day, after the market closes.
	DividendSchedule string
}

// getDatabaseDSN constructs the ClickHouse DSN from environment variables.
func getDatabaseDSN() string {
	dbUser := getEnv("CLICKHOUSE_USER", "default")
	dbPassword := getEnv("CLICKHOUSE_PASSWORD", "")
	dbHost := getEnv("CLICKHOUSE_HOST", "localhost")
	dbPort := getEnv("CLICKHOUSE_TCP_PORT", "9000")
	dbName := getEnv("CLICKHOUSE_DB", "twradar")

	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

func getProviderConfig(prefix string, def ProviderConfig) ProviderConfig {
	return ProviderConfig{
		Enabled:           getEnvBool(prefix+"_ENABLED", true),
		Priority:          getEnvInt(prefix+"_PRIORITY", def.Priority),
		Timeout:           getEnvMillis(prefix+"_TIMEOUT_MS", def.Timeout),
		MaxRetries:        getEnvInt(prefix+"_MAX_RETRIES", def.MaxRetries),
		RetryBaseDelay:    getEnvMillis(prefix+"_RETRY_DELAY_MS", def.RetryBaseDelay),
		RequestsPerSecond: getEnvFloat(prefix+"_RPS", def.RequestsPerSecond),
		BaseURL:           getEnv(prefix+"_BASE_URL", ""),
	}
}

// getPollerConfig loads the watchlist settings from environment.
func getPollerConfig() PollerConfig {
	return PollerConfig{
		Symbols:          getEnvList("POLLER_SYMBOLS", []string{"2330", "0050", "00679B"}),
		QuoteSchedule:    getEnv("POLLER_QUOTE_SCHEDULE", "@every 1m"),
		DividendSchedule: getEnv("POLLER_DIVIDEND_SCHEDULE", "0 0 18 * * *"),
	}
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DBDSN:    getDatabaseDSN(),
		Engine: EngineConfig{
			GlobalTimeout:       getEnvMillis("ENGINE_GLOBAL_TIMEOUT_MS", 10*time.Second),
			GlobalMaxRetries:    getEnvInt("ENGINE_GLOBAL_MAX_RETRIES", 3),
			ConcurrencyLimit:    getEnvInt("ENGINE_CONCURRENCY_LIMIT", 5),
			BatchSize:           getEnvInt("ENGINE_BATCH_SIZE", 5),
			RequestInterval:     getEnvMillis("ENGINE_REQUEST_INTERVAL_MS", 300*time.Millisecond),
			CircuitThreshold:    getEnvInt("ENGINE_CIRCUIT_THRESHOLD", 5),
			CircuitCoolDown:     getEnvMillis("ENGINE_CIRCUIT_COOLDOWN_MS", 30*time.Second),
			HealthCheckInterval: getEnvMillis("ENGINE_HEALTH_CHECK_INTERVAL_MS", 60*time.Second),
		},
		Cache: CacheConfig{
			TTL:             getEnvMillis("CACHE_TTL_MS", 5*time.Second),
			MaxSize:         getEnvInt("CACHE_MAX_SIZE", 1000),
			CleanupInterval: getEnvMillis("CACHE_CLEANUP_INTERVAL_MS", 30*time.Second),
			DividendTTL:     getEnvMillis("DIVIDEND_CACHE_TTL_MS", time.Hour),
		},
		Providers: ProvidersConfig{
			TWSE: getProviderConfig("TWSE", ProviderConfig{
				Priority: 1, Timeout: 8 * time.Second, MaxRetries: 2,
				RetryBaseDelay: 500 * time.Millisecond, RequestsPerSecond: 3,
			}),
			Yahoo: getProviderConfig("YAHOO", ProviderConfig{
				Priority: 2, Timeout: 10 * time.Second, MaxRetries: 3,
				RetryBaseDelay: time.Second, RequestsPerSecond: 5,
			}),
			FinMind: getProviderConfig("FINMIND", ProviderConfig{
				Priority: 3, Timeout: 15 * time.Second, MaxRetries: 2,
				RetryBaseDelay: 2 * time.Second, RequestsPerSecond: 2,
			}),
			GoodInfo: getProviderConfig("GOODINFO", ProviderConfig{
				Priority: 4, Timeout: 15 * time.Second, MaxRetries: 1,
				RetryBaseDelay: 2 * time.Second, RequestsPerSecond: 0.5,
			}),
			FinMindToken:          getEnv("FINMIND_TOKEN", ""),
			GoodInfoRedirectDelay: getEnvMillis("GOODINFO_REDIRECT_DELAY_MS", 600*time.Millisecond),
		},
		KafkaQuote: KafkaConfig{
			Broker:  getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:   getEnv("KAFKA_QUOTE_TOPIC", "twradar_quotes"),
			GroupID: getEnv("KAFKA_QUOTE_GROUP_ID", "twradar-quote-ingester"),
		},
		KafkaDividend: KafkaConfig{
			Broker:  getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:   getEnv("KAFKA_DIVIDEND_TOPIC", "twradar_dividends"),
			GroupID: getEnv("KAFKA_DIVIDEND_GROUP_ID", "twradar-dividend-ingester"),
		},
		Ingester: IngesterConfig{
			BatchSize:           getEnvInt("BATCH_SIZE", 200),
			BatchTimeoutSeconds: getEnvInt("BATCH_TIMEOUT_SECONDS", 5),
		},
		Poller: getPollerConfig(),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvMillis reads an integer millisecond value as a duration.
func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
