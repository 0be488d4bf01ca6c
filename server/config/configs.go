// Package config loads the HTTP API settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ClickHouseDSN string
	ServerPort    string
	DebugMode     string

	// Migrate runs the embedded goose migrations before serving.
	Migrate bool

	// StreamInterval is the default websocket push period; StreamMinInterval bounds client overrides.
	StreamInterval    time.Duration
	StreamMinInterval time.Duration

	// MaxBatchSymbols caps /v1/quotes?symbols= and stream subscriptions.
	MaxBatchSymbols int

	ShutdownTimeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		getEnv("CLICKHOUSE_USER", "default"),
		getEnv("CLICKHOUSE_PASSWORD", ""),
		getEnv("CLICKHOUSE_HOST", "localhost"),
		getEnv("CLICKHOUSE_TCP_PORT", "9000"),
		getEnv("CLICKHOUSE_DB", "twradar"),
	)

	return &Config{
		ClickHouseDSN:     dsn,
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		DebugMode:         getEnv("DEBUGMODE", "True"),
		Migrate:           getEnv("MIGRATE_ON_START", "false") == "true",
		StreamInterval:    getEnvSeconds("STREAM_INTERVAL_SECONDS", 5*time.Second),
		StreamMinInterval: getEnvSeconds("STREAM_MIN_INTERVAL_SECONDS", time.Second),
		MaxBatchSymbols:   getEnvInt("MAX_BATCH_SYMBOLS", 50),
		ShutdownTimeout:   getEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
	}
}

// IsDebug reports whether gin should run in debug mode.
func (c *Config) IsDebug() bool {
	debug, err := strconv.ParseBool(c.DebugMode)
	return err == nil && debug
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	secs := getEnvInt(key, -1)
	if secs < 0 {
		return defaultValue
	}
	return time.Duration(secs) * time.Second
}
