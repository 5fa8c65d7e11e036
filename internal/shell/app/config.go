package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	IdentityURL string // Identity service base URL (default: http://localhost:8080/auth)

	TokenStore   string // Token store driver: sqlite, redis, memory (default: sqlite)
	DatabaseFile string // Optional: SQLite database file (default: mindmap-shell.db)
	RedisAddr    string // Optional: Redis address for the redis driver (default: localhost:6379)
	RedisPrefix  string // Optional: Redis key prefix (default: mindmap-shell)
	StorageKey   string // Optional: slot the session is persisted under (default: session)
	TokenKeyFile string // Optional: file holding key material for sealing stored tokens
	TokenKey     string // Optional: key material given inline; wins over TokenKeyFile

	HTTPTimeout         time.Duration // Identity request timeout (default: 10s)
	ExpiryCheckInterval time.Duration // Expiry watcher interval (default: 30s)
	AuthRateRequests    int           // Login/register requests per window, 0 disables (default: 5)
	AuthRateWindow      time.Duration // Window for AuthRateRequests (default: 1m)
	AuthRateBurst       int           // Burst for the credential limiter (default: 5)
	ValidateRequests    bool          // Validate login/register payloads locally (default: true)

	LandingRoute string // Route after login (default: /)
	LoginRoute   string // Route after logout (default: /login)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	return Config{
		IdentityURL:  getEnvOrDefault("SHELL_IDENTITY_URL", "http://localhost:8080/auth"),
		TokenStore:   strings.ToLower(getEnvOrDefault("SHELL_TOKEN_STORE", "sqlite")),
		DatabaseFile: getEnvOrDefault("SHELL_DATABASE_FILE", "mindmap-shell.db"),
		RedisAddr:    getEnvOrDefault("SHELL_REDIS_ADDR", "localhost:6379"),
		RedisPrefix:  getEnvOrDefault("SHELL_REDIS_PREFIX", "mindmap-shell"),
		StorageKey:   getEnvOrDefault("SHELL_STORAGE_KEY", "session"),
		TokenKeyFile: os.Getenv("SHELL_TOKEN_KEY_FILE"),
		TokenKey:     os.Getenv("SHELL_TOKEN_KEY"),

		HTTPTimeout:         getEnvDurationOrDefault("SHELL_HTTP_TIMEOUT", 10*time.Second),
		ExpiryCheckInterval: getEnvDurationOrDefault("SHELL_EXPIRY_CHECK_INTERVAL", 30*time.Second),
		AuthRateRequests:    getEnvIntOrDefault("SHELL_AUTH_RATE_REQUESTS", 5),
		AuthRateWindow:      getEnvDurationOrDefault("SHELL_AUTH_RATE_WINDOW", time.Minute),
		AuthRateBurst:       getEnvIntOrDefault("SHELL_AUTH_RATE_BURST", 5),
		ValidateRequests:    getEnvBoolOrDefault("SHELL_VALIDATE_REQUESTS", true),

		LandingRoute: getEnvOrDefault("SHELL_LANDING_ROUTE", "/"),
		LoginRoute:   getEnvOrDefault("SHELL_LOGIN_ROUTE", "/login"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
