package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/portal/internal/session/service"
	"github.com/aussiebroadwan/portal/internal/session/signout"
)

type Config struct {
	Issuer string // Optional: issuer of the session cookies (default: portal-session)
	Secret string // Required outside dev: root secret, at least 32 bytes, cookie and sealing keys derive from it

	StoreDriver  string // Optional: memory, sqlite, postgres, redis (default: sqlite)
	DatabaseFile string // Optional: path to SQLite database file (default: ./session.db)
	PostgresDSN  string // Required for postgres: connection string
	RedisURL     string // Required for redis: redis:// URL
	RedisPrefix  string // Optional: key prefix (default: portal:)

	MaxAge         time.Duration // Optional: absolute session age (default: 30 days)
	RefreshTimeout time.Duration // Optional: bound on one refresh exchange (default: 15s)

	CookieDomain  string // Optional: Domain attribute of the cookies
	CookieSecure  bool   // Optional: Secure attribute of the cookies (default: true unless ENV=dev)
	SignedOutPath string // Optional: landing page after sign-out (default: /signed-out)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               getEnvOrDefault("SESSION_ISSUER", "portal-session"),
		Secret:               os.Getenv("SESSION_SECRET"),
		StoreDriver:          getEnvOrDefault("SESSION_STORE", "sqlite"),
		DatabaseFile:         getEnvOrDefault("SESSION_DATABASE_FILE", "session.db"),
		PostgresDSN:          os.Getenv("SESSION_POSTGRES_DSN"),
		RedisURL:             os.Getenv("SESSION_REDIS_URL"),
		RedisPrefix:          os.Getenv("SESSION_REDIS_PREFIX"),
		MaxAge:               getEnvDurationOrDefault("SESSION_MAX_AGE", service.DefaultMaxAge),
		RefreshTimeout:       getEnvDurationOrDefault("SESSION_REFRESH_TIMEOUT", service.DefaultRefreshTimeout),
		CookieDomain:         os.Getenv("SESSION_COOKIE_DOMAIN"),
		SignedOutPath:        getEnvOrDefault("SESSION_SIGNED_OUT_PATH", signout.DefaultLandingPath),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// Plain http only makes sense on a developer machine
	cfg.CookieSecure = getEnvBoolOrDefault("SESSION_COOKIE_SECURE", cfg.Env != "dev")

	return cfg
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

	if b, err := strconv.ParseBool(value); err == nil {
		return b
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

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
