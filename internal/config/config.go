package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime settings for the API and migration binaries.
// Values come from the environment; main loads a local .env first.
type Config struct {
	Port        string
	Environment string

	// PostgreSQL
	DatabaseDSN string
	DBTimeout   time.Duration

	// Redis catalog cache. Empty address disables caching.
	RedisAddr string
	CacheTTL  time.Duration

	// Session tokens
	TokenSecret string
	TokenTTL    time.Duration

	// Rate limiting
	RateLimitPerSecond int
	RateLimitBurst     int

	// Request body ceiling, bytes.
	MaxBodyBytes int64

	// Extra CORS origins besides localhost, comma separated.
	AllowedOrigins []string
}

// Load reads configuration from the environment. Missing critical values
// (DSN, token secret) abort startup.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		DatabaseDSN: mustGetEnv("ZAPCHASTI_PG_DSN"),
		DBTimeout:   getDurationEnv("DB_TIMEOUT_SEC", 5) * time.Second,

		RedisAddr: getEnv("REDIS_ADDR", ""),
		CacheTTL:  getDurationEnv("CACHE_TTL_SEC", 60) * time.Second,

		TokenSecret: mustGetEnv("ZAPCHASTI_AUTH_SECRET"),
		TokenTTL:    getDurationEnv("TOKEN_TTL_HOURS", 24*7) * time.Hour,

		RateLimitPerSecond: getIntEnv("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     getIntEnv("RATE_LIMIT_BURST", 40),

		MaxBodyBytes: int64(getIntEnv("MAX_BODY_BYTES", 1<<20)),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Production reports whether the service runs with production hardening
// (Secure cookies and friends).
func (c *Config) Production() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func mustGetEnv(key string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	log.Fatalf("config: environment variable %s must be set", key)
	return ""
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue))
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using default %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
