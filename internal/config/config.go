package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr string
	BaseURL    string

	// Storage
	DatabaseURL string // Postgres: listings and player identities
	RedisURL    string // Redis: parse cache

	// CORS
	CORSOrigins string // Comma-separated allowed origins

	// Ranking service (OAuth2 client-credentials + GraphQL)
	RankingAPIURL       string
	RankingTokenURL     string
	RankingClientID     string
	RankingClientSecret string

	// Resolution policy. These mirror upstream API limits and belong in
	// deployment config, not code.
	ParseCacheTTL       time.Duration // how long a fetched parse stays fresh
	TokenMargin         time.Duration // refresh credential this long before expiry
	SweepInterval       time.Duration // background sweep cadence
	BatchSize           int           // max aliased lookups per upstream request
	MaxBatchAttempts    int           // retries per batch before abandoning a cycle
	ResolverConcurrency int           // batch jobs in flight at once
	RequestTimeout      time.Duration // per upstream call
	RateBudgetPerHour   float64       // assumed query points until upstream reports real numbers

	// Listings
	ListingMaxAge time.Duration // listings older than this are not shown

	// Presentation
	TiersFile string // optional yaml overriding tier thresholds

	// Site branding
	SiteTitle string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:         getEnv("ENV", "development"),
		ServerAddr:  getEnv("SERVER_ADDR", ":3000"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:3000"),
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/partyboard?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CORSOrigins: getEnv("CORS_ORIGINS", ""),

		RankingAPIURL:       getEnv("RANKING_API_URL", "https://www.fflogs.com/api/v2/client"),
		RankingTokenURL:     getEnv("RANKING_TOKEN_URL", "https://www.fflogs.com/oauth/token"),
		RankingClientID:     getEnv("RANKING_CLIENT_ID", ""),
		RankingClientSecret: getEnv("RANKING_CLIENT_SECRET", ""),

		ParseCacheTTL:       getEnvDuration("PARSE_CACHE_TTL", 24*time.Hour),
		TokenMargin:         getEnvDuration("TOKEN_MARGIN", 5*time.Minute),
		SweepInterval:       getEnvDuration("SWEEP_INTERVAL", time.Minute),
		BatchSize:           getEnvInt("BATCH_SIZE", 20),
		MaxBatchAttempts:    getEnvInt("MAX_BATCH_ATTEMPTS", 3),
		ResolverConcurrency: getEnvInt("RESOLVER_CONCURRENCY", 4),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		RateBudgetPerHour:   float64(getEnvInt("RATE_BUDGET_PER_HOUR", 3600)),

		ListingMaxAge: getEnvDuration("LISTING_MAX_AGE", time.Hour),

		TiersFile: getEnv("TIERS_FILE", "tiers.yaml"),

		SiteTitle: getEnv("SITE_TITLE", "Partyboard"),
	}
}

// RankingEnabled reports whether ranking API credentials are configured.
// Without them the server still runs; all parses render as unknown.
func (c *Config) RankingEnabled() bool {
	return c.RankingClientID != "" && c.RankingClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
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

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}
