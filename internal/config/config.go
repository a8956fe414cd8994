package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port              string
	Env               string
	DatabaseURL       string
	RedisURL          string
	AccessTokenSecret string

	// Email delivery for automation actions
	EmailProvider  string // "smtp" or "sendgrid"
	EmailFrom      string
	SendGridAPIKey string
	SMTPAddr       string
	SMTPUsername   string
	SMTPPassword   string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       getEnv("DATABASE_URL", "tandem.db"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		AccessTokenSecret: getEnv("ACCESS_TOKEN_SECRET", "dev-secret"),
		EmailProvider:     getEnv("EMAIL_PROVIDER", "smtp"),
		EmailFrom:         getEnv("EMAIL_FROM", "no-reply@tandem.local"),
		SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		SMTPAddr:          getEnv("SMTP_ADDR", "localhost:25"),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		AutoBlockEnabled:  getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, the dev defaults are not acceptable
	if cfg.Env == "production" {
		if os.Getenv("DATABASE_URL") == "" {
			panic("DATABASE_URL is required in production")
		}
		if os.Getenv("REDIS_URL") == "" {
			panic("REDIS_URL is required in production")
		}
		if os.Getenv("ACCESS_TOKEN_SECRET") == "" {
			panic("ACCESS_TOKEN_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
