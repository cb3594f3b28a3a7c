package config

import (
	"os"
	"time"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Upstream price/mapping endpoints
	WikiBaseURL string
	MappingURL  string

	// Identifying header required by the upstream usage policy
	AppName      string
	ContactEmail string

	// Alert checking
	CheckInterval time.Duration

	// Outgoing mail; email delivery is disabled when SMTPHost is empty
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string
}

func Load() *Config {
	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", "root:osrs@tcp(localhost:3306)/osrs_market?charset=utf8mb4&parseTime=True&loc=Local"),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		WikiBaseURL: getEnv("WIKI_BASE_URL", "https://prices.runescape.wiki/api/v1/osrs"),
		MappingURL:  getEnv("MAPPING_URL", "https://prices.runescape.wiki/api/v1/osrs/mapping"),

		AppName:      getEnv("APP_NAME", "osrs-market"),
		ContactEmail: getEnv("CONTACT_EMAIL", ""),

		CheckInterval: getDuration("CHECK_INTERVAL", 5*time.Minute),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		MailFrom: getEnv("MAIL_FROM", "alerts@osrs-market.local"),
	}
}

// UserAgent builds the identifying header sent on every upstream request.
func (c *Config) UserAgent() string {
	if c.ContactEmail == "" {
		return c.AppName
	}
	return c.AppName + " - " + c.ContactEmail
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
