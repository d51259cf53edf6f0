package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL         string
	ServerAddr          string
	BaseURL             string
	SessionSecret       string
	SessionCookieName   string
	SessionCookieSecure bool
	ConfirmationWindow  time.Duration
	KickClientID        string
	KickClientSecret    string
	KickOAuthBase       string
	KickAPIBase         string
	MigrationsDir       string
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "giveaway")
		pass := getenv("POSTGRES_PASSWORD", "giveaway_pass")
		db := getenv("POSTGRES_DB", "giveaway")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	return &Config{
		DatabaseURL:         dsn,
		ServerAddr:          getenv("SERVER_ADDR", "0.0.0.0:8080"),
		BaseURL:             getenv("BASE_URL", "http://localhost:8080"),
		SessionSecret:       secret,
		SessionCookieName:   getenv("SESSION_COOKIE_NAME", "kick_session"),
		SessionCookieSecure: parseBool(getenv("SESSION_COOKIE_SECURE", "false"), false),
		ConfirmationWindow:  parseDuration(getenv("CONFIRMATION_WINDOW", "60s"), 60*time.Second),
		KickClientID:        os.Getenv("KICK_CLIENT_ID"),
		KickClientSecret:    os.Getenv("KICK_CLIENT_SECRET"),
		KickOAuthBase:       os.Getenv("KICK_OAUTH_BASE"),
		KickAPIBase:         os.Getenv("KICK_API_BASE"),
		MigrationsDir:       getenv("MIGRATIONS_DIR", "internal/migrations"),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}
