// Package config loads service configuration from the environment. A .env
// file is honored for local development. Missing startup preconditions (the
// signing secret, the database DSN) surface as errors the entry point treats
// as fatal.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "MARKETFORCE_"

// SMTP holds relay credentials for the email notifier. An empty Host
// disables delivery and falls back to the log notifier.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// BootstrapAdmin optionally provisions a superadmin at startup through the
// same idempotent upsert used by the admin API.
type BootstrapAdmin struct {
	Name     string
	Email    string
	Password string
}

// Config is the process-wide configuration, read once at startup.
type Config struct {
	Addr        string
	DatabaseDSN string
	AuthSecret  string
	TokenTTL    time.Duration
	OTPTTL      time.Duration
	RateBurst   int
	RatePerSec  int
	SMTP        SMTP
	Bootstrap   BootstrapAdmin
}

// Load reads configuration from the environment, loading .env first when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        getenv("ADDR", ":8080"),
		DatabaseDSN: getenv("PG_DSN", ""),
		AuthSecret:  getenv("AUTH_SECRET", ""),
		TokenTTL:    time.Hour,
		OTPTTL:      5 * time.Minute,
		RateBurst:   20,
		RatePerSec:  10,
		SMTP: SMTP{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenv("SMTP_PORT", "465"),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", ""),
		},
		Bootstrap: BootstrapAdmin{
			Name:     getenv("BOOTSTRAP_ADMIN_NAME", ""),
			Email:    getenv("BOOTSTRAP_ADMIN_EMAIL", ""),
			Password: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
	}

	if cfg.AuthSecret == "" {
		return nil, errors.New("config: " + envPrefix + "AUTH_SECRET is required")
	}
	if cfg.DatabaseDSN == "" {
		return nil, errors.New("config: " + envPrefix + "PG_DSN is required")
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", cfg.TokenTTL); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = getDuration("OTP_TTL", cfg.OTPTTL); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getInt("RATE_BURST", cfg.RateBurst); err != nil {
		return nil, err
	}
	if cfg.RatePerSec, err = getInt("RATE_PER_SEC", cfg.RatePerSec); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	raw := getenv(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	return v, nil
}
