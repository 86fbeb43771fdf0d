package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// PlatformURL is the base URL of the realtime data platform,
	// e.g. https://myproject.example.co
	PlatformURL string
	// AnonKey is the public API key sent with every platform request.
	AnonKey string
	// CacheFile is the path of the local snapshot cache database.
	CacheFile string
	// HTTPTimeout bounds individual platform request/response calls.
	HTTPTimeout time.Duration
}

func Load() (*Config, error) {
	// A missing .env is fine, env vars may be set directly.
	_ = godotenv.Load()

	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	cfg := &Config{
		PlatformURL: os.Getenv("PLATFORM_URL"),
		AnonKey:     os.Getenv("PLATFORM_ANON_KEY"),
		CacheFile:   getEnv("BOLTALKA_CACHE", "boltalka.db"),
		HTTPTimeout: timeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.PlatformURL == "" {
		return fmt.Errorf("PLATFORM_URL is required")
	}
	if c.AnonKey == "" {
		return fmt.Errorf("PLATFORM_ANON_KEY is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be greater than 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
