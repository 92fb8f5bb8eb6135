package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL     string
	SocketURL      string
	SessionDB      string
	RequestTimeout time.Duration
}

// Load reads configuration from the environment, with a .env file as an
// optional local override source. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("bad REQUEST_TIMEOUT: %w", err)
	}

	cfg := &Config{
		APIBaseURL:     getEnv("MENTORLY_API_URL", "http://localhost:8080"),
		SocketURL:      getEnv("MENTORLY_SOCKET_URL", "ws://localhost:8080/ws"),
		SessionDB:      getEnv("MENTORLY_SESSION_DB", "mentorly.db"),
		RequestTimeout: timeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := url.Parse(c.APIBaseURL); err != nil {
		return fmt.Errorf("bad API base URL: %w", err)
	}

	u, err := url.Parse(c.SocketURL)
	if err != nil {
		return fmt.Errorf("bad socket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("socket URL must use ws or wss, got %q", u.Scheme)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
