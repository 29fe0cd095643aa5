// Package server wires the HTTP API: configuration, routes, middleware, and
// the process lifecycle.
package server

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the API server.
type Config struct {
	DataDir             string
	BindAddress         string
	Port                int
	BaseURL             string
	PublicMetrics       bool
	StripeAPIKey        string
	StripeWebhookSecret string
	AuthGatewaySecret   string
	LogLevel            string
	LogFormat           string
}

// StoreDir returns the directory for the application database.
func (c *Config) StoreDir() string {
	return filepath.Join(c.DataDir, "db")
}

// SessionsDir returns the directory for the session database.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// LoadConfig loads server configuration from environment variables.
// A .env file is loaded if present but not required.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	port, err := envOrDefaultInt("SS_PORT", 8080)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:             envOrDefault("SS_DATA_DIR", "/data"),
		BindAddress:         envOrDefault("SS_BIND_ADDRESS", "0.0.0.0"),
		Port:                port,
		BaseURL:             strings.TrimSpace(os.Getenv("SS_BASE_URL")),
		PublicMetrics:       envBool("SS_PUBLIC_METRICS"),
		StripeAPIKey:        strings.TrimSpace(os.Getenv("STRIPE_API_KEY")),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		AuthGatewaySecret:   strings.TrimSpace(os.Getenv("AUTH_GATEWAY_SECRET")),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("LOG_FORMAT", "auto"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate server config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "SS_BASE_URL")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.StripeAPIKey == "" {
		missing = append(missing, "STRIPE_API_KEY")
	}
	if c.AuthGatewaySecret == "" {
		missing = append(missing, "AUTH_GATEWAY_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("SS_PORT must be between 1 and 65535, got %d", c.Port)
	}

	parsedBaseURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("SS_BASE_URL must be a valid URL: %w", err)
	}
	if parsedBaseURL.Scheme != "http" && parsedBaseURL.Scheme != "https" {
		return fmt.Errorf("SS_BASE_URL must use http or https scheme")
	}
	if parsedBaseURL.Host == "" {
		return fmt.Errorf("SS_BASE_URL must include a host")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
