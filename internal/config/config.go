package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/nfrund/relay/internal/pubsub"
)

// Config holds all configuration for the relay server.
type Config struct {
	Addr             string        `validate:"required,hostname_port"`
	LogFormat        string        `validate:"oneof=text json"`
	LogLevel         string        `validate:"required"`
	HandshakeTimeout time.Duration `validate:"gt=0"`
	WriteTimeout     time.Duration `validate:"gt=0"`
	HistorySize      int           `validate:"gte=1,lte=100000"`
	ConnectRate      float64       `validate:"gt=0"`
	AllowedOrigins   []string
	Tracing          pubsub.TracingConfig
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:             "127.0.0.1:8080",
		LogFormat:        "text",
		LogLevel:         "debug",
		HandshakeTimeout: 30 * time.Second,
		WriteTimeout:     10 * time.Second,
		HistorySize:      100,
		ConnectRate:      10,
		Tracing:          pubsub.DefaultTracingConfig(),
	}
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// The logger is not configured yet; the default handler is fine here.
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := Default()
	var err error

	cfg.Addr = stringEnv("RELAY_ADDR", cfg.Addr)
	cfg.LogFormat = strings.ToLower(stringEnv("LOG_FORMAT", cfg.LogFormat))
	cfg.LogLevel = stringEnv("LOG_LEVEL", cfg.LogLevel)
	if cfg.HandshakeTimeout, err = durationEnv("RELAY_HANDSHAKE_TIMEOUT", cfg.HandshakeTimeout); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = durationEnv("RELAY_WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return nil, err
	}
	if cfg.HistorySize, err = intEnv("RELAY_HISTORY_SIZE", cfg.HistorySize); err != nil {
		return nil, err
	}
	if cfg.ConnectRate, err = floatEnv("RELAY_CONNECT_RATE", cfg.ConnectRate); err != nil {
		return nil, err
	}
	cfg.AllowedOrigins = listEnv("RELAY_ALLOWED_ORIGINS")
	if cfg.Tracing.Enabled, err = boolEnv("PUBSUB_TRACING_ENABLED", cfg.Tracing.Enabled); err != nil {
		return nil, err
	}
	cfg.Tracing.ServiceName = stringEnv("PUBSUB_TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.ZipkinURL = stringEnv("PUBSUB_TRACING_ZIPKIN_URL", cfg.Tracing.ZipkinURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
