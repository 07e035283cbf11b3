package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/housekeeping/internal/env"
)

// ServerConfig holds all configuration for the server binary.
type ServerConfig struct {
	Database        DatabaseConfig
	HTTP            HTTPConfig
	Blob            BlobConfig
	Notify          NotifyConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"HK_SHUTDOWN_TIMEOUT" default:"10s"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host              string        `env:"HK_HTTP_HOST"`
	Port              string        `env:"HK_HTTP_PORT" default:"8080"`
	ReadTimeout       time.Duration `env:"HK_HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `env:"HK_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `env:"HK_HTTP_IDLE_TIMEOUT" default:"120s"`
	ReadHeaderTimeout time.Duration `env:"HK_HTTP_READ_HEADER_TIMEOUT" default:"5s"`
	MaxHeaderBytes    int           `env:"HK_HTTP_MAX_HEADER_BYTES" default:"1048576"`
	// MaxBodyBytes bounds request bodies, photo uploads included.
	MaxBodyBytes int64 `env:"HK_HTTP_MAX_BODY_BYTES" default:"10485760"`

	// TLS configuration for HTTPS
	TLSEnabled  bool   `env:"HK_TLS_ENABLED"`
	TLSCertFile string `env:"HK_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"HK_TLS_KEY_FILE"`
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if c.Port == "" {
		return errors.New("HK_HTTP_PORT is required")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("HK_HTTP_MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	if c.TLSEnabled && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return errors.New("HK_TLS_CERT_FILE and HK_TLS_KEY_FILE are required when HK_TLS_ENABLED is set")
	}
	return nil
}

// NotifyConfig holds change-feed configuration.
type NotifyConfig struct {
	// BufferSize is the per-subscriber event buffer; full buffers drop events.
	BufferSize int `env:"HK_NOTIFY_BUFFER_SIZE" default:"64"`
	// RetryDelay is the wait before the Postgres listener reconnects.
	RetryDelay time.Duration `env:"HK_NOTIFY_RETRY_DELAY" default:"1s"`
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"HK_OTEL_ENABLED"`
	ServiceName string `env:"OTEL_SERVICE_NAME" default:"housekeeping"`
}

// LoadServerConfig loads and validates server configuration from environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return cfg, nil
}
