package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/housekeeping/internal/env"
)

// KioskConfig holds configuration for the kiosk client. Command-line flags
// override these values.
type KioskConfig struct {
	ServerURL      string        `env:"HK_SERVER_URL" default:"http://localhost:8080"`
	StaffID        string        `env:"HK_STAFF_ID"`
	RequestTimeout time.Duration `env:"HK_REQUEST_TIMEOUT" default:"10s"`
	Observability  ObservabilityConfig
}

// Validate validates the kiosk configuration.
func (c *KioskConfig) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server URL is required (HK_SERVER_URL or --server)")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// LoadKioskConfig loads kiosk configuration from environment. Validation is
// left to the caller so flags can be applied first.
func LoadKioskConfig() (*KioskConfig, error) {
	cfg := &KioskConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load kiosk config: %w", err)
	}

	return cfg, nil
}
