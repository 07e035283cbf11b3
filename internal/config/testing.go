package config

import (
	"fmt"
	"testing"

	"github.com/rezkam/housekeeping/internal/env"
)

// TestConfig holds the external services integration tests may use.
// Tests for a service whose variable is empty are skipped.
type TestConfig struct {
	DatabaseDSN string `env:"HK_TEST_DB_DSN"`
	GCSBucket   string `env:"HK_TEST_GCS_BUCKET"`
	GCSEndpoint string `env:"HK_TEST_GCS_ENDPOINT"`
}

// LoadTestConfig loads test configuration from environment.
func LoadTestConfig() (*TestConfig, error) {
	cfg := &TestConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load test config: %w", err)
	}
	return cfg, nil
}

// PostgresDSN returns HK_TEST_DB_DSN, skipping t when it is unset.
func PostgresDSN(t testing.TB) string {
	t.Helper()
	cfg, err := LoadTestConfig()
	if err != nil {
		t.Fatalf("test config: %v", err)
	}
	if cfg.DatabaseDSN == "" {
		t.Skip("set HK_TEST_DB_DSN to run PostgreSQL integration tests")
	}
	return cfg.DatabaseDSN
}

// GCSBucket returns HK_TEST_GCS_BUCKET and the optional emulator endpoint,
// skipping t when no bucket is configured.
func GCSBucket(t testing.TB) (bucket, endpoint string) {
	t.Helper()
	cfg, err := LoadTestConfig()
	if err != nil {
		t.Fatalf("test config: %v", err)
	}
	if cfg.GCSBucket == "" {
		t.Skip("set HK_TEST_GCS_BUCKET to run GCS integration tests")
	}
	return cfg.GCSBucket, cfg.GCSEndpoint
}
