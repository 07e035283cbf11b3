package config

import "fmt"

// Supported HK_BLOB_BACKEND values.
const (
	BlobFS  = "fs"
	BlobGCS = "gcs"
)

// BlobConfig selects where issue photos are stored.
type BlobConfig struct {
	Backend string `env:"HK_BLOB_BACKEND" default:"fs"`

	FSDir string `env:"HK_BLOB_FS_DIR" default:"./hk-photos"`
	// BaseURL prefixes object names in returned photo URLs for the fs backend.
	BaseURL string `env:"HK_BLOB_BASE_URL" default:"/photos"`

	GCSBucket string `env:"HK_BLOB_GCS_BUCKET"`
	// GCSEndpoint overrides the storage API endpoint (emulators).
	GCSEndpoint string `env:"HK_BLOB_GCS_ENDPOINT"`
}

// Validate validates the blob configuration.
func (c *BlobConfig) Validate() error {
	switch c.Backend {
	case BlobFS:
		if c.FSDir == "" {
			return fmt.Errorf("HK_BLOB_FS_DIR is required when HK_BLOB_BACKEND is %q", BlobFS)
		}
	case BlobGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("HK_BLOB_GCS_BUCKET is required when HK_BLOB_BACKEND is %q", BlobGCS)
		}
	default:
		return fmt.Errorf("unknown HK_BLOB_BACKEND: %s", c.Backend)
	}
	return nil
}
