package artifact

import (
	"context"
	"fmt"

	"github.com/ishlunc/ishlunc/pkg/config"
)

// NewFromConfig builds the storage backend named by the configuration.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (StorageClient, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.BaseDir), nil
	case "s3":
		return NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	case "gcs":
		return NewGCSStorage(ctx, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
