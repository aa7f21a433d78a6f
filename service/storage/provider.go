package storage

import (
	"context"

	"github.com/gbjbuzz/service-esign/config"
)

// Provider is an abstract way to keep file contents in any implemented object store.
type Provider interface {
	Name() string
	Bucket() string

	Setup(ctx context.Context) error
	Upload(ctx context.Context, key string, contentType string, contents []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// GetStorageProvider selects the configured provider implementation.
func GetStorageProvider(cfg *config.EsignConfig) Provider {

	switch cfg.StorageProvider {

	case "S3":
		return NewS3Provider("S3", cfg.ProviderS3Bucket, cfg.ProviderS3Endpoint,
			cfg.ProviderS3Region, cfg.ProviderS3AccessKeySecret,
			cfg.ProviderS3SessionToken, cfg.ProviderS3AccessKeyId)

	case "MEM":
		return NewMemProvider("MEM")

	default:
		return NewLocalProvider("LOCAL", cfg.LocalStorageDirectory)
	}
}
