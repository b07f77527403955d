// Package remote builds the storage backend named by configuration.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"davstore/internal/config"
	"davstore/internal/storage"
	"davstore/internal/storage/davclient"
	"davstore/internal/storage/local"
	"davstore/internal/storage/s3"
	"davstore/internal/storage/webdav"
)

// Types lists the accepted values of StorageConfig.Type.
var Types = []string{"webdav", "dav", "gowebdav", "s3", "minio", "local"}

// NewStorage creates the storage client selected by cfg.Type.
// An empty type selects the plain WebDAV client.
func NewStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	transform, err := storage.LookupTransform(cfg.FilenameTransform)
	if err != nil {
		return nil, err
	}

	storageType := strings.ToLower(strings.TrimSpace(cfg.Type))
	if storageType == "" {
		storageType = "webdav"
	}

	switch storageType {
	case "webdav":
		return newWebDAVClient(cfg, transform, logger)
	case "dav", "gowebdav":
		return newDAVClient(cfg, transform, logger)
	case "s3", "minio":
		return newS3Client(ctx, cfg, transform, logger)
	case "local":
		c, err := local.NewClient(cfg.LocalPath, cfg.PublicURL, transform)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, &storage.ConfigurationError{
			Field:  "type",
			Reason: "unsupported storage type " + cfg.Type + " (supported: " + strings.Join(Types, ", ") + ")",
		}
	}
}

// Lazy returns a constructor that builds the storage on first call and
// hands every later caller the same client, or the same error.
func Lazy(cfg config.StorageConfig, logger *slog.Logger) func() (storage.Storage, error) {
	return sync.OnceValues(func() (storage.Storage, error) {
		return NewStorage(context.Background(), cfg, logger)
	})
}

func newWebDAVClient(cfg config.StorageConfig, transform storage.TransformFunc, logger *slog.Logger) (storage.Storage, error) {
	opts := []webdav.Option{webdav.WithLogger(logger)}
	if transform != nil {
		opts = append(opts, webdav.WithTransform(transform))
	}
	if cfg.User != "" || cfg.Pass != "" {
		opts = append(opts, webdav.WithBasicAuth(cfg.User, cfg.Pass))
	}

	c, err := webdav.NewClient(webdav.Config{
		Location:  cfg.Location,
		BaseURL:   cfg.BaseURL,
		PublicURL: cfg.PublicURL,
	}, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newDAVClient(cfg config.StorageConfig, transform storage.TransformFunc, logger *slog.Logger) (storage.Storage, error) {
	c, err := davclient.NewClient(davclient.Config{
		URL:       cfg.Location,
		User:      cfg.User,
		Pass:      cfg.Pass,
		PublicURL: cfg.PublicURL,
		Transform: transform,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newS3Client(ctx context.Context, cfg config.StorageConfig, transform storage.TransformFunc, logger *slog.Logger) (storage.Storage, error) {
	required := []struct{ field, value string }{
		{"endpoint", cfg.Endpoint},
		{"bucket", cfg.Bucket},
		{"access_key", cfg.AccessKey},
		{"secret_key", cfg.SecretKey},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &storage.ConfigurationError{Field: r.field, Reason: "is required"}
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	c, err := s3.NewClient(ctx, s3.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		PublicURL: cfg.PublicURL,
		Transform: transform,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: %w", err)
	}
	return c, nil
}
