package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"davstore/internal/storage"
)

// S3Config configures an S3 compatible backend (AWS, MinIO, R2).
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PublicURL string
	Transform storage.TransformFunc
	Logger    *slog.Logger
}

// S3Client stores logical names as object keys in a single bucket.
type S3Client struct {
	client    *minio.Client
	bucket    string
	publicURL string
	transform storage.TransformFunc
	logger    *slog.Logger
}

var _ storage.Storage = (*S3Client)(nil)

// NewClient creates the client and checks that the bucket exists.
func NewClient(ctx context.Context, cfg S3Config) (*S3Client, error) {
	ctx = orBackground(ctx)
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Region: cfg.Region,
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, &storage.ConfigurationError{Field: "bucket", Reason: fmt.Sprintf("bucket %q does not exist", cfg.Bucket)}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Client{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
		transform: cfg.Transform,
		logger:    logger,
	}, nil
}

func (c *S3Client) Exists(ctx context.Context, name string) (bool, error) {
	st, err := c.Stat(ctx, name)
	return st.Exists, err
}

// Stat maps a missing key to {false, 404}. Other S3 error responses are
// reported with their HTTP status.
func (c *S3Client) Stat(ctx context.Context, name string) (storage.Existence, error) {
	ctx = orBackground(ctx)
	_, err := c.client.StatObject(ctx, c.bucket, c.objectName(name), minio.StatObjectOptions{})
	if err == nil {
		return storage.Existence{Exists: true, Status: http.StatusOK}, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return storage.Existence{Exists: false, Status: resp.StatusCode}, nil
	}
	return storage.Existence{}, fmt.Errorf("failed to stat object '%s': %w", c.objectName(name), err)
}

func (c *S3Client) Size(ctx context.Context, name string) (int64, error) {
	ctx = orBackground(ctx)
	info, err := c.client.StatObject(ctx, c.bucket, c.objectName(name), minio.StatObjectOptions{})
	if err != nil {
		return 0, c.mapError(http.MethodHead, name, err)
	}
	return info.Size, nil
}

// Save uploads content. minio-go switches to multipart uploads for large
// objects on its own.
func (c *S3Client) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	ctx = orBackground(ctx)
	body, size, err := storage.ContentLength(content)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	objectName := c.objectName(name)

	c.logger.Debug("s3 upload", "object", objectName, "bucket", c.bucket, "size", size)

	_, err = c.client.PutObject(ctx, c.bucket, objectName, body, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", c.mapError(http.MethodPut, name, err)
	}
	return storage.ApplyTransform(name, c.transform), nil
}

func (c *S3Client) Read(ctx context.Context, name string) (*bytes.Reader, error) {
	ctx = orBackground(ctx)
	obj, err := c.client.GetObject(ctx, c.bucket, c.objectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, c.mapError(http.MethodGet, name, err)
	}
	defer obj.Close()

	buf, err := storage.ReadAllChunked(obj)
	if err != nil {
		return nil, c.mapError(http.MethodGet, name, err)
	}
	return buf, nil
}

func (c *S3Client) Delete(ctx context.Context, name string) error {
	ctx = orBackground(ctx)
	err := c.client.RemoveObject(ctx, c.bucket, c.objectName(name), minio.RemoveObjectOptions{})
	if err != nil {
		return c.mapError(http.MethodDelete, name, err)
	}
	return nil
}

func (c *S3Client) Open(ctx context.Context, name string, flag int) (*storage.File, error) {
	if err := storage.CheckOpenFlag(flag); err != nil {
		return nil, err
	}
	return storage.NewFile(ctx, name, c, flag), nil
}

func (c *S3Client) URL(name string) string {
	return storage.JoinURL(c.publicURL, storage.Quote(name))
}

// objectName is the transformed name without a leading slash.
func (c *S3Client) objectName(name string) string {
	return normalizePath(storage.ApplyTransform(name, c.transform))
}

func (c *S3Client) mapError(method, name string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return &storage.RequestError{
			Method:     method,
			URL:        "s3://" + c.bucket + "/" + c.objectName(name),
			StatusCode: resp.StatusCode,
			Reason:     http.StatusText(resp.StatusCode),
		}
	}
	return fmt.Errorf("%s object '%s': %w", strings.ToLower(method), c.objectName(name), err)
}

// orBackground treats a nil ctx as context.Background, matching the webdav
// client.
func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// normalizePath turns a logical name into an object key.
func normalizePath(path string) string {
	return strings.TrimLeft(path, "/")
}
