package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"davstore/internal/storage"
)

// LocalClient keeps files under a root directory. It is meant for
// development and tests; Stat synthesizes 200 and 404.
type LocalClient struct {
	rootPath  string
	publicURL string
	transform storage.TransformFunc
}

var _ storage.Storage = (*LocalClient)(nil)

func NewClient(rootPath, publicURL string, transform storage.TransformFunc) (*LocalClient, error) {
	if strings.TrimSpace(rootPath) == "" {
		return nil, &storage.ConfigurationError{Field: "local_path", Reason: "is required"}
	}
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage root: %w", err)
	}
	return &LocalClient{rootPath: rootPath, publicURL: publicURL, transform: transform}, nil
}

// getPath resolves name inside the root; ".." cannot climb out of it.
func (c *LocalClient) getPath(name string) string {
	name = storage.ApplyTransform(name, c.transform)
	clean := filepath.Clean("/" + filepath.FromSlash(name))
	return filepath.Join(c.rootPath, clean)
}

func (c *LocalClient) Exists(ctx context.Context, name string) (bool, error) {
	st, err := c.Stat(ctx, name)
	return st.Exists, err
}

func (c *LocalClient) Stat(ctx context.Context, name string) (storage.Existence, error) {
	info, err := os.Stat(c.getPath(name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return storage.Existence{Exists: false, Status: http.StatusNotFound}, nil
	case err != nil:
		return storage.Existence{}, err
	case info.IsDir():
		return storage.Existence{Exists: false, Status: http.StatusNotFound}, nil
	}
	return storage.Existence{Exists: true, Status: http.StatusOK}, nil
}

func (c *LocalClient) Size(ctx context.Context, name string) (int64, error) {
	info, err := os.Stat(c.getPath(name))
	if err != nil {
		return 0, c.mapError(http.MethodHead, name, err)
	}
	return info.Size(), nil
}

// Save writes content under name. Seekable content is rewound first, as the
// HTTP backends do.
func (c *LocalClient) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	body, _, err := storage.ContentLength(content)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}

	path := c.getPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return storage.ApplyTransform(name, c.transform), nil
}

func (c *LocalClient) Read(ctx context.Context, name string) (*bytes.Reader, error) {
	file, err := os.Open(c.getPath(name))
	if err != nil {
		return nil, c.mapError(http.MethodGet, name, err)
	}
	defer file.Close()
	return storage.ReadAllChunked(file)
}

func (c *LocalClient) Delete(ctx context.Context, name string) error {
	if err := os.Remove(c.getPath(name)); err != nil {
		return c.mapError(http.MethodDelete, name, err)
	}
	return nil
}

func (c *LocalClient) Open(ctx context.Context, name string, flag int) (*storage.File, error) {
	if err := storage.CheckOpenFlag(flag); err != nil {
		return nil, err
	}
	return storage.NewFile(ctx, name, c, flag), nil
}

func (c *LocalClient) URL(name string) string {
	return storage.JoinURL(c.publicURL, storage.Quote(name))
}

// mapError reports a missing file the way the HTTP backends do.
func (c *LocalClient) mapError(method, name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &storage.RequestError{
			Method:     method,
			URL:        "file://" + filepath.ToSlash(c.getPath(name)),
			StatusCode: http.StatusNotFound,
			Reason:     http.StatusText(http.StatusNotFound),
		}
	}
	return err
}
