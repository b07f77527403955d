// Package davclient implements storage.Storage with studio-b12/gowebdav.
//
// Unlike the webdav package it asks the server with PROPFIND for existence
// and size, and creates missing parent collections before uploading, which
// suits servers that reject PUT into directories that do not exist yet.
// gowebdav has no context support; ctx is only checked before each call.
package davclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"

	"davstore/internal/storage"
)

// Config configures the gowebdav backed client.
type Config struct {
	URL       string
	User      string
	Pass      string
	PublicURL string
	Transform storage.TransformFunc
	Logger    *slog.Logger
}

type Client struct {
	client    *gowebdav.Client
	url       string
	publicURL string
	transform storage.TransformFunc
	logger    *slog.Logger
}

var _ storage.Storage = (*Client)(nil)

// NewClient creates the client. No request is made.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, &storage.ConfigurationError{Field: "location", Reason: "is required"}
	}

	c := gowebdav.NewClient(cfg.URL, cfg.User, cfg.Pass)
	c.SetTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DisableKeepAlives:     true,
		ResponseHeaderTimeout: 60 * time.Minute,
		ExpectContinueTimeout: 10 * time.Second,
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:    c,
		url:       strings.TrimRight(cfg.URL, "/"),
		publicURL: cfg.PublicURL,
		transform: cfg.Transform,
		logger:    logger,
	}, nil
}

// SetTransport replaces the HTTP transport (used by tests).
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.client.SetTransport(rt)
}

func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	st, err := c.Stat(ctx, name)
	return st.Exists, err
}

// Stat reports 200 for an existing file and the PROPFIND status otherwise.
// Collections are reported as not existing.
func (c *Client) Stat(ctx context.Context, name string) (storage.Existence, error) {
	if err := checkContext(ctx); err != nil {
		return storage.Existence{}, err
	}
	info, err := c.client.Stat(c.remotePath(name))
	if err != nil {
		var se gowebdav.StatusError
		if errors.As(err, &se) {
			return storage.Existence{Exists: false, Status: se.Status}, nil
		}
		return storage.Existence{}, fmt.Errorf("dav: stat %s: %w", name, err)
	}
	if info == nil || info.IsDir() {
		return storage.Existence{Exists: false, Status: http.StatusNotFound}, nil
	}
	return storage.Existence{Exists: true, Status: http.StatusOK}, nil
}

func (c *Client) Size(ctx context.Context, name string) (int64, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	info, err := c.client.Stat(c.remotePath(name))
	if err != nil {
		return 0, c.mapError("PROPFIND", name, err)
	}
	return info.Size(), nil
}

func (c *Client) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	body, size, err := storage.ContentLength(content)
	if err != nil {
		return "", fmt.Errorf("dav: save %s: %w", name, err)
	}

	stored := storage.ApplyTransform(name, c.transform)
	c.logger.Debug("dav upload", "name", stored, "size", size)
	if err := c.client.WriteStream(c.remotePath(name), body, 0644); err != nil {
		return "", c.mapError(http.MethodPut, name, err)
	}
	return stored, nil
}

func (c *Client) Read(ctx context.Context, name string) (*bytes.Reader, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	rc, err := c.client.ReadStream(c.remotePath(name))
	if err != nil {
		return nil, c.mapError(http.MethodGet, name, err)
	}
	defer rc.Close()

	buf, err := storage.ReadAllChunked(rc)
	if err != nil {
		return nil, fmt.Errorf("dav: read %s: %w", name, err)
	}
	return buf, nil
}

// Delete removes name. gowebdav treats a missing file as already removed.
func (c *Client) Delete(ctx context.Context, name string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := c.client.Remove(c.remotePath(name)); err != nil {
		return c.mapError(http.MethodDelete, name, err)
	}
	return nil
}

func (c *Client) Open(ctx context.Context, name string, flag int) (*storage.File, error) {
	if err := storage.CheckOpenFlag(flag); err != nil {
		return nil, err
	}
	return storage.NewFile(ctx, name, c, flag), nil
}

func (c *Client) URL(name string) string {
	return storage.JoinURL(c.publicURL, storage.Quote(name))
}

func (c *Client) remotePath(name string) string {
	return "/" + strings.TrimLeft(storage.ApplyTransform(name, c.transform), "/")
}

// checkContext reports a canceled ctx. A nil ctx counts as
// context.Background, matching the webdav client.
func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// mapError turns a gowebdav status failure into a RequestError.
func (c *Client) mapError(method, name string, err error) error {
	var se gowebdav.StatusError
	if errors.As(err, &se) {
		return &storage.RequestError{
			Method:     method,
			URL:        c.url + storage.Quote(c.remotePath(name)),
			StatusCode: se.Status,
			Reason:     http.StatusText(se.Status),
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return &storage.RequestError{
			Method:     method,
			URL:        c.url + storage.Quote(c.remotePath(name)),
			StatusCode: http.StatusNotFound,
			Reason:     http.StatusText(http.StatusNotFound),
		}
	}
	return fmt.Errorf("dav: %s %s: %w", method, name, err)
}
