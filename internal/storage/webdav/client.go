// Package webdav implements storage.Storage directly on top of net/http,
// using only the HTTP subset of WebDAV: HEAD, GET, PUT and DELETE.
//
// Every operation opens its own connection and closes it before returning,
// so a Client holds nothing but its configuration and is safe for
// concurrent use.
package webdav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"davstore/internal/storage"
)

// Config locates the WebDAV root and the public mirror of it.
type Config struct {
	// Location is the root URL every logical name is resolved under,
	// e.g. "http://dav.internal/media/".
	Location string

	// BaseURL is accepted for compatibility and not used by any operation.
	BaseURL string

	// PublicURL is the root used to build links handed to end users.
	PublicURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. The default one disables
// keep-alives so no connection outlives an operation.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithBasicAuth sends credentials with every request. Without it no
// credentials are sent at all.
func WithBasicAuth(user, pass string) Option {
	return func(c *Client) {
		c.user, c.pass = user, pass
		c.auth = user != "" || pass != ""
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithTransform rewrites basenames before every request.
func WithTransform(fn storage.TransformFunc) Option {
	return func(c *Client) {
		c.transform = fn
	}
}

// WithLogger sets the logger used for per-request debug lines.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is the WebDAV storage client.
type Client struct {
	location  string
	baseURL   string
	publicURL string

	transform  storage.TransformFunc
	httpClient *http.Client
	headers    http.Header
	user       string
	pass       string
	auth       bool
	logger     *slog.Logger
}

var _ storage.Storage = (*Client)(nil)

// NewClient validates cfg and returns a Client. No request is made.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		return nil, &storage.ConfigurationError{Field: "location", Reason: "is required"}
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, &storage.ConfigurationError{Field: "location", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &storage.ConfigurationError{Field: "location", Reason: "scheme must be http or https, got " + strconv.Quote(u.Scheme)}
	}
	if u.Host == "" {
		return nil, &storage.ConfigurationError{Field: "location", Reason: "host is missing"}
	}
	if !strings.HasSuffix(location, "/") {
		location += "/"
	}

	c := &Client{
		location:  location,
		baseURL:   cfg.BaseURL,
		publicURL: cfg.PublicURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DisableKeepAlives:     true,
				ResponseHeaderTimeout: 60 * time.Minute,
				ExpectContinueTimeout: 10 * time.Second,
			},
		},
		headers: make(http.Header),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Location returns the normalized root URL, always ending in a slash.
func (c *Client) Location() string { return c.location }

// BaseURL returns the legacy base URL from the configuration.
func (c *Client) BaseURL() string { return c.baseURL }

// Exists issues HEAD and reports true only for a 200 answer. Every other
// status, server errors included, yields false with a nil error.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	st, err := c.Stat(ctx, name)
	return st.Exists, err
}

// Stat issues HEAD and reports the raw outcome.
func (c *Client) Stat(ctx context.Context, name string) (storage.Existence, error) {
	resp, _, err := c.do(ctx, http.MethodHead, name, nil, 0)
	if err != nil {
		return storage.Existence{}, err
	}
	defer closeBody(resp.Body)

	return storage.Existence{
		Exists: resp.StatusCode == http.StatusOK,
		Status: resp.StatusCode,
	}, nil
}

// Size issues HEAD and returns the advertised Content-Length.
func (c *Client) Size(ctx context.Context, name string) (int64, error) {
	resp, target, err := c.do(ctx, http.MethodHead, name, nil, 0)
	if err != nil {
		return 0, err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, storage.NewRequestError(http.MethodHead, target, resp)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		size, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || size < 0 {
			return 0, fmt.Errorf("webdav: HEAD %s: invalid Content-Length %q", target, cl)
		}
		return size, nil
	}
	if resp.ContentLength >= 0 {
		return resp.ContentLength, nil
	}
	return 0, fmt.Errorf("webdav: HEAD %s: no Content-Length in response", target)
}

// Save uploads content with PUT and expects 201 Created. It returns the name
// actually stored, which differs from name when a transform is configured.
func (c *Client) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	body, size, err := storage.ContentLength(content)
	if err != nil {
		return "", fmt.Errorf("webdav: save %s: %w", name, err)
	}

	resp, target, err := c.do(ctx, http.MethodPut, name, body, size)
	if err != nil {
		return "", err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return "", storage.NewRequestError(http.MethodPut, target, resp)
	}
	return storage.ApplyTransform(name, c.transform), nil
}

// Read downloads name into memory and returns it positioned at offset 0.
func (c *Client) Read(ctx context.Context, name string) (*bytes.Reader, error) {
	resp, target, err := c.do(ctx, http.MethodGet, name, nil, 0)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, storage.NewRequestError(http.MethodGet, target, resp)
	}
	buf, err := storage.ReadAllChunked(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("webdav: GET %s: read body: %w", target, err)
	}
	return buf, nil
}

// Delete removes name and expects 204 No Content.
func (c *Client) Delete(ctx context.Context, name string) error {
	resp, target, err := c.do(ctx, http.MethodDelete, name, nil, 0)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return storage.NewRequestError(http.MethodDelete, target, resp)
	}
	return nil
}

// Open returns a lazy read-only handle on name.
func (c *Client) Open(ctx context.Context, name string, flag int) (*storage.File, error) {
	if err := storage.CheckOpenFlag(flag); err != nil {
		return nil, err
	}
	return storage.NewFile(ctx, name, c, flag), nil
}

// URL returns the public link for name, percent-encoded.
func (c *Client) URL(name string) string {
	return c.PublicURL(storage.Quote(name))
}

// PublicURL joins the public root and name without any encoding.
func (c *Client) PublicURL(name string) string {
	return storage.JoinURL(c.publicURL, name)
}

// target builds the request URL for name.
func (c *Client) target(name string) string {
	name = storage.ApplyTransform(name, c.transform)
	return c.location + storage.Quote(strings.TrimLeft(name, "/"))
}

func (c *Client) do(ctx context.Context, method, name string, body io.Reader, size int64) (*http.Response, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target := c.target(name)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, target, fmt.Errorf("webdav: build %s %s: %w", method, target, err)
	}
	req.Close = true
	for k, values := range c.headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if c.auth {
		req.SetBasicAuth(c.user, c.pass)
	}
	if method == http.MethodPut {
		req.ContentLength = size
		if size == 0 {
			req.Body = http.NoBody
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, target, fmt.Errorf("webdav: %s %s: %w", method, target, err)
	}
	c.logger.Debug("webdav request",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, target, nil
}

func closeBody(rc io.ReadCloser) {
	if rc != nil {
		_ = rc.Close()
	}
}
