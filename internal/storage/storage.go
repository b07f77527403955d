// Package storage defines the capability set every remote file backend
// implements, the lazy File handle returned by Open, and the error kinds
// shared by all backends.
package storage

import (
	"bytes"
	"context"
	"io"
)

// ChunkSize is the buffer size used when copying a response body into memory.
const ChunkSize = 32 * 1024

// Existence is the outcome of a HEAD probe. Status holds the raw response
// status so callers can tell "not found" apart from a server failure.
// Backends that do not speak HTTP synthesize 200 or 404.
type Existence struct {
	Exists bool
	Status int
}

// Source is the subset of Storage a File needs to load itself.
type Source interface {
	Read(ctx context.Context, name string) (*bytes.Reader, error)
	Size(ctx context.Context, name string) (int64, error)
}

// Storage maps logical names to remote objects.
//
// Names are slash separated and relative. When a backend is configured with
// a filename transform, the name returned by Save is the one actually stored
// and must be used for later calls.
type Storage interface {
	Source

	// Exists reports whether HEAD answered exactly 200. Any other status,
	// including server errors, is reported as false with a nil error; use
	// Stat to see the status.
	Exists(ctx context.Context, name string) (bool, error)

	// Stat probes name and reports the raw outcome.
	Stat(ctx context.Context, name string) (Existence, error)

	// Save uploads content under name and returns the stored name.
	Save(ctx context.Context, name string, content io.Reader) (string, error)

	// Open returns a handle that defers the download until the first read.
	Open(ctx context.Context, name string, flag int) (*File, error)

	// Delete removes name.
	Delete(ctx context.Context, name string) error

	// URL returns the public link for name. No request is made.
	URL(name string) string
}
