package storage

import (
	"bytes"
	"context"
	"io"
	"os"
)

const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_APPEND | os.O_CREATE | os.O_TRUNC

// ReadOnly reports whether flag opens a file for reading only.
func ReadOnly(flag int) bool {
	return flag&writeFlags == 0
}

// CheckOpenFlag returns an UnsupportedModeError unless flag is read-only.
func CheckOpenFlag(flag int) error {
	if !ReadOnly(flag) {
		return &UnsupportedModeError{Flag: flag}
	}
	return nil
}

// File is a lazily loaded handle on a remote file. The body is fetched on
// the first Read and kept in memory until Close. A File is not safe for
// concurrent use.
type File struct {
	ctx    context.Context
	name   string
	src    Source
	flag   int
	dirty  bool
	loaded bool
	closed bool
	buf    *bytes.Reader

	size      int64
	sizeKnown bool
}

// NewFile returns a handle on name. No request is made; ctx governs the
// deferred fetches.
func NewFile(ctx context.Context, name string, src Source, flag int) *File {
	if ctx == nil {
		ctx = context.Background()
	}
	return &File{ctx: ctx, name: name, src: src, flag: flag}
}

// Name returns the logical name the handle was opened with.
func (f *File) Name() string { return f.name }

// Dirty reports whether SetContent replaced the content locally.
func (f *File) Dirty() bool { return f.dirty }

// Size returns the remote size, fetched once and cached. Once the content is
// in memory its length is used instead.
func (f *File) Size() (int64, error) {
	if f.sizeKnown {
		return f.size, nil
	}
	if f.loaded && f.buf != nil {
		f.size, f.sizeKnown = f.buf.Size(), true
		return f.size, nil
	}
	size, err := f.src.Size(f.ctx, f.name)
	if err != nil {
		return 0, err
	}
	f.size, f.sizeKnown = size, true
	return size, nil
}

// Read implements io.Reader. The first call downloads the whole body.
func (f *File) Read(p []byte) (int, error) {
	if err := f.load(); err != nil {
		return 0, err
	}
	return f.buf.Read(p)
}

// ReadAll returns the unread remainder of the content.
func (f *File) ReadAll() ([]byte, error) {
	if err := f.load(); err != nil {
		return nil, err
	}
	return io.ReadAll(f.buf)
}

func (f *File) load() error {
	if f.closed {
		return os.ErrClosed
	}
	if f.loaded {
		return nil
	}
	buf, err := f.src.Read(f.ctx, f.name)
	if err != nil {
		return err
	}
	f.buf = buf
	f.loaded = true
	return nil
}

// SetContent replaces the in-memory content and marks the handle dirty.
// Nothing is sent to the server; persisting is the caller's job via
// Storage.Save.
func (f *File) SetContent(content []byte) error {
	if f.closed {
		return os.ErrClosed
	}
	if ReadOnly(f.flag) {
		return ErrReadOnly
	}
	f.buf = bytes.NewReader(content)
	f.size, f.sizeKnown = int64(len(content)), true
	f.dirty = true
	f.loaded = true
	return nil
}

// Close releases the buffered content.
func (f *File) Close() error {
	f.buf = nil
	f.closed = true
	return nil
}
