package storage

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// Quote percent-encodes name for use in a request path. Only unreserved
// characters and '/' are kept as is.
func Quote(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// ApplyTransform rewrites the basename of name with fn, leaving the
// directory and the extension untouched. A nil fn returns name unchanged.
func ApplyTransform(name string, fn TransformFunc) string {
	if fn == nil {
		return name
	}
	dir, base := path.Split(name)
	stem, ext := splitExt(base)
	return dir + fn(stem) + ext
}

// splitExt splits base at its last dot. Leading dots belong to the stem, so
// ".profile" has no extension.
func splitExt(base string) (string, string) {
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || strings.Trim(base[:i], ".") == "" {
		return base, ""
	}
	return base[:i], base[i:]
}

// JoinURL joins root and name with exactly one slash.
func JoinURL(root, name string) string {
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(name, "/")
}

// ContentLength determines how many bytes content will yield. Seekable
// content is rewound to the start; anything else, including a seeker whose
// Seek fails, is buffered, in which case
// the returned reader must be sent instead of content.
func ContentLength(content io.Reader) (io.Reader, int64, error) {
	switch c := content.(type) {
	case nil:
		return bytes.NewReader(nil), 0, nil
	case interface{ Len() int }:
		if _, ok := c.(io.Seeker); !ok {
			return content, int64(c.Len()), nil
		}
	}
	if s, ok := content.(io.Seeker); ok {
		// Pipes and terminals implement Seek but fail it; those are buffered.
		if end, err := s.Seek(0, io.SeekEnd); err == nil {
			if _, err := s.Seek(0, io.SeekStart); err != nil {
				return nil, 0, fmt.Errorf("rewind content: %w", err)
			}
			return content, end, nil
		}
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, 0, fmt.Errorf("buffer content: %w", err)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// ReadAllChunked copies r into memory ChunkSize bytes at a time and returns
// a reader positioned at offset 0.
func ReadAllChunked(r io.Reader) (*bytes.Reader, error) {
	var buf bytes.Buffer
	chunk := make([]byte, ChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return bytes.NewReader(buf.Bytes()), nil
}
