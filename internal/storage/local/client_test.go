package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"davstore/internal/storage"
)

func TestNewClient(t *testing.T) {
	t.Run("create nested directory", func(t *testing.T) {
		nestedDir := filepath.Join(t.TempDir(), "nested", "storage")
		client, err := NewClient(nestedDir, "", nil)
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client.rootPath != nestedDir {
			t.Errorf("rootPath = %q, want %q", client.rootPath, nestedDir)
		}
		if _, err := os.Stat(nestedDir); os.IsNotExist(err) {
			t.Error("Nested directory should be created")
		}
	})

	t.Run("empty root", func(t *testing.T) {
		var cfgErr *storage.ConfigurationError
		if _, err := NewClient("", "", nil); !errors.As(err, &cfgErr) {
			t.Errorf("expected ConfigurationError, got %v", err)
		}
	})
}

func TestLocalClient_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	client, err := NewClient(tmpDir, "http://files.local/", nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	ctx := context.Background()

	large := make([]byte, 1024*1024)
	for i := range large {
		large[i] = byte(i % 256)
	}

	tests := []struct {
		name    string
		file    string
		content []byte
	}{
		{"small", "testfile.txt", []byte("Hello, World!")},
		{"empty", "emptyfile.txt", []byte{}},
		{"large", "largefile.bin", large},
		{"nested", "a/b/c.txt", []byte("nested")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, err := client.Save(ctx, tt.file, bytes.NewReader(tt.content))
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			data, err := os.ReadFile(filepath.Join(tmpDir, filepath.FromSlash(stored)))
			if err != nil {
				t.Fatalf("Failed to read saved file: %v", err)
			}
			if !bytes.Equal(data, tt.content) {
				t.Error("content on disk mismatch")
			}

			r, err := client.Read(ctx, stored)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			got, _ := io.ReadAll(r)
			if !bytes.Equal(got, tt.content) {
				t.Error("Read content mismatch")
			}

			size, err := client.Size(ctx, stored)
			if err != nil || size != int64(len(tt.content)) {
				t.Errorf("Size = (%d, %v), want %d", size, err, len(tt.content))
			}

			if err := client.Delete(ctx, stored); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if exists, _ := client.Exists(ctx, stored); exists {
				t.Error("file still exists after Delete")
			}
		})
	}
}

func TestLocalClient_Missing(t *testing.T) {
	client, _ := NewClient(t.TempDir(), "", nil)
	ctx := context.Background()

	st, err := client.Stat(ctx, "nope.txt")
	if err != nil || st.Exists || st.Status != 404 {
		t.Errorf("Stat = (%+v, %v), want {false 404}", st, err)
	}
	if _, err := client.Read(ctx, "nope.txt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Read = %v, want ErrNotFound", err)
	}
	if err := client.Delete(ctx, "nope.txt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete = %v, want ErrNotFound", err)
	}
	if _, err := client.Size(ctx, "nope.txt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Size = %v, want ErrNotFound", err)
	}
}

func TestLocalClient_StaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	client, _ := NewClient(root, "", nil)

	if _, err := client.Save(context.Background(), "../../escape.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(parent, "escape.txt")); !os.IsNotExist(err) {
		t.Error("file escaped the root directory")
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); err != nil {
		t.Errorf("file not stored inside root: %v", err)
	}
}

func TestLocalClient_Transform(t *testing.T) {
	root := t.TempDir()
	client, _ := NewClient(root, "", storage.Slugify)

	stored, err := client.Save(context.Background(), "docs/Annual Report.PDF", strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if stored != "docs/annual-report.PDF" {
		t.Errorf("stored = %q", stored)
	}
	exists, err := client.Exists(context.Background(), "docs/Annual Report.PDF")
	if err != nil || !exists {
		t.Errorf("Exists via original name = (%v, %v)", exists, err)
	}
}

func TestLocalClient_Open(t *testing.T) {
	client, _ := NewClient(t.TempDir(), "http://files.local", nil)
	ctx := context.Background()
	client.Save(ctx, "f.txt", strings.NewReader("content"))

	f, err := client.Open(ctx, "f.txt", os.O_RDONLY)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := f.ReadAll()
	if string(data) != "content" {
		t.Errorf("content = %q", data)
	}
	if got := client.URL("f.txt"); got != "http://files.local/f.txt" {
		t.Errorf("URL = %q", got)
	}
}

func TestLocalClient_Save_RewindsSeekableContent(t *testing.T) {
	root := t.TempDir()
	client, _ := NewClient(root, "", nil)

	r := strings.NewReader("full content")
	io.ReadAll(r)

	if _, err := client.Save(context.Background(), "rewind.txt", r); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "rewind.txt"))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "full content" {
		t.Errorf("content = %q, want %q", data, "full content")
	}
}

func TestLocalClient_StoredNameResolvesForEveryTransform(t *testing.T) {
	ctx := context.Background()

	for _, name := range storage.TransformNames() {
		t.Run(name, func(t *testing.T) {
			fn, _ := storage.LookupTransform(name)
			client, _ := NewClient(t.TempDir(), "", fn)

			stored, err := client.Save(ctx, "docs/Quarterly Report.PDF", strings.NewReader("pdf"))
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if _, err := client.Read(ctx, stored); err != nil {
				t.Errorf("Read(%q) failed: %v", stored, err)
			}
			if size, err := client.Size(ctx, stored); err != nil || size != 3 {
				t.Errorf("Size(%q) = (%d, %v)", stored, size, err)
			}
			if err := client.Delete(ctx, stored); err != nil {
				t.Errorf("Delete(%q) failed: %v", stored, err)
			}
		})
	}
}
