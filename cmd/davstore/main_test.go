package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"davstore/internal/davserver"
)

func startServer(t *testing.T) string {
	t.Helper()
	dav, err := davserver.NewDirServer("/dav", t.TempDir(), "", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewDirServer failed: %v", err)
	}
	srv := httptest.NewServer(dav)
	t.Cleanup(srv.Close)

	t.Setenv("STORAGE_TYPE", "webdav")
	t.Setenv("STORAGE_LOCATION", srv.URL+"/dav/")
	t.Setenv("STORAGE_PUBLIC_URL", "https://cdn.example.com/media/")
	return srv.URL
}

// cli runs a command with a config path that does not exist, so only the
// environment configures it.
func cli(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "none.yaml")
	full := append([]string{args[0], "-config", missing, "-env", ""}, args[1:]...)

	var stdout, stderr bytes.Buffer
	code := run(full, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(nil, nil, io.Discard, &stderr); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "usage: davstore") {
		t.Errorf("usage not printed: %q", stderr.String())
	}

	stderr.Reset()
	if code := run([]string{"frobnicate"}, nil, io.Discard, &stderr); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), `unknown command "frobnicate"`) {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunMissingName(t *testing.T) {
	code, _, stderr := cli(t, "", "exists")
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr, "exactly one file name") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunFileLifecycle(t *testing.T) {
	startServer(t)

	code, out, stderr := cli(t, "hello world", "put", "a b.txt")
	if code != 0 {
		t.Fatalf("put exit = %d, stderr = %q", code, stderr)
	}
	if strings.TrimSpace(out) != "a b.txt" {
		t.Errorf("put printed %q", out)
	}

	if code, out, _ = cli(t, "", "exists", "a b.txt"); code != 0 || strings.TrimSpace(out) != "true" {
		t.Errorf("exists = %d %q", code, out)
	}
	if code, out, _ = cli(t, "", "stat", "missing.txt"); code != 0 || strings.TrimSpace(out) != "exists=false status=404" {
		t.Errorf("stat = %d %q", code, out)
	}
	if code, out, _ = cli(t, "", "size", "a b.txt"); code != 0 || strings.TrimSpace(out) != "11" {
		t.Errorf("size = %d %q", code, out)
	}
	if code, out, _ = cli(t, "", "get", "a b.txt"); code != 0 || out != "hello world" {
		t.Errorf("get = %d %q", code, out)
	}
	if code, out, _ = cli(t, "", "url", "a b.txt"); code != 0 || strings.TrimSpace(out) != "https://cdn.example.com/media/a%20b.txt" {
		t.Errorf("url = %d %q", code, out)
	}

	if code, _, stderr = cli(t, "", "rm", "a b.txt"); code != 0 {
		t.Fatalf("rm exit = %d, stderr = %q", code, stderr)
	}
	if code, _, _ = cli(t, "", "rm", "a b.txt"); code != 1 {
		t.Errorf("second rm exit = %d, want 1", code)
	}
	if code, out, _ = cli(t, "", "exists", "a b.txt"); code != 0 || strings.TrimSpace(out) != "false" {
		t.Errorf("exists after rm = %d %q", code, out)
	}
}

func TestRunFileFlags(t *testing.T) {
	startServer(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	outPath := filepath.Join(dir, "out.bin")
	payload := bytes.Repeat([]byte{0, 1, 2, 3}, 20000)
	if err := os.WriteFile(in, payload, 0644); err != nil {
		t.Fatal(err)
	}

	if code, _, stderr := cli(t, "", "put", "-i", in, "blob.bin"); code != 0 {
		t.Fatalf("put exit = %d, stderr = %q", code, stderr)
	}
	if code, _, stderr := cli(t, "", "get", "-o", outPath, "blob.bin"); code != 0 {
		t.Fatalf("get exit = %d, stderr = %q", code, stderr)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("downloaded %d bytes, want %d", len(got), len(payload))
	}
}

func TestRunGetMissingFails(t *testing.T) {
	startServer(t)

	code, _, stderr := cli(t, "", "get", "-log-json", "nope.txt")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, `"level":"ERROR"`) || !strings.Contains(stderr, "404") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunBadConfig(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "carrier-pigeon")

	code, _, stderr := cli(t, "", "exists", "x")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "unsupported storage type") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunPutFromPipe(t *testing.T) {
	startServer(t)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe failed: %v", err)
	}
	defer r.Close()
	go func() {
		w.Write([]byte("streamed via stdin"))
		w.Close()
	}()

	missing := filepath.Join(t.TempDir(), "none.yaml")
	var stdout, stderr bytes.Buffer
	code := run([]string{"put", "-config", missing, "-env", "", "piped.txt"}, r, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("put exit = %d, stderr = %q", code, stderr.String())
	}

	if code, out, _ := cli(t, "", "get", "piped.txt"); code != 0 || out != "streamed via stdin" {
		t.Errorf("get = %d %q", code, out)
	}
}

func TestRunGetOutputWriteFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	startServer(t)

	if code, _, stderr := cli(t, "data", "put", "full.txt"); code != 0 {
		t.Fatalf("put exit = %d, stderr = %q", code, stderr)
	}
	if code, _, _ := cli(t, "", "get", "-o", "/dev/full", "full.txt"); code != 1 {
		t.Errorf("get to a full device exit = %d, want 1", code)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	n, err := writeFile(path, strings.NewReader("payload"))
	if err != nil || n != 7 {
		t.Fatalf("writeFile = (%d, %v), want (7, nil)", n, err)
	}
	if data, _ := os.ReadFile(path); string(data) != "payload" {
		t.Errorf("file content = %q", data)
	}

	if _, err := writeFile(filepath.Join(t.TempDir(), "missing", "out.txt"), strings.NewReader("x")); err == nil {
		t.Error("expected error for a missing directory")
	}
}
