package logx

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestRotatingFile_RotatesBySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "access.log")
	w, err := OpenRotatingFile(RotateOptions{Path: path, MaxBytes: 10, MaxBackups: 2})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got := readFile(t, path); got != "dddddddd\n" {
		t.Fatalf("active=%q", got)
	}
	if got := readFile(t, path+".1"); got != "cccccccc\n" {
		t.Fatalf("backup 1=%q", got)
	}
	if got := readFile(t, path+".2"); got != "bbbbbbbb\n" {
		t.Fatalf("backup 2=%q", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("backup 3 should not exist, err=%v", err)
	}
}

func TestRotatingFile_Compress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	w, err := OpenRotatingFile(RotateOptions{Path: path, MaxBytes: 4, MaxBackups: 1, Compress: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = w.Write([]byte("one\n"))
	_, _ = w.Write([]byte("two\n"))
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer func() { _ = f.Close() }()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	b, _ := io.ReadAll(gz)
	if string(b) != "one\n" {
		t.Fatalf("archive=%q", b)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Fatalf("write after close should fail")
	}
}

func TestRotatingFile_NoRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	w, err := OpenRotatingFile(RotateOptions{Path: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = w.Close() }()
	_, _ = w.Write([]byte("a\n"))
	_, _ = w.Write([]byte("b\n"))
	if got := readFile(t, path); got != "a\nb\n" {
		t.Fatalf("active=%q", got)
	}
	if _, err := OpenRotatingFile(RotateOptions{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
