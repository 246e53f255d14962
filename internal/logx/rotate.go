package logx

import (
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

type RotateOptions struct {
	Path string
	// MaxBytes triggers a rotation before a write would grow the file past
	// it. Zero disables rotation.
	MaxBytes int64
	// MaxBackups is the number of rotated files kept as Path.1 ... Path.N.
	MaxBackups int
	// Compress gzips rotated files.
	Compress bool
}

// RotatingFile is an append-only file that rotates by size.
type RotatingFile struct {
	mu   sync.Mutex
	opts RotateOptions
	f    *os.File
	size int64
}

func OpenRotatingFile(opts RotateOptions) (*RotatingFile, error) {
	opts.Path = strings.TrimSpace(opts.Path)
	if opts.Path == "" {
		return nil, errors.New("access log path is empty")
	}
	if opts.MaxBytes < 0 || opts.MaxBackups < 0 {
		return nil, errors.New("access log rotation limits must be >= 0")
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	r := &RotatingFile{opts: opts}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	// #nosec G304 -- access_log_path comes from trusted config/env.
	f, err := os.OpenFile(r.opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.f = f
	r.size = st.Size()
	return nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return 0, os.ErrClosed
	}
	if r.opts.MaxBytes > 0 && r.size > 0 && r.size+int64(len(p)) > r.opts.MaxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *RotatingFile) backupName(i int) string {
	name := r.opts.Path + "." + strconv.Itoa(i)
	if r.opts.Compress {
		name += ".gz"
	}
	return name
}

func (r *RotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	r.f = nil

	if r.opts.MaxBackups == 0 {
		if err := os.Remove(r.opts.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return r.open()
	}

	_ = os.Remove(r.backupName(r.opts.MaxBackups))
	for i := r.opts.MaxBackups - 1; i >= 1; i-- {
		if err := os.Rename(r.backupName(i), r.backupName(i+1)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	first := r.opts.Path + ".1"
	if err := os.Rename(r.opts.Path, first); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if r.opts.Compress {
		if err := gzipFile(first, first+".gz"); err != nil {
			return err
		}
	}
	return r.open()
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- derived from access_log_path.
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	_, err = io.Copy(gz, in)
	err = errors.Join(err, gz.Close(), out.Close())
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
