// Package storage opens sample files for the player. Files come from an
// afero filesystem, so the same code reads the OS filesystem in production
// and an in-memory one in tests.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
)

// Storage errors.
var (
	ErrNotFound    = errors.New("file not found")
	ErrIO          = errors.New("storage I/O error")
	ErrUnsupported = errors.New("operation not supported")
)

// Handle is an open file. Read may return fewer bytes than asked for.
type Handle interface {
	io.Reader
	io.Seeker
	io.Closer
	Name() string
}

// Storage opens handles by path.
type Storage interface {
	Open(path string) (Handle, error)
}

// CompressedExt marks zstd compressed files.
const CompressedExt = ".zst"

// FS is a Storage backed by an afero filesystem. Paths ending in ".zst" are
// decompressed on the fly.
type FS struct {
	fs afero.Fs
}

// NewFS creates a Storage over fs.
func NewFS(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewOsFS creates a Storage over the OS filesystem.
func NewOsFS() *FS {
	return NewFS(afero.NewOsFs())
}

// Open opens path for reading.
func (s *FS) Open(path string) (Handle, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, classify(err, "open", path)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, classify(err, "stat", path)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrIO, path)
	}

	if strings.HasSuffix(strings.ToLower(path), CompressedExt) {
		h, err := newZstdHandle(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrIO, path, err)
		}
		return h, nil
	}
	return &fileHandle{File: f}, nil
}

// fileHandle wraps reads and seeks so that failures carry ErrIO.
type fileHandle struct {
	afero.File
}

func (h *fileHandle) Read(p []byte) (int, error) {
	n, err := h.File.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, classify(err, "read", h.Name())
	}
	return n, err
}

func (h *fileHandle) Seek(offset int64, whence int) (int64, error) {
	pos, err := h.File.Seek(offset, whence)
	if err != nil {
		return pos, classify(err, "seek", h.Name())
	}
	return pos, nil
}

func classify(err error, op, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrIO, op, path, err)
}
