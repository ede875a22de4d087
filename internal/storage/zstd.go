package storage

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// zstdHandle reads a zstd stream. Seeking forward discards decoded bytes;
// seeking backward restarts the decoder from the top of the file.
type zstdHandle struct {
	f   afero.File
	dec *zstd.Decoder
	pos int64
}

func newZstdHandle(f afero.File) (*zstdHandle, error) {
	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &zstdHandle{f: f, dec: dec}, nil
}

func (h *zstdHandle) Name() string {
	return h.f.Name()
}

func (h *zstdHandle) Read(p []byte) (int, error) {
	n, err := h.dec.Read(p)
	h.pos += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: read %s: %v", ErrIO, h.Name(), err)
	}
	return n, err
}

func (h *zstdHandle) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = h.pos + offset
	default:
		return h.pos, fmt.Errorf("%w: seek from end of a compressed stream", ErrUnsupported)
	}
	if target < 0 {
		return h.pos, fmt.Errorf("%w: negative seek to %d", ErrIO, target)
	}

	if target < h.pos {
		if _, err := h.f.Seek(0, io.SeekStart); err != nil {
			return h.pos, fmt.Errorf("%w: rewind %s: %v", ErrIO, h.Name(), err)
		}
		if err := h.dec.Reset(h.f); err != nil {
			return h.pos, fmt.Errorf("%w: reset decoder: %v", ErrIO, err)
		}
		h.pos = 0
	}

	if skip := target - h.pos; skip > 0 {
		n, err := io.CopyN(io.Discard, h.dec, skip)
		h.pos += n
		if err != nil && !errors.Is(err, io.EOF) {
			return h.pos, fmt.Errorf("%w: seek %s: %v", ErrIO, h.Name(), err)
		}
	}
	if h.pos != target {
		return h.pos, fmt.Errorf("%w: seek %s to %d past the end at %d", ErrIO, h.Name(), target, h.pos)
	}
	return h.pos, nil
}

func (h *zstdHandle) Close() error {
	h.dec.Close()
	return h.f.Close()
}

// Compress writes src to dst as a zstd stream that Open can read back.
func Compress(dst io.Writer, src io.Reader) (int64, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	n, err := io.Copy(enc, src)
	if err != nil {
		_ = enc.Close()
		return n, fmt.Errorf("%w: compress: %v", ErrIO, err)
	}
	if err := enc.Close(); err != nil {
		return n, fmt.Errorf("%w: compress: %v", ErrIO, err)
	}
	return n, nil
}
