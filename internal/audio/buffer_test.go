package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/dgnsrekt/wavplay/internal/audio"
)

// units encodes sample units as little-endian bytes.
func units(vals ...uint16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return b
}

func ramp(n int, start uint16) []byte {
	vals := make([]uint16, n)
	for i := range vals {
		vals[i] = start + uint16(i)
	}
	return units(vals...)
}

func newBuffer(t *testing.T, capacity, watermark int) *audio.StreamBuffer {
	t.Helper()
	buf, err := audio.NewStreamBuffer(audio.BufferConfig{Capacity: capacity, Watermark: watermark})
	if err != nil {
		t.Fatalf("NewStreamBuffer() unexpected error: %v", err)
	}
	return buf
}

// TestBufferConfig tests buffer geometry validation.
func TestBufferConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    audio.BufferConfig
		expectErr bool
	}{
		{
			name:      "default config",
			config:    audio.DefaultBufferConfig(),
			expectErr: false,
		},
		{
			name:      "odd capacity",
			config:    audio.BufferConfig{Capacity: 511, Watermark: 0},
			expectErr: true,
		},
		{
			name:      "zero capacity",
			config:    audio.BufferConfig{Capacity: 0},
			expectErr: true,
		},
		{
			name:      "watermark past capacity",
			config:    audio.BufferConfig{Capacity: 8, Watermark: 10},
			expectErr: true,
		},
		{
			name:      "watermark equal to capacity",
			config:    audio.BufferConfig{Capacity: 8, Watermark: 8},
			expectErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := audio.NewStreamBuffer(tt.config)
			if tt.expectErr && err == nil {
				t.Errorf("NewStreamBuffer() expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("NewStreamBuffer() unexpected error: %v", err)
			}
		})
	}
}

// TestBufferStartsEmpty tests that a new buffer asks for a refill.
func TestBufferStartsEmpty(t *testing.T) {
	buf := newBuffer(t, 8, 8)

	if !buf.NeedsRefill() {
		t.Error("new buffer should need a refill")
	}
	if _, err := buf.TakeFrame(1); !errors.Is(err, audio.ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
}

// TestBufferMonoCycle tests that capacity mono takes raise exactly one
// refill request.
func TestBufferMonoCycle(t *testing.T) {
	const capacity = 8
	buf := newBuffer(t, capacity, capacity)
	src := bytes.NewReader(ramp(2*capacity, 100))

	for cycle := 0; cycle < 2; cycle++ {
		n, err := buf.Refill(src)
		if err != nil {
			t.Fatalf("Refill() unexpected error: %v", err)
		}
		if n != capacity {
			t.Fatalf("expected %d units, got %d", capacity, n)
		}
		if buf.Cursor() != 0 {
			t.Errorf("cursor should reset to 0, got %d", buf.Cursor())
		}

		for i := 0; i < capacity; i++ {
			if buf.NeedsRefill() {
				t.Fatalf("refill requested early at take %d", i)
			}
			f, err := buf.TakeFrame(1)
			if err != nil {
				t.Fatalf("TakeFrame() unexpected error at %d: %v", i, err)
			}
			want := uint16(100 + cycle*capacity + i)
			if f.Left != want || f.Right != want {
				t.Errorf("frame %d = %+v, want both %d", i, f, want)
			}
			if buf.Cursor() > capacity {
				t.Fatalf("cursor %d exceeds capacity", buf.Cursor())
			}
		}

		if !buf.NeedsRefill() {
			t.Error("expected refill request after capacity takes")
		}
		if _, err := buf.TakeFrame(1); !errors.Is(err, audio.ErrExhausted) {
			t.Errorf("expected ErrExhausted, got %v", err)
		}
	}

	stats := buf.Stats()
	if stats.Requests != 2 {
		t.Errorf("expected 2 refill requests, got %d", stats.Requests)
	}
	if stats.Refills != 2 {
		t.Errorf("expected 2 refills, got %d", stats.Refills)
	}
}

// TestBufferStereo tests that stereo takes advance by two units.
func TestBufferStereo(t *testing.T) {
	buf := newBuffer(t, 4, 4)
	if _, err := buf.Refill(bytes.NewReader(units(1, 2, 3, 4))); err != nil {
		t.Fatal(err)
	}

	f, err := buf.TakeFrame(2)
	if err != nil {
		t.Fatal(err)
	}
	if f.Left != 1 || f.Right != 2 {
		t.Errorf("expected {1 2}, got %+v", f)
	}
	if buf.Cursor() != 2 {
		t.Errorf("expected cursor 2, got %d", buf.Cursor())
	}

	f, err = buf.TakeFrame(2)
	if err != nil {
		t.Fatal(err)
	}
	if f.Left != 3 || f.Right != 4 {
		t.Errorf("expected {3 4}, got %+v", f)
	}
	if !buf.NeedsRefill() {
		t.Error("expected refill request")
	}
}

// TestBufferShortRead tests that a short read is accepted and reported.
func TestBufferShortRead(t *testing.T) {
	buf := newBuffer(t, 8, 8)

	var reported = -1
	buf.OnShortRead(func(n int) { reported = n })

	n, err := buf.Refill(bytes.NewReader(ramp(4, 0)))
	if err != nil {
		t.Fatalf("Refill() unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 units, got %d", n)
	}
	if reported != 4 {
		t.Errorf("expected short read hook with 4, got %d", reported)
	}
	if buf.NeedsRefill() {
		t.Error("short refill should still clear the request")
	}
	if buf.Stats().ShortReads != 1 {
		t.Errorf("expected 1 short read, got %d", buf.Stats().ShortReads)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

// TestBufferRefillError tests that read errors leave the request raised.
func TestBufferRefillError(t *testing.T) {
	buf := newBuffer(t, 8, 8)

	if _, err := buf.Refill(failingReader{}); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("expected wrapped ErrClosedPipe, got %v", err)
	}
	if !buf.NeedsRefill() {
		t.Error("failed refill must leave the request raised")
	}
}

// TestBufferRefillWhileFull tests that refills are refused while data is
// unread.
func TestBufferRefillWhileFull(t *testing.T) {
	buf := newBuffer(t, 4, 4)
	if _, err := buf.Refill(bytes.NewReader(ramp(4, 0))); err != nil {
		t.Fatal(err)
	}
	if _, err := buf.Refill(bytes.NewReader(ramp(4, 0))); err == nil {
		t.Error("expected error refilling a buffer with unread data")
	}
}

// TestBufferPrefetch tests the watermark prefetch path.
func TestBufferPrefetch(t *testing.T) {
	buf := newBuffer(t, 4, 2)
	src := bytes.NewReader(ramp(8, 10))

	if _, err := buf.Refill(src); err != nil {
		t.Fatal(err)
	}
	if buf.ShouldPrefetch() {
		t.Error("should not prefetch below the watermark")
	}

	for i := 0; i < 2; i++ {
		if _, err := buf.TakeFrame(1); err != nil {
			t.Fatal(err)
		}
	}
	if !buf.ShouldPrefetch() {
		t.Fatal("expected prefetch at the watermark")
	}
	if err := buf.Prefetch(src); err != nil {
		t.Fatalf("Prefetch() unexpected error: %v", err)
	}
	if buf.ShouldPrefetch() {
		t.Error("should not prefetch twice")
	}

	for i := 0; i < 2; i++ {
		if _, err := buf.TakeFrame(1); err != nil {
			t.Fatal(err)
		}
	}

	// The staged block is used; the reader is already at EOF.
	n, err := buf.Refill(src)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("expected 4 staged units, got %d", n)
	}
	f, err := buf.TakeFrame(1)
	if err != nil {
		t.Fatal(err)
	}
	if f.Left != 14 {
		t.Errorf("expected first staged unit 14, got %d", f.Left)
	}
	if buf.Stats().Prefetches != 1 {
		t.Errorf("expected 1 prefetch, got %d", buf.Stats().Prefetches)
	}
}

// TestBufferConcurrentHandoff tests the producer/consumer handoff under the
// race detector.
func TestBufferConcurrentHandoff(t *testing.T) {
	const (
		capacity = 64
		blocks   = 50
	)
	buf := newBuffer(t, capacity, capacity)
	src := bytes.NewReader(ramp(capacity*blocks, 0))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < blocks; i++ {
			for !buf.NeedsRefill() {
			}
			if _, err := buf.Refill(src); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	next := uint16(0)
	for next < capacity*blocks {
		f, err := buf.TakeFrame(1)
		if errors.Is(err, audio.ErrExhausted) {
			continue
		}
		if f.Left != next {
			t.Fatalf("expected unit %d, got %d", next, f.Left)
		}
		next++
	}
	wg.Wait()
}
