package audio

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// DefaultBufferCapacity is the number of 16-bit units held per refill.
const DefaultBufferCapacity = 512

// ErrExhausted is returned by TakeFrame while a refill is pending.
var ErrExhausted = errors.New("stream buffer exhausted")

// Frame is one sample frame. Mono frames carry the same unit in both
// halves.
type Frame struct {
	Left  uint16
	Right uint16
}

// BufferConfig holds stream buffer configuration.
type BufferConfig struct {
	Capacity  int // units per refill, must be even
	Watermark int // cursor position at which the next block is prefetched
}

// DefaultBufferConfig returns sensible defaults.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		Capacity:  DefaultBufferCapacity,
		Watermark: DefaultBufferCapacity / 2,
	}
}

// Validate checks the buffer geometry.
func (c BufferConfig) Validate() error {
	if c.Capacity <= 0 || c.Capacity%2 != 0 {
		return fmt.Errorf("buffer capacity must be a positive even number, got %d", c.Capacity)
	}
	if c.Watermark < 0 || c.Watermark > c.Capacity {
		return fmt.Errorf("buffer watermark must be between 0 and %d, got %d", c.Capacity, c.Watermark)
	}
	return nil
}

// BufferStats tracks refill activity.
type BufferStats struct {
	Refills    uint64
	ShortReads uint64
	Prefetches uint64
	Requests   uint64 // times the consumer raised needsRefill
}

// StreamBuffer is a single-producer single-consumer sample buffer.
//
// The consumer (a transport tick) reads units only while needsRefill is
// clear and the producer (the session loop) writes them only while it is
// set. Stores to needsRefill publish the unit array to the other side.
type StreamBuffer struct {
	units     []uint16
	capacity  int
	watermark int

	cursor      atomic.Int32
	needsRefill atomic.Bool

	// Producer side only.
	raw         []byte
	staged      []byte
	stagedBytes int
	hasStaged   bool
	onShortRead func(units int)
	ready       chan struct{}

	refills    atomic.Uint64
	shortReads atomic.Uint64
	prefetches atomic.Uint64
	requests   atomic.Uint64
}

// NewStreamBuffer creates an empty buffer that starts out asking for a
// refill.
func NewStreamBuffer(config BufferConfig) (*StreamBuffer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &StreamBuffer{
		units:     make([]uint16, config.Capacity),
		capacity:  config.Capacity,
		watermark: config.Watermark,
		raw:       make([]byte, config.Capacity*2),
		staged:    make([]byte, config.Capacity*2),
		ready:     make(chan struct{}, 1),
	}
	b.needsRefill.Store(true)
	return b, nil
}

// OnShortRead registers a hook that runs after a short refill and before the
// new contents are handed to the consumer.
func (b *StreamBuffer) OnShortRead(fn func(units int)) {
	b.onShortRead = fn
}

// Capacity returns the number of units per refill.
func (b *StreamBuffer) Capacity() int {
	return b.capacity
}

// Cursor returns the index of the next unread unit.
func (b *StreamBuffer) Cursor() int {
	return int(b.cursor.Load())
}

// NeedsRefill reports whether the consumer has exhausted the buffer.
func (b *StreamBuffer) NeedsRefill() bool {
	return b.needsRefill.Load()
}

// ShouldPrefetch reports whether the cursor has passed the watermark and no
// block is staged yet.
func (b *StreamBuffer) ShouldPrefetch() bool {
	if b.hasStaged || b.watermark >= b.capacity {
		return false
	}
	return !b.needsRefill.Load() && int(b.cursor.Load()) >= b.watermark
}

// Refill overwrites the whole buffer with the next capacity units, taken
// from a staged block if Prefetch produced one, otherwise read from src. A
// short read is accepted. It returns the number of units loaded.
func (b *StreamBuffer) Refill(src io.Reader) (int, error) {
	if !b.needsRefill.Load() {
		return 0, errors.New("refill requested while buffer still has data")
	}

	var n int
	if b.hasStaged {
		b.raw, b.staged = b.staged, b.raw
		n = b.stagedBytes
		b.hasStaged = false
		b.stagedBytes = 0
	} else {
		var err error
		n, err = readBlock(src, b.raw)
		if err != nil {
			return 0, err
		}
	}

	units := n / 2
	for i := 0; i < units; i++ {
		b.units[i] = uint16(b.raw[2*i]) | uint16(b.raw[2*i+1])<<8
	}

	b.refills.Add(1)
	if units < b.capacity {
		b.shortReads.Add(1)
		if b.onShortRead != nil {
			b.onShortRead(units)
		}
	}

	b.cursor.Store(0)
	b.needsRefill.Store(false)
	select {
	case b.ready <- struct{}{}:
	default:
	}
	return units, nil
}

// Ready receives a value after each Refill has published new contents.
func (b *StreamBuffer) Ready() <-chan struct{} {
	return b.ready
}

// Prefetch reads the next block into the staging area so that the following
// Refill does not wait on storage.
func (b *StreamBuffer) Prefetch(src io.Reader) error {
	if b.hasStaged {
		return nil
	}
	n, err := readBlock(src, b.staged)
	if err != nil {
		return err
	}
	b.stagedBytes = n
	b.hasStaged = true
	b.prefetches.Add(1)
	return nil
}

// TakeFrame returns the next frame and advances the cursor by one unit per
// channel. The call that moves the cursor to capacity also raises the refill
// request. It never blocks and never allocates.
func (b *StreamBuffer) TakeFrame(channels int) (Frame, error) {
	if b.needsRefill.Load() {
		return Frame{}, ErrExhausted
	}

	c := int(b.cursor.Load())
	if c+channels > b.capacity {
		b.raise()
		return Frame{}, ErrExhausted
	}

	var f Frame
	if channels == 2 {
		f = Frame{Left: b.units[c], Right: b.units[c+1]}
	} else {
		f = Frame{Left: b.units[c], Right: b.units[c]}
	}

	c += channels
	b.cursor.Store(int32(c)) //nolint:gosec
	if c >= b.capacity {
		b.raise()
	}
	return f, nil
}

// Stats returns a snapshot of the refill counters.
func (b *StreamBuffer) Stats() BufferStats {
	return BufferStats{
		Refills:    b.refills.Load(),
		ShortReads: b.shortReads.Load(),
		Prefetches: b.prefetches.Load(),
		Requests:   b.requests.Load(),
	}
}

// String returns a string representation of buffer stats.
func (s BufferStats) String() string {
	return fmt.Sprintf("refills=%d short=%d prefetched=%d requests=%d",
		s.Refills, s.ShortReads, s.Prefetches, s.Requests)
}

func (b *StreamBuffer) raise() {
	if b.needsRefill.CompareAndSwap(false, true) {
		b.requests.Add(1)
	}
}

// readBlock fills p from r, stopping early only at end of input.
func readBlock(r io.Reader, p []byte) (int, error) {
	n, err := io.ReadFull(r, p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, nil
	default:
		return n, fmt.Errorf("reading sample block: %w", err)
	}
}
