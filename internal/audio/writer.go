package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// WriterConfig contains configuration for the writer transport.
type WriterConfig struct {
	// Wake is how often the clock wakes up to produce a batch of words.
	Wake time.Duration
	// Realtime paces output at the sample rate and pads underruns that
	// outlast a wake with silence. When false, words are written as fast as
	// they are produced.
	Realtime bool
}

// DefaultWriterConfig returns the default writer configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Wake:     10 * time.Millisecond,
		Realtime: true,
	}
}

// WriterTransport writes transport words as raw interleaved 16-bit
// little-endian stereo to an io.Writer. A token bucket refilled at the sample
// rate stands in for the hardware clock.
type WriterTransport struct {
	w      io.Writer
	config WriterConfig
	logger *log.Logger

	mu         sync.Mutex
	format     Format
	configured bool
	closed     bool
	stop       context.CancelFunc
	done       chan struct{}
	err        error

	gate    tickGate
	written atomic.Uint64
	silence atomic.Uint64
}

// NewWriterTransport creates a transport writing to w.
func NewWriterTransport(w io.Writer, config WriterConfig) *WriterTransport {
	if config.Wake <= 0 {
		config.Wake = DefaultWriterConfig().Wake
	}
	return &WriterTransport{
		w:      w,
		config: config,
		logger: log.Default().WithPrefix("writer"),
	}
}

// Configure sets the output format.
func (t *WriterTransport) Configure(f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClose
	}
	if t.done != nil {
		return fmt.Errorf("%w: configure while enabled", ErrReconfigure)
	}
	t.format = f
	t.configured = true
	return nil
}

// SetTickHandler registers the periodic callback.
func (t *WriterTransport) SetTickHandler(fn TickFunc) {
	t.gate.setHandler(fn)
}

// Enable starts the clock.
func (t *WriterTransport) Enable() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClose
	}
	if !t.configured {
		return ErrNotConfigured
	}
	if t.done != nil {
		return nil
	}

	words := int(time.Duration(t.format.SampleRate) * t.config.Wake / time.Second)
	if words < 1 {
		words = 1
	}
	limit := rate.Inf
	if t.config.Realtime {
		limit = rate.Limit(t.format.SampleRate)
	}
	limiter := rate.NewLimiter(limit, words)

	ctx, cancel := context.WithCancel(context.Background())
	t.stop = cancel
	t.done = make(chan struct{})
	t.err = nil
	t.gate.enable()

	go t.clock(ctx, limiter, words, t.done)
	return nil
}

func (t *WriterTransport) clock(ctx context.Context, limiter *rate.Limiter, words int, done chan struct{}) {
	defer close(done)

	chunk := make([]byte, words*4)
	for {
		if err := limiter.WaitN(ctx, words); err != nil {
			return
		}

		n := t.gate.fillWait(chunk, t.config.Wake)
		ended := t.gate.ended.Load() || !t.gate.enabled.Load()
		if n < len(chunk) && !ended && t.config.Realtime {
			// The refill did not arrive within a wake: the device would
			// have played silence for the rest of the chunk.
			clear(chunk[n:])
			t.silence.Add(uint64(len(chunk) - n))
			n = len(chunk)
		}

		if n > 0 {
			if _, err := t.w.Write(chunk[:n]); err != nil {
				err = fmt.Errorf("writing output: %w", err)
				t.mu.Lock()
				t.err = err
				t.mu.Unlock()
				t.gate.fail(err)
				return
			}
			t.written.Add(uint64(n))
		}

		if ended && n == 0 {
			return
		}
	}
}

// SetRefillNotify registers the channel the producer signals after each
// refill.
func (t *WriterTransport) SetRefillNotify(ready <-chan struct{}) {
	t.gate.setReady(ready)
}

// Faults reports an output write failure or a tick handler failure.
func (t *WriterTransport) Faults() <-chan error {
	return t.gate.faultChan()
}

// Disable stops the tick handler and the clock.
func (t *WriterTransport) Disable() error {
	t.gate.disable()

	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	err := t.err
	t.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	return err
}

// Drain waits until the clock has written every produced word.
func (t *WriterTransport) Drain(ctx context.Context) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// WriteWord queues a word ahead of the tick handler's output.
func (t *WriterTransport) WriteWord(w uint32) error {
	t.gate.mu.Lock()
	defer t.gate.mu.Unlock()
	return t.gate.fifo.WriteWord(w)
}

// Close stops the clock and closes the writer if it is an io.Closer.
func (t *WriterTransport) Close() error {
	err := t.Disable()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return err
	}
	t.closed = true
	t.logger.Debug("closed", "bytes", t.written.Load(), "silence", t.silence.Load())

	if c, ok := t.w.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Written returns the number of bytes written, silence included.
func (t *WriterTransport) Written() uint64 {
	return t.written.Load()
}

// Silence returns the number of padding bytes written during underruns.
func (t *WriterTransport) Silence() uint64 {
	return t.silence.Load()
}
