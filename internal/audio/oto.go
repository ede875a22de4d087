package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// OtoConfig contains configuration for the oto transport.
type OtoConfig struct {
	// BufferSize is the device side buffer. It bounds how far the device runs
	// ahead of the tick handler and how long a drain takes.
	BufferSize time.Duration
	// UnderrunWait is how long a device pull waits for a refill before it
	// pads with silence. A pad is never longer than this either.
	UnderrunWait time.Duration
}

// DefaultOtoConfig returns the default oto configuration.
func DefaultOtoConfig() OtoConfig {
	return OtoConfig{
		BufferSize:   100 * time.Millisecond,
		UnderrunWait: 20 * time.Millisecond,
	}
}

// OtoTransport plays transport words through the system audio device using
// oto. The device pulls bytes; every four bytes it runs short of, it runs the
// tick handler.
//
// oto allows a single context per process, so the sample rate is fixed by
// the first Configure call.
type OtoTransport struct {
	config OtoConfig
	logger *log.Logger

	mu      sync.Mutex
	context *oto.Context
	player  *oto.Player
	format  Format
	closed  bool

	gate    tickGate
	silence atomic.Uint64 // bytes of silence handed to the device
}

// NewOtoTransport creates an oto transport. The device is opened on the
// first Configure.
func NewOtoTransport(config OtoConfig) *OtoTransport {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultOtoConfig().BufferSize
	}
	if config.UnderrunWait <= 0 {
		config.UnderrunWait = DefaultOtoConfig().UnderrunWait
	}
	config.UnderrunWait = min(config.UnderrunWait, config.BufferSize)
	return &OtoTransport{
		config: config,
		logger: log.Default().WithPrefix("oto"),
	}
}

// Configure opens the device at the format's sample rate, or checks that an
// already open device matches it.
func (t *OtoTransport) Configure(f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClose
	}
	if t.gate.enabled.Load() {
		return fmt.Errorf("%w: configure while enabled", ErrReconfigure)
	}

	if t.context != nil {
		if t.format.SampleRate != f.SampleRate {
			return fmt.Errorf("%w: open at %d Hz, asked for %d Hz", ErrReconfigure, t.format.SampleRate, f.SampleRate)
		}
		t.format = f
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   t.config.BufferSize,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	t.context = ctx
	t.player = ctx.NewPlayer(&otoSource{t: t})
	t.player.SetBufferSize(bytesFor(f.SampleRate, t.config.BufferSize))
	t.format = f
	t.logger.Debug("device opened", "rate", f.SampleRate, "mode", f.Mode, "buffer", t.config.BufferSize)
	return nil
}

// SetRefillNotify registers the channel the producer signals after each
// refill.
func (t *OtoTransport) SetRefillNotify(ready <-chan struct{}) {
	t.gate.setReady(ready)
}

// Faults reports a tick handler failure.
func (t *OtoTransport) Faults() <-chan error {
	return t.gate.faultChan()
}

// SetTickHandler registers the periodic callback.
func (t *OtoTransport) SetTickHandler(fn TickFunc) {
	t.gate.setHandler(fn)
}

// Enable starts the device pulling words.
func (t *OtoTransport) Enable() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClose
	}
	if t.player == nil {
		return ErrNotConfigured
	}
	t.gate.enable()
	t.player.Play()
	return nil
}

// Disable stops the tick handler and pauses the device.
func (t *OtoTransport) Disable() error {
	t.gate.disable()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.player != nil {
		t.player.Pause()
	}
	return nil
}

// Drain waits for words already handed to the device to be heard.
func (t *OtoTransport) Drain(ctx context.Context) error {
	timer := time.NewTimer(t.config.BufferSize)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WriteWord queues a word ahead of the tick handler's output.
func (t *OtoTransport) WriteWord(w uint32) error {
	t.gate.mu.Lock()
	defer t.gate.mu.Unlock()
	return t.gate.fifo.WriteWord(w)
}

// Close releases the player. The oto context itself cannot be closed and
// stays with the process.
func (t *OtoTransport) Close() error {
	t.gate.disable()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var err error
	if t.player != nil {
		t.player.Pause()
		err = t.player.Close()
		t.player = nil
	}
	t.logger.Debug("closed", "ticks", t.gate.ticks.Load(), "silence", t.silence.Load())
	return err
}

// Silence returns the number of padding bytes written during underruns.
func (t *OtoTransport) Silence() uint64 {
	return t.silence.Load()
}

// otoSource is the io.Reader oto pulls from.
type otoSource struct {
	t *OtoTransport
}

func (s *otoSource) Read(p []byte) (int, error) {
	t := s.t
	n := t.gate.fillWait(p[:len(p)&^3], t.config.UnderrunWait)
	if n > 0 {
		return n, nil
	}

	// Nothing arrived in time: keep the device fed with at most one wait's
	// worth of silence so the next pull comes back soon.
	pad := len(p)
	if limit := bytesFor(t.format.SampleRate, t.config.UnderrunWait); limit > 0 && limit < pad {
		pad = limit
	}
	clear(p[:pad])
	t.silence.Add(uint64(pad)) //nolint:gosec
	return pad, nil
}

// bytesFor returns the size in whole words of d of stereo 16-bit output.
func bytesFor(rate int, d time.Duration) int {
	return int(time.Duration(rate)*d/time.Second) * 4
}
