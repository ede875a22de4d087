// Package playback runs WAV playback sessions: it opens a file, validates
// its header, configures the output transport and feeds the stream buffer
// until the data runs out or a cancellation arrives.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/wavplay/internal/audio"
	"github.com/dgnsrekt/wavplay/internal/storage"
	"github.com/dgnsrekt/wavplay/internal/wav"
)

// SupportedSampleRates are the rates the output codec can be clocked at.
var SupportedSampleRates = []int{8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000}

// Config holds controller configuration.
type Config struct {
	Buffer           audio.BufferConfig
	Burst            int           // words per tick
	MaxRefillLatency time.Duration // worst case storage read the buffer must cover
	SampleRates      []int         // accepted sample rates, empty accepts any
	PollInterval     time.Duration // producer loop wake up when no event arrives
	DrainTimeout     time.Duration // upper bound on waiting for queued words
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Buffer:           audio.DefaultBufferConfig(),
		Burst:            audio.DefaultBurst,
		MaxRefillLatency: 5 * time.Millisecond,
		SampleRates:      slices.Clone(SupportedSampleRates),
		PollInterval:     2 * time.Millisecond,
		DrainTimeout:     time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Buffer.Validate(); err != nil {
		return err
	}
	if c.Burst <= 0 {
		return fmt.Errorf("burst must be positive, got %d", c.Burst)
	}
	if c.Burst > audio.MaxBurst {
		return fmt.Errorf("burst must be at most %d, got %d", audio.MaxBurst, c.Burst)
	}
	if c.MaxRefillLatency < 0 {
		return fmt.Errorf("max refill latency cannot be negative, got %v", c.MaxRefillLatency)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.DrainTimeout < 0 {
		return fmt.Errorf("drain timeout cannot be negative, got %v", c.DrainTimeout)
	}
	for _, r := range c.SampleRates {
		if r <= 0 {
			return fmt.Errorf("sample rate must be positive, got %d", r)
		}
	}
	return nil
}

// Headroom returns how long one full buffer lasts at the given geometry.
func (c Config) Headroom(channels, sampleRate int) time.Duration {
	if channels <= 0 || sampleRate <= 0 {
		return 0
	}
	frames := c.Buffer.Capacity / channels
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// Controller runs one playback session at a time against a storage and a
// transport.
type Controller struct {
	storage   storage.Storage
	transport audio.Transport
	cancel    *CancelSource
	config    Config
	logger    *log.Logger

	active atomic.Bool

	mu            sync.RWMutex
	current       *Session
	onStateChange func(s *Session, from, to StateType)
}

// NewController creates a controller.
func NewController(store storage.Storage, transport audio.Transport, cancel *CancelSource, config Config) (*Controller, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid playback config: %w", err)
	}
	if cancel == nil {
		cancel = NewCancelSource(0)
	}
	return &Controller{
		storage:   store,
		transport: transport,
		cancel:    cancel,
		config:    config,
		logger:    log.Default().WithPrefix("playback"),
	}, nil
}

// Cancel returns the controller's cancellation source.
func (c *Controller) Cancel() *CancelSource {
	return c.cancel
}

// Current returns the most recent session, or nil.
func (c *Controller) Current() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Active reports whether a session is open.
func (c *Controller) Active() bool {
	return c.active.Load()
}

// OnStateChange registers a callback run on every session transition.
func (c *Controller) OnStateChange(fn func(s *Session, from, to StateType)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// Close releases the transport. The controller cannot be used afterwards.
func (c *Controller) Close() error {
	if c.active.Load() {
		return NewPlaybackError(ErrSessionActive, "controller", "close").WithSeverity(SeverityWarning)
	}
	return c.transport.Close()
}

// Play runs a session for path and blocks until it is closed or failed.
// Cancelling ctx stops playback like a cancellation request and returns
// ctx.Err().
func (c *Controller) Play(ctx context.Context, path string) (*Session, error) {
	if !c.active.CompareAndSwap(false, true) {
		return nil, NewPlaybackError(ErrSessionActive, "controller", "play").
			WithSeverity(SeverityWarning).
			WithContext("path", path)
	}
	defer c.active.Store(false)

	s := newSession(path)
	c.mu.Lock()
	c.current = s
	notify := c.onStateChange
	c.mu.Unlock()

	s.machine.OnEnter(StateStreaming, func() {
		if h, ok := s.Header(); ok {
			c.logger.Info("streaming", "id", s.ID, "rate", h.SampleRate, "channels", h.Channels)
		}
	})
	s.machine.OnChange(func(from, to StateType) {
		c.logger.Debug("session state", "id", s.ID, "from", from, "to", to)
		if notify != nil {
			notify(s, from, to)
		}
	})

	c.logger.Info("starting session", "id", s.ID, "path", path)
	err := c.run(ctx, s)
	c.release(s)

	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.machine.Transition(StateFailed)
		c.logger.Error("session failed", "id", s.ID, "err", err)
		return s, err
	}

	s.machine.Transition(StateClosed)
	stats := s.Stats()
	c.logger.Info("session closed", "id", s.ID, "stats", stats)
	if err := stats.Err(); err != nil {
		c.logger.Warn("output was interrupted", "id", s.ID, "err", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return s, ctxErr
	}
	return s, nil
}

// run walks the session from Opening to Draining.
func (c *Controller) run(ctx context.Context, s *Session) error {
	if err := c.advance(s, StateOpening); err != nil {
		return err
	}
	h, err := c.storage.Open(s.Path)
	if err != nil {
		return c.fail(s, "open", classify(err))
	}
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()

	window := make([]byte, wav.HeaderSize)
	n, err := io.ReadFull(h, window)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return c.fail(s, "read header", classify(err))
	}
	desc, err := wav.Parse(window[:n])
	if err != nil {
		return c.fail(s, "parse header", classify(err))
	}
	s.mu.Lock()
	s.desc = desc
	s.mu.Unlock()
	if err := c.advance(s, StateHeaderValidated); err != nil {
		return err
	}
	c.logger.Debug("header validated",
		"id", s.ID,
		"rate", desc.SampleRate,
		"channels", desc.Channels,
		"bits", desc.BitsPerSample,
		"data", desc.DataSize)

	if err := c.advance(s, StateConfiguring); err != nil {
		return err
	}
	if err := c.config.CheckFormat(desc.Header); err != nil {
		return c.fail(s, "check format", err)
	}
	buf, err := audio.NewStreamBuffer(c.config.Buffer)
	if err != nil {
		return c.fail(s, "allocate buffer", err)
	}
	// A short read means the file ends inside this block; nothing past what
	// was read can be played whatever the header declares.
	buf.OnShortRead(func(units int) {
		desc.Truncate(uint32(units) * 2) //nolint:gosec
	})
	pipeline, err := audio.NewPipeline(desc, buf, c.config.Burst)
	if err != nil {
		return c.fail(s, "create pipeline", classify(err))
	}
	mode := audio.ChannelMono
	if desc.Channels == 2 {
		mode = audio.ChannelStereo
	}
	format := audio.Format{SampleRate: int(desc.SampleRate), WordWidth: audio.WordWidth, Mode: mode}
	if err := c.transport.Configure(format); err != nil {
		return c.fail(s, "configure transport", classify(err))
	}
	s.mu.Lock()
	s.buf = buf
	s.pipeline = pipeline
	s.mu.Unlock()

	if _, err := h.Seek(wav.HeaderSize, io.SeekStart); err != nil {
		return c.fail(s, "seek to data", classify(err))
	}
	events := make(chan audio.Signal, 4)
	pipeline.SetNotifier(func(sig audio.Signal) {
		select {
		case events <- sig:
		default:
		}
	})
	if _, err := buf.Refill(h); err != nil {
		return c.fail(s, "prime buffer", classify(err))
	}
	c.transport.SetTickHandler(pipeline.Tick)
	if w, ok := c.transport.(audio.RefillWaiter); ok {
		w.SetRefillNotify(buf.Ready())
	}

	if err := c.advance(s, StateStreaming); err != nil {
		return err
	}
	if err := c.transport.Enable(); err != nil {
		return c.fail(s, "enable transport", classify(err))
	}
	s.mu.Lock()
	s.enabled = true
	s.started = time.Now()
	s.mu.Unlock()

	return c.loop(ctx, s, h, buf, pipeline, events)
}

// loop is the producer side of the buffer. It is the only caller of Refill
// and Prefetch while the transport is enabled.
func (c *Controller) loop(ctx context.Context, s *Session, h storage.Handle, buf *audio.StreamBuffer, p *audio.Pipeline, events <-chan audio.Signal) error {
	poll := time.NewTicker(c.config.PollInterval)
	defer poll.Stop()

	var faults <-chan error
	if f, ok := c.transport.(audio.Faulter); ok {
		faults = f.Faults()
	}

	for {
		if c.cancel.Requested() || ctx.Err() != nil {
			s.mu.Lock()
			s.canceled = true
			s.mu.Unlock()
			s.machine.Transition(StateDraining)
			c.logger.Info("playback cancelled", "id", s.ID, "remaining", s.Remaining())
			c.disable(s)
			return nil
		}

		if p.Ended() {
			s.machine.Transition(StateDraining)
			c.drain(ctx, s)
			c.disable(s)
			select {
			case err := <-faults:
				return c.fail(s, "write output", classify(err))
			default:
			}
			return nil
		}

		if buf.NeedsRefill() {
			if _, err := buf.Refill(h); err != nil {
				c.disable(s)
				return c.fail(s, "refill", classify(err))
			}
			continue
		}
		if buf.ShouldPrefetch() {
			if err := buf.Prefetch(h); err != nil {
				c.disable(s)
				return c.fail(s, "prefetch", classify(err))
			}
		}

		select {
		case err := <-faults:
			c.disable(s)
			return c.fail(s, "write output", classify(err))
		case <-ctx.Done():
		case <-c.cancel.C():
		case sig := <-events:
			if sig == audio.SignalEndOfStream {
				c.logger.Debug("end of stream", "id", s.ID)
			}
		case <-poll.C:
		}
	}
}

// CheckFormat validates a header against what the transport and a buffer
// of this geometry can sustain.
func (c Config) CheckFormat(h wav.Header) error {
	if h.AudioFormat != wav.FormatPCM {
		return fmt.Errorf("%w: audio format %d is not linear PCM", ErrUnsupportedFormat, h.AudioFormat)
	}
	if err := audio.CheckFormat(h); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	rate := int(h.SampleRate)
	if len(c.SampleRates) > 0 && !slices.Contains(c.SampleRates, rate) {
		return fmt.Errorf("%w: sample rate %d Hz", ErrUnsupportedFormat, rate)
	}
	if headroom := c.Headroom(int(h.Channels), rate); headroom < c.MaxRefillLatency {
		return fmt.Errorf("%w: %d units last %v at %d Hz, need %v",
			ErrBufferTooSmall, c.Buffer.Capacity, headroom, rate, c.MaxRefillLatency)
	}
	return nil
}

// drain waits for words the transport still holds.
func (c *Controller) drain(ctx context.Context, s *Session) {
	d, ok := c.transport.(audio.Drainer)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.DrainTimeout)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		c.logger.Warn("drain did not complete", "id", s.ID, "err", err)
	}
}

// disable stops the consumer. When it returns no tick touches the buffer.
func (c *Controller) disable(s *Session) {
	s.mu.Lock()
	enabled := s.enabled
	s.enabled = false
	if enabled {
		s.stopped = time.Now()
	}
	s.mu.Unlock()
	if !enabled {
		return
	}
	if err := c.transport.Disable(); err != nil {
		c.logger.Warn("failed to disable transport", "id", s.ID, "err", err)
	}
}

// release closes the file and clears the cancellation flag for the next
// session.
func (c *Controller) release(s *Session) {
	c.disable(s)

	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()
	if h != nil {
		if err := h.Close(); err != nil {
			c.logger.Warn("failed to close file", "id", s.ID, "path", s.Path, "err", err)
		}
	}
	c.cancel.Clear()
}

func (c *Controller) advance(s *Session, to StateType) error {
	if from := s.State(); !s.machine.Transition(to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidState, from, to)
	}
	return nil
}

func (c *Controller) fail(s *Session, action string, err error) error {
	return NewPlaybackError(err, "session", action).
		WithContext("id", s.ID).
		WithContext("path", s.Path).
		WithState(s.State())
}
