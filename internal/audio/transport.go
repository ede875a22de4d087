package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// WordWidth is the width in bits of a transport word.
const WordWidth = 32

// Transport errors.
var (
	ErrNotConfigured  = errors.New("transport not configured")
	ErrReconfigure    = errors.New("transport cannot change sample rate once opened")
	ErrFIFOFull       = errors.New("transport FIFO full")
	ErrTransportClose = errors.New("transport is closed")
	ErrInvalidFormat  = errors.New("invalid transport format")
)

// ChannelMode tells the transport how the two halves of a word are laid out.
type ChannelMode int

const (
	// ChannelMono words carry the same sample in both halves.
	ChannelMono ChannelMode = iota
	// ChannelStereo words carry left in the high half, right in the low half.
	ChannelStereo
)

// String returns the string representation of the channel mode.
func (m ChannelMode) String() string {
	switch m {
	case ChannelMono:
		return "mono"
	case ChannelStereo:
		return "stereo"
	default:
		return "unknown"
	}
}

// Format is the transport configuration for a session.
type Format struct {
	SampleRate int
	WordWidth  int
	Mode       ChannelMode
}

// Validate checks the format.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.WordWidth != WordWidth {
		return fmt.Errorf("%w: word width must be %d, got %d", ErrInvalidFormat, WordWidth, f.WordWidth)
	}
	if f.Mode != ChannelMono && f.Mode != ChannelStereo {
		return fmt.Errorf("%w: unknown channel mode %d", ErrInvalidFormat, f.Mode)
	}
	return nil
}

// TickFunc serves one periodic transport event. It writes words to w and
// returns ErrEndOfStream when no more words will follow.
type TickFunc func(w WordWriter) error

// Transport is the audio output collaborator. It owns the clock that drives
// the tick handler.
type Transport interface {
	// Configure sets the output format. It must be called before Enable and
	// is never called while enabled.
	Configure(f Format) error

	// SetTickHandler registers the periodic callback.
	SetTickHandler(fn TickFunc)

	// Enable starts calling the tick handler.
	Enable() error

	// Disable stops calling the tick handler. When it returns no tick is
	// running and none will start.
	Disable() error

	// WriteWord queues a word for output.
	WriteWord(w uint32) error

	// Close releases the output device.
	Close() error
}

// Faulter is implemented by transports that can stop on their own because
// the output failed. Each failure is delivered once.
type Faulter interface {
	Faults() <-chan error
}

// RefillWaiter is implemented by transports whose device pulls samples on
// its own goroutine. A pull that finds the buffer empty waits for a send on
// ready before it pads with silence.
type RefillWaiter interface {
	SetRefillNotify(ready <-chan struct{})
}

// Drainer is implemented by transports that hold words after the tick
// handler has produced them. Drain returns once those words have been
// played.
type Drainer interface {
	Drain(ctx context.Context) error
}

// tickGate is the shared real-time plumbing of every transport: an enabled
// flag, a handler, a lock the clock only ever try-locks, and a small FIFO
// between the handler and the device.
type tickGate struct {
	mu      sync.Mutex
	enabled atomic.Bool
	handler TickFunc
	fifo    wordFIFO

	ticks   atomic.Uint64
	skipped atomic.Uint64
	ended   atomic.Bool

	faultsOnce sync.Once
	faults     chan error
	ready      atomic.Pointer[<-chan struct{}]
}

func (g *tickGate) setHandler(fn TickFunc) {
	g.mu.Lock()
	g.handler = fn
	g.mu.Unlock()
}

func (g *tickGate) enable() {
	g.mu.Lock()
	faults := g.faultChan()
	select {
	case <-faults:
	default:
	}
	g.fifo.reset()
	g.ended.Store(false)
	g.enabled.Store(true)
	g.mu.Unlock()
}

// disable waits for an in-flight tick.
func (g *tickGate) disable() {
	g.mu.Lock()
	g.enabled.Store(false)
	g.mu.Unlock()
}

func (g *tickGate) faultChan() chan error {
	g.faultsOnce.Do(func() { g.faults = make(chan error, 1) })
	return g.faults
}

// fail stops the clock and reports err to whoever watches Faults. Only the
// first failure of a session is kept.
func (g *tickGate) fail(err error) {
	g.enabled.Store(false)
	g.ended.Store(true)
	select {
	case g.faultChan() <- err:
	default:
	}
}

func (g *tickGate) setReady(ready <-chan struct{}) {
	g.ready.Store(&ready)
}

// tick runs the handler once unless the gate is held by the control side.
// It reports false when no tick ran.
func (g *tickGate) tick() bool {
	if !g.enabled.Load() {
		return false
	}
	if !g.mu.TryLock() {
		g.skipped.Add(1)
		return false
	}
	defer g.mu.Unlock()

	return g.runLocked()
}

func (g *tickGate) runLocked() bool {
	if !g.enabled.Load() || g.handler == nil {
		return false
	}
	g.ticks.Add(1)
	err := g.handler(&g.fifo)
	switch {
	case err == nil:
	case errors.Is(err, ErrEndOfStream):
		g.enabled.Store(false)
		g.ended.Store(true)
	default:
		g.fail(fmt.Errorf("tick handler: %w", err))
	}
	return true
}

// fill writes whole encoded words into p, running ticks whenever the FIFO
// runs dry. It returns the number of bytes written, which is short when the
// handler had nothing to give (underrun or end of stream).
func (g *tickGate) fill(p []byte) int {
	if !g.mu.TryLock() {
		g.skipped.Add(1)
		return 0
	}
	defer g.mu.Unlock()

	n := 0
	for n+4 <= len(p) {
		w, ok := g.fifo.pop()
		if !ok {
			if !g.runLocked() || g.fifo.len() == 0 {
				break
			}
			continue
		}
		putWord(p[n:], w)
		n += 4
	}
	return n
}

// fillWait is fill for devices that pull on their own goroutine. When the
// handler runs dry it waits up to wait for the producer to publish a refill
// and tries again. It returns early once the stream has ended or the gate is
// disabled.
func (g *tickGate) fillWait(p []byte, wait time.Duration) int {
	var ready <-chan struct{}
	if r := g.ready.Load(); r != nil {
		ready = *r
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	n := 0
	for {
		if ready != nil {
			select {
			case <-ready:
			default:
			}
		}
		n += g.fill(p[n:])
		if n+4 > len(p) || g.ended.Load() || !g.enabled.Load() || wait <= 0 {
			return n
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		}
		select {
		case <-ready:
		case <-timer.C:
			return n
		}
	}
}

// drain hands every queued word to fn.
func (g *tickGate) drain(fn func(uint32)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		w, ok := g.fifo.pop()
		if !ok {
			return
		}
		fn(w)
	}
}

// fifoSize must hold at least one burst.
const fifoSize = 64

// MaxBurst is the largest number of words a tick may write.
const MaxBurst = fifoSize

// wordFIFO is a fixed ring of words. It is only touched with the gate held.
type wordFIFO struct {
	words [fifoSize]uint32
	head  int
	n     int
}

func (q *wordFIFO) WriteWord(w uint32) error {
	if q.n == fifoSize {
		return ErrFIFOFull
	}
	q.words[(q.head+q.n)%fifoSize] = w
	q.n++
	return nil
}

func (q *wordFIFO) pop() (uint32, bool) {
	if q.n == 0 {
		return 0, false
	}
	w := q.words[q.head]
	q.head = (q.head + 1) % fifoSize
	q.n--
	return w, true
}

func (q *wordFIFO) len() int {
	return q.n
}

func (q *wordFIFO) reset() {
	q.head = 0
	q.n = 0
}

// putWord encodes a word as two little-endian signed 16-bit samples, left
// first.
func putWord(p []byte, w uint32) {
	p[0] = byte(w >> 16)
	p[1] = byte(w >> 24)
	p[2] = byte(w)
	p[3] = byte(w >> 8)
}
