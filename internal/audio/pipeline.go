package audio

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgnsrekt/wavplay/internal/wav"
)

// DefaultBurst is the number of words written per tick, matching a FIFO
// threshold of four words.
const DefaultBurst = 4

// Pipeline errors.
var (
	ErrEndOfStream       = errors.New("end of stream")
	ErrRefillPending     = errors.New("refill pending")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// Signal is posted by the pipeline to the session loop.
type Signal int

const (
	// SignalRefill means the buffer is exhausted and must be refilled.
	SignalRefill Signal = iota + 1
	// SignalEndOfStream means the last word has been written.
	SignalEndOfStream
)

// String returns the string representation of the signal.
func (s Signal) String() string {
	switch s {
	case SignalRefill:
		return "refill"
	case SignalEndOfStream:
		return "end-of-stream"
	default:
		return "unknown"
	}
}

// WordWriter accepts transport words.
type WordWriter interface {
	WriteWord(w uint32) error
}

// PipelineStats tracks what the consumer side has done.
type PipelineStats struct {
	Words     uint64
	Ticks     uint64
	Underruns uint64
}

// Pipeline turns buffered sample frames into 32-bit transport words.
type Pipeline struct {
	desc       *wav.Descriptor
	buf        *StreamBuffer
	channels   int
	frameBytes uint32
	burst      int
	notify     func(Signal)

	pending atomic.Bool
	ended   atomic.Bool

	words     atomic.Uint64
	ticks     atomic.Uint64
	underruns atomic.Uint64
}

// CheckFormat reports whether the header describes something the pipeline
// can convert: 16-bit mono with 2 byte frames or 16-bit stereo with 4 byte
// frames.
func CheckFormat(h wav.Header) error {
	if h.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, h.BitsPerSample)
	}
	switch {
	case h.Channels == 1 && h.BlockAlign == 2:
		return nil
	case h.Channels == 2 && h.BlockAlign == 4:
		return nil
	default:
		return fmt.Errorf("%w: %d channels with block align %d", ErrUnsupportedFormat, h.Channels, h.BlockAlign)
	}
}

// NewPipeline couples a descriptor and a buffer. burst <= 0 selects
// DefaultBurst and a burst beyond MaxBurst is refused.
func NewPipeline(desc *wav.Descriptor, buf *StreamBuffer, burst int) (*Pipeline, error) {
	if err := CheckFormat(desc.Header); err != nil {
		return nil, err
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if burst > MaxBurst {
		return nil, fmt.Errorf("burst %d exceeds the transport FIFO of %d words", burst, MaxBurst)
	}
	return &Pipeline{
		desc:       desc,
		buf:        buf,
		channels:   int(desc.Channels),
		frameBytes: desc.FrameBytes(),
		burst:      burst,
		notify:     func(Signal) {},
	}, nil
}

// SetNotifier registers the function that receives signals. It is called
// from the tick context and must not block.
func (p *Pipeline) SetNotifier(fn func(Signal)) {
	if fn == nil {
		fn = func(Signal) {}
	}
	p.notify = fn
}

// NextWord produces one transport word.
func (p *Pipeline) NextWord() (uint32, error) {
	word, err := p.take()
	if err != nil {
		return 0, err
	}
	if err := p.commit(); err != nil {
		return 0, err
	}
	return word, nil
}

// take reads the next frame from the buffer without accounting for it.
func (p *Pipeline) take() (uint32, error) {
	if p.ended.Load() {
		return 0, ErrEndOfStream
	}
	if p.desc.Remaining() < p.frameBytes {
		p.finish()
		return 0, ErrEndOfStream
	}

	f, err := p.buf.TakeFrame(p.channels)
	if err != nil {
		p.requestRefill()
		return 0, ErrRefillPending
	}
	if p.pending.Load() {
		p.pending.Store(false)
	}
	return uint32(f.Left)<<16 | uint32(f.Right), nil
}

// commit counts a taken word against the declared data length.
func (p *Pipeline) commit() error {
	if _, ok := p.desc.Consume(p.frameBytes); !ok {
		p.finish()
		return ErrEndOfStream
	}
	p.words.Add(1)
	return nil
}

// Tick serves one periodic transport event by writing up to burst words to
// w. It returns ErrEndOfStream as soon as the last declared byte has been
// written; the caller must stop the transport at that point. A word that w
// refuses is not counted and the error is returned as is.
func (p *Pipeline) Tick(w WordWriter) error {
	p.ticks.Add(1)

	if p.pending.Load() {
		if p.buf.NeedsRefill() {
			p.underruns.Add(1)
			return nil
		}
		p.pending.Store(false)
	}

	for i := 0; i < p.burst; i++ {
		word, err := p.take()
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				return err
			}
			return nil
		}
		if err := w.WriteWord(word); err != nil {
			return err
		}
		if err := p.commit(); err != nil {
			return err
		}
		if p.desc.Remaining() == 0 {
			p.finish()
			return ErrEndOfStream
		}
		if p.buf.NeedsRefill() {
			p.requestRefill()
			return nil
		}
	}
	return nil
}

// Ended reports whether the pipeline has reached the end of the data.
func (p *Pipeline) Ended() bool {
	return p.ended.Load()
}

// RefillPending reports whether the pipeline is waiting on a refill.
func (p *Pipeline) RefillPending() bool {
	return p.pending.Load()
}

// Stats returns a snapshot of the consumer counters.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Words:     p.words.Load(),
		Ticks:     p.ticks.Load(),
		Underruns: p.underruns.Load(),
	}
}

func (p *Pipeline) requestRefill() {
	if p.pending.CompareAndSwap(false, true) {
		p.notify(SignalRefill)
	}
}

func (p *Pipeline) finish() {
	if p.ended.CompareAndSwap(false, true) {
		p.desc.Drain()
		p.notify(SignalEndOfStream)
	}
}
