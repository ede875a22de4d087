package audio_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dgnsrekt/wavplay/internal/audio"
	"github.com/dgnsrekt/wavplay/internal/wav"
)

type wordSink struct {
	words []uint32
}

func (s *wordSink) WriteWord(w uint32) error {
	s.words = append(s.words, w)
	return nil
}

func descriptor(t *testing.T, rate uint32, channels uint16, dataSize uint32) *wav.Descriptor {
	t.Helper()
	d, err := wav.Parse(wav.NewPCMHeader(rate, channels, dataSize).Bytes())
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	return d
}

func primed(t *testing.T, capacity int, data []byte) (*audio.StreamBuffer, *bytes.Reader) {
	t.Helper()
	buf := newBuffer(t, capacity, capacity)
	src := bytes.NewReader(data)
	if _, err := buf.Refill(src); err != nil {
		t.Fatalf("Refill() unexpected error: %v", err)
	}
	return buf, src
}

// TestPipelineMinimalMono tests the two-sample mono file end to end.
func TestPipelineMinimalMono(t *testing.T) {
	d := descriptor(t, 8000, 1, 4)
	buf, _ := primed(t, audio.DefaultBufferCapacity, units(0x1234, 0xABCD))

	p, err := audio.NewPipeline(d, buf, audio.DefaultBurst)
	if err != nil {
		t.Fatalf("NewPipeline() unexpected error: %v", err)
	}

	var signals []audio.Signal
	p.SetNotifier(func(s audio.Signal) { signals = append(signals, s) })

	sink := &wordSink{}
	if err := p.Tick(sink); !errors.Is(err, audio.ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}

	want := []uint32{0x12341234, 0xABCDABCD}
	if len(sink.words) != len(want) {
		t.Fatalf("expected %d words, got %d: %#x", len(want), len(sink.words), sink.words)
	}
	for i := range want {
		if sink.words[i] != want[i] {
			t.Errorf("word %d = %#x, want %#x", i, sink.words[i], want[i])
		}
	}
	if d.Remaining() != 0 {
		t.Errorf("expected remaining 0, got %d", d.Remaining())
	}
	if !p.Ended() {
		t.Error("pipeline should report ended")
	}
	if len(signals) != 1 || signals[0] != audio.SignalEndOfStream {
		t.Errorf("expected one end-of-stream signal, got %v", signals)
	}

	// Nothing more is ever produced.
	if _, err := p.NextWord(); !errors.Is(err, audio.ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream after end, got %v", err)
	}
	if err := p.Tick(sink); !errors.Is(err, audio.ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream after end, got %v", err)
	}
	if len(sink.words) != 2 {
		t.Errorf("extra words written after end: %d", len(sink.words))
	}
}

// TestPipelineStereoPacking tests left-high right-low packing.
func TestPipelineStereoPacking(t *testing.T) {
	d := descriptor(t, 44100, 2, 8)
	buf, _ := primed(t, 8, units(0x1111, 0x2222, 0x3333, 0x4444))

	p, err := audio.NewPipeline(d, buf, audio.DefaultBurst)
	if err != nil {
		t.Fatal(err)
	}

	w, err := p.NextWord()
	if err != nil {
		t.Fatal(err)
	}
	if w != 0x11112222 {
		t.Errorf("expected 0x11112222, got %#x", w)
	}
	if d.Remaining() != 4 {
		t.Errorf("expected remaining 4, got %d", d.Remaining())
	}

	w, err = p.NextWord()
	if err != nil {
		t.Fatal(err)
	}
	if w != 0x33334444 {
		t.Errorf("expected 0x33334444, got %#x", w)
	}
	if d.Remaining() != 0 {
		t.Errorf("expected remaining 0, got %d", d.Remaining())
	}
	if _, err := p.NextWord(); !errors.Is(err, audio.ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream, got %v", err)
	}
}

// TestPipelineRemainingAccounting tests that remaining drops by exactly one
// frame per word and lands on zero.
func TestPipelineRemainingAccounting(t *testing.T) {
	tests := []struct {
		name     string
		channels uint16
		frames   int
	}{
		{name: "mono", channels: 1, frames: 300},
		{name: "stereo", channels: 2, frames: 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frameBytes := uint32(tt.channels) * 2
			dataSize := uint32(tt.frames) * frameBytes
			d := descriptor(t, 8000, tt.channels, dataSize)

			const capacity = 64
			buf := newBuffer(t, capacity, capacity)
			src := bytes.NewReader(ramp(tt.frames*int(tt.channels), 0))

			p, err := audio.NewPipeline(d, buf, audio.DefaultBurst)
			if err != nil {
				t.Fatal(err)
			}

			words := 0
			prev := d.Remaining()
			for {
				if buf.NeedsRefill() && !p.Ended() {
					if _, err := buf.Refill(src); err != nil {
						t.Fatal(err)
					}
				}
				_, err := p.NextWord()
				if errors.Is(err, audio.ErrEndOfStream) {
					break
				}
				if errors.Is(err, audio.ErrRefillPending) {
					continue
				}
				if err != nil {
					t.Fatal(err)
				}
				words++
				if prev-d.Remaining() != frameBytes {
					t.Fatalf("remaining dropped by %d, want %d", prev-d.Remaining(), frameBytes)
				}
				prev = d.Remaining()
			}

			if words != tt.frames {
				t.Errorf("expected %d words, got %d", tt.frames, words)
			}
			if d.Remaining() != 0 {
				t.Errorf("expected remaining 0, got %d", d.Remaining())
			}
		})
	}
}

// TestPipelineShortReadBoundary tests a file whose data ends halfway
// through a refill block.
func TestPipelineShortReadBoundary(t *testing.T) {
	const capacity = 16
	// One full block, then half a block.
	total := capacity + capacity/2
	d := descriptor(t, 8000, 1, uint32(total*2))

	buf := newBuffer(t, capacity, capacity)
	src := bytes.NewReader(ramp(total, 1))

	p, err := audio.NewPipeline(d, buf, audio.DefaultBurst)
	if err != nil {
		t.Fatal(err)
	}

	var shortUnits int
	buf.OnShortRead(func(n int) { shortUnits = n })

	sink := &wordSink{}
	for i := 0; i < 100; i++ {
		if buf.NeedsRefill() {
			if _, err := buf.Refill(src); err != nil {
				t.Fatal(err)
			}
		}
		if err := p.Tick(sink); errors.Is(err, audio.ErrEndOfStream) {
			break
		}
	}

	if shortUnits != capacity/2 {
		t.Errorf("expected short read of %d units, got %d", capacity/2, shortUnits)
	}
	if len(sink.words) != total {
		t.Fatalf("expected %d words, got %d", total, len(sink.words))
	}
	last := sink.words[len(sink.words)-1]
	if want := uint32(total)<<16 | uint32(total); last != want {
		t.Errorf("last word %#x, want %#x", last, want)
	}
	if buf.Cursor() != capacity/2 {
		t.Errorf("consumer read past the short boundary: cursor %d", buf.Cursor())
	}
	if d.Remaining() != 0 {
		t.Errorf("expected remaining 0, got %d", d.Remaining())
	}
}

// TestPipelineBurstStopsAtRefill tests that a burst ends when the buffer
// runs dry and that a starved tick counts an underrun.
func TestPipelineBurstStopsAtRefill(t *testing.T) {
	d := descriptor(t, 8000, 1, 100)
	buf, src := primed(t, 6, ramp(50, 0))

	p, err := audio.NewPipeline(d, buf, 4)
	if err != nil {
		t.Fatal(err)
	}

	var signals []audio.Signal
	p.SetNotifier(func(s audio.Signal) { signals = append(signals, s) })

	sink := &wordSink{}
	if err := p.Tick(sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.words) != 4 {
		t.Fatalf("expected 4 words, got %d", len(sink.words))
	}

	// Two units left: the burst stops after them.
	if err := p.Tick(sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.words) != 6 {
		t.Fatalf("expected burst to stop at 6 words, got %d", len(sink.words))
	}
	if !p.RefillPending() {
		t.Error("expected refill pending")
	}
	if len(signals) != 1 || signals[0] != audio.SignalRefill {
		t.Errorf("expected one refill signal, got %v", signals)
	}

	// No refill yet: the tick writes nothing.
	if err := p.Tick(sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.words) != 6 {
		t.Errorf("starved tick wrote words: %d", len(sink.words))
	}
	if got := p.Stats().Underruns; got != 1 {
		t.Errorf("expected 1 underrun, got %d", got)
	}

	if _, err := buf.Refill(src); err != nil {
		t.Fatal(err)
	}
	if err := p.Tick(sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.words) != 10 {
		t.Errorf("expected 10 words after refill, got %d", len(sink.words))
	}
	if p.RefillPending() {
		t.Error("refill should no longer be pending")
	}
}

// TestPipelineTrailingPartialFrame tests that a data length that is not a
// whole number of frames ends cleanly.
func TestPipelineTrailingPartialFrame(t *testing.T) {
	d := descriptor(t, 8000, 2, 6)
	buf, _ := primed(t, 8, units(1, 2, 3, 4))

	p, err := audio.NewPipeline(d, buf, audio.DefaultBurst)
	if err != nil {
		t.Fatal(err)
	}

	sink := &wordSink{}
	err = p.Tick(sink)
	if !errors.Is(err, audio.ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
	if len(sink.words) != 1 {
		t.Errorf("expected 1 word, got %d", len(sink.words))
	}
	if d.Remaining() != 0 {
		t.Errorf("expected remaining 0, got %d", d.Remaining())
	}
}

// TestCheckFormat tests the accepted channel and alignment combinations.
func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name      string
		channels  uint16
		align     uint16
		bits      uint16
		expectErr bool
	}{
		{name: "mono 16", channels: 1, align: 2, bits: 16},
		{name: "stereo 16", channels: 2, align: 4, bits: 16},
		{name: "stereo odd align", channels: 2, align: 6, bits: 16, expectErr: true},
		{name: "mono 8 bit", channels: 1, align: 1, bits: 8, expectErr: true},
		{name: "three channels", channels: 3, align: 6, bits: 16, expectErr: true},
		{name: "mono 24 bit", channels: 1, align: 3, bits: 24, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := wav.NewPCMHeader(8000, tt.channels, 0)
			h.BlockAlign = tt.align
			h.BitsPerSample = tt.bits

			err := audio.CheckFormat(h)
			if tt.expectErr && !errors.Is(err, audio.ErrUnsupportedFormat) {
				t.Errorf("expected ErrUnsupportedFormat, got %v", err)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// limitedSink accepts a fixed number of words and refuses the rest.
type limitedSink struct {
	wordSink
	limit int
}

func (s *limitedSink) WriteWord(w uint32) error {
	if len(s.words) == s.limit {
		return audio.ErrFIFOFull
	}
	return s.wordSink.WriteWord(w)
}

// TestPipelineTickRefusedWord tests that a word the sink refuses is not
// counted against the data length.
func TestPipelineTickRefusedWord(t *testing.T) {
	d := descriptor(t, 8000, 1, 64)
	buf, _ := primed(t, 32, ramp(32, 1))

	p, err := audio.NewPipeline(d, buf, 8)
	if err != nil {
		t.Fatalf("NewPipeline() unexpected error: %v", err)
	}

	sink := &limitedSink{limit: 5}
	if err := p.Tick(sink); !errors.Is(err, audio.ErrFIFOFull) {
		t.Fatalf("expected ErrFIFOFull, got %v", err)
	}
	if got := len(sink.words); got != 5 {
		t.Errorf("expected 5 words written, got %d", got)
	}
	if got := p.Stats().Words; got != 5 {
		t.Errorf("expected 5 words counted, got %d", got)
	}
	if got := d.Remaining(); got != 64-5*2 {
		t.Errorf("expected remaining %d, got %d", 64-5*2, got)
	}
	if p.Ended() {
		t.Error("a refused word must not end the stream")
	}
}

// TestNewPipelineBurst tests the burst bounds.
func TestNewPipelineBurst(t *testing.T) {
	tests := []struct {
		name      string
		burst     int
		expectErr bool
	}{
		{name: "default", burst: 0},
		{name: "max", burst: audio.MaxBurst},
		{name: "over max", burst: audio.MaxBurst + 1, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := newBuffer(t, 16, 16)
			_, err := audio.NewPipeline(descriptor(t, 8000, 1, 4), buf, tt.burst)
			if tt.expectErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
