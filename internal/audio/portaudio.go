//go:build portaudio

package audio

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

// PortAudioTransport drives the tick handler from a PortAudio stream
// callback, which runs on the audio thread at the device's period.
type PortAudioTransport struct {
	framesPerBuffer int
	logger          *log.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	format  Format
	scratch []byte
	closed  bool

	gate tickGate
}

// NewPortAudioTransport creates a PortAudio transport.
func NewPortAudioTransport(framesPerBuffer int) (*PortAudioTransport, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 256
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &PortAudioTransport{
		framesPerBuffer: framesPerBuffer,
		scratch:         make([]byte, framesPerBuffer*4),
		logger:          log.Default().WithPrefix("portaudio"),
	}, nil
}

// Configure opens a stereo output stream at the format's sample rate.
func (t *PortAudioTransport) Configure(f Format) error {
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

	if t.stream != nil {
		if t.format.SampleRate == f.SampleRate {
			t.format = f
			return nil
		}
		if err := t.stream.Close(); err != nil {
			return fmt.Errorf("failed to close stream: %w", err)
		}
		t.stream = nil
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(f.SampleRate), t.framesPerBuffer, t.callback)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	t.stream = stream
	t.format = f
	t.logger.Debug("stream opened", "rate", f.SampleRate, "frames", t.framesPerBuffer)
	return nil
}

func (t *PortAudioTransport) callback(out []int16) {
	need := len(out) * 2
	if need > len(t.scratch) {
		clear(out)
		return
	}

	n := t.gate.fill(t.scratch[:need])
	for i := 0; i < n/2; i++ {
		out[i] = int16(uint16(t.scratch[2*i]) | uint16(t.scratch[2*i+1])<<8) //nolint:gosec
	}
	clear(out[n/2:])
}

// Faults reports a tick handler failure.
func (t *PortAudioTransport) Faults() <-chan error {
	return t.gate.faultChan()
}

// SetTickHandler registers the periodic callback.
func (t *PortAudioTransport) SetTickHandler(fn TickFunc) {
	t.gate.setHandler(fn)
}

// Enable starts the stream.
func (t *PortAudioTransport) Enable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stream == nil {
		return ErrNotConfigured
	}
	t.gate.enable()
	if err := t.stream.Start(); err != nil {
		t.gate.disable()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

// Disable stops the tick handler and the stream.
func (t *PortAudioTransport) Disable() error {
	t.gate.disable()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stream == nil {
		return nil
	}
	return t.stream.Stop()
}

// WriteWord queues a word ahead of the tick handler's output.
func (t *PortAudioTransport) WriteWord(w uint32) error {
	t.gate.mu.Lock()
	defer t.gate.mu.Unlock()
	return t.gate.fifo.WriteWord(w)
}

// Close releases the stream and terminates PortAudio.
func (t *PortAudioTransport) Close() error {
	t.gate.disable()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	if t.stream != nil {
		_ = t.stream.Stop()
		if err := t.stream.Close(); err != nil {
			return err
		}
		t.stream = nil
	}
	return portaudio.Terminate()
}
