//go:build !portaudio

package audio

import "errors"

// ErrPortAudioDisabled is returned when the binary was built without the
// portaudio tag.
var ErrPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudioTransport is a placeholder when PortAudio is not compiled in.
type PortAudioTransport struct{}

// NewPortAudioTransport always fails without the portaudio build tag.
func NewPortAudioTransport(int) (*PortAudioTransport, error) {
	return nil, ErrPortAudioDisabled
}

// Configure implements Transport.
func (t *PortAudioTransport) Configure(Format) error { return ErrPortAudioDisabled }

// SetTickHandler implements Transport.
func (t *PortAudioTransport) SetTickHandler(TickFunc) {}

// Enable implements Transport.
func (t *PortAudioTransport) Enable() error { return ErrPortAudioDisabled }

// Disable implements Transport.
func (t *PortAudioTransport) Disable() error { return nil }

// WriteWord implements Transport.
func (t *PortAudioTransport) WriteWord(uint32) error { return ErrPortAudioDisabled }

// Close implements Transport.
func (t *PortAudioTransport) Close() error { return nil }
