// Package tone writes sine test tones as 16-bit PCM WAV files.
package tone

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/dgnsrekt/wavplay/internal/storage"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// BitDepth is the only depth the player accepts.
const BitDepth = 16

// Params describes a tone.
type Params struct {
	SampleRate int
	Channels   int
	Duration   time.Duration
	Frequency  float64 // Hz
	Amplitude  int     // peak, at most math.MaxInt16
}

// DefaultParams returns the bring-up tone: half a second of C5 at full
// scale, at the lowest rate the codec table accepts.
func DefaultParams() Params {
	return Params{
		SampleRate: 8000,
		Channels:   1,
		Duration:   500 * time.Millisecond,
		Frequency:  523,
		Amplitude:  math.MaxInt16,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	}
	if p.Channels != 1 && p.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", p.Channels)
	}
	if p.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", p.Duration)
	}
	if p.Frequency <= 0 || p.Frequency >= float64(p.SampleRate)/2 {
		return fmt.Errorf("frequency must be between 0 and %d Hz, got %g", p.SampleRate/2, p.Frequency)
	}
	if p.Amplitude < 0 || p.Amplitude > math.MaxInt16 {
		return fmt.Errorf("amplitude must be between 0 and %d, got %d", math.MaxInt16, p.Amplitude)
	}
	return nil
}

// Frames returns the number of sample frames in the tone.
func (p Params) Frames() int {
	return int(int64(p.Duration) * int64(p.SampleRate) / int64(time.Second))
}

// Buffer renders the tone as interleaved samples.
func (p Params) Buffer() *goaudio.IntBuffer {
	frames := p.Frames()
	data := make([]int, frames*p.Channels)
	step := 2 * math.Pi * p.Frequency / float64(p.SampleRate)
	for i := 0; i < frames; i++ {
		s := int(math.Round(float64(p.Amplitude) * math.Sin(step*float64(i))))
		for c := 0; c < p.Channels; c++ {
			data[i*p.Channels+c] = s
		}
	}
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: p.Channels, SampleRate: p.SampleRate},
		Data:           data,
		SourceBitDepth: BitDepth,
	}
}

// Write encodes the tone as a WAV container.
func Write(ws io.WriteSeeker, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	enc := wav.NewEncoder(ws, p.SampleRate, BitDepth, p.Channels, 1)
	if err := enc.Write(p.Buffer()); err != nil {
		return fmt.Errorf("unable to encode tone: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to finish tone: %w", err)
	}
	return nil
}

// WriteFile writes the tone to name on fs. Names ending in .zst are written
// compressed.
func WriteFile(fs afero.Fs, name string, p Params) error {
	if !strings.HasSuffix(name, storage.CompressedExt) {
		return writePlain(fs, name, p)
	}

	// The encoder seeks back to patch the header, so render into memory
	// first.
	mem := afero.NewMemMapFs()
	tmp := "/" + path.Base(strings.TrimSuffix(name, storage.CompressedExt))
	if err := writePlain(mem, tmp, p); err != nil {
		return err
	}
	src, err := mem.Open(tmp)
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck

	dst, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", name, err)
	}
	if _, err := storage.Compress(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func writePlain(fs afero.Fs, name string, p Params) (err error) {
	f, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", name, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return Write(f, p)
}
