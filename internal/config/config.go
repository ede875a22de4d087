// Package config holds the wavplay configuration and its loaders.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/dgnsrekt/wavplay/internal/audio"
	"github.com/dgnsrekt/wavplay/internal/playback"
)

// Output names.
const (
	OutputAuto      = "auto"
	OutputOto       = "oto"
	OutputPortAudio = "portaudio"
	OutputWriter    = "writer"
	OutputNull      = "null"
)

// Outputs lists the accepted output names.
var Outputs = []string{OutputAuto, OutputOto, OutputPortAudio, OutputWriter, OutputNull}

// Config contains all wavplay configuration options.
type Config struct {
	// Output settings
	Output       string        `yaml:"output" env:"OUTPUT"`
	OutputFile   string        `yaml:"output_file" env:"OUTPUT_FILE"`
	Realtime     bool          `yaml:"realtime" env:"REALTIME"`
	DeviceBuffer time.Duration `yaml:"device_buffer" env:"DEVICE_BUFFER"`

	// Streaming settings
	Buffer           BufferConfig  `yaml:"buffer" envPrefix:"BUFFER_"`
	Burst            int           `yaml:"burst" env:"BURST"`
	MaxRefillLatency time.Duration `yaml:"max_refill_latency" env:"MAX_REFILL_LATENCY"`
	SampleRates      []int         `yaml:"sample_rates" env:"SAMPLE_RATES" envSeparator:","`
	PollInterval     time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	DrainTimeout     time.Duration `yaml:"drain_timeout" env:"DRAIN_TIMEOUT"`

	// Storage settings
	StorageLatency time.Duration `yaml:"storage_latency" env:"STORAGE_LATENCY"`
	Library        string        `yaml:"library" env:"LIBRARY"`

	// Input settings
	CancelDebounce time.Duration `yaml:"cancel_debounce" env:"CANCEL_DEBOUNCE"`
}

// BufferConfig contains stream buffer geometry.
type BufferConfig struct {
	Capacity  int `yaml:"capacity" env:"CAPACITY"`
	Watermark int `yaml:"watermark" env:"WATERMARK"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	pb := playback.DefaultConfig()
	return Config{
		Output:       OutputAuto,
		Realtime:     true,
		DeviceBuffer: audio.DefaultOtoConfig().BufferSize,
		Buffer: BufferConfig{
			Capacity:  pb.Buffer.Capacity,
			Watermark: pb.Buffer.Watermark,
		},
		Burst:            pb.Burst,
		MaxRefillLatency: pb.MaxRefillLatency,
		SampleRates:      pb.SampleRates,
		PollInterval:     pb.PollInterval,
		DrainTimeout:     pb.DrainTimeout,
		Library:          ".",
		CancelDebounce:   50 * time.Millisecond,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if !slices.Contains(Outputs, c.Output) {
		return fmt.Errorf("unknown output %q (want one of %v)", c.Output, Outputs)
	}
	if c.DeviceBuffer < 0 {
		return fmt.Errorf("device buffer cannot be negative, got %v", c.DeviceBuffer)
	}
	if c.StorageLatency < 0 {
		return fmt.Errorf("storage latency cannot be negative, got %v", c.StorageLatency)
	}
	if c.CancelDebounce < 0 {
		return fmt.Errorf("cancel debounce cannot be negative, got %v", c.CancelDebounce)
	}
	return c.Playback().Validate()
}

// Playback returns the session controller settings.
func (c Config) Playback() playback.Config {
	return playback.Config{
		Buffer: audio.BufferConfig{
			Capacity:  c.Buffer.Capacity,
			Watermark: c.Buffer.Watermark,
		},
		Burst:            c.Burst,
		MaxRefillLatency: c.MaxRefillLatency,
		SampleRates:      slices.Clone(c.SampleRates),
		PollInterval:     c.PollInterval,
		DrainTimeout:     c.DrainTimeout,
	}
}

// Settings returns the configuration as nested maps keyed like the config
// file, with durations spelled out.
func (c Config) Settings() map[string]any {
	return map[string]any{
		"output":        c.Output,
		"output_file":   c.OutputFile,
		"realtime":      c.Realtime,
		"device_buffer": c.DeviceBuffer.String(),
		"buffer": map[string]any{
			"capacity":  c.Buffer.Capacity,
			"watermark": c.Buffer.Watermark,
		},
		"burst":              c.Burst,
		"max_refill_latency": c.MaxRefillLatency.String(),
		"sample_rates":       c.SampleRates,
		"poll_interval":      c.PollInterval.String(),
		"drain_timeout":      c.DrainTimeout.String(),
		"storage_latency":    c.StorageLatency.String(),
		"library":            c.Library,
		"cancel_debounce":    c.CancelDebounce.String(),
	}
}
