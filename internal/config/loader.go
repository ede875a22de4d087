package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable wavplay reads.
const EnvPrefix = "WAVPLAY_"

// SetDefaults sets default values in Viper.
func SetDefaults(v *viper.Viper) {
	for key, value := range flatten("", DefaultConfig().Settings()) {
		v.SetDefault(key, value)
	}
}

// FromViper loads configuration from Viper. Keys that are not set keep
// their defaults.
func FromViper(v *viper.Viper) Config {
	cfg := DefaultConfig()

	// Output settings
	if v.IsSet("output") {
		cfg.Output = v.GetString("output")
	}
	if v.IsSet("output_file") {
		cfg.OutputFile = v.GetString("output_file")
	}
	if v.IsSet("realtime") {
		cfg.Realtime = v.GetBool("realtime")
	}
	if v.IsSet("device_buffer") {
		cfg.DeviceBuffer = v.GetDuration("device_buffer")
	}

	// Streaming settings
	if v.IsSet("buffer.capacity") {
		cfg.Buffer.Capacity = v.GetInt("buffer.capacity")
	}
	if v.IsSet("buffer.watermark") {
		cfg.Buffer.Watermark = v.GetInt("buffer.watermark")
	}
	if v.IsSet("burst") {
		cfg.Burst = v.GetInt("burst")
	}
	if v.IsSet("max_refill_latency") {
		cfg.MaxRefillLatency = v.GetDuration("max_refill_latency")
	}
	if v.IsSet("sample_rates") {
		cfg.SampleRates = v.GetIntSlice("sample_rates")
	}
	if v.IsSet("poll_interval") {
		cfg.PollInterval = v.GetDuration("poll_interval")
	}
	if v.IsSet("drain_timeout") {
		cfg.DrainTimeout = v.GetDuration("drain_timeout")
	}

	// Storage settings
	if v.IsSet("storage_latency") {
		cfg.StorageLatency = v.GetDuration("storage_latency")
	}
	if v.IsSet("library") {
		cfg.Library = v.GetString("library")
	}

	// Input settings
	if v.IsSet("cancel_debounce") {
		cfg.CancelDebounce = v.GetDuration("cancel_debounce")
	}

	return cfg
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("unable to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with WAVPLAY_ variables. A nil environ reads the
// process environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}
	return nil
}

// Load builds the effective configuration: defaults, then the config file
// read by v, then the environment.
func Load(v *viper.Viper, environ map[string]string) (Config, error) {
	cfg := FromViper(v)
	if err := ApplyEnv(&cfg, environ); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			for sk, sv := range flatten(key, sub) {
				out[sk] = sv
			}
			continue
		}
		out[key] = v
	}
	return out
}
