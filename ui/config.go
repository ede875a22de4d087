package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// Files to play, in order.
	Paths []string

	// Width caps the rendered view. Zero follows the terminal.
	Width int

	// How often the view samples the active session.
	Refresh time.Duration `env:"WAVPLAY_UI_REFRESH" envDefault:"100ms"`

	// Show buffer counters under the progress bar.
	ShowStats bool `env:"WAVPLAY_UI_STATS"`

	// For debugging the UI
	AltScreen bool `env:"WAVPLAY_ALT_SCREEN" envDefault:"false"`
}
