package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/wavplay/internal/audio"
	"github.com/dgnsrekt/wavplay/internal/playback"
	"github.com/dgnsrekt/wavplay/internal/storage"
	"github.com/dgnsrekt/wavplay/internal/tone"
	"github.com/spf13/afero"
)

// newPlayer returns a controller over an in-memory library whose mock
// transport ticks until the test ends.
func newPlayer(t *testing.T) (*playback.Controller, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	transport := audio.NewMockTransport(audio.MockCallbacks{})
	ctrl, err := playback.NewController(storage.NewFS(fs), transport, nil, playback.DefaultConfig())
	if err != nil {
		t.Fatalf("NewController() unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go transport.Run(ctx, 50*time.Microsecond)
	return ctrl, fs
}

func writeTone(t *testing.T, fs afero.Fs, name string, channels int, d time.Duration) {
	t.Helper()
	p := tone.DefaultParams()
	p.SampleRate = 8000
	p.Channels = channels
	p.Duration = d
	if err := tone.WriteFile(fs, name, p); err != nil {
		t.Fatal(err)
	}
}

// TestStatusDisplayCreation tests status display creation.
func TestStatusDisplayCreation(t *testing.T) {
	display := NewStatusDisplay()

	if display.IsActive() {
		t.Error("Display should not be active initially")
	}
	if display.CompactStatus() != "" {
		t.Error("Initial compact status should be empty")
	}
	if display.DetailedStatus(80) != "" {
		t.Error("Initial detailed status should be empty")
	}
}

// TestStatusDisplayClosedSession tests a session that played to the end.
func TestStatusDisplayClosedSession(t *testing.T) {
	ctrl, fs := newPlayer(t)
	writeTone(t, fs, "/tone.wav", 1, 20*time.Millisecond)

	s, err := ctrl.Play(context.Background(), "/tone.wav")
	if err != nil {
		t.Fatalf("Play() unexpected error: %v", err)
	}

	display := NewStatusDisplay()
	display.Update(s)

	if display.IsActive() {
		t.Error("Display should not be active after the session closed")
	}
	if display.State() != playback.StateClosed {
		t.Errorf("expected closed, got %s", display.State())
	}
	if display.Progress() != 1 {
		t.Errorf("expected full progress, got %f", display.Progress())
	}
	if display.Path() != "/tone.wav" {
		t.Errorf("unexpected path %s", display.Path())
	}

	compact := display.CompactStatus()
	if !strings.Contains(compact, "■") {
		t.Errorf("closed status should contain the stop icon: %q", compact)
	}
	if !strings.Contains(compact, "0:00/0:00") {
		t.Errorf("closed status should contain the position: %q", compact)
	}

	detailed := display.DetailedStatus(80)
	for _, want := range []string{"State: ■ Closed", "Format: 8000 Hz mono", "Buffer:"} {
		if !strings.Contains(detailed, want) {
			t.Errorf("detailed status missing %q:\n%s", want, detailed)
		}
	}
	if display.Stats().Words != 160 {
		t.Errorf("expected 160 words, got %d", display.Stats().Words)
	}
}

// TestStatusDisplayFailedSession tests error rendering.
func TestStatusDisplayFailedSession(t *testing.T) {
	ctrl, _ := newPlayer(t)

	s, err := ctrl.Play(context.Background(), "/missing.wav")
	if err == nil {
		t.Fatal("expected an error playing a missing file")
	}

	display := NewStatusDisplay()
	display.Update(s)

	if display.State() != playback.StateFailed {
		t.Errorf("expected failed, got %s", display.State())
	}
	if !strings.Contains(display.CompactStatus(), "✗") {
		t.Error("failed status should contain the failure icon")
	}

	detailed := display.DetailedStatus(40)
	if !strings.Contains(detailed, "Error: ") {
		t.Errorf("detailed status should carry the error:\n%s", detailed)
	}
	for _, line := range strings.Split(detailed, "\n") {
		if strings.Contains(line, "Error: ") && !strings.Contains(line, "...") {
			t.Errorf("long error should be truncated: %q", line)
		}
	}

	display.Update(nil)
	if display.State() != playback.StateIdle {
		t.Error("nil session should reset the display")
	}
}

// TestFormatDuration tests duration formatting.
func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{5 * time.Second, "0:05"},
		{65 * time.Second, "1:05"},
		{10*time.Minute + 30*time.Second, "10:30"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %s, want %s", tt.duration, got, tt.expected)
			}
		})
	}
}

// TestStateIcons tests that every state has a distinct icon.
func TestStateIcons(t *testing.T) {
	display := NewStatusDisplay()
	seen := map[string]playback.StateType{}
	for _, state := range []playback.StateType{
		playback.StateIdle,
		playback.StateOpening,
		playback.StateStreaming,
		playback.StateDraining,
		playback.StateClosed,
		playback.StateFailed,
	} {
		display.state = state
		icon := display.getStateIcon()
		if prev, ok := seen[icon]; ok {
			t.Errorf("%s and %s share the icon %s", prev, state, icon)
		}
		seen[icon] = state
	}
}
