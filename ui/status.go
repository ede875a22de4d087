package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/wavplay/internal/playback"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCase = cases.Title(language.English)

// StatusDisplay provides session status information for the UI.
type StatusDisplay struct {
	state        playback.StateType
	path         string
	sampleRate   uint32
	channels     uint16
	progress     float64
	position     time.Duration
	duration     time.Duration
	stats        playback.Stats
	errorMessage string
}

// NewStatusDisplay creates a new status display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{state: playback.StateIdle}
}

// Update refreshes the display from a session. A nil session resets it.
func (s *StatusDisplay) Update(session *playback.Session) {
	if session == nil {
		s.Reset()
		return
	}
	s.state = session.State()
	s.path = session.Path
	s.progress = session.Progress()
	s.stats = session.Stats()

	if h, ok := session.Header(); ok {
		s.sampleRate = h.SampleRate
		s.channels = h.Channels
		s.duration = h.Duration()
		s.position = time.Duration(s.progress * float64(s.duration))
	}

	// Clear error if state is not failed
	if s.state != playback.StateFailed {
		s.errorMessage = ""
	} else if err := session.Err(); err != nil {
		s.errorMessage = err.Error()
	}
}

// CompactStatus returns a compact status string for a status bar.
func (s *StatusDisplay) CompactStatus() string {
	if s.state == playback.StateIdle {
		return ""
	}

	statusStyle := lipgloss.NewStyle().Foreground(s.getStateColor())
	status := statusStyle.Render(fmt.Sprintf("%s %s", s.getStateIcon(), s.state))

	if s.duration > 0 {
		counterStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
		status += counterStyle.Render(fmt.Sprintf(" %s/%s", formatDuration(s.position), formatDuration(s.duration)))
	}

	if s.stats.Underruns > 0 {
		warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8800"))
		status += warnStyle.Render(fmt.Sprintf(" ⚠ %d", s.stats.Underruns))
	}

	return status
}

// DetailedStatus returns a detailed multi-line status.
func (s *StatusDisplay) DetailedStatus(width int) string {
	if s.state == playback.StateIdle {
		return ""
	}

	var lines []string

	stateStyle := lipgloss.NewStyle().Foreground(s.getStateColor())
	stateLine := fmt.Sprintf("State: %s %s", s.getStateIcon(), titleCase.String(s.state.String()))
	lines = append(lines, stateStyle.Render(stateLine))

	if s.sampleRate > 0 {
		mode := "mono"
		if s.channels == 2 {
			mode = "stereo"
		}
		lines = append(lines, fmt.Sprintf("Format: %d Hz %s", s.sampleRate, mode))
	}

	if s.duration > 0 {
		lines = append(lines, fmt.Sprintf("Position: %s / %s", formatDuration(s.position), formatDuration(s.duration)))
	}

	if s.stats.Words > 0 {
		lines = append(lines, fmt.Sprintf("Buffer: %d refills, %d prefetched, %d underruns",
			s.stats.Refills, s.stats.Prefetches, s.stats.Underruns))
	}

	if s.errorMessage != "" {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
		errorLine := s.errorMessage
		if width > 10 {
			errorLine = truncate.StringWithTail(errorLine, uint(width-9), "...") //nolint:gosec
		}
		lines = append(lines, errorStyle.Render("Error: "+errorLine))
	}

	return strings.Join(lines, "\n")
}

// Progress returns the played fraction.
func (s *StatusDisplay) Progress() float64 {
	return s.progress
}

// State returns the last seen session state.
func (s *StatusDisplay) State() playback.StateType {
	return s.state
}

// Path returns the file of the last seen session.
func (s *StatusDisplay) Path() string {
	return s.path
}

// Stats returns the last seen session counters.
func (s *StatusDisplay) Stats() playback.Stats {
	return s.stats
}

// getStateColor returns the appropriate color for the current state.
func (s *StatusDisplay) getStateColor() lipgloss.Color {
	switch s.state {
	case playback.StateStreaming:
		return lipgloss.Color("#00FF00") // Green
	case playback.StateOpening, playback.StateHeaderValidated, playback.StateConfiguring:
		return lipgloss.Color("#00AAFF") // Blue
	case playback.StateDraining:
		return lipgloss.Color("#FF8800") // Orange
	case playback.StateClosed:
		return lipgloss.Color("#888888") // Gray
	case playback.StateFailed:
		return lipgloss.Color("#FF0000") // Red
	default:
		return lipgloss.Color("#666666") // Dark gray
	}
}

// getStateIcon returns an icon for the current state.
func (s *StatusDisplay) getStateIcon() string {
	switch s.state {
	case playback.StateStreaming:
		return "▶"
	case playback.StateOpening, playback.StateHeaderValidated, playback.StateConfiguring:
		return "⟳"
	case playback.StateDraining:
		return "◼"
	case playback.StateClosed:
		return "■"
	case playback.StateFailed:
		return "✗"
	default:
		return "○"
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// IsActive returns true while a session holds the transport.
func (s *StatusDisplay) IsActive() bool {
	return s.state != playback.StateIdle && !s.state.Terminal()
}

// Reset resets the status display to initial state.
func (s *StatusDisplay) Reset() {
	*s = StatusDisplay{state: playback.StateIdle}
}
