package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/wavplay/internal/playback"
)

// Player is the part of the playback controller the UI drives.
type Player interface {
	Play(ctx context.Context, path string) (*playback.Session, error)
	Current() *playback.Session
	Cancel() *playback.CancelSource
	Active() bool
}

type (
	// refreshMsg asks the view to sample the active session.
	refreshMsg time.Time

	// sessionStartedMsg is sent before a file is handed to the player.
	sessionStartedMsg struct {
		index int
		path  string
	}

	// sessionDoneMsg carries the outcome of one file.
	sessionDoneMsg struct {
		index   int
		session *playback.Session
		err     error
	}
)

// Result is the outcome of playing one file.
type Result struct {
	Path  string
	State playback.StateType
	Stats playback.Stats
	Err   error
}

func refreshCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func startCmd(index int, path string) tea.Cmd {
	return func() tea.Msg {
		return sessionStartedMsg{index: index, path: path}
	}
}

// playCmd blocks in the player until the file finishes, fails or is
// cancelled.
func playCmd(ctx context.Context, p Player, index int, path string) tea.Cmd {
	return func() tea.Msg {
		s, err := p.Play(ctx, path)
		return sessionDoneMsg{index: index, session: s, err: err}
	}
}
