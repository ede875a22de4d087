// Package ui provides the terminal view for wavplay sessions.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/wavplay/internal/playback"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

const (
	ellipsis     = "…"
	maxBarWidth  = 60
	defaultWidth = 80

	defaultRefresh = 100 * time.Millisecond
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).Padding(0, 1)
	counterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// NewProgram returns a new Tea program that plays cfg.Paths in order.
func NewProgram(ctx context.Context, cfg Config, player Player) *tea.Program {
	log.Debug("Starting wavplay ui", "files", len(cfg.Paths), "refresh", cfg.Refresh)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	return tea.NewProgram(newModel(ctx, cfg, player), opts...)
}

// Results returns the per-file outcomes recorded by a finished program's
// model.
func Results(m tea.Model) []Result {
	if mm, ok := m.(model); ok {
		return mm.results
	}
	return nil
}

type model struct {
	cfg    Config
	ctx    context.Context
	player Player

	status   *StatusDisplay
	spinner  spinner.Model
	progress progress.Model

	index    int
	results  []Result
	width    int
	playing  bool
	quitting bool
	done     bool
}

func newModel(ctx context.Context, cfg Config, player Player) model {
	if cfg.Refresh <= 0 {
		cfg.Refresh = defaultRefresh
	}
	width := cfg.Width
	if width <= 0 {
		width = defaultWidth
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))

	m := model{
		cfg:      cfg,
		ctx:      ctx,
		player:   player,
		status:   NewStatusDisplay(),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
	}
	m.resize(width)
	return m
}

func (m model) Init() tea.Cmd {
	if len(m.cfg.Paths) == 0 {
		return tea.Quit
	}
	return tea.Batch(
		m.spinner.Tick,
		refreshCmd(m.cfg.Refresh),
		startCmd(0, m.cfg.Paths[0]),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			if !m.playing {
				m.done = true
				return m, tea.Quit
			}
			m.player.Cancel().Request()
		case "n", "right":
			// Between a session closing and its result arriving the flag
			// would carry over to the next file.
			if m.playing && m.player.Active() {
				m.player.Cancel().Request()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		if m.cfg.Width <= 0 {
			m.resize(msg.Width)
		}
		return m, nil

	case refreshMsg:
		if s := m.player.Current(); s != nil && s.Path == m.currentPath() {
			m.status.Update(s)
		}
		if m.done {
			return m, nil
		}
		return m, refreshCmd(m.cfg.Refresh)

	case sessionStartedMsg:
		m.status.Reset()
		m.playing = true
		return m, playCmd(m.ctx, m.player, msg.index, msg.path)

	case sessionDoneMsg:
		m.playing = false
		m.results = append(m.results, newResult(m.cfg.Paths[msg.index], msg.session, msg.err))
		if msg.session != nil {
			m.status.Update(msg.session)
		}
		if msg.err != nil {
			log.Debug("session ended with error", "path", m.cfg.Paths[msg.index], "err", msg.err)
		}

		next := msg.index + 1
		if m.quitting || next >= len(m.cfg.Paths) || m.ctx.Err() != nil {
			m.done = true
			return m, tea.Quit
		}
		m.index = next
		return m, startCmd(next, m.cfg.Paths[next])

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	name := filepath.Base(m.currentPath())
	counter := ""
	if len(m.cfg.Paths) > 1 {
		counter = fmt.Sprintf(" %d/%d", m.index+1, len(m.cfg.Paths))
	}
	nameWidth := m.width - runewidth.StringWidth(counter) - 12
	if nameWidth < 8 {
		nameWidth = 8
	}
	name = truncate.StringWithTail(name, uint(nameWidth), ellipsis) //nolint:gosec

	b.WriteString(titleStyle.Render("wavplay"))
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(counterStyle.Render(counter))
	b.WriteString("\n\n")

	switch m.status.State() {
	case playback.StateIdle, playback.StateOpening, playback.StateHeaderValidated, playback.StateConfiguring:
		if !m.done {
			b.WriteString(m.spinner.View() + " preparing\n")
		}
	default:
		b.WriteString(m.progress.ViewAs(m.status.Progress()))
		b.WriteString("\n")
	}

	var status string
	if m.cfg.ShowStats {
		status = m.status.DetailedStatus(m.width)
	} else {
		status = m.status.CompactStatus()
	}
	if status != "" {
		b.WriteString(status)
		b.WriteString("\n")
	}

	if !m.done {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(m.help()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) help() string {
	if len(m.cfg.Paths)-m.index > 1 {
		return "n next • q quit"
	}
	return "q quit"
}

func (m model) currentPath() string {
	if m.index < len(m.cfg.Paths) {
		return m.cfg.Paths[m.index]
	}
	return ""
}

func (m *model) resize(width int) {
	m.width = width
	bar := width - 4
	if bar > maxBarWidth {
		bar = maxBarWidth
	}
	if bar < 10 {
		bar = 10
	}
	m.progress.Width = bar
}

func newResult(path string, s *playback.Session, err error) Result {
	r := Result{Path: path, State: playback.StateFailed, Err: err}
	if s != nil {
		r.State = s.State()
		r.Stats = s.Stats()
	}
	return r
}
