package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/wavplay/internal/audio"
	"github.com/dgnsrekt/wavplay/internal/config"
	"github.com/dgnsrekt/wavplay/internal/library"
	"github.com/dgnsrekt/wavplay/internal/playback"
	"github.com/dgnsrekt/wavplay/internal/storage"
	"github.com/dgnsrekt/wavplay/ui"
	"github.com/dgnsrekt/wavplay/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// framesPerBuffer is the PortAudio callback period.
const framesPerBuffer = 256

var (
	plain     bool
	showStats bool

	playCmd = &cobra.Command{
		Use:   "play [FILE|DIR|PLAYLIST.md|QUERY]...",
		Short: "Play files one after another",
		Long: paragraph(fmt.Sprintf("\n%s files, directories, markdown playlists or fuzzy queries "+
			"against the library, one session at a time. Press q to stop, n to skip.", keyword("Play"))),
		Example: paragraph("wavplay play tone.wav\nwavplay play ~/music/set.md\nwavplay play snare --output null"),
		RunE:    executePlay,
	}
)

func initPlayFlags(cmds ...*cobra.Command) {
	for _, c := range append(cmds, playCmd) {
		c.Flags().BoolVarP(&plain, "plain", "p", false, "print one line per file instead of the status view")
		c.Flags().BoolVar(&showStats, "stats", false, "show buffer counters")
	}
}

func executePlay(cmd *cobra.Command, args []string) error {
	paths, err := resolveArgs(cmd.Context(), cfg, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("nothing to play in %s", cfg.Library)
	}

	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Warn("Could not close the audio output", "err", err)
		}
	}()

	if plain || !useTUI(cfg) {
		return playPlain(cmd.Context(), cmd.OutOrStdout(), ctrl, paths)
	}
	return runTUI(cmd.Context(), ctrl, paths)
}

// useTUI reports whether the status view can own the terminal.
func useTUI(c config.Config) bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		return false
	}
	// raw PCM on stdout
	return c.Output != config.OutputWriter || (c.OutputFile != "" && c.OutputFile != "-")
}

func runTUI(ctx context.Context, ctrl *playback.Controller, paths []string) error {
	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.Paths = paths
	uiCfg.ShowStats = uiCfg.ShowStats || showStats

	final, err := ui.NewProgram(ctx, uiCfg, ctrl).Run()
	if err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return summarize(ui.Results(final))
}

// playPlain plays paths in order. The first interrupt stops the current
// file cleanly and ends the queue; a second one cancels ctx.
func playPlain(ctx context.Context, w io.Writer, ctrl *playback.Controller, paths []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	stopped := make(chan struct{})
	go func() {
		select {
		case <-interrupts:
		case <-ctx.Done():
			return
		}
		close(stopped)
		ctrl.Cancel().Request()
		select {
		case <-interrupts:
			cancel()
		case <-ctx.Done():
		}
	}()

	results := make([]ui.Result, 0, len(paths))
	for _, path := range paths {
		s, err := ctrl.Play(ctx, path)
		r := ui.Result{Path: path, State: playback.StateFailed, Err: err}
		if s != nil {
			r.State, r.Stats = s.State(), s.Stats()
		}
		results = append(results, r)
		printResult(w, r)

		select {
		case <-stopped:
			return summarize(results)
		default:
		}
		if ctx.Err() != nil {
			break
		}
	}
	return summarize(results)
}

func printResult(w io.Writer, r ui.Result) {
	name := utils.DisplayName(r.Path)
	switch {
	case r.Err != nil:
		fmt.Fprintf(w, "%s %s %s\n", errStyle.Render("✗"), name, faintStyle.Render(r.Err.Error()))
	case r.Stats.Cancelled:
		fmt.Fprintf(w, "%s %s %s\n", warnStyle.Render("◼"), name, faintStyle.Render("stopped "+r.Stats.String()))
	default:
		fmt.Fprintf(w, "%s %s %s\n", okStyle.Render("■"), name, faintStyle.Render(r.Stats.String()))
	}
}

// summarize turns per-file failures into the command's error.
func summarize(results []ui.Result) error {
	var failed int
	var last error
	for _, r := range results {
		if r.Err != nil && !errors.Is(r.Err, context.Canceled) {
			failed++
			last = r.Err
		}
	}
	switch failed {
	case 0:
		return nil
	case 1:
		return last
	default:
		return fmt.Errorf("%d of %d files failed, last: %w", failed, len(results), last)
	}
}

// newController wires storage, transport and cancellation from c.
func newController(c config.Config) (*playback.Controller, error) {
	transport, err := newTransport(c)
	if err != nil {
		return nil, err
	}

	var store storage.Storage = storage.NewOsFS()
	if c.StorageLatency > 0 {
		store = storage.WithLatency(store, c.StorageLatency)
	}

	ctrl, err := playback.NewController(store, transport, playback.NewCancelSource(c.CancelDebounce), c.Playback())
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("unable to create player: %w", err)
	}
	ctrl.OnStateChange(func(s *playback.Session, from, to playback.StateType) {
		if to == playback.StateFailed {
			log.Debug("Session failed", "path", s.Path, "from", from)
		}
	})
	return ctrl, nil
}

// newTransport opens the configured audio output.
func newTransport(c config.Config) (audio.Transport, error) {
	switch c.Output {
	case config.OutputOto:
		return audio.NewOtoTransport(audio.OtoConfig{BufferSize: c.DeviceBuffer}), nil
	case config.OutputPortAudio:
		t, err := audio.NewPortAudioTransport(framesPerBuffer)
		if err != nil {
			return nil, fmt.Errorf("unable to open PortAudio: %w", err)
		}
		return t, nil
	case config.OutputWriter:
		w, err := openOutputFile(c.OutputFile)
		if err != nil {
			return nil, err
		}
		return audio.NewWriterTransport(w, audio.WriterConfig{Realtime: c.Realtime}), nil
	case config.OutputNull:
		return audio.NewWriterTransport(io.Discard, audio.WriterConfig{Realtime: c.Realtime}), nil
	default:
		t, err := audio.NewPortAudioTransport(framesPerBuffer)
		if err == nil {
			log.Debug("Using PortAudio output")
			return t, nil
		}
		log.Debug("PortAudio unavailable, using oto", "err", err)
		return audio.NewOtoTransport(audio.OtoConfig{BufferSize: c.DeviceBuffer}), nil
	}
}

func openOutputFile(name string) (io.Writer, error) {
	if name == "" || name == "-" {
		// hide Close so the transport leaves stdout open
		return struct{ io.Writer }{os.Stdout}, nil
	}
	f, err := os.Create(utils.ExpandPath(name))
	if err != nil {
		return nil, fmt.Errorf("unable to create output file: %w", err)
	}
	return f, nil
}

// resolveArgs expands the command line into an ordered list of files.
// Directories contribute every playable file below them, markdown files
// contribute the files they list, and anything that does not exist is
// matched against the library.
func resolveArgs(ctx context.Context, c config.Config, args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{c.Library}
	}

	var (
		paths   []string
		entries library.Entries
		scanned bool
	)
	for _, arg := range args {
		p := utils.ExpandPath(arg)
		st, err := os.Stat(p)
		switch {
		case err == nil && st.IsDir():
			found, err := library.Scan(ctx, p)
			if err != nil {
				return nil, err
			}
			for _, e := range found {
				paths = append(paths, e.Path)
			}

		case err == nil && isPlaylist(p):
			src, err := os.ReadFile(p) //nolint:gosec
			if err != nil {
				return nil, fmt.Errorf("unable to read playlist: %w", err)
			}
			abs, _ := filepath.Abs(p)
			paths = append(paths, library.ParsePlaylist(src, filepath.Dir(abs))...)

		case err == nil:
			paths = append(paths, p)

		case errors.Is(err, fs.ErrNotExist):
			if !scanned {
				entries, err = library.Scan(ctx, utils.ExpandPath(c.Library))
				if err != nil {
					return nil, err
				}
				scanned = true
			}
			e, err := library.Resolve(entries, arg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", arg, err)
			}
			log.Debug("Resolved query", "query", arg, "path", e.Path)
			paths = append(paths, e.Path)

		default:
			return nil, fmt.Errorf("unable to stat %s: %w", arg, err)
		}
	}
	return paths, nil
}

func isPlaylist(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
