package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/wavplay/internal/library"
	"github.com/dgnsrekt/wavplay/internal/playback"
	"github.com/dgnsrekt/wavplay/ui"
	"github.com/dgnsrekt/wavplay/utils"
	"github.com/spf13/cobra"
)

var (
	playExisting bool

	watchCmd = &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Play files as they appear in a directory",
		Long: paragraph(fmt.Sprintf("\n%s a directory and play every WAV file written to it, one "+
			"after another, until interrupted.", keyword("Watch"))),
		Example: paragraph("wavplay watch ~/incoming\nwavplay watch --existing --output null"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    executeWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVarP(&playExisting, "existing", "e", false, "play files already in the directory first")
}

func executeWatch(cmd *cobra.Command, args []string) error {
	dir := cfg.Library
	if len(args) == 1 {
		dir = args[0]
	}
	dir = utils.ExpandPath(dir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w, err := library.NewWatcher(dir, library.DefaultSettle)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer w.Close() //nolint:errcheck

	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Warn("Could not close the audio output", "err", err)
		}
	}()

	queue := make(chan string, 64)
	if playExisting {
		entries, err := library.Scan(ctx, w.Dir())
		if err != nil {
			return err //nolint:wrapcheck
		}
		go func() {
			for _, e := range entries {
				select {
				case queue <- e.Path:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(ctx, queue) }()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", keyword(utils.DisplayName(w.Dir())))
	return playQueue(ctx, cmd.OutOrStdout(), ctrl, queue, watchErr)
}

// playQueue plays paths from queue one at a time until ctx is done or the
// watcher stops.
func playQueue(ctx context.Context, out io.Writer, ctrl *playback.Controller, queue <-chan string, watchErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watcher stopped: %w", err)
			}
			return nil
		case path := <-queue:
			s, err := ctrl.Play(ctx, path)
			r := ui.Result{Path: path, State: playback.StateFailed, Err: err}
			if s != nil {
				r.State, r.Stats = s.State(), s.Stats()
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			printResult(out, r)
		}
	}
}
