package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dgnsrekt/wavplay/internal/library"
	"github.com/dgnsrekt/wavplay/utils"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list [QUERY]",
	Aliases: []string{"ls"},
	Short:   "List playable files in the library",
	Long: paragraph(fmt.Sprintf("\n%s the WAV files below the library directory. With a query, "+
		"only the best fuzzy match is shown.", keyword("List"))),
	Example: paragraph("wavplay list\nwavplay list --library ~/samples kick"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := utils.ExpandPath(cfg.Library)
		entries, err := library.Scan(cmd.Context(), dir)
		if err != nil {
			return err //nolint:wrapcheck
		}
		if len(args) == 1 {
			e, err := library.Resolve(entries, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			entries = library.Entries{e}
		}
		printEntries(cmd.OutOrStdout(), entries, time.Now())
		return nil
	},
}

// printEntries writes one aligned line per entry.
func printEntries(w io.Writer, entries library.Entries, now time.Time) {
	width := 0
	for _, e := range entries {
		width = max(width, runewidth.StringWidth(e.Name))
	}
	for _, e := range entries {
		size := humanize.IBytes(uint64(e.Size)) //nolint:gosec
		fmt.Fprintf(w, "%s  %s  %s\n",
			runewidth.FillRight(e.Name, width),
			faintStyle.Render(fmt.Sprintf("%9s", size)),
			faintStyle.Render(humanize.RelTime(e.ModTime, now, "ago", "from now")))
	}
}
