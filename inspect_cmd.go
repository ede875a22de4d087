package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/wavplay/internal/config"
	"github.com/dgnsrekt/wavplay/internal/storage"
	"github.com/dgnsrekt/wavplay/internal/wav"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	copyReport  bool
	reportRaw   bool
	reportWidth uint
	reportStyle string

	inspectCmd = &cobra.Command{
		Use:     "inspect FILE|DIR|QUERY...",
		Aliases: []string{"info"},
		Short:   "Print the header fields of WAV files",
		Long: paragraph(fmt.Sprintf("\n%s every header field of the given files and whether this "+
			"configuration can play them.", keyword("Print"))),
		Example: paragraph("wavplay inspect tone.wav\nwavplay inspect --copy tone.wav.zst"),
		Args:    cobra.MinimumNArgs(1),
		RunE:    executeInspect,
	}
)

func init() {
	inspectCmd.Flags().BoolVarP(&copyReport, "copy", "c", false, "copy the report to the clipboard")
	inspectCmd.Flags().BoolVar(&reportRaw, "raw", false, "print the markdown without rendering it")
	inspectCmd.Flags().UintVarP(&reportWidth, "width", "w", 0, "word-wrap at width (0 follows the terminal)")
	inspectCmd.Flags().StringVarP(&reportStyle, "style", "s", "auto", "glamour style name")
}

func executeInspect(cmd *cobra.Command, args []string) error {
	paths, err := resolveArgs(cmd.Context(), cfg, args)
	if err != nil {
		return err
	}

	store := storage.NewOsFS()
	var b strings.Builder
	var errs []error
	for i, path := range paths {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		r, err := inspectFile(store, cfg, path)
		if err != nil {
			errs = append(errs, err)
			fmt.Fprintf(&b, "# %s\n\n**Error:** %s\n", filepath.Base(path), err)
			continue
		}
		b.WriteString(r)
	}
	markdown := b.String()

	if copyReport {
		termenv.Copy(markdown)
		if err := clipboard.WriteAll(markdown); err != nil {
			log.Debug("Native clipboard unavailable", "err", err)
		}
	}

	out := markdown
	if !reportRaw {
		out, err = renderMarkdown(markdown)
		if err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(cmd.OutOrStdout(), out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return errors.Join(errs...)
}

// inspectFile reads the header of path and returns a markdown report.
func inspectFile(store storage.Storage, c config.Config, path string) (string, error) {
	h, err := store.Open(path)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	defer h.Close() //nolint:errcheck

	window := make([]byte, wav.HeaderSize)
	n, err := io.ReadFull(h, window)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("unable to read header: %w", err)
	}
	d, err := wav.Parse(window[:n])
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	var size int64 = -1
	if st, err := os.Stat(path); err == nil {
		size = st.Size()
	}
	return headerReport(path, d.Header, size, c.Playback().CheckFormat(d.Header)), nil
}

// headerReport lays out every header field as a markdown table. A negative
// size is left out.
func headerReport(path string, h wav.Header, size int64, playable error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", filepath.Base(path))

	b.WriteString("| Offset | Field | Value |\n|---:|---|---|\n")
	row := func(off int, field, value string) {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", off, field, value)
	}
	row(0, "Chunk ID", "`"+string(h.RIFF[:])+"`")
	row(4, "Chunk size", bytesValue(uint64(h.FileSize)))
	row(8, "Format", "`"+string(h.WAVE[:])+"`")
	row(12, "Subchunk 1 ID", "`"+string(h.FmtID[:])+"`")
	row(16, "Subchunk 1 size", humanize.Comma(int64(h.FmtSize)))
	row(20, "Audio format", audioFormatName(h.AudioFormat))
	row(22, "Channels", humanize.Comma(int64(h.Channels)))
	row(24, "Sample rate", humanize.Comma(int64(h.SampleRate))+" Hz")
	row(28, "Byte rate", humanize.Comma(int64(h.ByteRate))+" B/s")
	row(32, "Block align", humanize.Comma(int64(h.BlockAlign)))
	row(34, "Bits per sample", humanize.Comma(int64(h.BitsPerSample)))
	row(36, "Subchunk 2 ID", "`"+string(h.DataID[:])+"`")
	row(40, "Subchunk 2 size", bytesValue(uint64(h.DataSize)))

	b.WriteString("\n")
	if size >= 0 {
		fmt.Fprintf(&b, "- **On disk:** %s\n", humanize.IBytes(uint64(size)))
	}
	fmt.Fprintf(&b, "- **Duration:** %s\n", h.Duration())
	if playable != nil {
		fmt.Fprintf(&b, "- **Playable:** no, %s\n", playable)
	} else {
		b.WriteString("- **Playable:** yes\n")
	}
	return b.String()
}

func bytesValue(n uint64) string {
	return fmt.Sprintf("%s (%s)", humanize.Comma(int64(n)), humanize.IBytes(n)) //nolint:gosec
}

func audioFormatName(code uint16) string {
	if code == wav.FormatPCM {
		return "1 (PCM)"
	}
	return fmt.Sprintf("%d (compressed)", code)
}

func renderMarkdown(markdown string) (string, error) {
	isTerminal := term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec

	width := int(reportWidth) //nolint:gosec
	if width == 0 {
		width = 80
		if isTerminal {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil { //nolint:gosec
				width = min(w, 120)
			}
		}
	}

	style := glamour.WithAutoStyle()
	switch {
	case !isTerminal && reportStyle == "auto":
		style = glamour.WithStandardStyle("notty")
	case reportStyle != "auto":
		style = glamour.WithStandardStyle(reportStyle)
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}
