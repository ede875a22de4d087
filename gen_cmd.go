package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/wavplay/internal/storage"
	"github.com/dgnsrekt/wavplay/internal/tone"
	"github.com/dgnsrekt/wavplay/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	toneParams = tone.DefaultParams()
	compress   bool

	genCmd = &cobra.Command{
		Use:   "gen [FILE]",
		Short: "Write a sine test tone",
		Long: paragraph(fmt.Sprintf("\n%s a 16-bit PCM sine tone. The default is half a second of "+
			"523 Hz at 8000 Hz, mono, full scale.", keyword("Write"))),
		Example: paragraph("wavplay gen\nwavplay gen a440.wav --frequency 440 --rate 44100 --channels 2\nwavplay gen --compress"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "tone.wav"
			if len(args) == 1 {
				name = utils.ExpandPath(args[0])
			}
			if compress && !strings.HasSuffix(name, storage.CompressedExt) {
				name += storage.CompressedExt
			}
			return generateTone(cmd.OutOrStdout(), afero.NewOsFs(), name, toneParams)
		},
	}
)

func init() {
	f := genCmd.Flags()
	f.IntVarP(&toneParams.SampleRate, "rate", "r", toneParams.SampleRate, "sample rate in Hz")
	f.IntVarP(&toneParams.Channels, "channels", "n", toneParams.Channels, "1 for mono, 2 for stereo")
	f.DurationVarP(&toneParams.Duration, "duration", "d", toneParams.Duration, "tone length")
	f.Float64VarP(&toneParams.Frequency, "frequency", "f", toneParams.Frequency, "tone frequency in Hz")
	f.IntVarP(&toneParams.Amplitude, "amplitude", "a", toneParams.Amplitude, "peak sample value")
	f.BoolVarP(&compress, "compress", "z", false, "write a zstd compressed .wav.zst file")
}

func generateTone(w io.Writer, fs afero.Fs, name string, p tone.Params) error {
	if err := tone.WriteFile(fs, name, p); err != nil {
		return fmt.Errorf("unable to write tone: %w", err)
	}

	size := "?"
	if st, err := fs.Stat(name); err == nil {
		size = humanize.IBytes(uint64(st.Size())) //nolint:gosec
	}
	fmt.Fprintf(w, "Wrote %s (%s, %d Hz, %d ch, %v)\n", keyword(name), size, p.SampleRate, p.Channels, p.Duration)
	return nil
}
