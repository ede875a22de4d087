// Package main provides the entry point for the wavplay CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/wavplay/internal/config"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	logFile           string
	debug             bool

	// effective configuration, resolved in PersistentPreRunE
	cfg      config.Config
	closeLog = func() error { return nil }

	// flags that override config values when set
	output         string
	outputFile     string
	realtime       bool
	deviceBuffer   time.Duration
	bufferCapacity int
	watermark      int
	burst          int
	libraryDir     string
	storageLatency time.Duration

	rootCmd = &cobra.Command{
		Use:   "wavplay [FILE|DIR|PLAYLIST.md|QUERY]...",
		Short: "Stream 16-bit PCM WAV files to an audio device",
		Long: paragraph(
			fmt.Sprintf("\nStream 16-bit PCM WAV files to an audio device, %s.", keyword("one buffer at a time")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ArbitraryArgs,
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"wav", "zst", "md"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: executePlay,
	}
)

// validateOptions resolves the effective configuration: defaults, then the
// config file, then the environment, then flags given on the command line.
func validateOptions(cmd *cobra.Command) error {
	_ = closeLog()
	closer, err := setupLog(logFile, debug)
	if err != nil {
		return fmt.Errorf("unable to set up logging: %w", err)
	}
	closeLog = closer

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file %s: %w", configFile, err)
		}
	}
	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn("Could not load .env file", "err", err)
	}

	c, err := config.Load(viper.GetViper(), nil)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	applyFlags(cmd, &c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	cfg = c
	log.Debug("Effective configuration", "output", cfg.Output, "buffer", cfg.Buffer.Capacity,
		"watermark", cfg.Buffer.Watermark, "library", cfg.Library)
	return nil
}

// applyFlags copies flags the user set onto c.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		c.Output = output
	}
	if flags.Changed("output-file") {
		c.OutputFile = outputFile
		if !flags.Changed("output") {
			c.Output = config.OutputWriter
		}
	}
	if flags.Changed("realtime") {
		c.Realtime = realtime
	}
	if flags.Changed("device-buffer") {
		c.DeviceBuffer = deviceBuffer
	}
	if flags.Changed("buffer") {
		c.Buffer.Capacity = bufferCapacity
	}
	if flags.Changed("watermark") {
		c.Buffer.Watermark = watermark
	}
	if flags.Changed("burst") {
		c.Burst = burst
	}
	if flags.Changed("library") {
		c.Library = libraryDir
	}
	if flags.Changed("storage-latency") {
		c.StorageLatency = storageLatency
	}
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	defaults := config.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	pf.StringVar(&logFile, "log-file", "", "write logs to this file (default under the user cache dir)")
	pf.BoolVar(&debug, "debug", false, "log debug messages")
	pf.StringVarP(&output, "output", "o", defaults.Output, fmt.Sprintf("audio output: one of %v", config.Outputs))
	pf.StringVar(&outputFile, "output-file", "", "raw PCM destination for the writer output (- for stdout)")
	pf.BoolVar(&realtime, "realtime", defaults.Realtime, "pace the writer and null outputs at the sample rate")
	pf.DurationVar(&deviceBuffer, "device-buffer", defaults.DeviceBuffer, "audio device buffer length")
	pf.IntVarP(&bufferCapacity, "buffer", "b", defaults.Buffer.Capacity, "stream buffer capacity in 16-bit units")
	pf.IntVar(&watermark, "watermark", defaults.Buffer.Watermark, "cursor position that starts a prefetch (equal to --buffer disables)")
	pf.IntVar(&burst, "burst", defaults.Burst, "words written per transport tick")
	pf.StringVarP(&libraryDir, "library", "L", defaults.Library, "directory searched for files and queries")
	pf.DurationVar(&storageLatency, "storage-latency", 0, "delay added to every storage read")
	_ = pf.MarkHidden("storage-latency")

	initPlayFlags(rootCmd)

	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(playCmd, inspectCmd, genCmd, listCmd, watchCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "wavplay")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "wavplay")}, dirs...)
	}

	if c := os.Getenv("WAVPLAY_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("wavplay")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		return
	}

	if len(dirs) > 0 {
		defaultConfigFile = filepath.Join(dirs[0], "wavplay.yml")
	}
}
