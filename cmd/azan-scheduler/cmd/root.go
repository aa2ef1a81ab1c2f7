package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/azan-scheduler/internal/config"
	"github.com/oshokin/azan-scheduler/internal/domain/prayer"
	"github.com/oshokin/azan-scheduler/internal/logger"
	"github.com/oshokin/azan-scheduler/internal/service/daemon"
	"github.com/oshokin/azan-scheduler/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// prayerTimesPath overrides the prayer times file from the config.
	prayerTimesPath string
	// logLevel overrides the log level from the config.
	logLevel string
	// noAudio forces the in-memory playback backend.
	noAudio bool

	// rootCmd represents the base command for running the scheduler daemon.
	rootCmd = &cobra.Command{
		Use:   "azan-scheduler [listen-address]",
		Short: "Run the prayer-time audio scheduler daemon.",
		Long: `Starts the daemon that plays the main audio content and interrupts it
around the configured prayer times: fading out, playing the azan, and
resuming afterwards.

The daemon also watches the primary stream for buffering stalls and swaps in
local fallback audio, exposes a websocket control endpoint for manual
triggers and volume ducking, and reloads the prayer times file on change.

Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:8090).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if logLevel != "" {
				level, ok := logger.ParseLogLevel(logLevel)
				if !ok {
					return fmt.Errorf("unknown log level %q", logLevel)
				}

				logger.SetLevel(level)
			}

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return daemon.Run(ctx, daemon.Options{
				ConfigPath:      configPath,
				PrayerTimesPath: prayerTimesPath,
				ListenAddress:   listenAddress,
				NoAudio:         noAudio,
			})
		},
	}

	// initCmd writes starter configuration and prayer times files.
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write starter configuration and prayer times files.",
		Long: `Writes a configuration file with default values and a sample prayer
times file next to it. Existing files are never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeStarterFiles(cmd)
		},
	}
)

// Execute runs the azan-scheduler CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&prayerTimesPath, "prayer-times", "p", "", "path to prayer times file (overrides config)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVar(&noAudio, "no-audio", false, "run without an audio device")
}

// writeStarterFiles creates the default config and a sample daily prayer
// times set, refusing to touch files that already exist.
func writeStarterFiles(cmd *cobra.Command) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("refusing to overwrite %s", configPath)
	}

	cfg := config.Default()
	// Placeholders so the starter file passes validation.
	cfg.Audio.PrimaryFile = "primary.wav"
	cfg.Audio.InterruptFile = "azan.wav"

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if _, err := os.Stat(cfg.PrayerTimesFile); err == nil {
		return fmt.Errorf("refusing to overwrite %s", cfg.PrayerTimesFile)
	}

	sample := prayer.Day{
		{Name: "Fajr", Minutes: 315},
		{Name: "Sunrise", Minutes: 390, SkipInterrupt: true},
		{Name: "Dhuhr", Minutes: 770},
		{Name: "Asr", Minutes: 965},
		{Name: "Maghrib", Minutes: 1160},
		{Name: "Isha", Minutes: 1260},
	}

	if err := config.SavePrayerTimes(cfg.PrayerTimesFile, sample); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s\n", configPath, cfg.PrayerTimesFile)

	return nil
}
