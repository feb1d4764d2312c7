package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audiomix/config"
	"audiomix/logger"
	"audiomix/machine"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool

	toneFreq     float64
	toneDuration time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "audiomix [files...]",
	Short: "A real-time multi-client audio mixing service",
	Long: `Audiomix mixes any number of client streams into one output device.

Every client appends stereo samples to its own stream; a single mixing loop
applies per-stream and master volume and writes fixed-size 16-bit buffers to
the configured output. Master volume and mute survive restarts.

Files given as arguments, and the optional test tone, are played as clients.`,
	RunE: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("settings", "settings.yaml", "file holding the persisted master volume and mute")

	// Local flags for the server command
	rootCmd.Flags().StringP("driver", "d", "device", "output driver (device, oto, miniaudio, wav, ffmpeg, null)")
	rootCmd.Flags().StringP("output", "o", "/dev/dsp", "device path, wav file or ffmpeg target")
	rootCmd.Flags().IntP("rate", "r", 44100, "sample rate in Hz")
	rootCmd.Flags().IntP("buffer-size", "b", 1024, "frames mixed per cycle")
	rootCmd.Flags().Bool("loop", false, "repeat files until stopped")
	rootCmd.Flags().Float64Var(&toneFreq, "tone", 0, "also play a sine tone at this frequency in Hz")
	rootCmd.Flags().DurationVar(&toneDuration, "tone-duration", 0, "tone length (0 plays until stopped)")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("settings.file", rootCmd.PersistentFlags().Lookup("settings"))
	viper.BindPFlag("sink.driver", rootCmd.Flags().Lookup("driver"))
	viper.BindPFlag("sink.path", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("mixer.sample_rate", rootCmd.Flags().Lookup("rate"))
	viper.BindPFlag("mixer.buffer_size", rootCmd.Flags().Lookup("buffer-size"))
	viper.BindPFlag("playback.loop", rootCmd.Flags().Lookup("loop"))
	viper.BindPFlag("logging.level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.Flags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// sources turns the positional files and the tone flag into producers
func sources(args []string) []machine.Source {
	var srcs []machine.Source
	for _, path := range args {
		srcs = append(srcs, machine.Source{Path: path})
	}
	if toneFreq > 0 {
		srcs = append(srcs, machine.Source{Tone: toneFreq, Duration: toneDuration})
	}
	return srcs
}

// runServer starts the main application
func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Setup logging
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	// Create and initialize the machine
	m := machine.New(cfg, sources(args)...)
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize machine: %w", err)
	}

	// Start the machine
	if err := m.Start(); err != nil {
		m.Stop()
		return fmt.Errorf("failed to start machine: %w", err)
	}

	// Setup graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or error
	select {
	case sig := <-signalChan:
		fmt.Printf("\nReceived %s, shutting down gracefully...\n", sig)
	case err := <-m.Error():
		fmt.Printf("Error occurred: %v\n", err)
	}

	// Graceful shutdown
	if err := m.Stop(); err != nil {
		return fmt.Errorf("failed to stop machine gracefully: %w", err)
	}

	return nil
}
