package cmd

import (
	"fmt"
	"log/slog"

	"audiomix/config"
	"audiomix/logger"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing and validating audiomix configuration.",
}

// configValidateCmd validates the current configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the current configuration file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging for validation
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		// Validate configuration
		if err := cfg.Validate(); err != nil {
			slog.Error("Configuration validation failed", slog.Any("error", err))
			return err
		}

		slog.Info("Configuration is valid")
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Configuration is valid")
		return nil
	},
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration values from file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Current Configuration:")
		fmt.Fprintf(w, "  Mixer:\n")
		fmt.Fprintf(w, "    Buffer size: %d frames\n", cfg.Mixer.BufferSize)
		fmt.Fprintf(w, "    Sample rate: %d Hz\n", cfg.Mixer.SampleRate)
		fmt.Fprintf(w, "    Stream capacity: %d frames\n", cfg.Mixer.StreamCapacity)
		fmt.Fprintf(w, "    Fade steps: %d\n", cfg.Mixer.FadeSteps)
		fmt.Fprintf(w, "  Sink:\n")
		fmt.Fprintf(w, "    Driver: %s\n", cfg.Sink.Driver)
		fmt.Fprintf(w, "    Path: %s\n", cfg.Sink.Path)
		fmt.Fprintf(w, "    Buffer: %s\n", cfg.Sink.Buffer)
		if cfg.Sink.Driver == "ffmpeg" {
			fmt.Fprintf(w, "    Format: %s\n", cfg.Sink.Format)
			fmt.Fprintf(w, "    FFmpeg: %s\n", cfg.Sink.FFmpeg)
		}
		fmt.Fprintf(w, "  Settings:\n")
		fmt.Fprintf(w, "    File: %s\n", cfg.Settings.File)
		fmt.Fprintf(w, "    Sync interval: %s\n", cfg.Settings.SyncInterval)
		fmt.Fprintf(w, "  Playback:\n")
		fmt.Fprintf(w, "    Loop: %t\n", cfg.Playback.Loop)
		fmt.Fprintf(w, "  Logging:\n")
		fmt.Fprintf(w, "    Level: %s\n", cfg.Logging.Level)
		fmt.Fprintf(w, "    Format: %s\n", cfg.Logging.Format)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
