package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"audiomix/config"
	"audiomix/mixer"
	"audiomix/settings"

	"github.com/spf13/cobra"
)

// volumeCmd reads or sets the persisted master volume
var volumeCmd = &cobra.Command{
	Use:   "volume [percent]",
	Short: "Show or set the master volume",
	Long: `Show or set the master volume stored in the settings file, in percent
from 0 to 200. Values outside that range are clamped. A running mixer picks
the new value up on its next start.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSettings()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			percent, err := strconv.Atoi(strings.TrimSuffix(args[0], "%"))
			if err != nil {
				return fmt.Errorf("invalid volume %q: %w", args[0], err)
			}
			percent = max(0, min(percent, mixer.MaxVolumePercent))
			store.Set(settings.KeyMasterVolume, percent)
			if err := store.Sync(); err != nil {
				return err
			}
		}

		volume, _ := settings.LoadMaster(store)
		fmt.Fprintf(cmd.OutOrStdout(), "Master volume: %d%%\n", volume)
		return nil
	},
}

// muteCmd reads or sets the persisted master mute
var muteCmd = &cobra.Command{
	Use:       "mute [on|off]",
	Short:     "Show or set the master mute",
	Long:      "Show or set the master mute stored in the settings file.",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off", "true", "false"},
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSettings()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			muted := args[0] == "on" || args[0] == "true"
			store.Set(settings.KeyMasterMute, muted)
			if err := store.Sync(); err != nil {
				return err
			}
		}

		_, muted := settings.LoadMaster(store)
		state := "off"
		if muted {
			state = "on"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Master mute: %s\n", state)
		return nil
	},
}

func openSettings() (*settings.ViperStore, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, err := settings.NewViperStore(cfg.Settings.File)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func init() {
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(muteCmd)
}
