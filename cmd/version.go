package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information, set during build
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version, git commit, and build date information for audiomix.",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "audiomix version %s\n", Version)
		fmt.Fprintf(w, "Git commit: %s\n", GitCommit)
		fmt.Fprintf(w, "Built: %s\n", BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
