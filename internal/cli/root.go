// Package cli implements the rejectly command-line interface using Cobra.
// Commands other than serve work directly against the local store.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rejectly",
	Short: "rejectly: rejection therapy quest engine",
	Long: `rejectly runs rejection-therapy quests: progress tracking, 100-day
challenges, time warnings, badges, notifications and live suggestions.

Run 'rejectly serve' to start the API and scheduled jobs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
