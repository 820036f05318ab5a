package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/courtvision/scoutgraph/internal/settings"
)

var rootCmd = &cobra.Command{
	Use:   "scoutd",
	Short: "Scoutd is a conversational basketball scouting backend",
	Long: `Scoutd answers league statistics questions and writes scouting reports,
pausing to let the user pick and confirm a player before a report is generated.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or JSON settings file")
}

func loadSettings(cmd *cobra.Command) (settings.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	return settings.Load(path, os.Environ())
}
