package main

import (
	"github.com/spf13/cobra"
)

var quiet bool

var rootCmd = &cobra.Command{
	Use:   "polyfile",
	Short: "Polyfile - recursively map the structure of a file",
	Long: `Polyfile identifies every file format a file matches and recursively maps
the formats embedded within already-matched regions (polyglot detection).
It prints one line per discovered region and a JSON tree of all root matches.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
