package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aforren1/replan-2finger/internal/config"
)

var (
	cfgFile  string
	settings = config.New()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:          "replan",
	Short:        "Timed-response finger replanning experiment",
	Long:         `Presents a target, switches it at a controlled time before the last of four metronome clicks and records which finger responds on the beat.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./replan.yaml)")
}
