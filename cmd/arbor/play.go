package main

import (
	"github.com/spf13/cobra"
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play <pk>...",
	Short: "Resume one or more paused processes",
	Long: `Asks each paused target process to continue. Only waiting processes
accept a play; anything else replies with a rejection.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runControlCommand(cmd, args, "play")
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
}
