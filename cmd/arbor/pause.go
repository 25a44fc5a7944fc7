package main

import (
	"github.com/spf13/cobra"
)

// pauseCmd represents the pause command
var pauseCmd = &cobra.Command{
	Use:   "pause <pk>...",
	Short: "Pause one or more running processes",
	Long: `Asks each target process to hold at its next checkpoint. Only running
processes accept a pause; anything else replies with a rejection.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runControlCommand(cmd, args, "pause")
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
}
