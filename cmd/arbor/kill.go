package main

import (
	"github.com/spf13/cobra"
)

// killCmd represents the kill command
var killCmd = &cobra.Command{
	Use:   "kill <pk>...",
	Short: "Kill one or more processes",
	Long: `Sends a kill command to each target process and waits for the reply.

Killing a workflow process cascades to every live descendant in its tree.
A target that already reached a terminal state is reported and skipped; a
reply that does not arrive within the configured timeout counts as a hard
failure.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runControlCommand(cmd, args, "kill")
	},
}

func init() {
	rootCmd.AddCommand(killCmd)
}
