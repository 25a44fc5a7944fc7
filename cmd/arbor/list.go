package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored processes",
	Long: `Prints the stored process records, newest last. Filters combine: states
narrow to the given lifecycle states, --failed keeps only terminated
processes that did not finish cleanly.`,
	Run: func(cmd *cobra.Command, args []string) {
		rawStates, _ := cmd.Flags().GetStringSlice("process-state")
		failed, _ := cmd.Flags().GetBool("failed")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := ports.ProcessFilter{FailedOnly: failed, Limit: limit}
		for _, raw := range rawStates {
			state, err := domain.ParseProcessState(raw)
			if err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			filter.States = append(filter.States, state)
		}

		profile, logger, err := setup(cmd)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		engine, closeEngine, err := cli.NewEngine(profile, logger)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer func() { _ = closeEngine() }()

		recs, err := engine.Processes().ListProcesses(cmd.Context(), filter)
		if err != nil {
			fmt.Printf("Error listing processes: %v\n", err)
			os.Exit(1)
		}

		if len(recs) == 0 {
			fmt.Println("No processes found.")
			return
		}

		fmt.Printf("%-6s %-10s %-5s %-20s %s\n", "PK", "STATE", "EXIT", "CREATED", "LABEL")
		for _, r := range recs {
			exit := "-"
			if r.ExitStatus != nil {
				exit = fmt.Sprintf("%d", *r.ExitStatus)
			}
			state := tui.Label(r.State, fmt.Sprintf("%-10s", string(r.State)))
			fmt.Printf("%-6d %s %-5s %-20s %s\n", r.PK, state, exit, r.CTime.Format("2006-01-02 15:04:05"), r.Label)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringSlice("process-state", nil, "Only show processes in these states (repeatable)")
	listCmd.Flags().Bool("failed", false, "Only show terminated processes that did not finish cleanly")
	listCmd.Flags().Int("limit", 0, "Show at most this many records (0 = all)")
}
