package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <pk>",
	Short: "Show the stored record of one process",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pks, err := cli.ParsePKs(args)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
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

		rec, err := engine.Processes().LoadProcess(cmd.Context(), pks[0])
		if err != nil {
			fmt.Printf("Error loading process: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("PK:           %d\n", rec.PK)
		fmt.Printf("UUID:         %s\n", rec.UUID)
		fmt.Printf("Label:        %s\n", rec.Label)
		if rec.ProcessType != "" {
			fmt.Printf("Type:         %s\n", rec.ProcessType)
		}
		fmt.Printf("State:        %s\n", tui.State(rec.State))
		if rec.ExitStatus != nil {
			fmt.Printf("Exit status:  %d\n", *rec.ExitStatus)
		}
		fmt.Printf("Sealed:       %t\n", rec.Sealed)
		if rec.ResultRef != "" {
			fmt.Printf("Result:       %s\n", rec.ResultRef)
		}
		if rec.Description != "" {
			fmt.Printf("Description:  %s\n", rec.Description)
		}
		fmt.Printf("Created:      %s\n", rec.CTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("Modified:     %s\n", rec.MTime.Format("2006-01-02 15:04:05"))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
