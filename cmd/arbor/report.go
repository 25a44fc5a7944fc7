package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/domain"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report <uuid>",
	Short: "Print the report log of a workflow tree",
	Long: `Prints the report entries of the tree containing the given workflow.
Reports are kept per tree: asking any member prints the whole tree's log.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		levelname, _ := cmd.Flags().GetString("levelname")
		min, err := domain.ParseLogLevel(levelname)
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

		wf, err := engine.Workflows().Load(cmd.Context(), strings.TrimSpace(args[0]))
		if err != nil {
			fmt.Printf("Error loading workflow: %v\n", err)
			os.Exit(1)
		}

		entries, err := engine.Workflows().Report(cmd.Context(), wf, min)
		if err != nil {
			fmt.Printf("Error reading report: %v\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			fmt.Println("No report entries.")
			return
		}

		for _, e := range entries {
			fmt.Printf("%s [%d | %s]: %s\n", e.Time.Format("2006-01-02 15:04:05"), e.PK, e.Level, e.Message)
		}
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("levelname", string(domain.LevelReport), "Minimum log level to include")
}
