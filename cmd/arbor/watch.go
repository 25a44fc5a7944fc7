package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [pk]...",
	Short: "Stream process state changes",
	Long: `Subscribes to the broker and prints every process state change as it is
broadcast. With pk arguments, only those processes are followed. Runs
until interrupted.`,
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

		// No banner when the output is piped.
		if term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(strings.TrimSpace(arbor.Version))
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		if err := cli.RunWatch(sigCtx, engine.Communicator(), pks); err != nil {
			fmt.Printf("Watcher error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
