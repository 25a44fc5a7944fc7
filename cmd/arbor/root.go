package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor is a process control and workflow aggregation engine",
	Long: `Arbor runs registered functions as tracked processes, groups them into
workflow trees and lets you inspect and steer them while they run.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the profile file (default: $ARBOR_CONFIG, then ./arbor.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
}

// setup resolves the profile and logger shared by every command.
func setup(cmd *cobra.Command) (cli.Profile, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	profile, err := cli.LoadProfile(path)
	if err != nil {
		return profile, nil, err
	}
	return profile, cli.NewLogger(debug), nil
}

// runControlCommand applies one control verb to every pk argument.
func runControlCommand(cmd *cobra.Command, args []string, verb string) {
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

	sigCtx := cli.NewSignalContext(cmd.Context())
	defer sigCtx.Cancel()

	var fn cli.ControlFunc
	switch verb {
	case "kill":
		fn = engine.KillProcess
	case "pause":
		fn = engine.PauseProcess
	case "play":
		fn = engine.PlayProcess
	}

	if err := cli.RunControl(sigCtx, verb, pks, fn); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
