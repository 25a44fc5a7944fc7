package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/observability"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the arbor engine in server mode, exposing process records,
workflow trees, the control panel and prometheus metrics over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		profile, logger, err := setup(cmd)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if addr, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
			profile.HTTPAddr = addr
		}

		metrics := observability.NewMetrics()
		engine, closeEngine, err := cli.NewEngine(profile, logger, arbor.WithMetrics(metrics))
		if err != nil {
			fmt.Printf("Error initializing arbor: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = closeEngine() }()

		handler := httpAdapter.NewHandler(httpAdapter.Config{
			Processes: engine.Processes(),
			Trees:     engine.Workflows(),
			Panel:     engine,
			Metrics:   metrics,
			Logger:    logger,
		})

		srv := &http.Server{
			Addr:    profile.HTTPAddr,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Arbor Server on %s\n", srv.Addr)
			fmt.Printf("Transport: %s\n", profile.Transport)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			// Error when starting HTTP server.
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Arbor Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8321", "Address to listen on (overrides the profile)")
}
