package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/cache"
)

// arbor-seed populates the configured backend with a small demo tree so
// that list, tree, report and the HTTP surface have something to show.
// With the default memory profile the data evaporates on exit; point it
// at a redis profile to seed a shared backend.
func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	profile, err := cli.LoadProfile(configPath)
	if err != nil {
		fmt.Printf("Failed to load profile: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeding demo data (transport: %s)\n", profile.Transport)

	engine, closeEngine, err := cli.NewEngine(profile, cli.NewLogger(false))
	if err != nil {
		fmt.Printf("Failed to initialize engine: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeEngine() }()

	ctx := context.Background()

	// 1. Register the demo functions.
	mustRegister(engine.Register("demo.scf", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		return "ref://outputs/demo-scf", 0, nil
	}))
	mustRegister(engine.Register("demo.bands", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		// Finishes with a non-zero exit status so `list --failed` has a hit.
		return "", 410, nil
	}))

	// 2. Launch them as tracked processes.
	scf, err := engine.Launch(ctx, "demo.scf", cache.Inputs{Kwargs: map[string]any{"cutoff": 520}})
	if err != nil {
		fmt.Printf("Launch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Launched demo.scf <%d> (%s)\n", scf.PK, scf.State)

	bands, err := engine.Launch(ctx, "demo.bands", cache.Inputs{Kwargs: map[string]any{"kpoints": 64}})
	if err != nil {
		fmt.Printf("Launch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Launched demo.bands <%d> (%s)\n", bands.PK, bands.State)

	// 3. Group them into a workflow tree.
	trees := engine.Workflows()

	root, err := trees.Create(ctx, "demo.relax")
	if err != nil {
		fmt.Printf("Create workflow failed: %v\n", err)
		os.Exit(1)
	}
	child, err := trees.Create(ctx, "demo.scf_cycle")
	if err != nil {
		fmt.Printf("Create workflow failed: %v\n", err)
		os.Exit(1)
	}

	if _, err := trees.GetOrCreateStep(ctx, root, "start"); err != nil {
		fmt.Printf("Step failed: %v\n", err)
		os.Exit(1)
	}
	if err := trees.AttachCalculation(ctx, root, "start", scf.PK); err != nil {
		fmt.Printf("Attach failed: %v\n", err)
		os.Exit(1)
	}
	if err := trees.AttachSubworkflow(ctx, root, "start", child); err != nil {
		fmt.Printf("Attach failed: %v\n", err)
		os.Exit(1)
	}
	if _, err := trees.GetOrCreateStep(ctx, child, "start"); err != nil {
		fmt.Printf("Step failed: %v\n", err)
		os.Exit(1)
	}
	if err := trees.AttachCalculation(ctx, child, "start", bands.PK); err != nil {
		fmt.Printf("Attach failed: %v\n", err)
		os.Exit(1)
	}
	if err := trees.RecordNext(ctx, root, "start", "analyze"); err != nil {
		fmt.Printf("Record next failed: %v\n", err)
		os.Exit(1)
	}

	// 4. Leave a few report lines on the shared tree log.
	for _, msg := range []string{
		"seed: scf cycle converged in 14 iterations",
		"seed: band structure computed on 64 k-points",
	} {
		if err := trees.AppendReport(ctx, child, msg); err != nil {
			fmt.Printf("Report failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println()
	fmt.Printf("Root workflow:  %s\n", root.UUID)
	fmt.Printf("Child workflow: %s\n", child.UUID)
	fmt.Println()
	fmt.Println("Try:")
	fmt.Printf("  arbor list\n")
	fmt.Printf("  arbor tree %s\n", root.UUID)
	fmt.Printf("  arbor report %s\n", child.UUID)
	fmt.Printf("  arbor status %d\n", scf.PK)
}

func mustRegister(err error) {
	if err != nil {
		fmt.Printf("Register failed: %v\n", err)
		os.Exit(1)
	}
}
