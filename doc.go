/*
Package arbor is a process control and workflow aggregation engine for
long-running computational work: provenance-tracked process records, live
control over a message bus, and nested workflow trees with shared report
logs.

It separates the durable facts (process records, workflow trees, report
logs) from the live control plane (commands, replies, state broadcasts), so
a process can be killed, paused or resumed from another program without
sharing memory with it.

# Concept

Every run is recorded as a process record moving through a fixed state
machine; terminal records are sealed and never change again. Workflows
nest into trees whose members share one report log, resolved at the tree
root. The engine manages persistence, control delivery and result reuse,
while your application ("Host") provides the process functions and decides
when to launch them. This Hexagonal Architecture allows Arbor to be
embedded in any interface: CLI, HTTP server, or MCP agent infrastructure.

# Key Features

  - Strict Lifecycle: state transitions are validated, terminal states are
    absorbing, and sealed records reject every mutation.
  - Live Control: kill, pause and play commands travel over a pluggable
    communicator with correlated replies and delivery timeouts.
  - Workflow Trees: nested sub-workflows with cascading kill and a report
    log aggregated at the tree root.
  - Result Reuse: process functions that finished successfully are
    memoized by a content hash of their identity and inputs.

# Usage

Initialize the engine, register process functions, and launch them. The
zero configuration uses in-memory adapters; inject Redis-backed ones to
share state across programs.

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/arbor"
		"github.com/aretw0/arbor/pkg/cache"
	)

	func main() {
		eng, err := arbor.New()
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		// Register a process function under a stable name and version.
		err = eng.Register("acme.add", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
			return "ref://sum", 0, nil
		})
		if err != nil {
			log.Fatal(err)
		}

		// Launch it. The returned record carries the pk, state and result
		// reference; an identical second launch is satisfied from the cache.
		ctx := context.Background()
		rec, err := eng.Launch(ctx, "acme.add", cache.Inputs{Args: []any{1, 2}})
		if err != nil {
			log.Fatal(err)
		}
		log.Println("finished:", rec.PK, rec.State, rec.ResultRef)
	}
*/
package arbor
