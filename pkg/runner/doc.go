/*
Package runner implements the process-side half of the control protocol and
the launching of registered process functions.

It acts as the bridge between persistent process records and the rest of the
system: the responder answers control commands addressed to the processes it
guards, and the launcher executes registered functions with result caching
and state broadcasts.

# Key Components

  - Responder: answers kill/pause/play commands for guarded process pks and
    broadcasts every successful state change.
  - Launcher: runs registered process functions, reusing cached results for
    invocations it has already seen.

# Usage

	resp := runner.NewResponder(comm, store)
	if err := resp.Guard(rec.PK); err != nil {
		log.Fatal(err)
	}
	defer resp.Close()

	launcher := runner.NewLauncher(reg, store,
		runner.WithCache(cache.New(cacheStore)),
		runner.WithCommunicator(comm),
	)
	rec, err := launcher.Launch(ctx, "quantum.relax", inputs)
*/
package runner
