package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// RunWatch streams process state changes to stdout until the context is
// cancelled. With pks it follows only those processes, otherwise everything
// on the broker.
func RunWatch(sigCtx *SignalContext, comm ports.Communicator, pks []int) error {
	handler := func(ctx context.Context, msg ports.Message) {
		if msg.Subject != domain.SubjectStateChange {
			return
		}
		var change domain.StateChange
		if err := ports.DecodeBody(msg.Body, &change); err != nil {
			return
		}
		fmt.Printf("Process %d: %s -> %s\n", change.PK, tui.State(change.OldState), tui.State(change.NewState))
	}

	// One subscription per followed pk; the zero filter follows everything.
	filters := []ports.SubscriptionFilter{{}}
	if len(pks) > 0 {
		filters = filters[:0]
		for _, pk := range pks {
			filters = append(filters, ports.FilterBySender(pk))
		}
	}

	subs := make([]ports.Subscription, 0, len(filters))
	for _, f := range filters {
		sub, err := comm.Subscribe(f, handler)
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		subs = append(subs, sub)
	}
	defer func() {
		for _, s := range subs {
			_ = s.Close()
		}
	}()

	if len(pks) > 0 {
		printSystemMessage("Watching %d process(es). Press Ctrl+C to stop.", len(pks))
	} else {
		printSystemMessage("Watching all processes. Press Ctrl+C to stop.")
	}

	err := comm.Await(sigCtx)
	if isInterrupted(err) {
		if sigCtx.Signal() != nil {
			fmt.Printf("\n")
		}
		printSystemMessage("Watcher stopped.")
		return nil
	}
	return err
}
