package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

func TestRunWatch_StopsOnCancel(t *testing.T) {
	bus := memory.NewBus()
	t.Cleanup(func() { _ = bus.Disconnect() })

	sigCtx := NewSignalContext(context.Background())

	done := make(chan error, 1)
	go func() { done <- RunWatch(sigCtx, bus, []int{7}) }()

	change := domain.StateChange{PK: 7, OldState: domain.StateRunning, NewState: domain.StateWaiting}
	require.NoError(t, bus.Publish(context.Background(), ports.Message{
		Sender:  7,
		Subject: domain.SubjectStateChange,
		Body:    change.Body(),
	}))

	sigCtx.Cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is a clean stop")
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}
