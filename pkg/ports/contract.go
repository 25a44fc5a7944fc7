package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProcessStoreContract runs a suite of tests to verify that a
// ProcessStore implementation adheres to the defined interface contract.
func RunProcessStoreContract(t *testing.T, store ProcessStore) {
	ctx := context.Background()

	t.Run("Save assigns monotonic pks", func(t *testing.T) {
		first := domain.NewProcessRecord("contract-first")
		second := domain.NewProcessRecord("contract-second")

		require.NoError(t, store.SaveProcess(ctx, first))
		require.NoError(t, store.SaveProcess(ctx, second))

		assert.Greater(t, first.PK, 0, "pk must be assigned on first save")
		assert.Greater(t, second.PK, first.PK, "pks must grow monotonically")
	})

	t.Run("Save and Load round-trip", func(t *testing.T) {
		rec := domain.NewProcessRecord("contract-roundtrip")
		rec.UUID = "contract-uuid-1"
		rec.Description = "round trip record"
		require.NoError(t, store.SaveProcess(ctx, rec))

		loaded, err := store.LoadProcess(ctx, rec.PK)
		require.NoError(t, err)
		assert.Equal(t, rec.PK, loaded.PK)
		assert.Equal(t, rec.UUID, loaded.UUID)
		assert.Equal(t, domain.StateCreated, loaded.State)
		assert.Equal(t, rec.Label, loaded.Label)
	})

	t.Run("Updates are visible after save", func(t *testing.T) {
		rec := domain.NewProcessRecord("contract-update")
		require.NoError(t, store.SaveProcess(ctx, rec))

		require.NoError(t, rec.Transition(domain.StateRunning))
		require.NoError(t, store.SaveProcess(ctx, rec))

		loaded, err := store.LoadProcess(ctx, rec.PK)
		require.NoError(t, err)
		assert.Equal(t, domain.StateRunning, loaded.State)
	})

	t.Run("Load unknown pk", func(t *testing.T) {
		_, err := store.LoadProcess(ctx, 987654)
		assert.ErrorIs(t, err, domain.ErrProcessNotFound)
	})

	t.Run("List filters by state", func(t *testing.T) {
		running := domain.NewProcessRecord("contract-list-running")
		require.NoError(t, store.SaveProcess(ctx, running))
		require.NoError(t, running.Transition(domain.StateRunning))
		require.NoError(t, store.SaveProcess(ctx, running))

		recs, err := store.ListProcesses(ctx, ProcessFilter{States: []domain.ProcessState{domain.StateRunning}})
		require.NoError(t, err)
		require.NotEmpty(t, recs)
		for _, r := range recs {
			assert.Equal(t, domain.StateRunning, r.State)
		}
	})

	t.Run("List failed only", func(t *testing.T) {
		failed := domain.NewProcessRecord("contract-list-failed")
		require.NoError(t, store.SaveProcess(ctx, failed))
		require.NoError(t, failed.Transition(domain.StateRunning))
		require.NoError(t, failed.Finish(2))
		require.NoError(t, store.SaveProcess(ctx, failed))

		recs, err := store.ListProcesses(ctx, ProcessFilter{FailedOnly: true})
		require.NoError(t, err)
		require.NotEmpty(t, recs)
		for _, r := range recs {
			assert.False(t, r.IsFinishedOK(), "failed listing must exclude successful records")
		}
	})
}

// RunWorkflowStoreContract verifies a WorkflowStore implementation.
func RunWorkflowStoreContract(t *testing.T, store WorkflowStore) {
	ctx := context.Background()

	t.Run("Save and Load by uuid", func(t *testing.T) {
		wf := domain.NewWorkflow("contract-wf")
		wf.UUID = "contract-wf-uuid-1"
		wf.Steps = append(wf.Steps, &domain.Step{Name: "start", Status: domain.StepRunning, Calculations: []int{11, 12}})

		require.NoError(t, store.SaveWorkflow(ctx, wf))
		assert.Greater(t, wf.PK, 0, "pk must be assigned on first save")

		loaded, err := store.LoadWorkflow(ctx, wf.UUID)
		require.NoError(t, err)
		assert.Equal(t, wf.PK, loaded.PK)
		require.Len(t, loaded.Steps, 1)
		assert.Equal(t, []int{11, 12}, loaded.Steps[0].Calculations)
	})

	t.Run("Load unknown uuid", func(t *testing.T) {
		_, err := store.LoadWorkflow(ctx, "contract-wf-missing")
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})
}

// RunLogStoreContract verifies a LogStore implementation.
func RunLogStoreContract(t *testing.T, store LogStore) {
	ctx := context.Background()
	owner := 4242

	t.Run("Append keeps order", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			entry := &domain.LogEntry{
				OwnerPK: owner,
				Level:   domain.LevelReport,
				Time:    time.Now().UTC(),
				Message: fmt.Sprintf("line %d", i),
			}
			require.NoError(t, store.AppendEntry(ctx, entry))
			assert.Greater(t, entry.PK, 0, "entry pk must be assigned")
		}

		entries, err := store.Entries(ctx, owner, domain.LevelDebug)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for i, e := range entries {
			assert.Equal(t, fmt.Sprintf("line %d", i), e.Message)
		}
	})

	t.Run("Entries filter by minimum level", func(t *testing.T) {
		quiet := owner + 1
		levels := []domain.LogLevel{domain.LevelDebug, domain.LevelInfo, domain.LevelReport, domain.LevelError}
		for _, lvl := range levels {
			require.NoError(t, store.AppendEntry(ctx, &domain.LogEntry{
				OwnerPK: quiet, Level: lvl, Time: time.Now().UTC(), Message: string(lvl),
			}))
		}

		entries, err := store.Entries(ctx, quiet, domain.LevelReport)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, string(domain.LevelReport), entries[0].Message)
		assert.Equal(t, string(domain.LevelError), entries[1].Message)
	})

	t.Run("Clear removes only the owner", func(t *testing.T) {
		other := owner + 2
		require.NoError(t, store.AppendEntry(ctx, &domain.LogEntry{OwnerPK: other, Level: domain.LevelReport, Time: time.Now().UTC(), Message: "keep"}))

		require.NoError(t, store.ClearEntries(ctx, owner))

		cleared, err := store.Entries(ctx, owner, domain.LevelDebug)
		require.NoError(t, err)
		assert.Empty(t, cleared)

		kept, err := store.Entries(ctx, other, domain.LevelDebug)
		require.NoError(t, err)
		assert.Len(t, kept, 1)
	})
}

// RunCacheStoreContract verifies a CacheStore implementation.
func RunCacheStoreContract(t *testing.T, store CacheStore) {
	ctx := context.Background()

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "contract-hash-1", []byte(`{"ref":"42"}`)))

		val, ok, err := store.Get(ctx, "contract-hash-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"ref":"42"}`, string(val))
	})

	t.Run("Miss is not an error", func(t *testing.T) {
		val, ok, err := store.Get(ctx, "contract-hash-missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("Put overwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "contract-hash-2", []byte("old")))
		require.NoError(t, store.Put(ctx, "contract-hash-2", []byte("new")))

		val, ok, err := store.Get(ctx, "contract-hash-2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "new", string(val))
	})
}

// RunCommunicatorContract verifies a Communicator implementation. The
// factory must return a fresh, connected instance per call; the suite
// disconnects what it creates.
func RunCommunicatorContract(t *testing.T, factory func(t *testing.T) Communicator) {
	ctx := context.Background()

	t.Run("Delivers in arrival order", func(t *testing.T) {
		comm := factory(t)
		defer func() { _ = comm.Disconnect() }()

		var mu sync.Mutex
		var got []string
		_, err := comm.Subscribe(SubscriptionFilter{}, func(_ context.Context, msg Message) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, msg.Subject)
		})
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			require.NoError(t, comm.Publish(ctx, Message{Sender: 1, Subject: fmt.Sprintf("subject.%d", i)}))
		}

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 5
		}, 2*time.Second, 10*time.Millisecond, "all messages must be delivered")

		mu.Lock()
		defer mu.Unlock()
		for i, subject := range got {
			assert.Equal(t, fmt.Sprintf("subject.%d", i), subject, "arrival order must be preserved")
		}
	})

	t.Run("Filters by sender", func(t *testing.T) {
		comm := factory(t)
		defer func() { _ = comm.Disconnect() }()

		var mu sync.Mutex
		var filtered, all int
		_, err := comm.Subscribe(FilterBySender(7), func(_ context.Context, msg Message) {
			mu.Lock()
			defer mu.Unlock()
			filtered++
		})
		require.NoError(t, err)
		_, err = comm.Subscribe(SubscriptionFilter{}, func(_ context.Context, msg Message) {
			mu.Lock()
			defer mu.Unlock()
			all++
		})
		require.NoError(t, err)

		require.NoError(t, comm.Publish(ctx, Message{Sender: 7, Subject: "hit"}))
		require.NoError(t, comm.Publish(ctx, Message{Sender: 8, Subject: "miss"}))

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return all == 2
		}, 2*time.Second, 10*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, filtered, "filtered handler must only see its sender")
	})

	t.Run("Closed subscription stops delivery", func(t *testing.T) {
		comm := factory(t)
		defer func() { _ = comm.Disconnect() }()

		var mu sync.Mutex
		var closedCount, liveCount int
		sub, err := comm.Subscribe(SubscriptionFilter{}, func(_ context.Context, _ Message) {
			mu.Lock()
			defer mu.Unlock()
			closedCount++
		})
		require.NoError(t, err)
		_, err = comm.Subscribe(SubscriptionFilter{}, func(_ context.Context, _ Message) {
			mu.Lock()
			defer mu.Unlock()
			liveCount++
		})
		require.NoError(t, err)

		require.NoError(t, sub.Close())
		require.NoError(t, comm.Publish(ctx, Message{Sender: 1, Subject: "after-close"}))

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return liveCount == 1
		}, 2*time.Second, 10*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Zero(t, closedCount, "closed subscription must not receive messages")
	})

	t.Run("Correlation id travels with the message", func(t *testing.T) {
		comm := factory(t)
		defer func() { _ = comm.Disconnect() }()

		var mu sync.Mutex
		var gotID string
		_, err := comm.Subscribe(SubscriptionFilter{}, func(_ context.Context, msg Message) {
			mu.Lock()
			defer mu.Unlock()
			gotID = msg.CorrelationID
		})
		require.NoError(t, err)

		require.NoError(t, comm.Publish(ctx, Message{Sender: 1, Subject: "corr", CorrelationID: "corr-1"}))

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return gotID == "corr-1"
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Await returns on cancellation", func(t *testing.T) {
		comm := factory(t)
		defer func() { _ = comm.Disconnect() }()

		cancelCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- comm.Await(cancelCtx) }()

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("Await did not return after cancellation")
		}
	})

	t.Run("Disconnect is idempotent", func(t *testing.T) {
		comm := factory(t)

		require.NoError(t, comm.Disconnect())
		require.NoError(t, comm.Disconnect(), "second disconnect must be a no-op")

		err := comm.Publish(ctx, Message{Sender: 1, Subject: "late"})
		assert.Error(t, err, "publish after disconnect must fail locally")
	})
}
