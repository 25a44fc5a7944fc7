package runner_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/cache"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relaxInputs() cache.Inputs {
	return cache.Inputs{
		Args:   []any{"structure-42"},
		Kwargs: map[string]any{"cutoff": 520, "kpoints": []any{4, 4, 4}},
	}
}

func TestLaunch_Success(t *testing.T) {
	store := memory.NewStore()
	reg := registry.New()
	require.NoError(t, reg.Register("quantum.relax", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		return "ref://outputs/relax/1", 0, nil
	}))
	launcher := runner.NewLauncher(reg, store)

	rec, err := launcher.Launch(context.Background(), "quantum.relax", relaxInputs())
	require.NoError(t, err)

	assert.Equal(t, domain.StateFinished, rec.State)
	assert.True(t, rec.IsFinishedOK())
	assert.True(t, rec.Sealed)
	assert.Equal(t, "ref://outputs/relax/1", rec.ResultRef)
	assert.Equal(t, "quantum.relax", rec.ProcessType)
	assert.NotEmpty(t, rec.UUID)
	assert.Positive(t, rec.PK)

	stored, err := store.LoadProcess(context.Background(), rec.PK)
	require.NoError(t, err)
	assert.Equal(t, rec.State, stored.State)
	assert.Equal(t, rec.ResultRef, stored.ResultRef)
}

func TestLaunch_ControlledFailure(t *testing.T) {
	store := memory.NewStore()
	reg := registry.New()
	require.NoError(t, reg.Register("quantum.relax", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		return "", 412, nil
	}))
	launcher := runner.NewLauncher(reg, store)

	// A non-zero exit status is a result, not an error.
	rec, err := launcher.Launch(context.Background(), "quantum.relax", relaxInputs())
	require.NoError(t, err)

	assert.Equal(t, domain.StateFinished, rec.State)
	assert.False(t, rec.IsFinishedOK())
	require.NotNil(t, rec.ExitStatus)
	assert.Equal(t, 412, *rec.ExitStatus)
}

func TestLaunch_Excepted(t *testing.T) {
	store := memory.NewStore()
	reg := registry.New()
	boom := errors.New("scf cycle diverged")
	require.NoError(t, reg.Register("quantum.relax", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		return "", 0, boom
	}))
	launcher := runner.NewLauncher(reg, store)

	rec, err := launcher.Launch(context.Background(), "quantum.relax", relaxInputs())
	require.ErrorIs(t, err, boom)
	require.NotNil(t, rec)

	assert.Equal(t, domain.StateExcepted, rec.State)
	assert.True(t, rec.Sealed)
	assert.Nil(t, rec.ExitStatus)
}

func TestLaunch_NotRegistered(t *testing.T) {
	launcher := runner.NewLauncher(registry.New(), memory.NewStore())

	_, err := launcher.Launch(context.Background(), "quantum.relax", relaxInputs())
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestLaunch_CacheHitSkipsExecution(t *testing.T) {
	store := memory.NewStore()
	reg := registry.New()
	var executions atomic.Int64
	require.NoError(t, reg.Register("quantum.relax", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		executions.Add(1)
		return "ref://outputs/relax/1", 0, nil
	}))
	launcher := runner.NewLauncher(reg, store, runner.WithCache(cache.New(memory.NewCacheStore())))

	ctx := context.Background()
	first, err := launcher.Launch(ctx, "quantum.relax", relaxInputs())
	require.NoError(t, err)
	second, err := launcher.Launch(ctx, "quantum.relax", relaxInputs())
	require.NoError(t, err)

	assert.EqualValues(t, 1, executions.Load(), "second launch must come from the cache")

	// The cached run is a fresh record with the original result reference.
	assert.NotEqual(t, first.PK, second.PK)
	assert.Equal(t, first.ResultRef, second.ResultRef)
	assert.Equal(t, domain.StateFinished, second.State)
	assert.True(t, second.IsFinishedOK())
}

func TestLaunch_DifferentInputsExecute(t *testing.T) {
	store := memory.NewStore()
	reg := registry.New()
	var executions atomic.Int64
	require.NoError(t, reg.Register("quantum.relax", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		executions.Add(1)
		return "ref://outputs", 0, nil
	}))
	launcher := runner.NewLauncher(reg, store, runner.WithCache(cache.New(memory.NewCacheStore())))

	ctx := context.Background()
	_, err := launcher.Launch(ctx, "quantum.relax", relaxInputs())
	require.NoError(t, err)

	other := relaxInputs()
	other.Kwargs["cutoff"] = 640
	_, err = launcher.Launch(ctx, "quantum.relax", other)
	require.NoError(t, err)

	assert.EqualValues(t, 2, executions.Load())
}

func TestLaunch_FailuresAreNotCached(t *testing.T) {
	store := memory.NewStore()
	reg := registry.New()
	var executions atomic.Int64
	require.NoError(t, reg.Register("quantum.relax", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		if executions.Add(1) == 1 {
			return "", 412, nil
		}
		return "ref://outputs/retry", 0, nil
	}))
	launcher := runner.NewLauncher(reg, store, runner.WithCache(cache.New(memory.NewCacheStore())))

	ctx := context.Background()
	first, err := launcher.Launch(ctx, "quantum.relax", relaxInputs())
	require.NoError(t, err)
	require.False(t, first.IsFinishedOK())

	// The failed run left no cache entry, so the retry really runs.
	second, err := launcher.Launch(ctx, "quantum.relax", relaxInputs())
	require.NoError(t, err)
	assert.EqualValues(t, 2, executions.Load())
	assert.True(t, second.IsFinishedOK())
}

func TestLaunch_VersionChangesIdentity(t *testing.T) {
	cacheStore := memory.NewCacheStore()
	ctx := context.Background()

	var executions atomic.Int64
	launchWith := func(version string) *domain.ProcessRecord {
		reg := registry.New()
		require.NoError(t, reg.Register("quantum.relax", version, func(ctx context.Context, in cache.Inputs) (string, int, error) {
			executions.Add(1)
			return "ref://outputs/" + version, 0, nil
		}))
		launcher := runner.NewLauncher(reg, memory.NewStore(), runner.WithCache(cache.New(cacheStore)))
		rec, err := launcher.Launch(ctx, "quantum.relax", relaxInputs())
		require.NoError(t, err)
		return rec
	}

	launchWith("1.0")
	// Same name and inputs under a new version marker must not reuse 1.0.
	rec := launchWith("2.0")

	assert.EqualValues(t, 2, executions.Load())
	assert.Equal(t, "ref://outputs/2.0", rec.ResultRef)
}

func TestLaunch_BroadcastsLifecycle(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Disconnect()
	store := memory.NewStore()
	reg := registry.New()
	require.NoError(t, reg.Register("quantum.relax", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		return "ref://outputs", 0, nil
	}))
	launcher := runner.NewLauncher(reg, store, runner.WithCommunicator(bus))

	var got []domain.StateChange
	changes := make(chan domain.StateChange, 8)
	_, err := bus.Subscribe(ports.SubscriptionFilter{}, func(_ context.Context, msg ports.Message) {
		if msg.Subject != domain.SubjectStateChange {
			return
		}
		var change domain.StateChange
		if err := ports.DecodeBody(msg.Body, &change); err != nil {
			return
		}
		changes <- change
	})
	require.NoError(t, err)

	rec, err := launcher.Launch(context.Background(), "quantum.relax", relaxInputs())
	require.NoError(t, err)

	for len(got) < 2 {
		select {
		case change := <-changes:
			got = append(got, change)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d broadcasts, want 2", len(got))
		}
	}

	assert.Equal(t, domain.StateChange{PK: rec.PK, OldState: domain.StateCreated, NewState: domain.StateRunning}, got[0])
	assert.Equal(t, domain.StateChange{PK: rec.PK, OldState: domain.StateRunning, NewState: domain.StateFinished}, got[1])
}

func TestLaunch_RecordsMetrics(t *testing.T) {
	store := memory.NewStore()
	reg := registry.New()
	require.NoError(t, reg.Register("quantum.relax", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		return "ref://outputs", 0, nil
	}))
	metrics := observability.NewMetrics()
	launcher := runner.NewLauncher(reg, store,
		runner.WithCache(cache.New(memory.NewCacheStore())),
		runner.WithMetrics(metrics),
	)

	ctx := context.Background()
	_, err := launcher.Launch(ctx, "quantum.relax", relaxInputs())
	require.NoError(t, err)
	_, err = launcher.Launch(ctx, "quantum.relax", relaxInputs())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `arbor_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, body, `arbor_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `arbor_launches_total{result="finished"} 1`)
	assert.Contains(t, body, `arbor_launches_total{result="cached"} 1`)
}
