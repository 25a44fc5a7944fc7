package runner

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/cache"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/google/uuid"
)

// Launcher runs registered process functions, recording each run as a
// process record and short-circuiting repeats through the function cache.
type Launcher struct {
	registry *registry.Registry
	store    ports.ProcessStore

	cache   *cache.Cache
	comm    ports.Communicator
	metrics *observability.Metrics
	logger  *slog.Logger
}

// LauncherOption configures the Launcher.
type LauncherOption func(*Launcher)

// WithCache enables result reuse for identical invocations.
func WithCache(c *cache.Cache) LauncherOption {
	return func(l *Launcher) {
		l.cache = c
	}
}

// WithCommunicator enables state change broadcasts for launched processes.
func WithCommunicator(comm ports.Communicator) LauncherOption {
	return func(l *Launcher) {
		l.comm = comm
	}
}

// WithMetrics enables launch instrumentation.
func WithMetrics(m *observability.Metrics) LauncherOption {
	return func(l *Launcher) {
		l.metrics = m
	}
}

// WithLauncherLogger configures a logger for the Launcher.
func WithLauncherLogger(logger *slog.Logger) LauncherOption {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// NewLauncher creates a launcher over the given registry and store.
func NewLauncher(reg *registry.Registry, store ports.ProcessStore, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		registry: reg,
		store:    store,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch runs the named function with the given inputs and returns the
// process record of the run.
//
// With a cache configured, an invocation whose identity and inputs hash to
// a stored result finishes immediately with the recorded reference, without
// executing. Only successful runs (exit status 0) are stored for reuse.
//
// A function error excepts the record; the record is returned together with
// the wrapped error. A non-zero exit status is a controlled failure: the
// record finishes with that status and Launch returns no error.
func (l *Launcher) Launch(ctx context.Context, name string, inputs cache.Inputs) (*domain.ProcessRecord, error) {
	entry, err := l.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	id := entry.Identity()

	if l.cache != nil {
		ref, hit, err := l.cache.Lookup(ctx, id, inputs)
		if err != nil {
			return nil, fmt.Errorf("failed to consult the cache for %s: %w", name, err)
		}
		if l.metrics != nil {
			l.metrics.ObserveCacheLookup(hit)
		}
		if hit {
			return l.finishFromCache(ctx, entry, ref)
		}
	}

	rec, err := l.startRecord(ctx, entry)
	if err != nil {
		return nil, err
	}

	ref, exitStatus, fnErr := entry.Fn(ctx, inputs)
	if fnErr != nil {
		old := rec.State
		if err := rec.Except(); err != nil {
			return rec, fmt.Errorf("process %d: %w", rec.PK, err)
		}
		if err := l.store.SaveProcess(ctx, rec); err != nil {
			return rec, fmt.Errorf("failed to persist excepted process %d: %w", rec.PK, err)
		}
		broadcastStateChange(ctx, l.comm, l.logger, rec.PK, old, rec.State)
		l.observeLaunch(observability.LaunchExcepted)
		return rec, fmt.Errorf("process function %s excepted: %w", name, fnErr)
	}

	old := rec.State
	rec.ResultRef = ref
	if err := rec.Finish(exitStatus); err != nil {
		return rec, fmt.Errorf("process %d: %w", rec.PK, err)
	}
	if err := l.store.SaveProcess(ctx, rec); err != nil {
		return rec, fmt.Errorf("failed to persist finished process %d: %w", rec.PK, err)
	}
	broadcastStateChange(ctx, l.comm, l.logger, rec.PK, old, rec.State)
	l.observeLaunch(observability.LaunchFinished)

	if l.cache != nil && rec.IsFinishedOK() {
		if _, err := l.cache.Store(ctx, id, inputs, ref); err != nil {
			// The run itself succeeded; a cold cache is the only consequence.
			l.logger.Warn("Failed to store cache entry", "function", name, "err", err)
		}
	}

	logging.WithProcess(l.logger, rec.PK).Info("process finished", "function", name, "exit_status", exitStatus)
	return rec, nil
}

// finishFromCache materializes a finished record from a cached result.
func (l *Launcher) finishFromCache(ctx context.Context, entry registry.Entry, ref string) (*domain.ProcessRecord, error) {
	rec, err := l.startRecord(ctx, entry)
	if err != nil {
		return nil, err
	}

	old := rec.State
	rec.ResultRef = ref
	if err := rec.Finish(0); err != nil {
		return rec, fmt.Errorf("process %d: %w", rec.PK, err)
	}
	if err := l.store.SaveProcess(ctx, rec); err != nil {
		return rec, fmt.Errorf("failed to persist cached process %d: %w", rec.PK, err)
	}
	broadcastStateChange(ctx, l.comm, l.logger, rec.PK, old, rec.State)
	l.observeLaunch(observability.LaunchCached)

	logging.WithProcess(l.logger, rec.PK).Info("process satisfied from cache", "function", entry.Name, "ref", ref)
	return rec, nil
}

// startRecord persists a fresh record and moves it to running.
func (l *Launcher) startRecord(ctx context.Context, entry registry.Entry) (*domain.ProcessRecord, error) {
	rec := domain.NewProcessRecord(entry.Name)
	rec.UUID = uuid.NewString()
	rec.ProcessType = entry.Name
	if err := l.store.SaveProcess(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist new process: %w", err)
	}

	old := rec.State
	if err := rec.Transition(domain.StateRunning); err != nil {
		return nil, fmt.Errorf("process %d: %w", rec.PK, err)
	}
	if err := l.store.SaveProcess(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist running process %d: %w", rec.PK, err)
	}
	broadcastStateChange(ctx, l.comm, l.logger, rec.PK, old, rec.State)
	return rec, nil
}

func (l *Launcher) observeLaunch(result string) {
	if l.metrics == nil {
		return
	}
	l.metrics.ObserveLaunch(result)
}
