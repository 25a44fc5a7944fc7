package arbor

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/cache"
	"github.com/aretw0/arbor/pkg/control"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/runner"
	"github.com/aretw0/arbor/pkg/workflow"
)

// Version is the library version, embedded from the VERSION file at the
// repository root. Callers should strings.TrimSpace it before display.
//
//go:embed VERSION
var Version string

// Engine is the high-level entry point for the Arbor library.
// It wires the stores, the communicator and the process services behind a
// simplified API for consumers.
type Engine struct {
	comm       ports.Communicator
	processes  ports.ProcessStore
	workflows  ports.WorkflowStore
	logs       ports.LogStore
	cacheStore ports.CacheStore
	locker     ports.DistributedLocker
	registry   *registry.Registry
	metrics    *observability.Metrics
	logger     *slog.Logger
	timeout    time.Duration

	panel     *control.Panel
	responder *runner.Responder
	launcher  *runner.Launcher
	manager   *workflow.Manager
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithCommunicator injects a custom message bus, bypassing the default
// in-memory one.
func WithCommunicator(comm ports.Communicator) Option {
	return func(e *Engine) {
		e.comm = comm
	}
}

// WithStores injects the persistence backends. Any nil argument keeps the
// in-memory default for that store.
func WithStores(processes ports.ProcessStore, workflows ports.WorkflowStore, logs ports.LogStore) Option {
	return func(e *Engine) {
		if processes != nil {
			e.processes = processes
		}
		if workflows != nil {
			e.workflows = workflows
		}
		if logs != nil {
			e.logs = logs
		}
	}
}

// WithCacheStore injects the backend of the process function cache.
func WithCacheStore(store ports.CacheStore) Option {
	return func(e *Engine) {
		e.cacheStore = store
	}
}

// WithLocker guards workflow tree mutations with a distributed lock, for
// deployments where several engines share one store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithRegistry injects a pre-populated process function registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithMetrics enables instrumentation of commands, launches and cache
// lookups.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithControlTimeout bounds how long control commands wait for a reply.
func WithControlTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New initializes a new Arbor Engine.
// By default the engine is self-contained: an in-memory bus, in-memory
// stores and an empty registry. Inject adapters to share state with other
// engines or survive restarts.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{timeout: control.DefaultTimeout}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.timeout <= 0 {
		return nil, fmt.Errorf("control timeout must be positive, got %s", eng.timeout)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.comm == nil {
		eng.comm = memory.NewBus()
	}
	if eng.processes == nil || eng.workflows == nil || eng.logs == nil {
		// One shared store keeps pks and uuids in a single namespace.
		store := memory.NewStore()
		if eng.processes == nil {
			eng.processes = store
		}
		if eng.workflows == nil {
			eng.workflows = store
		}
		if eng.logs == nil {
			eng.logs = store
		}
	}
	if eng.cacheStore == nil {
		eng.cacheStore = memory.NewCacheStore()
	}
	if eng.registry == nil {
		eng.registry = registry.New()
	}

	wfOpts := []workflow.Option{workflow.WithLogger(eng.logger)}
	if eng.locker != nil {
		wfOpts = append(wfOpts, workflow.WithLocker(eng.locker))
	}
	eng.manager = workflow.NewManager(eng.workflows, eng.processes, eng.logs, wfOpts...)

	launchOpts := []runner.LauncherOption{
		runner.WithCache(cache.New(eng.cacheStore)),
		runner.WithCommunicator(eng.comm),
		runner.WithLauncherLogger(eng.logger),
	}
	panelOpts := []control.Option{
		control.WithTimeout(eng.timeout),
		control.WithLogger(eng.logger),
	}
	if eng.metrics != nil {
		launchOpts = append(launchOpts, runner.WithMetrics(eng.metrics))
		panelOpts = append(panelOpts, control.WithMetrics(eng.metrics))
	}

	eng.launcher = runner.NewLauncher(eng.registry, eng.processes, launchOpts...)
	eng.responder = runner.NewResponder(eng.comm, eng.processes, runner.WithResponderLogger(eng.logger))
	eng.panel = control.New(eng.comm, eng.processes, panelOpts...)

	return eng, nil
}

// Register adds a process function under its qualified name and version
// marker.
func (e *Engine) Register(name, version string, fn registry.ProcessFunction) error {
	return e.registry.Register(name, version, fn)
}

// Launch runs the named process function with the given inputs and returns
// the record of the run. Identical invocations of a function that already
// finished with exit status 0 are satisfied from the cache without
// executing.
func (e *Engine) Launch(ctx context.Context, name string, inputs cache.Inputs) (*domain.ProcessRecord, error) {
	return e.launcher.Launch(ctx, name, inputs)
}

// Guard starts answering control commands addressed to the process.
func (e *Engine) Guard(pk int) error {
	return e.responder.Guard(pk)
}

// Release stops answering control commands for the process.
func (e *Engine) Release(pk int) error {
	return e.responder.Release(pk)
}

// KillProcess asks a live process to kill itself. The boolean reports
// whether the process acknowledged the command.
func (e *Engine) KillProcess(ctx context.Context, pk int) (bool, error) {
	return e.panel.KillProcess(ctx, pk)
}

// PauseProcess asks a running process to move to waiting.
func (e *Engine) PauseProcess(ctx context.Context, pk int) (bool, error) {
	return e.panel.PauseProcess(ctx, pk)
}

// PlayProcess asks a waiting process to resume running.
func (e *Engine) PlayProcess(ctx context.Context, pk int) (bool, error) {
	return e.panel.PlayProcess(ctx, pk)
}

// Workflows returns the workflow tree manager.
func (e *Engine) Workflows() *workflow.Manager {
	return e.manager
}

// Processes returns the process record store.
func (e *Engine) Processes() ports.ProcessStore {
	return e.processes
}

// Registry returns the process function registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Panel returns the control panel used for kill, pause and play.
func (e *Engine) Panel() *control.Panel {
	return e.panel
}

// Communicator returns the underlying message bus.
func (e *Engine) Communicator() ports.Communicator {
	return e.comm
}

// Metrics returns the configured metrics, or nil when instrumentation is
// disabled.
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}

// Close releases the engine's messaging resources: guards are dropped and
// the communicator is disconnected. Close is idempotent.
func (e *Engine) Close() error {
	if err := e.responder.Close(); err != nil {
		e.logger.Warn("Failed to drop responder guards", "err", err)
	}
	return e.panel.Close()
}
