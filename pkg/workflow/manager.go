package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates workflow trees, keeping the single-writer-per-tree
// rule: every mutation locks the tree's root uuid. Reads never lock.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	workflows ports.WorkflowStore
	processes ports.ProcessStore
	logs      ports.LogStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.DistributedLocker // Optional distributed locker
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking, extending single-writer-per-tree
// across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a workflow manager over the given stores.
func NewManager(workflows ports.WorkflowStore, processes ports.ProcessStore, logs ports.LogStore, opts ...Option) *Manager {
	m := &Manager{
		workflows: workflows,
		processes: processes,
		logs:      logs,
		locks:     make(map[string]*lockEntry),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after
// unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it
// reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// withTreeLock executes fn while holding the write lock of the tree that
// contains wf. The lock key is the ROOT uuid, so writers to any node of one
// tree serialize with each other.
func (m *Manager) withTreeLock(ctx context.Context, wf *domain.Workflow, fn func(context.Context) error) error {
	key := wf.Root().UUID

	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, 30*time.Second)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"workflow", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Create starts a new root workflow: fresh uuid, created status, persisted
// so the store assigns its pk.
func (m *Manager) Create(ctx context.Context, label string) (*domain.Workflow, error) {
	wf := domain.NewWorkflow(label)
	wf.UUID = uuid.NewString()
	if err := m.workflows.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to persist new workflow: %w", err)
	}
	m.logger.Debug("workflow created", "uuid", wf.UUID, "pk", wf.PK)
	return wf, nil
}

// Load retrieves a workflow by uuid.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Workflow, error) {
	return m.workflows.LoadWorkflow(ctx, id)
}
