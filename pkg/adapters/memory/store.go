package memory

import (
	"context"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Store implements ports.ProcessStore, ports.WorkflowStore and
// ports.LogStore in memory, sharing one monotonic pk sequence the way a
// single database would. Safe for concurrent use.
//
// Process records and log entries are copied on save and load so callers
// cannot mutate stored data through retained pointers. Workflow trees are
// held by reference: step identity must survive repeated lookups, and the
// workflow engine serializes writers per tree.
type Store struct {
	mu        sync.RWMutex
	nextPK    int
	processes map[int]*domain.ProcessRecord
	workflows map[string]*domain.Workflow
	logs      map[int][]domain.LogEntry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		processes: make(map[int]*domain.ProcessRecord),
		workflows: make(map[string]*domain.Workflow),
		logs:      make(map[int][]domain.LogEntry),
	}
}

func (s *Store) allocPK() int {
	s.nextPK++
	return s.nextPK
}

func copyRecord(rec *domain.ProcessRecord) *domain.ProcessRecord {
	out := *rec
	if rec.ExitStatus != nil {
		exit := *rec.ExitStatus
		out.ExitStatus = &exit
	}
	return &out
}

// SaveProcess persists the record, assigning a pk on first save.
func (s *Store) SaveProcess(ctx context.Context, rec *domain.ProcessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.PK == 0 {
		rec.PK = s.allocPK()
	}
	s.processes[rec.PK] = copyRecord(rec)
	return nil
}

// LoadProcess retrieves a record by pk.
func (s *Store) LoadProcess(ctx context.Context, pk int) (*domain.ProcessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.processes[pk]
	if !ok {
		return nil, domain.ErrProcessNotFound
	}
	return copyRecord(rec), nil
}

// ListProcesses returns matching records ordered by pk.
func (s *Store) ListProcesses(ctx context.Context, filter ports.ProcessFilter) ([]*domain.ProcessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ProcessRecord
	for pk := 1; pk <= s.nextPK; pk++ {
		rec, ok := s.processes[pk]
		if !ok || !matches(rec, filter) {
			continue
		}
		out = append(out, copyRecord(rec))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func matches(rec *domain.ProcessRecord, filter ports.ProcessFilter) bool {
	if len(filter.States) > 0 {
		found := false
		for _, st := range filter.States {
			if rec.State == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.FailedOnly {
		if rec.State != domain.StateFinished || rec.IsFinishedOK() {
			return false
		}
	}
	return true
}

// SaveWorkflow persists the tree, assigning a pk on first save.
func (s *Store) SaveWorkflow(ctx context.Context, wf *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf.PK == 0 {
		wf.PK = s.allocPK()
	}
	s.workflows[wf.UUID] = wf
	return nil
}

// LoadWorkflow retrieves a workflow by uuid.
func (s *Store) LoadWorkflow(ctx context.Context, uuid string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[uuid]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	return wf, nil
}

// AppendEntry persists a log entry, assigning its pk.
func (s *Store) AppendEntry(ctx context.Context, entry *domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.PK == 0 {
		entry.PK = s.allocPK()
	}
	s.logs[entry.OwnerPK] = append(s.logs[entry.OwnerPK], *entry)
	return nil
}

// Entries returns the owner's entries at or above min, in append order.
func (s *Store) Entries(ctx context.Context, ownerPK int, min domain.LogLevel) ([]domain.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LogEntry
	for _, e := range s.logs[ownerPK] {
		if e.Level.AtLeast(min) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ClearEntries removes every entry of the owner.
func (s *Store) ClearEntries(ctx context.Context, ownerPK int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, ownerPK)
	return nil
}
