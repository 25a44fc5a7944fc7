package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// ProcessFilter narrows a process listing. Zero value lists everything.
type ProcessFilter struct {
	// States keeps only records in one of the given states.
	States []domain.ProcessState

	// FailedOnly keeps only finished records with a non-zero exit status.
	FailedOnly bool

	// Limit caps the number of returned records; 0 means no cap.
	Limit int
}

// ProcessStore persists process records. Implementations are durable and
// strongly consistent per pk.
type ProcessStore interface {
	// SaveProcess persists the record. A record with PK 0 is assigned the
	// next pk in the store's monotonic sequence; pks are never reused.
	SaveProcess(ctx context.Context, rec *domain.ProcessRecord) error

	// LoadProcess retrieves a record by pk.
	// Returns domain.ErrProcessNotFound if the pk is unknown.
	LoadProcess(ctx context.Context, pk int) (*domain.ProcessRecord, error)

	// ListProcesses returns records matching the filter, ordered by pk.
	ListProcesses(ctx context.Context, filter ProcessFilter) ([]*domain.ProcessRecord, error)
}

// WorkflowStore persists workflow trees, keyed by uuid.
type WorkflowStore interface {
	// SaveWorkflow persists the tree rooted at wf. A workflow with PK 0 is
	// assigned the next pk in the store's sequence.
	SaveWorkflow(ctx context.Context, wf *domain.Workflow) error

	// LoadWorkflow retrieves a workflow by uuid.
	// Returns domain.ErrWorkflowNotFound if the uuid is unknown.
	LoadWorkflow(ctx context.Context, uuid string) (*domain.Workflow, error)
}

// LogStore persists report log entries, keyed by the owning root pk.
type LogStore interface {
	// AppendEntry persists one entry, assigning its PK.
	AppendEntry(ctx context.Context, entry *domain.LogEntry) error

	// Entries returns the owner's entries at or above the minimum level,
	// in append order.
	Entries(ctx context.Context, ownerPK int, min domain.LogLevel) ([]domain.LogEntry, error)

	// ClearEntries removes every entry of the owner.
	ClearEntries(ctx context.Context, ownerPK int) error
}

// CacheStore maps content hashes to opaque payloads. Used by the process
// function cache; payloads are small JSON documents.
type CacheStore interface {
	// Put stores the payload under the hash, overwriting any previous value.
	Put(ctx context.Context, hash string, value []byte) error

	// Get retrieves the payload for the hash. A miss is (nil, false, nil),
	// not an error.
	Get(ctx context.Context, hash string) ([]byte, bool, error)
}
