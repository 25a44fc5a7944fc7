package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// AppendReport appends a REPORT level message to the log of the tree that
// contains wf. Messages always land on the ROOT workflow, so one aggregated
// log covers the whole tree no matter where in it the append happened.
// Messages pass through SanitizeMessage first.
func (m *Manager) AppendReport(ctx context.Context, wf *domain.Workflow, message string) error {
	clean, err := SanitizeMessage(message)
	if err != nil {
		return fmt.Errorf("failed to append report for workflow %s: %w", wf.UUID, err)
	}
	root := wf.Root()
	entry := &domain.LogEntry{
		OwnerPK: root.PK,
		Level:   domain.LevelReport,
		Time:    time.Now().UTC(),
		Message: clean,
	}
	if err := m.logs.AppendEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to append report for workflow %s: %w", wf.UUID, err)
	}
	return nil
}

// Report returns the aggregated log of the tree containing wf, filtered to
// entries at or above min, in append order.
func (m *Manager) Report(ctx context.Context, wf *domain.Workflow, min domain.LogLevel) ([]domain.LogEntry, error) {
	return m.logs.Entries(ctx, wf.Root().PK, min)
}

// ClearReport removes the aggregated log of the tree containing wf.
func (m *Manager) ClearReport(ctx context.Context, wf *domain.Workflow) error {
	return m.logs.ClearEntries(ctx, wf.Root().PK)
}
