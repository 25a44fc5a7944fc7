package workflow

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// GetOrCreateStep returns the named step of wf, creating it in the running
// status when absent. Calling it again with the same name returns the same
// step unchanged. The exit name is reserved for Nextcall values.
func (m *Manager) GetOrCreateStep(ctx context.Context, wf *domain.Workflow, name string) (*domain.Step, error) {
	if name == domain.StepNameExit {
		return nil, fmt.Errorf("%w: %q", domain.ErrReservedStepName, name)
	}

	var step *domain.Step
	err := m.withTreeLock(ctx, wf, func(ctx context.Context) error {
		if existing := wf.Step(name); existing != nil {
			step = existing
			return nil
		}
		step = &domain.Step{Name: name, Status: domain.StepRunning}
		wf.Steps = append(wf.Steps, step)
		return m.workflows.SaveWorkflow(ctx, wf)
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// RecordNext stores next as the successor of the named current step. The
// current step must already exist. Recording a successor of the start step
// promotes a created workflow to running.
func (m *Manager) RecordNext(ctx context.Context, wf *domain.Workflow, current, next string) error {
	return m.withTreeLock(ctx, wf, func(ctx context.Context) error {
		step := wf.Step(current)
		if step == nil {
			return fmt.Errorf("%w: %q", domain.ErrStepNotFound, current)
		}
		step.Nextcall = next
		if current == domain.StepNameStart && wf.Status == domain.WorkflowCreated {
			wf.Status = domain.WorkflowRunning
		}
		return m.workflows.SaveWorkflow(ctx, wf)
	})
}

// AttachCalculation appends a calculation pk to the named step. Attachments
// are append-only and keep arrival order.
func (m *Manager) AttachCalculation(ctx context.Context, wf *domain.Workflow, stepName string, calcPK int) error {
	return m.withTreeLock(ctx, wf, func(ctx context.Context) error {
		step := wf.Step(stepName)
		if step == nil {
			return fmt.Errorf("%w: %q", domain.ErrStepNotFound, stepName)
		}
		step.Calculations = append(step.Calculations, calcPK)
		return m.workflows.SaveWorkflow(ctx, wf)
	})
}

// AttachSubworkflow appends child to the named step of parent and records
// the upward link on child. A workflow attaches at most once; a second
// attachment returns ErrAlreadyAttached.
func (m *Manager) AttachSubworkflow(ctx context.Context, parent *domain.Workflow, stepName string, child *domain.Workflow) error {
	return m.withTreeLock(ctx, parent, func(ctx context.Context) error {
		if child.Parent != nil {
			return fmt.Errorf("%w: workflow %s", domain.ErrAlreadyAttached, child.UUID)
		}
		step := parent.Step(stepName)
		if step == nil {
			return fmt.Errorf("%w: %q", domain.ErrStepNotFound, stepName)
		}
		step.Subworkflows = append(step.Subworkflows, child)
		child.Parent = parent
		child.ParentStep = stepName
		if err := m.workflows.SaveWorkflow(ctx, child); err != nil {
			return err
		}
		return m.workflows.SaveWorkflow(ctx, parent)
	})
}

// CompleteStep marks the named step finished, then closes every ancestor
// workflow that no longer has running work. HasRunningSteps is transitive,
// so the upward walk stops at the first ancestor still busy.
func (m *Manager) CompleteStep(ctx context.Context, wf *domain.Workflow, stepName string) error {
	return m.withTreeLock(ctx, wf, func(ctx context.Context) error {
		step := wf.Step(stepName)
		if step == nil {
			return fmt.Errorf("%w: %q", domain.ErrStepNotFound, stepName)
		}
		step.Status = domain.StepFinished
		if err := m.workflows.SaveWorkflow(ctx, wf); err != nil {
			return err
		}
		for node := wf; node != nil; node = node.Parent {
			if node.HasRunningSteps() {
				break
			}
			if node.Status == domain.WorkflowFinished {
				continue
			}
			node.Status = domain.WorkflowFinished
			if err := m.workflows.SaveWorkflow(ctx, node); err != nil {
				return err
			}
		}
		return nil
	})
}

// Kill aborts the tree rooted at wf: depth-first over every workflow reached
// through running steps, each attached live calculation is forced to killed,
// each running step is marked killed, and each visited workflow is closed as
// finished. A visited set keeps the cascade total even on a corrupted graph.
func (m *Manager) Kill(ctx context.Context, wf *domain.Workflow) error {
	return m.withTreeLock(ctx, wf, func(ctx context.Context) error {
		seen := make(map[int]bool)
		return m.kill(ctx, wf, seen)
	})
}

func (m *Manager) kill(ctx context.Context, wf *domain.Workflow, seen map[int]bool) error {
	if seen[wf.PK] {
		return nil
	}
	seen[wf.PK] = true

	for _, step := range wf.Steps {
		if step.Status != domain.StepRunning {
			continue
		}
		for _, pk := range step.Calculations {
			if err := m.killCalculation(ctx, pk); err != nil {
				return err
			}
		}
		for _, sub := range step.Subworkflows {
			if err := m.kill(ctx, sub, seen); err != nil {
				return err
			}
		}
		step.Status = domain.StepKilled
	}

	wf.Status = domain.WorkflowFinished
	if err := m.workflows.SaveWorkflow(ctx, wf); err != nil {
		return fmt.Errorf("failed to persist killed workflow %s: %w", wf.UUID, err)
	}
	m.logger.Debug("workflow killed", "uuid", wf.UUID, "pk", wf.PK)
	return nil
}

// killCalculation forces one calculation to the killed state. Calculations
// already in a terminal state are left alone.
func (m *Manager) killCalculation(ctx context.Context, pk int) error {
	rec, err := m.processes.LoadProcess(ctx, pk)
	if err != nil {
		return fmt.Errorf("failed to load calculation %d: %w", pk, err)
	}
	if rec.IsTerminated() {
		return nil
	}
	if err := rec.Kill(); err != nil {
		return fmt.Errorf("failed to kill calculation %d: %w", pk, err)
	}
	if err := m.processes.SaveProcess(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist killed calculation %d: %w", pk, err)
	}
	return nil
}

// SubtreeListing lists wf and every transitively attached sub-workflow in
// pre-order as (pk, depth) pairs. Reads take no lock.
func (m *Manager) SubtreeListing(wf *domain.Workflow) []domain.TreeEntry {
	return wf.Subtree()
}
