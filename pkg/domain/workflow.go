package domain

import "time"

// WorkflowStatus is the aggregate lifecycle of a workflow tree node.
type WorkflowStatus string

const (
	WorkflowCreated  WorkflowStatus = "created"
	WorkflowRunning  WorkflowStatus = "running"
	WorkflowFinished WorkflowStatus = "finished"
)

// StepStatus is the lifecycle of a single step inside a workflow.
type StepStatus string

const (
	StepRunning  StepStatus = "running"
	StepFinished StepStatus = "finished"
	StepKilled   StepStatus = "killed"
)

// Workflow is a node in a workflow tree. It exclusively owns its Steps;
// Parent and ParentStep form a weak back-reference used only for upward
// resolution (reports, root lookup) and never for ownership.
type Workflow struct {
	PK     int            `json:"pk"`
	UUID   string         `json:"uuid"`
	Label  string         `json:"label,omitempty"`
	Status WorkflowStatus `json:"status"`
	CTime  time.Time      `json:"ctime"`

	// Steps in creation order. Mutations go through the workflow engine,
	// which serializes writers per tree.
	Steps []*Step `json:"steps"`

	// Parent is the workflow owning the step this workflow is attached to,
	// nil for a root. Excluded from serialization to keep the tree acyclic
	// on the wire; loaders rehydrate it from the downward links.
	Parent *Workflow `json:"-"`

	// ParentStep is the name of the step within Parent that owns this
	// workflow. Empty for a root.
	ParentStep string `json:"parent_step,omitempty"`
}

// Step is a named stage of a workflow. It owns the attached calculation pks
// and child workflows, both kept in arrival order.
type Step struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`

	// Nextcall is the name of the step recorded as this step's successor,
	// or StepNameExit when the step ends the workflow.
	Nextcall string `json:"nextcall,omitempty"`

	Calculations []int       `json:"calculations,omitempty"`
	Subworkflows []*Workflow `json:"subworkflows,omitempty"`
}

// NewWorkflow returns a root workflow in the created status. The caller
// assigns UUID; the store assigns PK.
func NewWorkflow(label string) *Workflow {
	return &Workflow{
		Label:  label,
		Status: WorkflowCreated,
		CTime:  time.Now().UTC(),
	}
}

// Step returns the named step, or nil when absent.
func (w *Workflow) Step(name string) *Step {
	for _, s := range w.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Root follows parent references up to the top of the tree.
// Parent chains are acyclic; attachment enforces single-parent.
func (w *Workflow) Root() *Workflow {
	root := w
	for root.Parent != nil {
		root = root.Parent
	}
	return root
}

// HasRunningSteps reports whether any owned step, or any step of a
// transitively attached sub-workflow, is still running.
func (w *Workflow) HasRunningSteps() bool {
	for _, s := range w.Steps {
		if s.Status == StepRunning {
			return true
		}
		for _, sub := range s.Subworkflows {
			if sub.HasRunningSteps() {
				return true
			}
		}
	}
	return false
}

// TreeEntry is one row of a subtree listing.
type TreeEntry struct {
	PK    int `json:"pk"`
	Depth int `json:"depth"`
}

// Subtree lists the workflow and every transitively attached sub-workflow
// in pre-order as (pk, depth) pairs, starting at (w.PK, 0). Each workflow
// is listed once; a re-encountered pk is skipped, which keeps the listing
// total even on a corrupted graph.
func (w *Workflow) Subtree() []TreeEntry {
	var out []TreeEntry
	seen := make(map[int]bool)
	w.walk(0, seen, &out)
	return out
}

func (w *Workflow) walk(depth int, seen map[int]bool, out *[]TreeEntry) {
	if seen[w.PK] {
		return
	}
	seen[w.PK] = true
	*out = append(*out, TreeEntry{PK: w.PK, Depth: depth})
	for _, s := range w.Steps {
		for _, sub := range s.Subworkflows {
			sub.walk(depth+1, seen, out)
		}
	}
}
