package domain

import (
	"reflect"
	"testing"
)

func chain(pks ...int) *Workflow {
	// Builds A -> B -> C ... where each workflow owns one step holding the next.
	var root, prev *Workflow
	for _, pk := range pks {
		w := NewWorkflow("wf")
		w.PK = pk
		w.Steps = []*Step{{Name: "main", Status: StepRunning}}
		if prev == nil {
			root = w
		} else {
			step := prev.Steps[0]
			step.Subworkflows = append(step.Subworkflows, w)
			w.Parent = prev
			w.ParentStep = step.Name
		}
		prev = w
	}
	return root
}

func TestSubtreePreOrder(t *testing.T) {
	root := chain(10, 20, 30)
	got := root.Subtree()
	want := []TreeEntry{{PK: 10, Depth: 0}, {PK: 20, Depth: 1}, {PK: 30, Depth: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Subtree() = %v, want %v", got, want)
	}
}

func TestSubtreeSiblingOrder(t *testing.T) {
	root := NewWorkflow("root")
	root.PK = 1
	step := &Step{Name: "fanout", Status: StepRunning}
	for _, pk := range []int{2, 3} {
		sub := NewWorkflow("sub")
		sub.PK = pk
		sub.Parent = root
		sub.ParentStep = step.Name
		step.Subworkflows = append(step.Subworkflows, sub)
	}
	root.Steps = []*Step{step}

	want := []TreeEntry{{PK: 1, Depth: 0}, {PK: 2, Depth: 1}, {PK: 3, Depth: 1}}
	if got := root.Subtree(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Subtree() = %v, want %v", got, want)
	}
}

func TestSubtreeSkipsRevisitedNodes(t *testing.T) {
	root := chain(1, 2)
	child := root.Steps[0].Subworkflows[0]
	// Corrupt the graph: the child calls back into the root.
	child.Steps[0].Subworkflows = append(child.Steps[0].Subworkflows, root)

	got := root.Subtree()
	want := []TreeEntry{{PK: 1, Depth: 0}, {PK: 2, Depth: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Subtree() on cyclic graph = %v, want %v", got, want)
	}
}

func TestRootResolution(t *testing.T) {
	root := chain(1, 2, 3)
	leaf := root.Steps[0].Subworkflows[0].Steps[0].Subworkflows[0]
	if leaf.PK != 3 {
		t.Fatalf("setup: leaf pk = %d", leaf.PK)
	}
	if got := leaf.Root(); got != root {
		t.Errorf("Root() = pk %d, want pk %d", got.PK, root.PK)
	}
	if got := root.Root(); got != root {
		t.Error("root of a root must be itself")
	}
}

func TestHasRunningStepsTransitive(t *testing.T) {
	root := chain(1, 2, 3)
	if !root.HasRunningSteps() {
		t.Fatal("fresh chain must report running steps")
	}

	// Finish everything except the deepest step.
	root.Steps[0].Status = StepFinished
	root.Steps[0].Subworkflows[0].Steps[0].Status = StepFinished
	if !root.HasRunningSteps() {
		t.Fatal("deep running step must be visible from the root")
	}

	root.Steps[0].Subworkflows[0].Steps[0].Subworkflows[0].Steps[0].Status = StepFinished
	if root.HasRunningSteps() {
		t.Fatal("no step is running")
	}
}

func TestStepLookup(t *testing.T) {
	w := NewWorkflow("lookup")
	w.Steps = []*Step{{Name: "start"}, {Name: "compute"}}
	if s := w.Step("compute"); s == nil || s.Name != "compute" {
		t.Fatalf("Step(compute) = %v", s)
	}
	if s := w.Step("missing"); s != nil {
		t.Fatalf("Step(missing) = %v, want nil", s)
	}
}
