package arbor_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/cache"
	"github.com/aretw0/arbor/pkg/domain"
)

func TestFacade_Integration(t *testing.T) {
	// 0. Setup: a self-contained engine with one registered function.
	eng, err := arbor.New()
	if err != nil {
		t.Fatalf("Failed to initialize engine: %v", err)
	}
	defer eng.Close()

	var executions atomic.Int64
	err = eng.Register("acme.relax", "1.0", func(ctx context.Context, in cache.Inputs) (string, int, error) {
		executions.Add(1)
		return "ref://outputs/relax", 0, nil
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ctx := context.Background()

	// 1. Launch runs the function and records the run.
	rec, err := eng.Launch(ctx, "acme.relax", cache.Inputs{Args: []any{"structure-42"}})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if rec.State != domain.StateFinished || !rec.IsFinishedOK() {
		t.Errorf("Expected a successful finished record, got state=%s", rec.State)
	}
	if !rec.Sealed {
		t.Error("Terminal records must be sealed")
	}
	if rec.ResultRef != "ref://outputs/relax" {
		t.Errorf("Unexpected result reference %q", rec.ResultRef)
	}

	// 2. The identical launch is satisfied from the cache: a fresh record,
	// the original reference, no second execution.
	again, err := eng.Launch(ctx, "acme.relax", cache.Inputs{Args: []any{"structure-42"}})
	if err != nil {
		t.Fatalf("Second launch failed: %v", err)
	}
	if got := executions.Load(); got != 1 {
		t.Errorf("Expected 1 execution, got %d", got)
	}
	if again.PK == rec.PK {
		t.Error("A cached launch must still produce its own record")
	}
	if again.ResultRef != rec.ResultRef {
		t.Errorf("Cached record carries %q, want %q", again.ResultRef, rec.ResultRef)
	}

	// 3. Control commands against terminated records fail locally.
	if _, err := eng.KillProcess(ctx, rec.PK); !errors.Is(err, domain.ErrAlreadyTerminated) {
		t.Errorf("Expected ErrAlreadyTerminated, got %v", err)
	}

	// 4. A live, guarded process answers pause, play and kill.
	live := domain.NewProcessRecord("interactive")
	live.UUID = "facade-live"
	if err := eng.Processes().SaveProcess(ctx, live); err != nil {
		t.Fatal(err)
	}
	if err := live.Transition(domain.StateRunning); err != nil {
		t.Fatal(err)
	}
	if err := eng.Processes().SaveProcess(ctx, live); err != nil {
		t.Fatal(err)
	}
	if err := eng.Guard(live.PK); err != nil {
		t.Fatalf("Guard failed: %v", err)
	}

	acked, err := eng.PauseProcess(ctx, live.PK)
	if err != nil || !acked {
		t.Fatalf("Pause: acked=%t err=%v", acked, err)
	}
	stored, err := eng.Processes().LoadProcess(ctx, live.PK)
	if err != nil {
		t.Fatal(err)
	}
	if stored.State != domain.StateWaiting {
		t.Errorf("Expected waiting after pause, got %s", stored.State)
	}

	acked, err = eng.PlayProcess(ctx, live.PK)
	if err != nil || !acked {
		t.Fatalf("Play: acked=%t err=%v", acked, err)
	}

	acked, err = eng.KillProcess(ctx, live.PK)
	if err != nil || !acked {
		t.Fatalf("Kill: acked=%t err=%v", acked, err)
	}
	stored, err = eng.Processes().LoadProcess(ctx, live.PK)
	if err != nil {
		t.Fatal(err)
	}
	if stored.State != domain.StateKilled || !stored.Sealed {
		t.Errorf("Expected a sealed killed record, got state=%s sealed=%t", stored.State, stored.Sealed)
	}
	if err := eng.Release(live.PK); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestFacade_WorkflowTrees(t *testing.T) {
	eng, err := arbor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	ctx := context.Background()
	trees := eng.Workflows()

	root, err := trees.Create(ctx, "equation-of-state")
	if err != nil {
		t.Fatal(err)
	}
	child, err := trees.Create(ctx, "scf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := trees.GetOrCreateStep(ctx, root, "start"); err != nil {
		t.Fatal(err)
	}
	if err := trees.AttachSubworkflow(ctx, root, "start", child); err != nil {
		t.Fatal(err)
	}

	// Reports written anywhere in the tree land in the root's log.
	if err := trees.AppendReport(ctx, child, "volume point 3 of 7 converged"); err != nil {
		t.Fatal(err)
	}
	entries, err := trees.Report(ctx, root, domain.LevelReport)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 report entry, got %d", len(entries))
	}
	if entries[0].OwnerPK != root.PK {
		t.Errorf("Report entry owned by %d, want root pk %d", entries[0].OwnerPK, root.PK)
	}

	listing := trees.SubtreeListing(root)
	if len(listing) != 2 {
		t.Fatalf("Expected 2 subtree entries, got %d", len(listing))
	}
	if listing[1].Depth != 1 {
		t.Errorf("Child listed at depth %d, want 1", listing[1].Depth)
	}
}

func TestFacade_DeliveryTimeout(t *testing.T) {
	// Nothing guards the target, so the command must time out.
	eng, err := arbor.New(arbor.WithControlTimeout(50 * time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	ctx := context.Background()
	rec := domain.NewProcessRecord("orphan")
	rec.UUID = "facade-orphan"
	if err := eng.Processes().SaveProcess(ctx, rec); err != nil {
		t.Fatal(err)
	}

	if _, err := eng.KillProcess(ctx, rec.PK); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Errorf("Expected ErrDeliveryFailed, got %v", err)
	}
}

func TestFacade_CloseIsIdempotent(t *testing.T) {
	eng, err := arbor.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}
}

func TestNew_RejectsNonPositiveTimeout(t *testing.T) {
	if _, err := arbor.New(arbor.WithControlTimeout(0)); err == nil {
		t.Fatal("Expected an error for a zero timeout")
	}
}

func TestVersion_IsEmbedded(t *testing.T) {
	if strings.TrimSpace(arbor.Version) == "" {
		t.Fatal("Version must not be empty")
	}
}
