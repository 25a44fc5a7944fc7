package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

func TestMemoryProcessStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunProcessStoreContract(t, store)
}

func TestMemoryWorkflowStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunWorkflowStoreContract(t, store)
}

func TestMemoryLogStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunLogStoreContract(t, store)
}

func TestMemoryCacheStore_Contract(t *testing.T) {
	ports.RunCacheStoreContract(t, memory.NewCacheStore())
}

func TestSharedPKSequence(t *testing.T) {
	// Processes, workflows and log entries draw from one sequence, so a pk
	// identifies exactly one row regardless of kind.
	ctx := context.Background()
	store := memory.NewStore()

	rec := domain.NewProcessRecord("proc")
	if err := store.SaveProcess(ctx, rec); err != nil {
		t.Fatal(err)
	}
	wf := domain.NewWorkflow("wf")
	wf.UUID = "wf-1"
	if err := store.SaveWorkflow(ctx, wf); err != nil {
		t.Fatal(err)
	}
	entry := &domain.LogEntry{OwnerPK: wf.PK, Level: domain.LevelReport, Message: "hello"}
	if err := store.AppendEntry(ctx, entry); err != nil {
		t.Fatal(err)
	}

	seen := map[int]bool{rec.PK: true, wf.PK: true, entry.PK: true}
	if len(seen) != 3 {
		t.Fatalf("pks must be distinct, got %d %d %d", rec.PK, wf.PK, entry.PK)
	}
}

func TestLoadProcessReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	rec := domain.NewProcessRecord("isolated")
	if err := store.SaveProcess(ctx, rec); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadProcess(ctx, rec.PK)
	if err != nil {
		t.Fatal(err)
	}
	loaded.Label = "mutated"

	again, err := store.LoadProcess(ctx, rec.PK)
	if err != nil {
		t.Fatal(err)
	}
	if again.Label != "isolated" {
		t.Errorf("stored record was mutated through a returned pointer: %q", again.Label)
	}
}

func TestListProcessesLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for i := 0; i < 5; i++ {
		if err := store.SaveProcess(ctx, domain.NewProcessRecord("p")); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := store.ListProcesses(ctx, ports.ProcessFilter{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].PK > recs[1].PK || recs[1].PK > recs[2].PK {
		t.Error("listing must be ordered by pk")
	}
}
