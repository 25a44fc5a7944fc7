package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePanel answers every command the same way.
type fakePanel struct {
	acked bool
	err   error
}

func (f fakePanel) KillProcess(ctx context.Context, pk int) (bool, error)  { return f.acked, f.err }
func (f fakePanel) PauseProcess(ctx context.Context, pk int) (bool, error) { return f.acked, f.err }
func (f fakePanel) PlayProcess(ctx context.Context, pk int) (bool, error)  { return f.acked, f.err }

func seedProcess(t *testing.T, store *memory.Store, state domain.ProcessState, exitStatus int) *domain.ProcessRecord {
	t.Helper()
	rec := domain.NewProcessRecord("seeded")
	switch state {
	case domain.StateRunning:
		require.NoError(t, rec.Transition(domain.StateRunning))
	case domain.StateFinished:
		require.NoError(t, rec.Transition(domain.StateRunning))
		require.NoError(t, rec.Finish(exitStatus))
	case domain.StateKilled:
		require.NoError(t, rec.Kill())
	}
	require.NoError(t, store.SaveProcess(context.Background(), rec))
	return rec
}

func TestGetHealth(t *testing.T) {
	handler := NewHandler(Config{Processes: memory.NewStore()})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestListProcesses(t *testing.T) {
	store := memory.NewStore()
	seedProcess(t, store, domain.StateRunning, 0)
	seedProcess(t, store, domain.StateFinished, 0)
	seedProcess(t, store, domain.StateFinished, 412)
	handler := NewHandler(Config{Processes: store})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by state", "?process_state=finished", 2},
		{"failed only", "?failed=true", 1},
		{"limited", "?limit=2", 2},
		{"combined", "?process_state=finished&failed=true", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest("GET", "/processes"+tt.query, nil))

			require.Equal(t, http.StatusOK, rr.Code)
			var records []domain.ProcessRecord
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
			assert.Len(t, records, tt.want)
		})
	}

	t.Run("bad state", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/processes?process_state=limbo", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetProcess(t *testing.T) {
	store := memory.NewStore()
	rec := seedProcess(t, store, domain.StateFinished, 0)
	handler := NewHandler(Config{Processes: store})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", fmt.Sprintf("/processes/%d", rec.PK), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got domain.ProcessRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, rec.PK, got.PK)
	assert.Equal(t, domain.StateFinished, got.State)
	assert.True(t, got.Sealed)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/processes/404", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/processes/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestControlRoutes(t *testing.T) {
	store := memory.NewStore()
	rec := seedProcess(t, store, domain.StateRunning, 0)
	target := fmt.Sprintf("/processes/%d/kill", rec.PK)

	post := func(handler http.Handler, url string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", url, nil))
		return rr
	}

	t.Run("acknowledged", func(t *testing.T) {
		handler := NewHandler(Config{Processes: store, Panel: fakePanel{acked: true}})
		rr := post(handler, target)
		require.Equal(t, http.StatusOK, rr.Code)

		var result controlResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.Equal(t, "acknowledged", result.Outcome)
		assert.Equal(t, "KILL", result.Kind)
	})

	t.Run("rejected", func(t *testing.T) {
		handler := NewHandler(Config{Processes: store, Panel: fakePanel{acked: false}})
		rr := post(handler, fmt.Sprintf("/processes/%d/pause", rec.PK))
		require.Equal(t, http.StatusOK, rr.Code)

		var result controlResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.Equal(t, "rejected", result.Outcome)
	})

	t.Run("already terminated is not a failure", func(t *testing.T) {
		handler := NewHandler(Config{Processes: store, Panel: fakePanel{err: domain.ErrAlreadyTerminated}})
		rr := post(handler, target)
		require.Equal(t, http.StatusOK, rr.Code)

		var result controlResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.Equal(t, "already terminated", result.Outcome)
	})

	t.Run("unknown process", func(t *testing.T) {
		handler := NewHandler(Config{Processes: store, Panel: fakePanel{err: domain.ErrProcessNotFound}})
		assert.Equal(t, http.StatusNotFound, post(handler, target).Code)
	})

	t.Run("delivery failure", func(t *testing.T) {
		handler := NewHandler(Config{Processes: store, Panel: fakePanel{err: domain.ErrDeliveryFailed}})
		assert.Equal(t, http.StatusGatewayTimeout, post(handler, target).Code)
	})

	t.Run("remote error", func(t *testing.T) {
		handler := NewHandler(Config{Processes: store, Panel: fakePanel{err: &domain.RemoteError{Detail: "wedged"}}})
		rr := post(handler, target)
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Contains(t, rr.Body.String(), "wedged")
	})

	t.Run("unexpected error", func(t *testing.T) {
		handler := NewHandler(Config{Processes: store, Panel: fakePanel{err: errors.New("boom")}})
		assert.Equal(t, http.StatusInternalServerError, post(handler, target).Code)
	})

	t.Run("no panel", func(t *testing.T) {
		handler := NewHandler(Config{Processes: store})
		assert.Equal(t, http.StatusServiceUnavailable, post(handler, target).Code)
	})

	t.Run("play route", func(t *testing.T) {
		handler := NewHandler(Config{Processes: store, Panel: fakePanel{acked: true}})
		rr := post(handler, fmt.Sprintf("/processes/%d/play", rec.PK))
		require.Equal(t, http.StatusOK, rr.Code)

		var result controlResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.Equal(t, "PLAY", result.Kind)
	})
}

func TestGetTree(t *testing.T) {
	store := memory.NewStore()
	manager := workflow.NewManager(store, store, store)
	ctx := context.Background()

	root, err := manager.Create(ctx, "root")
	require.NoError(t, err)
	child, err := manager.Create(ctx, "child")
	require.NoError(t, err)
	_, err = manager.GetOrCreateStep(ctx, root, "start")
	require.NoError(t, err)
	require.NoError(t, manager.AttachSubworkflow(ctx, root, "start", child))

	handler := NewHandler(Config{Processes: store, Trees: manager})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/workflows/"+root.UUID+"/tree", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var entries []domain.TreeEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, domain.TreeEntry{PK: root.PK, Depth: 0}, entries[0])
	assert.Equal(t, domain.TreeEntry{PK: child.PK, Depth: 1}, entries[1])

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/workflows/no-such-uuid/tree", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetReport(t *testing.T) {
	store := memory.NewStore()
	manager := workflow.NewManager(store, store, store)
	ctx := context.Background()

	wf, err := manager.Create(ctx, "solo")
	require.NoError(t, err)
	require.NoError(t, manager.AppendReport(ctx, wf, "first message"))
	require.NoError(t, manager.AppendReport(ctx, wf, "second message"))

	handler := NewHandler(Config{Processes: store, Trees: manager})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/workflows/"+wf.UUID+"/report", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var entries []domain.LogEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "first message", entries[0].Message)
	assert.Equal(t, wf.PK, entries[0].OwnerPK)

	// An ERROR floor filters the REPORT entries out.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/workflows/"+wf.UUID+"/report?levelname=ERROR", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	entries = nil
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	assert.Empty(t, entries)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/workflows/"+wf.UUID+"/report?levelname=LOUD", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.ObserveLaunch(observability.LaunchFinished)
	handler := NewHandler(Config{Processes: memory.NewStore(), Metrics: metrics})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "arbor_launches_total")

	// Without metrics the route does not exist.
	bare := NewHandler(Config{Processes: memory.NewStore()})
	rr = httptest.NewRecorder()
	bare.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
