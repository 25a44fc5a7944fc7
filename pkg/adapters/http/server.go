package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/go-chi/chi/v5"
)

//go:embed openapi.yaml
var openAPISpec []byte

// Panel is the control surface the server drives.
type Panel interface {
	KillProcess(ctx context.Context, pk int) (bool, error)
	PauseProcess(ctx context.Context, pk int) (bool, error)
	PlayProcess(ctx context.Context, pk int) (bool, error)
}

// Trees is the workflow surface the server reads.
type Trees interface {
	Load(ctx context.Context, uuid string) (*domain.Workflow, error)
	SubtreeListing(wf *domain.Workflow) []domain.TreeEntry
	Report(ctx context.Context, wf *domain.Workflow, min domain.LogLevel) ([]domain.LogEntry, error)
}

// Config wires the server's collaborators. Panel and Metrics are optional:
// without a panel the control routes answer 503, without metrics there is
// no /metrics route.
type Config struct {
	Processes ports.ProcessStore
	Trees     Trees
	Panel     Panel
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Server exposes process records, workflow trees and the control panel over
// REST.
type Server struct {
	processes ports.ProcessStore
	trees     Trees
	panel     Panel
	logger    *slog.Logger
}

// NewHandler creates the HTTP handler for the engine surface.
func NewHandler(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		processes: cfg.Processes,
		trees:     cfg.Trees,
		panel:     cfg.Panel,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/processes", s.ListProcesses)
	r.Get("/processes/{pk}", s.GetProcess)
	r.Post("/processes/{pk}/kill", s.controlHandler(domain.CommandKill))
	r.Post("/processes/{pk}/pause", s.controlHandler(domain.CommandPause))
	r.Post("/processes/{pk}/play", s.controlHandler(domain.CommandPlay))
	r.Get("/workflows/{uuid}/tree", s.GetTree)
	r.Get("/workflows/{uuid}/report", s.GetReport)
	if cfg.Metrics != nil {
		r.Method("GET", "/metrics", cfg.Metrics.Handler())
	}

	// Swagger UI
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openAPISpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})

	return enableCORS(r)
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Arbor API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// ListProcesses handles the GET /processes request. Filters: process_state
// (repeatable), failed, limit.
func (s *Server) ListProcesses(w http.ResponseWriter, r *http.Request) {
	var filter ports.ProcessFilter

	for _, raw := range r.URL.Query()["process_state"] {
		state, err := domain.ParseProcessState(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid process_state: %v", err), http.StatusBadRequest)
			return
		}
		filter.States = append(filter.States, state)
	}
	if raw := r.URL.Query().Get("failed"); raw != "" {
		failed, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid failed flag: %v", err), http.StatusBadRequest)
			return
		}
		filter.FailedOnly = failed
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	records, err := s.processes.ListProcesses(r.Context(), filter)
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.logger.Error("process listing failed", "err", err)
		return
	}
	if records == nil {
		records = []*domain.ProcessRecord{}
	}
	s.writeJSON(w, records)
}

// GetProcess handles the GET /processes/{pk} request.
func (s *Server) GetProcess(w http.ResponseWriter, r *http.Request) {
	pk, ok := s.pathPK(w, r)
	if !ok {
		return
	}
	rec, err := s.processes.LoadProcess(r.Context(), pk)
	if err != nil {
		if errors.Is(err, domain.ErrProcessNotFound) {
			http.Error(w, fmt.Sprintf("Process %d not found", pk), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, rec)
}

// controlResult is the body of a control route response.
type controlResult struct {
	PK      int    `json:"pk"`
	Kind    string `json:"kind"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// controlHandler builds the POST /processes/{pk}/<action> handler for one
// command kind.
func (s *Server) controlHandler(kind domain.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.panel == nil {
			http.Error(w, "Control panel not configured", http.StatusServiceUnavailable)
			return
		}
		pk, ok := s.pathPK(w, r)
		if !ok {
			return
		}

		var acked bool
		var err error
		switch kind {
		case domain.CommandKill:
			acked, err = s.panel.KillProcess(r.Context(), pk)
		case domain.CommandPause:
			acked, err = s.panel.PauseProcess(r.Context(), pk)
		case domain.CommandPlay:
			acked, err = s.panel.PlayProcess(r.Context(), pk)
		}

		result := controlResult{PK: pk, Kind: string(kind)}
		switch {
		case err == nil && acked:
			result.Outcome = "acknowledged"
		case err == nil:
			result.Outcome = "rejected"
		case errors.Is(err, domain.ErrAlreadyTerminated):
			// A local no-op, not a failure.
			result.Outcome = "already terminated"
		case errors.Is(err, domain.ErrProcessNotFound):
			http.Error(w, fmt.Sprintf("Process %d not found", pk), http.StatusNotFound)
			return
		case errors.Is(err, domain.ErrDeliveryFailed):
			http.Error(w, fmt.Sprintf("Delivery failed: %v", err), http.StatusGatewayTimeout)
			return
		default:
			var remote *domain.RemoteError
			if errors.As(err, &remote) {
				http.Error(w, fmt.Sprintf("Remote error: %s", remote.Detail), http.StatusBadGateway)
				return
			}
			http.Error(w, fmt.Sprintf("Control error: %v", err), http.StatusInternalServerError)
			s.logger.Error("control request failed", "kind", kind, "pk", pk, "err", err)
			return
		}
		s.writeJSON(w, result)
	}
}

// GetTree handles the GET /workflows/{uuid}/tree request.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.pathWorkflow(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, s.trees.SubtreeListing(wf))
}

// GetReport handles the GET /workflows/{uuid}/report request. The levelname
// parameter sets the minimum severity; default REPORT.
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.pathWorkflow(w, r)
	if !ok {
		return
	}

	min := domain.LevelReport
	if raw := r.URL.Query().Get("levelname"); raw != "" {
		parsed, err := domain.ParseLogLevel(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid levelname: %v", err), http.StatusBadRequest)
			return
		}
		min = parsed
	}

	entries, err := s.trees.Report(r.Context(), wf, min)
	if err != nil {
		http.Error(w, fmt.Sprintf("Report error: %v", err), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	s.writeJSON(w, entries)
}

// -- Helpers --

func (s *Server) pathPK(w http.ResponseWriter, r *http.Request) (int, bool) {
	pk, err := strconv.Atoi(chi.URLParam(r, "pk"))
	if err != nil || pk <= 0 {
		http.Error(w, "Invalid process pk", http.StatusBadRequest)
		return 0, false
	}
	return pk, true
}

func (s *Server) pathWorkflow(w http.ResponseWriter, r *http.Request) (*domain.Workflow, bool) {
	id := chi.URLParam(r, "uuid")
	wf, err := s.trees.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrWorkflowNotFound) {
			http.Error(w, fmt.Sprintf("Workflow %s not found", id), http.StatusNotFound)
			return nil, false
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	return wf, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
