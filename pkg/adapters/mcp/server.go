package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ControlResponse aligns with the HTTP adapter's control result and provides a
// unified outcome vocabulary across adapters.
type ControlResponse struct {
	PK      int    `json:"pk" jsonschema_description:"Primary key of the target process"`
	Kind    string `json:"kind" jsonschema_description:"The command kind that was issued"`
	Outcome string `json:"outcome" jsonschema_description:"One of acknowledged, rejected or already terminated"`
	Detail  string `json:"detail,omitempty" jsonschema_description:"Additional context for non-acknowledged outcomes"`
}

// ReportResponse carries the aggregated report log of a workflow tree.
type ReportResponse struct {
	Workflow string            `json:"workflow" jsonschema_description:"UUID of the requested workflow"`
	Root     string            `json:"root" jsonschema_description:"UUID of the tree root that owns the log"`
	Entries  []domain.LogEntry `json:"entries" jsonschema_description:"Report entries at or above the requested level"`
}

// Panel defines the control surface required by the MCP server.
type Panel interface {
	KillProcess(ctx context.Context, pk int) (bool, error)
	PauseProcess(ctx context.Context, pk int) (bool, error)
	PlayProcess(ctx context.Context, pk int) (bool, error)
}

// Trees defines the workflow read surface required by the MCP server.
type Trees interface {
	Load(ctx context.Context, id string) (*domain.Workflow, error)
	Report(ctx context.Context, wf *domain.Workflow, min domain.LogLevel) ([]domain.LogEntry, error)
}

// Server wraps the Arbor control plane and exposes it as an MCP Server.
type Server struct {
	panel     Panel
	trees     Trees
	processes ports.ProcessStore
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(panel Panel, trees Trees, processes ports.ProcessStore) *Server {
	s := &Server{
		panel:     panel,
		trees:     trees,
		processes: processes,
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(arbor.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	// Start the SSE server
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		// Create a timeout context for the graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fmt.Println("\nShutdown signal received, shutting down server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("CORS Middleware", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Baggage, Sentry-Trace")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: process_kill
	killTool := mcp.NewTool("process_kill",
		mcp.WithDescription("Kill a live process. The target transitions to the killed state and is sealed."),
		mcp.WithTitleAnnotation("Kill process"),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("pk", mcp.Required(), mcp.Description("Primary key of the target process")),
		mcp.WithOutputSchema[ControlResponse](),
	)
	s.mcpServer.AddTool(killTool, mcp.NewStructuredToolHandler(s.controlHandler(domain.CommandKill)))

	// TOOL: process_pause
	pauseTool := mcp.NewTool("process_pause",
		mcp.WithDescription("Pause a running process. The target moves to the waiting state until played."),
		mcp.WithTitleAnnotation("Pause process"),
		mcp.WithString("pk", mcp.Required(), mcp.Description("Primary key of the target process")),
		mcp.WithOutputSchema[ControlResponse](),
	)
	s.mcpServer.AddTool(pauseTool, mcp.NewStructuredToolHandler(s.controlHandler(domain.CommandPause)))

	// TOOL: process_play
	playTool := mcp.NewTool("process_play",
		mcp.WithDescription("Resume a paused process. The target moves back to the running state."),
		mcp.WithTitleAnnotation("Play process"),
		mcp.WithString("pk", mcp.Required(), mcp.Description("Primary key of the target process")),
		mcp.WithOutputSchema[ControlResponse](),
	)
	s.mcpServer.AddTool(playTool, mcp.NewStructuredToolHandler(s.controlHandler(domain.CommandPlay)))

	// TOOL: process_status
	statusTool := mcp.NewTool("process_status",
		mcp.WithDescription("Get the stored record of a process: state, exit status, seal flag and result reference."),
		mcp.WithTitleAnnotation("Process status"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("pk", mcp.Required(), mcp.Description("Primary key of the process")),
	)
	s.mcpServer.AddTool(statusTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pk, err := parsePK(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rec, err := s.processes.LoadProcess(ctx, pk)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(rec)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: workflow_report
	reportTool := mcp.NewTool("workflow_report",
		mcp.WithDescription("Get the report log of the tree a workflow belongs to. Entries from every member of the tree appear in one shared log."),
		mcp.WithTitleAnnotation("Workflow report"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("uuid", mcp.Required(), mcp.Description("UUID of any workflow in the tree")),
		mcp.WithString("levelname", mcp.Description("Minimum level to include (DEBUG, INFO, REPORT, WARNING, ERROR, CRITICAL); defaults to REPORT")),
		mcp.WithOutputSchema[ReportResponse](),
	)
	s.mcpServer.AddTool(reportTool, mcp.NewStructuredToolHandler(s.handleReport))
}

// Handler methods for structured tools

func (s *Server) controlHandler(kind domain.CommandKind) func(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ControlResponse, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ControlResponse, error) {
		pk, err := parsePK(args)
		if err != nil {
			return ControlResponse{}, err
		}

		var acked bool
		switch kind {
		case domain.CommandKill:
			acked, err = s.panel.KillProcess(ctx, pk)
		case domain.CommandPause:
			acked, err = s.panel.PauseProcess(ctx, pk)
		case domain.CommandPlay:
			acked, err = s.panel.PlayProcess(ctx, pk)
		}

		resp := ControlResponse{PK: pk, Kind: string(kind)}
		switch {
		case err == nil && acked:
			resp.Outcome = "acknowledged"
		case err == nil:
			resp.Outcome = "rejected"
			resp.Detail = "the process declined the command"
		default:
			if !errors.Is(err, domain.ErrAlreadyTerminated) {
				return ControlResponse{}, fmt.Errorf("%s failed: %w", strings.ToLower(string(kind)), err)
			}
			// A local no-op, not a failure.
			resp.Outcome = "already terminated"
			resp.Detail = err.Error()
		}
		return resp, nil
	}
}

func (s *Server) handleReport(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ReportResponse, error) {
	id, _ := args["uuid"].(string)
	if strings.TrimSpace(id) == "" {
		return ReportResponse{}, fmt.Errorf("uuid is required")
	}

	min := domain.LevelReport
	if raw, ok := args["levelname"].(string); ok && raw != "" {
		parsed, err := domain.ParseLogLevel(raw)
		if err != nil {
			return ReportResponse{}, fmt.Errorf("invalid levelname: %w", err)
		}
		min = parsed
	}

	wf, err := s.trees.Load(ctx, strings.TrimSpace(id))
	if err != nil {
		return ReportResponse{}, fmt.Errorf("load failed: %w", err)
	}
	entries, err := s.trees.Report(ctx, wf, min)
	if err != nil {
		return ReportResponse{}, fmt.Errorf("report failed: %w", err)
	}
	if entries == nil {
		entries = []domain.LogEntry{}
	}

	return ReportResponse{
		Workflow: wf.UUID,
		Root:     wf.Root().UUID,
		Entries:  entries,
	}, nil
}

func parsePK(args map[string]interface{}) (int, error) {
	raw, _ := args["pk"].(string)
	pk, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || pk <= 0 {
		return 0, fmt.Errorf("invalid pk %q: expected a positive integer", raw)
	}
	return pk, nil
}

func (s *Server) registerResources() {
	// EXPOSE: arbor://processes
	s.mcpServer.AddResource(mcp.NewResource("arbor://processes", "Stored Process Records",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := s.processes.ListProcesses(ctx, ports.ProcessFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to list processes: %w", err)
		}
		jsonBytes, _ := json.Marshal(records)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "arbor://processes",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
