// Package httpapi is the versioned REST surface under /api/v1 plus the
// mounted JSON-RPC endpoint, metrics, and the log-stream websocket.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/atthub/atthub/internal/bootstrap"
	"github.com/atthub/atthub/internal/dispatch"
	"github.com/atthub/atthub/internal/telemetry"
	"github.com/atthub/atthub/internal/workflow"
)

type Server struct {
	svc    *dispatch.Services
	wf     *workflow.Orchestrator
	boot   *bootstrap.Machine
	srv    *http.Server
	logger *slog.Logger
}

// NewServer wires every route. The mcpHandler is mounted at POST /mcp;
// jwtSecret enables bearer-token auth on the API surface when non-empty.
func NewServer(addr string, svc *dispatch.Services, wf *workflow.Orchestrator, boot *bootstrap.Machine, mcpHandler http.Handler, logger *slog.Logger, jwtSecret []byte) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		wf:     wf,
		boot:   boot,
		logger: logger.With("component", "httpapi"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/mcp/.well-known", s.handleWellKnown)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("POST /mcp", mcpHandler)

	mux.HandleFunc("POST /api/v1/projects", s.handleProjectCreate)
	mux.HandleFunc("POST /api/v1/projects/clone", s.handleProjectClone)
	mux.HandleFunc("GET /api/v1/projects", s.handleProjectList)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.handleProjectGet)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.handleProjectDelete)
	mux.HandleFunc("POST /api/v1/projects/{id}/download", s.handleProjectDownload)

	mux.HandleFunc("GET /api/v1/projects/{id}/files", s.handleFileList)
	mux.HandleFunc("GET /api/v1/projects/{id}/files/content", s.handleFileRead)
	mux.HandleFunc("PUT /api/v1/projects/{id}/files/content", s.handleFileWrite)
	mux.HandleFunc("POST /api/v1/projects/{id}/files/search", s.handleFileSearch)
	mux.HandleFunc("POST /api/v1/projects/{id}/files/diff", s.handleFileDiff)

	mux.HandleFunc("GET /api/v1/projects/{id}/git/status", s.handleGitStatus)
	mux.HandleFunc("POST /api/v1/projects/{id}/git/commit", s.handleGitCommit)
	mux.HandleFunc("POST /api/v1/projects/{id}/git/push", s.handleGitPush)
	mux.HandleFunc("POST /api/v1/projects/{id}/git/branch", s.handleGitBranch)
	mux.HandleFunc("GET /api/v1/projects/{id}/git/log", s.handleGitLog)
	mux.HandleFunc("GET /api/v1/projects/{id}/git/actions", s.handleGitActions)
	mux.HandleFunc("POST /api/v1/projects/{id}/git/pr", s.handleGitPRCreate)
	mux.HandleFunc("POST /api/v1/projects/{id}/git/pr/merge", s.handleGitPRMerge)
	mux.HandleFunc("GET /api/v1/projects/{id}/git/pr/reviews", s.handleGitPRReviews)

	mux.HandleFunc("POST /api/v1/projects/{id}/runtime/start", s.handleRuntimeStart)
	mux.HandleFunc("POST /api/v1/projects/{id}/runtime/stop", s.handleRuntimeStop)
	mux.HandleFunc("GET /api/v1/projects/{id}/runtime/status", s.handleRuntimeStatus)
	mux.HandleFunc("GET /api/v1/projects/{id}/runtime/health", s.handleRuntimeHealth)
	mux.HandleFunc("GET /api/v1/projects/{id}/runtime/logs", s.handleRuntimeLogs)
	mux.HandleFunc("GET /api/v1/projects/{id}/runtime/logs/stream", s.handleRuntimeLogStream)

	mux.HandleFunc("POST /api/v1/projects/{id}/tests/run", s.handleTestRun)
	mux.HandleFunc("GET /api/v1/projects/{id}/tests/results", s.handleTestResults)

	mux.HandleFunc("POST /api/v1/projects/{id}/debug/logs", s.handleDebugLog)
	mux.HandleFunc("GET /api/v1/projects/{id}/debug/logs", s.handleDebugLogs)

	mux.HandleFunc("POST /api/v1/projects/{id}/deploy/build", s.handleDeployBuild)
	mux.HandleFunc("POST /api/v1/projects/{id}/deploy/run", s.handleDeployRun)
	mux.HandleFunc("GET /api/v1/projects/{id}/deploy/status", s.handleDeployStatus)

	mux.HandleFunc("POST /api/v1/projects/{id}/workflows/change-test", s.handleChangeTest)
	mux.HandleFunc("POST /api/v1/projects/{id}/workflows/self-bootstrap", s.handleSelfBootstrap)

	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/projects/{id}/events", s.handleProjectEvents)

	mux.HandleFunc("GET /api/v1/mcp/servers", s.handleServerList)
	mux.HandleFunc("POST /api/v1/mcp/servers", s.handleServerRegister)
	mux.HandleFunc("DELETE /api/v1/mcp/servers/{name}", s.handleServerUnregister)
	mux.HandleFunc("POST /api/v1/mcp/servers/health-check", s.handleServerHealthCheckAll)
	mux.HandleFunc("POST /api/v1/mcp/servers/{name}/health-check", s.handleServerHealthCheck)
	mux.HandleFunc("POST /api/v1/mcp/servers/{name}/mark-degraded", s.handleServerMarkDegraded)
	mux.HandleFunc("POST /api/v1/mcp/servers/{name}/mark-healthy", s.handleServerMarkHealthy)
	mux.HandleFunc("POST /api/v1/mcp/invoke", s.handleServerInvoke)
	mux.HandleFunc("GET /api/v1/mcp/invocation-events", s.handleInvocationEvents)

	var handler http.Handler = mux
	if len(jwtSecret) > 0 {
		handler = withAuth(jwtSecret, handler)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      withLogging(s.logger, handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server starting", "addr", s.srv.Addr)
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the wired mux for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":      "atthub",
		"transport": "streamable-http",
		"endpoint":  "/mcp",
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(telemetry.RenderPrometheus()))
}
