package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atthub/atthub/internal/telemetry"
)

type runtimeStartBody struct {
	Command       string   `json:"command"`
	HealthURL     string   `json:"health_url,omitempty"`
	HealthCommand []string `json:"health_command,omitempty"`
}

func (s *Server) handleRuntimeStart(w http.ResponseWriter, r *http.Request) {
	var body runtimeStartBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	args := map[string]any{
		"project_id": r.PathValue("id"),
		"command":    body.Command,
	}
	setStr(args, "health_url", body.HealthURL)
	if len(body.HealthCommand) > 0 {
		args["health_command"] = body.HealthCommand
	}
	s.call(w, r, "att.runtime.start", args, http.StatusOK)
}

func (s *Server) handleRuntimeStop(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.runtime.stop", map[string]any{"project_id": r.PathValue("id")}, http.StatusOK)
}

func (s *Server) handleRuntimeStatus(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.runtime.status", map[string]any{"project_id": r.PathValue("id")}, http.StatusOK)
}

func (s *Server) handleRuntimeHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Registry.Get(r.Context(), r.PathValue("id")); err != nil {
		writeDomainErr(w, err)
		return
	}
	probe := s.svc.Runtime.Probe(r.Context())
	telemetry.IncProbeResult(probe.Kind, probe.Reason)
	writeJSON(w, http.StatusOK, probe)
}

func (s *Server) handleRuntimeLogs(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{"project_id": r.PathValue("id")}
	q := r.URL.Query()
	// Malformed integers are a 400; range violations fall through to the
	// parser and surface as 422.
	if raw := q.Get("cursor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "query parameter \"cursor\" must be an integer")
			return
		}
		args["cursor"] = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "query parameter \"limit\" must be an integer")
			return
		}
		args["limit"] = n
	}
	s.call(w, r, "att.runtime.logs", args, http.StatusOK)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const logStreamPoll = 500 * time.Millisecond

type logStreamFrame struct {
	Lines  []string `json:"logs"`
	Cursor int      `json:"cursor"`
}

// handleRuntimeLogStream tails the supervisor ring over a websocket.
// Each frame carries the lines appended since the previous frame.
func (s *Server) handleRuntimeLogStream(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Registry.Get(r.Context(), r.PathValue("id")); err != nil {
		writeDomainErr(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	cursor := s.svc.Runtime.ReadLogs(nil, 1).EndCursor
	ticker := time.NewTicker(logStreamPoll)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			page := s.svc.Runtime.ReadLogs(&cursor, 500)
			if page.Truncated {
				cursor = page.StartCursor
				page = s.svc.Runtime.ReadLogs(&cursor, 500)
			}
			if len(page.Lines) == 0 {
				continue
			}
			cursor = page.EndCursor
			if err := conn.WriteJSON(logStreamFrame{Lines: page.Lines, Cursor: cursor}); err != nil {
				return
			}
		}
	}
}
