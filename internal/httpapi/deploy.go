package httpapi

import "net/http"

type testRunBody struct {
	Suite          string `json:"suite"`
	Markers        string `json:"markers,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

func (s *Server) handleTestRun(w http.ResponseWriter, r *http.Request) {
	var body testRunBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	args := map[string]any{
		"project_id": r.PathValue("id"),
		"suite":      body.Suite,
	}
	setStr(args, "markers", body.Markers)
	setInt(args, "timeout_seconds", body.TimeoutSeconds)
	s.call(w, r, "att.test.run", args, http.StatusOK)
}

func (s *Server) handleTestResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.svc.Registry.Get(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	out, ok := s.svc.TestOutcomeFor(id)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"project_id": id, "outcome": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project_id": id, "outcome": out})
}

type debugLogBody struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}

func (s *Server) handleDebugLog(w http.ResponseWriter, r *http.Request) {
	var body debugLogBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	args := map[string]any{
		"project_id": r.PathValue("id"),
		"message":    body.Message,
	}
	setStr(args, "level", body.Level)
	s.call(w, r, "att.debug.log", args, http.StatusCreated)
}

func (s *Server) handleDebugLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.call(w, r, "att.debug.logs", map[string]any{
		"project_id": r.PathValue("id"),
		"limit":      limit,
	}, http.StatusOK)
}

func (s *Server) handleDeployBuild(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.deploy.build", map[string]any{"project_id": r.PathValue("id")}, http.StatusOK)
}

type deployRunBody struct {
	Command   string `json:"command"`
	HealthURL string `json:"health_url,omitempty"`
}

func (s *Server) handleDeployRun(w http.ResponseWriter, r *http.Request) {
	var body deployRunBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	args := map[string]any{
		"project_id": r.PathValue("id"),
		"command":    body.Command,
	}
	setStr(args, "health_url", body.HealthURL)
	s.call(w, r, "att.deploy.run", args, http.StatusOK)
}

func (s *Server) handleDeployStatus(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.deploy.status", map[string]any{"project_id": r.PathValue("id")}, http.StatusOK)
}
