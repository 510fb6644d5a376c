package httpapi

import (
	"errors"
	"net/http"

	"github.com/atthub/atthub/internal/pool"
	"github.com/atthub/atthub/internal/telemetry"
)

func (s *Server) handleServerList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"servers": s.svc.Pool.List()})
}

type serverRegisterBody struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

func (s *Server) handleServerRegister(w http.ResponseWriter, r *http.Request) {
	var body serverRegisterBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	srv, err := s.svc.Pool.Register(body.Name, body.BaseURL)
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, srv)
}

func (s *Server) handleServerUnregister(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Pool.Unregister(r.PathValue("name")) {
		writeErr(w, http.StatusNotFound, "server not registered")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleServerHealthCheckAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"servers": s.svc.Pool.HealthCheckAll(r.Context())})
}

func (s *Server) handleServerHealthCheck(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	prev, ok := s.svc.Pool.Get(name)
	if !ok {
		writeErr(w, http.StatusNotFound, "server not registered")
		return
	}
	srv, err := s.svc.Pool.CheckServer(r.Context(), name)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	countTransition(prev, srv)
	writeJSON(w, http.StatusOK, srv)
}

type markDegradedBody struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleServerMarkDegraded(w http.ResponseWriter, r *http.Request) {
	var body markDegradedBody
	if r.ContentLength > 0 {
		if err := decodeJSONBody(w, r, &body); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
	}
	if body.Reason == "" {
		body.Reason = "manual"
	}
	name := r.PathValue("name")
	prev, ok := s.svc.Pool.Get(name)
	if !ok {
		writeErr(w, http.StatusNotFound, "server not registered")
		return
	}
	srv, err := s.svc.Pool.MarkDegraded(name, body.Reason)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	countTransition(prev, srv)
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleServerMarkHealthy(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	prev, ok := s.svc.Pool.Get(name)
	if !ok {
		writeErr(w, http.StatusNotFound, "server not registered")
		return
	}
	srv, err := s.svc.Pool.MarkHealthy(name)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	countTransition(prev, srv)
	writeJSON(w, http.StatusOK, srv)
}

func countTransition(prev, next pool.Server) {
	if prev.Status != next.Status {
		telemetry.IncServerTransition(string(next.Status))
	}
}

type invokeBody struct {
	Preferred []string `json:"preferred,omitempty"`
	Method    string   `json:"method"`
	Params    any      `json:"params,omitempty"`
}

func (s *Server) handleServerInvoke(w http.ResponseWriter, r *http.Request) {
	var body invokeBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if body.Method == "" {
		writeErr(w, http.StatusUnprocessableEntity, "method is required")
		return
	}

	res, err := s.svc.Pool.Invoke(r.Context(), body.Preferred, body.Method, body.Params)
	if err != nil {
		var noServer *pool.NoServerError
		if errors.As(err, &noServer) {
			writeDomainErr(w, err)
			return
		}
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleInvocationEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.svc.Pool.ListEvents()})
}
