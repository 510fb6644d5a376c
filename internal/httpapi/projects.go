package httpapi

import (
	"net/http"

	"github.com/atthub/atthub/internal/toolcall"
)

// call validates args through the tool-call parser, dispatches, and
// writes the result or the mapped domain error. REST and JSON-RPC share
// one validation path this way.
func (s *Server) call(w http.ResponseWriter, r *http.Request, tool string, args map[string]any, okStatus int) {
	op, err := toolcall.Parse(tool, args)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	res, err := s.svc.Dispatch(r.Context(), op)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, okStatus, res)
}

// setStr and setInt add optional keys only when provided, so the
// parser's "present but empty" validation does not fire on defaults.
func setStr(args map[string]any, key, val string) {
	if val != "" {
		args[key] = val
	}
}

func setInt(args map[string]any, key string, val int) {
	if val > 0 {
		args[key] = val
	}
}

type projectCreateBody struct {
	Name       string `json:"name"`
	Path       string `json:"path,omitempty"`
	ConfigPath string `json:"config_path,omitempty"`
}

func (s *Server) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	var body projectCreateBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	args := map[string]any{"name": body.Name}
	setStr(args, "path", body.Path)
	setStr(args, "config_path", body.ConfigPath)
	s.call(w, r, "att.project.create", args, http.StatusCreated)
}

type projectCloneBody struct {
	Name      string `json:"name"`
	RemoteURL string `json:"remote_url"`
	Path      string `json:"path,omitempty"`
}

func (s *Server) handleProjectClone(w http.ResponseWriter, r *http.Request) {
	var body projectCloneBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	args := map[string]any{"name": body.Name, "remote_url": body.RemoteURL}
	setStr(args, "path", body.Path)
	s.call(w, r, "att.project.clone", args, http.StatusCreated)
}

func (s *Server) handleProjectList(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.project.list", nil, http.StatusOK)
}

func (s *Server) handleProjectGet(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.project.get", map[string]any{"project_id": r.PathValue("id")}, http.StatusOK)
}

func (s *Server) handleProjectDelete(w http.ResponseWriter, r *http.Request) {
	_, err := s.svc.Dispatch(r.Context(), toolcall.ProjectDelete{ProjectID: r.PathValue("id")})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type projectDownloadBody struct {
	BasePath string `json:"base_path,omitempty"`
}

func (s *Server) handleProjectDownload(w http.ResponseWriter, r *http.Request) {
	var body projectDownloadBody
	if r.ContentLength > 0 {
		if err := decodeJSONBody(w, r, &body); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
	}
	args := map[string]any{"project_id": r.PathValue("id")}
	setStr(args, "base_path", body.BasePath)
	s.call(w, r, "att.project.download", args, http.StatusOK)
}
