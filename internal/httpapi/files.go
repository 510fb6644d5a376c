package httpapi

import "net/http"

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.code.list_files", map[string]any{"project_id": r.PathValue("id")}, http.StatusOK)
}

func (s *Server) handleFileRead(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.code.read", map[string]any{
		"project_id": r.PathValue("id"),
		"path":       r.URL.Query().Get("path"),
	}, http.StatusOK)
}

type fileWriteBody struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleFileWrite(w http.ResponseWriter, r *http.Request) {
	var body fileWriteBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	s.call(w, r, "att.code.write", map[string]any{
		"project_id": r.PathValue("id"),
		"path":       body.Path,
		"content":    body.Content,
	}, http.StatusOK)
}

type fileSearchBody struct {
	Query string `json:"query"`
}

func (s *Server) handleFileSearch(w http.ResponseWriter, r *http.Request) {
	var body fileSearchBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	s.call(w, r, "att.code.search", map[string]any{
		"project_id": r.PathValue("id"),
		"query":      body.Query,
	}, http.StatusOK)
}

type fileDiffBody struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleFileDiff(w http.ResponseWriter, r *http.Request) {
	var body fileDiffBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	s.call(w, r, "att.code.diff", map[string]any{
		"project_id": r.PathValue("id"),
		"path":       body.Path,
		"content":    body.Content,
	}, http.StatusOK)
}
