package httpapi

import "net/http"

func (s *Server) handleGitStatus(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.git.status", map[string]any{"project_id": r.PathValue("id")}, http.StatusOK)
}

type gitCommitBody struct {
	Message string `json:"message"`
}

func (s *Server) handleGitCommit(w http.ResponseWriter, r *http.Request) {
	var body gitCommitBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	s.call(w, r, "att.git.commit", map[string]any{
		"project_id": r.PathValue("id"),
		"message":    body.Message,
	}, http.StatusOK)
}

type gitPushBody struct {
	Remote string `json:"remote,omitempty"`
	Branch string `json:"branch"`
}

func (s *Server) handleGitPush(w http.ResponseWriter, r *http.Request) {
	var body gitPushBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	args := map[string]any{
		"project_id": r.PathValue("id"),
		"branch":     body.Branch,
	}
	setStr(args, "remote", body.Remote)
	s.call(w, r, "att.git.push", args, http.StatusOK)
}

type gitBranchBody struct {
	Name     string `json:"name"`
	Checkout bool   `json:"checkout,omitempty"`
}

func (s *Server) handleGitBranch(w http.ResponseWriter, r *http.Request) {
	var body gitBranchBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	s.call(w, r, "att.git.branch", map[string]any{
		"project_id": r.PathValue("id"),
		"name":       body.Name,
		"checkout":   body.Checkout,
	}, http.StatusOK)
}

func (s *Server) handleGitLog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.call(w, r, "att.git.log", map[string]any{
		"project_id": r.PathValue("id"),
		"limit":      limit,
	}, http.StatusOK)
}

func (s *Server) handleGitActions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.call(w, r, "att.git.actions", map[string]any{
		"project_id": r.PathValue("id"),
		"limit":      limit,
	}, http.StatusOK)
}

type gitPRCreateBody struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	Base  string `json:"base,omitempty"`
	Head  string `json:"head,omitempty"`
}

func (s *Server) handleGitPRCreate(w http.ResponseWriter, r *http.Request) {
	var body gitPRCreateBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	args := map[string]any{
		"project_id": r.PathValue("id"),
		"title":      body.Title,
	}
	setStr(args, "body", body.Body)
	setStr(args, "base", body.Base)
	setStr(args, "head", body.Head)
	s.call(w, r, "att.git.pr_create", args, http.StatusCreated)
}

type gitPRMergeBody struct {
	PRRef    string `json:"pr_ref"`
	Strategy string `json:"strategy,omitempty"`
}

func (s *Server) handleGitPRMerge(w http.ResponseWriter, r *http.Request) {
	var body gitPRMergeBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	args := map[string]any{
		"project_id": r.PathValue("id"),
		"pr_ref":     body.PRRef,
	}
	setStr(args, "strategy", body.Strategy)
	s.call(w, r, "att.git.pr_merge", args, http.StatusOK)
}

func (s *Server) handleGitPRReviews(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "att.git.pr_reviews", map[string]any{
		"project_id": r.PathValue("id"),
		"pr_ref":     r.URL.Query().Get("pr_ref"),
	}, http.StatusOK)
}
