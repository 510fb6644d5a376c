package httpapi

import (
	"net/http"
	"time"

	"github.com/atthub/atthub/internal/bootstrap"
	"github.com/atthub/atthub/internal/store"
	"github.com/atthub/atthub/internal/telemetry"
	"github.com/atthub/atthub/internal/workflow"
)

type changeTestBody struct {
	FilePath       string `json:"file_path"`
	Content        string `json:"content"`
	Suite          string `json:"suite"`
	Markers        string `json:"markers,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	CommitMessage  string `json:"commit_message,omitempty"`
}

type changeTestResponse struct {
	*workflow.Result
	EventIDs []string `json:"event_ids"`
}

func (s *Server) handleChangeTest(w http.ResponseWriter, r *http.Request) {
	var body changeTestBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	p, err := s.svc.Registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	res, err := s.wf.Run(r.Context(), workflow.Request{
		ProjectID:     p.ID,
		Root:          p.Path,
		Path:          body.FilePath,
		Content:       body.Content,
		Suite:         body.Suite,
		Markers:       body.Markers,
		Timeout:       time.Duration(body.TimeoutSeconds) * time.Second,
		CommitMessage: body.CommitMessage,
	})
	if err != nil {
		telemetry.IncWorkflowRun("error")
		writeDomainErr(w, err)
		return
	}
	if res.Passed {
		telemetry.IncWorkflowRun("passed")
	} else {
		telemetry.IncWorkflowRun("failed")
	}

	writeJSON(w, http.StatusOK, changeTestResponse{Result: res, EventIDs: eventIDs(res.Events)})
}

type selfBootstrapBody struct {
	FilePath       string `json:"file_path"`
	Content        string `json:"content"`
	Suite          string `json:"suite"`
	CommitMessage  string `json:"commit_message,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`

	BranchName string `json:"branch_name,omitempty"`
	PRTitle    string `json:"pr_title,omitempty"`
	PRBody     string `json:"pr_body,omitempty"`
	BaseBranch string `json:"base_branch,omitempty"`
	AutoMerge  bool   `json:"auto_merge,omitempty"`

	DeployTarget      string `json:"deploy_target,omitempty"`
	ReleaseID         string `json:"release_id,omitempty"`
	PreviousReleaseID string `json:"previous_release_id,omitempty"`
	RollbackReleaseID string `json:"rollback_release_id,omitempty"`
}

type selfBootstrapResponse struct {
	*bootstrap.Result
	EventIDs []string `json:"event_ids"`
}

func (s *Server) handleSelfBootstrap(w http.ResponseWriter, r *http.Request) {
	var body selfBootstrapBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	p, err := s.svc.Registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	res, err := s.boot.Run(r.Context(), bootstrap.Request{
		ProjectID:         p.ID,
		Root:              p.Path,
		Path:              body.FilePath,
		Content:           body.Content,
		Suite:             body.Suite,
		CommitMessage:     body.CommitMessage,
		TestTimeout:       time.Duration(body.TimeoutSeconds) * time.Second,
		BranchName:        body.BranchName,
		PRTitle:           body.PRTitle,
		PRBody:            body.PRBody,
		BaseBranch:        body.BaseBranch,
		AutoMerge:         body.AutoMerge,
		DeployTarget:      body.DeployTarget,
		ReleaseID:         body.ReleaseID,
		PreviousReleaseID: body.PreviousReleaseID,
		RollbackReleaseID: body.RollbackReleaseID,
	})
	if err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	telemetry.IncBootstrapPhase(orPhase(res.FailurePhase), outcome)

	writeJSON(w, http.StatusOK, selfBootstrapResponse{Result: res, EventIDs: eventIDs(res.Events)})
}

func orPhase(phase string) string {
	if phase == "" {
		return "complete"
	}
	return phase
}

func eventIDs(events []*store.Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := eventFilterFromQuery(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.svc.Store.ListEvents(r.Context(), filter)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleProjectEvents(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	filter, err := eventFilterFromQuery(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.ProjectID = p.ID
	events, err := s.svc.Store.ListEvents(r.Context(), filter)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func eventFilterFromQuery(r *http.Request) (store.EventFilter, error) {
	q := r.URL.Query()
	filter := store.EventFilter{ProjectID: q.Get("project_id")}

	if raw := q.Get("kind"); raw != "" {
		kind := store.EventKind(raw)
		if !store.ValidKind(kind) {
			return filter, errBadQuery("kind", raw)
		}
		filter.Kind = kind
	}
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errBadQuery("since", raw)
		}
		filter.Since = &t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errBadQuery("until", raw)
		}
		filter.Until = &t
	}
	return filter, nil
}

type badQueryError struct{ key, value string }

func (e badQueryError) Error() string {
	return "malformed query parameter " + e.key + "=" + e.value
}

func errBadQuery(key, value string) error { return badQueryError{key: key, value: value} }
