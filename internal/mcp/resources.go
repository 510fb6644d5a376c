package mcp

import (
	"fmt"
	"net/http"

	"github.com/atthub/atthub/internal/sandbox"
	"github.com/atthub/atthub/internal/toolcall"
)

// ResourceDefinitions returns the six att:// shapes served by
// resources/list. Per-project shapes are URI templates.
func ResourceDefinitions() []map[string]any {
	return []map[string]any{
		{
			"uri":         "att://projects",
			"name":        "projects",
			"description": "All registered projects",
			"mimeType":    "application/json",
		},
		{
			"uriTemplate": "att://project/{id}/files",
			"name":        "project files",
			"description": "File listing under the project root",
			"mimeType":    "application/json",
		},
		{
			"uriTemplate": "att://project/{id}/config",
			"name":        "project config",
			"description": "Content of the project's configured config file",
			"mimeType":    "application/json",
		},
		{
			"uriTemplate": "att://project/{id}/tests",
			"name":        "project tests",
			"description": "Most recent test run outcome",
			"mimeType":    "application/json",
		},
		{
			"uriTemplate": "att://project/{id}/logs",
			"name":        "project logs",
			"description": "Captured process output; accepts cursor and limit query params",
			"mimeType":    "application/json",
		},
		{
			"uriTemplate": "att://project/{id}/ci",
			"name":        "project ci",
			"description": "Recent hosted CI runs",
			"mimeType":    "application/json",
		},
	}
}

// readResource resolves a parsed att:// reference against the service
// graph. Most shapes reuse the tool dispatch path.
func (h *Handler) readResource(r *http.Request, res toolcall.Resource) (any, error) {
	ctx := r.Context()

	switch rr := res.(type) {
	case toolcall.ResProjects:
		return h.svc.Dispatch(ctx, toolcall.ProjectList{})

	case toolcall.ResFiles:
		return h.svc.Dispatch(ctx, toolcall.CodeListFiles{ProjectID: rr.ProjectID})

	case toolcall.ResConfig:
		p, err := h.svc.Registry.Get(ctx, rr.ProjectID)
		if err != nil {
			return nil, err
		}
		content := ""
		if p.ConfigPath != "" {
			content, err = sandbox.New(p.Path).ReadFile(p.ConfigPath)
			if err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"project_id":  p.ID,
			"config_path": p.ConfigPath,
			"content":     content,
		}, nil

	case toolcall.ResTests:
		if _, err := h.svc.Registry.Get(ctx, rr.ProjectID); err != nil {
			return nil, err
		}
		out, ok := h.svc.TestOutcomeFor(rr.ProjectID)
		if !ok {
			return map[string]any{"project_id": rr.ProjectID, "outcome": nil}, nil
		}
		return map[string]any{"project_id": rr.ProjectID, "outcome": out}, nil

	case toolcall.ResLogs:
		return h.svc.Dispatch(ctx, toolcall.RuntimeLogs{
			ProjectID: rr.ProjectID, Cursor: rr.Cursor, Limit: rr.Limit,
		})

	case toolcall.ResCI:
		return h.svc.Dispatch(ctx, toolcall.GitActions{ProjectID: rr.ProjectID, Limit: 10})
	}

	return nil, fmt.Errorf("unhandled resource %T", res)
}
