package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atthub/atthub/internal/registry"
	"github.com/atthub/atthub/internal/runtime"
	"github.com/atthub/atthub/internal/sandbox"
	"github.com/atthub/atthub/internal/store"
	"github.com/atthub/atthub/internal/telemetry"
	"github.com/atthub/atthub/internal/testrun"
	"github.com/atthub/atthub/internal/toolcall"
)

// Dispatch resolves the project referenced by op (when it references
// one) and invokes the matching component, returning a JSON-encodable
// result.
func (s *Services) Dispatch(ctx context.Context, op toolcall.Op) (any, error) {
	switch o := op.(type) {
	case toolcall.ProjectCreate:
		return s.Registry.Create(ctx, registry.CreateRequest{
			Name: o.Name, Path: o.Path, ConfigPath: o.ConfigPath,
		})
	case toolcall.ProjectClone:
		return s.Registry.Clone(ctx, registry.CloneRequest{
			Name: o.Name, RemoteURL: o.RemoteURL, Path: o.Path,
		})
	case toolcall.ProjectGet:
		return s.Registry.Get(ctx, o.ProjectID)
	case toolcall.ProjectList:
		projects, err := s.Registry.List(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"projects": projects}, nil
	case toolcall.ProjectDelete:
		if err := s.Registry.Delete(ctx, o.ProjectID); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": true, "project_id": o.ProjectID}, nil
	case toolcall.ProjectDownload:
		path, err := s.Registry.Download(ctx, o.ProjectID, o.BasePath)
		if err != nil {
			return nil, err
		}
		return map[string]any{"path": path}, nil

	case toolcall.CodeListFiles:
		box, err := s.sandboxFor(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		files, err := box.ListFiles()
		if err != nil {
			return nil, err
		}
		return map[string]any{"files": files}, nil
	case toolcall.CodeRead:
		box, err := s.sandboxFor(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		content, err := box.ReadFile(o.Path)
		if err != nil {
			return nil, err
		}
		return map[string]any{"path": o.Path, "content": content}, nil
	case toolcall.CodeWrite:
		box, err := s.sandboxFor(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		if err := box.WriteFile(o.Path, o.Content); err != nil {
			return nil, err
		}
		return map[string]any{"path": o.Path, "written": true, "bytes": len(o.Content)}, nil
	case toolcall.CodeSearch:
		box, err := s.sandboxFor(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		matches, err := box.Search(o.Query)
		if err != nil {
			return nil, err
		}
		return map[string]any{"query": o.Query, "matches": matches}, nil
	case toolcall.CodeDiff:
		box, err := s.sandboxFor(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		current, err := box.ReadFile(o.Path)
		if err != nil {
			current = ""
		}
		diff := sandbox.Diff("a/"+o.Path, "b/"+o.Path, current, o.Content)
		return map[string]any{"path": o.Path, "diff": diff}, nil

	case toolcall.GitStatus:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		return s.Git.Status(ctx, p.Path)
	case toolcall.GitCommit:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		res, err := s.Git.Commit(ctx, p.Path, o.Message)
		if err != nil {
			return nil, err
		}
		s.emit(ctx, o.ProjectID, store.EventGitCommit, map[string]any{"message": o.Message})
		return res, nil
	case toolcall.GitPush:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		return s.Git.Push(ctx, p.Path, o.Remote, o.Branch)
	case toolcall.GitBranch:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		return s.Git.Branch(ctx, p.Path, o.Name, o.Checkout)
	case toolcall.GitLog:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		return s.Git.Log(ctx, p.Path, o.Limit)
	case toolcall.GitActions:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		return s.Git.Actions(ctx, p.Path, o.Limit)
	case toolcall.GitPRCreate:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		res, err := s.Git.PRCreate(ctx, p.Path, o.Title, o.Body, o.Base, o.Head)
		if err != nil {
			return nil, err
		}
		s.emit(ctx, o.ProjectID, store.EventGitPRCreated, map[string]any{"title": o.Title})
		return res, nil
	case toolcall.GitPRMerge:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		res, err := s.Git.PRMerge(ctx, p.Path, o.PRRef, o.Strategy)
		if err != nil {
			return nil, err
		}
		s.emit(ctx, o.ProjectID, store.EventGitPRMerged, map[string]any{"pr_ref": o.PRRef, "strategy": o.Strategy})
		return res, nil
	case toolcall.GitPRReviews:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		return s.Git.PRReviews(ctx, p.Path, o.PRRef)

	case toolcall.RuntimeStart:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		state, err := s.Runtime.Start(p.Path, runtime.RunConfig{
			Command:       o.Command,
			HealthURL:     o.HealthURL,
			HealthCommand: o.HealthCommand,
		})
		if err != nil {
			return nil, err
		}
		s.setStatus(ctx, o.ProjectID, store.StatusRunning)
		return state, nil
	case toolcall.RuntimeStop:
		if _, err := s.Registry.Get(ctx, o.ProjectID); err != nil {
			return nil, err
		}
		state := s.Runtime.Stop()
		s.setStatus(ctx, o.ProjectID, store.StatusStopped)
		return state, nil
	case toolcall.RuntimeStatus:
		if _, err := s.Registry.Get(ctx, o.ProjectID); err != nil {
			return nil, err
		}
		return s.Runtime.Status(), nil
	case toolcall.RuntimeLogs:
		if _, err := s.Registry.Get(ctx, o.ProjectID); err != nil {
			return nil, err
		}
		return s.Runtime.ReadLogs(o.Cursor, o.Limit), nil

	case toolcall.TestRun:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(o.TimeoutSeconds) * time.Second
		res, err := s.Tests.Run(ctx, p.Path, o.Suite, o.Markers, timeout)
		if err != nil {
			return nil, err
		}
		out := TestOutcome{Result: res, Summary: testrunSummary(res)}
		s.RecordTestOutcome(o.ProjectID, out)
		return out, nil

	case toolcall.DebugLog:
		if _, err := s.Registry.Get(ctx, o.ProjectID); err != nil {
			return nil, err
		}
		entry := DebugEntry{Level: o.Level, Message: o.Message, Timestamp: time.Now().UTC()}
		s.AppendDebugLog(o.ProjectID, entry)
		return entry, nil
	case toolcall.DebugLogs:
		if _, err := s.Registry.Get(ctx, o.ProjectID); err != nil {
			return nil, err
		}
		return map[string]any{"entries": s.DebugLogsFor(o.ProjectID, o.Limit)}, nil

	case toolcall.DeployBuild:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		return s.Deploy.Build(p.Path), nil
	case toolcall.DeployRun:
		p, err := s.Registry.Get(ctx, o.ProjectID)
		if err != nil {
			return nil, err
		}
		st, err := s.Deploy.Run(p.Path, runtime.RunConfig{Command: o.Command, HealthURL: o.HealthURL})
		if err != nil {
			return nil, err
		}
		s.setStatus(ctx, o.ProjectID, store.StatusRunning)
		return st, nil
	case toolcall.DeployStatus:
		if _, err := s.Registry.Get(ctx, o.ProjectID); err != nil {
			return nil, err
		}
		return s.Deploy.Current(), nil
	}

	return nil, fmt.Errorf("unhandled operation %T", op)
}

func (s *Services) sandboxFor(ctx context.Context, projectID string) (*sandbox.Sandbox, error) {
	p, err := s.Registry.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return sandbox.New(p.Path), nil
}

func (s *Services) setStatus(ctx context.Context, projectID string, status store.ProjectStatus) {
	if err := s.Registry.SetStatus(ctx, projectID, status); err != nil {
		s.Logger.Warn("project status update failed", "project_id", projectID, "error", err)
	}
}

func (s *Services) emit(ctx context.Context, projectID string, kind store.EventKind, payload map[string]any) {
	if s.Store == nil {
		return
	}
	ev := &store.Event{
		ID:        newEventID(),
		ProjectID: projectID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	if err := s.Store.AppendEvent(ctx, ev); err != nil {
		telemetry.IncEventAppendFailure()
		s.Logger.Warn("event append failed", "kind", kind, "error", err)
	}
}

func newEventID() string { return uuid.NewString() }

func testrunSummary(res testrun.Result) testrun.Summary {
	return testrun.ParseSummary(res.Output)
}
