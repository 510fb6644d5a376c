package dispatch

import (
	"context"
	"net/http"
	"testing"

	"github.com/atthub/atthub/internal/deploy"
	"github.com/atthub/atthub/internal/gitops"
	"github.com/atthub/atthub/internal/pool"
	"github.com/atthub/atthub/internal/registry"
	"github.com/atthub/atthub/internal/runtime"
	"github.com/atthub/atthub/internal/sandbox"
	"github.com/atthub/atthub/internal/store"
	"github.com/atthub/atthub/internal/testrun"
	"github.com/atthub/atthub/internal/toolcall"
)

type fakeExecutor struct {
	calls [][]string
}

func (f *fakeExecutor) Run(_ context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return "ok", nil
}

func newServices(t *testing.T, runner string) *Services {
	t.Helper()
	mem := store.NewMemory()
	git := gitops.New(&fakeExecutor{})
	reg := registry.New(mem, git, t.TempDir(), nil)
	sup := runtime.NewSupervisor(100, nil)
	return NewServices(mem, reg, git,
		testrun.New(testrun.Config{Runner: runner}),
		sup, deploy.New(sup, nil), pool.New(pool.Config{}, nil, nil), nil)
}

func createProject(t *testing.T, s *Services) *store.Project {
	t.Helper()
	res, err := s.Dispatch(context.Background(), toolcall.ProjectCreate{Name: "demo", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return res.(*store.Project)
}

func TestDispatchProjectLifecycle(t *testing.T) {
	s := newServices(t, "true #")
	p := createProject(t, s)

	got, err := s.Dispatch(context.Background(), toolcall.ProjectGet{ProjectID: p.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.(*store.Project).Name != "demo" {
		t.Fatalf("unexpected project: %+v", got)
	}

	if _, err := s.Dispatch(context.Background(), toolcall.ProjectDelete{ProjectID: p.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = s.Dispatch(context.Background(), toolcall.ProjectGet{ProjectID: p.ID})
	if Code(err) != "not_found" {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestDispatchWriteThenListFiles(t *testing.T) {
	s := newServices(t, "true #")
	p := createProject(t, s)

	if _, err := s.Dispatch(context.Background(), toolcall.CodeWrite{
		ProjectID: p.ID, Path: "app.py", Content: "print('hi')\n",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := s.Dispatch(context.Background(), toolcall.CodeListFiles{ProjectID: p.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	files := res.(map[string]any)["files"].([]string)
	if len(files) != 1 || files[0] != "app.py" {
		t.Fatalf("unexpected files: %v", files)
	}
}

func TestDispatchPathEscape(t *testing.T) {
	s := newServices(t, "true #")
	p := createProject(t, s)

	_, err := s.Dispatch(context.Background(), toolcall.CodeWrite{
		ProjectID: p.ID, Path: "../escape.txt", Content: "x",
	})
	if Code(err) != "path_escape" {
		t.Fatalf("expected path_escape, got %v", err)
	}
	if HTTPStatus(err) != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected http status %d", HTTPStatus(err))
	}
	if RPCCode(err) != RPCDomainFailure {
		t.Fatalf("unexpected rpc code %d", RPCCode(err))
	}
}

func TestDispatchUnknownProject(t *testing.T) {
	s := newServices(t, "true #")
	_, err := s.Dispatch(context.Background(), toolcall.GitStatus{ProjectID: "ghost"})
	if Code(err) != "not_found" || HTTPStatus(err) != http.StatusNotFound {
		t.Fatalf("expected not_found/404, got %v (%d)", err, HTTPStatus(err))
	}
}

func TestDispatchTestRunRecordsOutcome(t *testing.T) {
	s := newServices(t, "echo 2 passed in 0.10s #")
	p := createProject(t, s)

	res, err := s.Dispatch(context.Background(), toolcall.TestRun{ProjectID: p.ID, Suite: "unit"})
	if err != nil {
		t.Fatalf("test run: %v", err)
	}
	out := res.(TestOutcome)
	if out.Result.Returncode != 0 || !out.Summary.Found || out.Summary.Passed != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	stored, ok := s.TestOutcomeFor(p.ID)
	if !ok || stored.Summary.Passed != 2 {
		t.Fatalf("outcome not recorded: %+v", stored)
	}
}

func TestDispatchDebugLogRoundTrip(t *testing.T) {
	s := newServices(t, "true #")
	p := createProject(t, s)

	if _, err := s.Dispatch(context.Background(), toolcall.DebugLog{
		ProjectID: p.ID, Message: "first", Level: "info",
	}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := s.Dispatch(context.Background(), toolcall.DebugLog{
		ProjectID: p.ID, Message: "second", Level: "warn",
	}); err != nil {
		t.Fatalf("log: %v", err)
	}

	res, err := s.Dispatch(context.Background(), toolcall.DebugLogs{ProjectID: p.ID, Limit: 1})
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	entries := res.(map[string]any)["entries"].([]DebugEntry)
	if len(entries) != 1 || entries[0].Message != "second" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestDispatchCodeDiff(t *testing.T) {
	s := newServices(t, "true #")
	p := createProject(t, s)

	if _, err := s.Dispatch(context.Background(), toolcall.CodeWrite{
		ProjectID: p.ID, Path: "app.py", Content: "print('old')\n",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := s.Dispatch(context.Background(), toolcall.CodeDiff{
		ProjectID: p.ID, Path: "app.py", Content: "print('new')\n",
	})
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	diff := res.(map[string]any)["diff"].(string)
	if diff == "" {
		t.Fatal("expected non-empty diff")
	}
}

func TestDispatchDeployBuildMissingManifest(t *testing.T) {
	s := newServices(t, "true #")
	p := createProject(t, s)

	res, err := s.Dispatch(context.Background(), toolcall.DeployBuild{ProjectID: p.ID})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.(deploy.Status).Built {
		t.Fatalf("expected built=false, got %+v", res)
	}
}

func TestErrorMapTable(t *testing.T) {
	tests := []struct {
		err      error
		httpCode int
		rpcCode  int
	}{
		{&toolcall.ArgumentError{Key: "name", Msg: "required"}, http.StatusUnprocessableEntity, RPCInvalidParams},
		{&registry.NotFoundError{ID: "x"}, http.StatusNotFound, RPCDomainFailure},
		{&sandbox.PathEscapeError{Path: ".."}, http.StatusUnprocessableEntity, RPCDomainFailure},
		{&gitops.VCSError{Command: "git push"}, http.StatusBadGateway, RPCDomainFailure},
		{&pool.NoServerError{}, http.StatusServiceUnavailable, RPCDomainFailure},
		{&toolcall.UnknownToolError{Name: "att.x"}, http.StatusInternalServerError, RPCMethodNotFound},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.httpCode {
			t.Fatalf("%T: http %d, want %d", tt.err, got, tt.httpCode)
		}
		if got := RPCCode(tt.err); got != tt.rpcCode {
			t.Fatalf("%T: rpc %d, want %d", tt.err, got, tt.rpcCode)
		}
	}
}
