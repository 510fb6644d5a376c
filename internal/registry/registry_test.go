package registry

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atthub/atthub/internal/gitops"
	"github.com/atthub/atthub/internal/store"
)

type fakeExecutor struct {
	calls  [][]string
	output string
	err    error
}

func (f *fakeExecutor) Run(_ context.Context, dir, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{dir, name}, args...))
	return f.output, f.err
}

func newRegistry(t *testing.T, exec gitops.Executor) (*Registry, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return New(mem, gitops.New(exec), t.TempDir(), nil), mem
}

func TestCreateEmitsEvent(t *testing.T) {
	r, mem := newRegistry(t, nil)
	p, err := r.Create(context.Background(), CreateRequest{Name: "svc"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" || p.Status != store.StatusCreated {
		t.Fatalf("unexpected project: %+v", p)
	}
	if !strings.HasSuffix(p.Path, "svc") {
		t.Fatalf("expected derived path, got %q", p.Path)
	}

	events, err := mem.ListEvents(context.Background(), store.EventFilter{ProjectID: p.ID})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Kind != store.EventProjectCreated {
		t.Fatalf("expected project.created event, got %+v", events)
	}
}

func TestCreateRequiresName(t *testing.T) {
	r, _ := newRegistry(t, nil)
	_, err := r.Create(context.Background(), CreateRequest{Name: "  "})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCloneRequiresRemote(t *testing.T) {
	r, _ := newRegistry(t, nil)
	_, err := r.Clone(context.Background(), CloneRequest{Name: "svc"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.ErrorCode() != "invalid_argument" {
		t.Fatalf("unexpected code %q", ve.ErrorCode())
	}
}

func TestCloneRunsGitAndRecords(t *testing.T) {
	exec := &fakeExecutor{output: "Cloning into 'svc'..."}
	r, _ := newRegistry(t, exec)

	p, err := r.Clone(context.Background(), CloneRequest{Name: "svc", RemoteURL: "https://example.com/svc.git"})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if p.Status != store.StatusCloned || p.RemoteURL != "https://example.com/svc.git" {
		t.Fatalf("unexpected project: %+v", p)
	}
	if len(exec.calls) != 1 || exec.calls[0][2] != "clone" {
		t.Fatalf("expected one git clone call, got %v", exec.calls)
	}
}

func TestCloneCommandFailure(t *testing.T) {
	exec := &fakeExecutor{output: "fatal: repository not found", err: errors.New("exit status 128")}
	r, _ := newRegistry(t, exec)

	_, err := r.Clone(context.Background(), CloneRequest{Name: "svc", RemoteURL: "https://example.com/missing.git"})
	var vcs *gitops.VCSError
	if !errors.As(err, &vcs) {
		t.Fatalf("expected VCS failure, got %v", err)
	}
	if !strings.Contains(vcs.Output, "not found") {
		t.Fatalf("expected captured output, got %q", vcs.Output)
	}
}

func TestGetMissingProject(t *testing.T) {
	r, _ := newRegistry(t, nil)
	_, err := r.Get(context.Background(), "nope")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	if nf.ErrorCode() != "not_found" {
		t.Fatalf("unexpected code %q", nf.ErrorCode())
	}
}

func TestDeleteRemovesRecordOnly(t *testing.T) {
	r, _ := newRegistry(t, nil)
	p, err := r.Create(context.Background(), CreateRequest{Name: "svc"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	dir := t.TempDir()
	p.Path = dir

	if err := r.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(context.Background(), p.ID); err == nil {
		t.Fatal("expected not found after delete")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("project files must survive delete: %v", err)
	}
}

func TestDownloadPackagesTree(t *testing.T) {
	r, _ := newRegistry(t, nil)
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644)
	os.WriteFile(filepath.Join(root, "pkg", "a.go"), []byte("package pkg"), 0o644)
	os.MkdirAll(filepath.Join(root, ".git"), 0o755)
	os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644)

	p, err := r.Create(context.Background(), CreateRequest{Name: "svc", Path: root})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	dest, err := r.Download(context.Background(), p.ID, filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !strings.HasSuffix(dest, ".zip") {
		t.Fatalf("expected .zip suffix, got %q", dest)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["main.go"] || !names["pkg/a.go"] {
		t.Fatalf("missing entries: %v", names)
	}
	for name := range names {
		if strings.HasPrefix(name, ".git/") {
			t.Fatalf("archive must not contain VCS internals: %v", names)
		}
	}
}

func TestDownloadMissingProject(t *testing.T) {
	r, _ := newRegistry(t, nil)
	if _, err := r.Download(context.Background(), "nope", ""); err == nil {
		t.Fatal("expected not found")
	}
}
