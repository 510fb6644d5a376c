package gitops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeExecutor struct {
	calls   []string
	dirs    []string
	output  string
	failOn  string
	failOut string
}

func (f *fakeExecutor) Run(_ context.Context, dir, name string, args ...string) (string, error) {
	cmdline := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, cmdline)
	f.dirs = append(f.dirs, dir)
	if f.failOn != "" && strings.Contains(cmdline, f.failOn) {
		return f.failOut, fmt.Errorf("exit status 1")
	}
	return f.output, nil
}

func TestCommitStagesBeforeCommitting(t *testing.T) {
	fake := &fakeExecutor{output: "ok"}
	s := New(fake)

	res, err := s.Commit(context.Background(), "/tmp/p", "feat: x")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected add then commit, got %v", fake.calls)
	}
	if fake.calls[0] != "git add ." {
		t.Fatalf("expected implicit add, got %q", fake.calls[0])
	}
	if !strings.HasPrefix(fake.calls[1], "git commit -m") {
		t.Fatalf("expected commit, got %q", fake.calls[1])
	}
	if res.Output != "ok" {
		t.Fatalf("unexpected output: %q", res.Output)
	}
}

func TestCommitRequiresMessage(t *testing.T) {
	s := New(&fakeExecutor{})
	if _, err := s.Commit(context.Background(), "/tmp/p", "  "); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPushDefaultsToOrigin(t *testing.T) {
	fake := &fakeExecutor{}
	s := New(fake)
	if _, err := s.Push(context.Background(), "/tmp/p", "", "feature"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if fake.calls[0] != "git push -u origin feature" {
		t.Fatalf("unexpected command: %q", fake.calls[0])
	}
}

func TestBranchCheckout(t *testing.T) {
	fake := &fakeExecutor{}
	s := New(fake)
	s.Branch(context.Background(), "/tmp/p", "fix/one", true)
	s.Branch(context.Background(), "/tmp/p", "fix/two", false)
	if fake.calls[0] != "git checkout -b fix/one" {
		t.Fatalf("unexpected checkout command: %q", fake.calls[0])
	}
	if fake.calls[1] != "git branch fix/two" {
		t.Fatalf("unexpected branch command: %q", fake.calls[1])
	}
}

func TestBranchRejectsUnsafeNames(t *testing.T) {
	s := New(&fakeExecutor{})
	for _, name := range []string{"", "-rf", "a..b", "has space"} {
		if _, err := s.Branch(context.Background(), "/tmp/p", name, true); err == nil {
			t.Fatalf("expected rejection for %q", name)
		}
	}
}

func TestVCSFailureCarriesOutput(t *testing.T) {
	fake := &fakeExecutor{failOn: "push", failOut: "fatal: remote rejected"}
	s := New(fake)
	_, err := s.Push(context.Background(), "/tmp/p", "origin", "feature")
	if err == nil {
		t.Fatal("expected failure")
	}
	var vcsErr *VCSError
	if !errors.As(err, &vcsErr) {
		t.Fatalf("expected VCSError, got %v", err)
	}
	if vcsErr.Output != "fatal: remote rejected" {
		t.Fatalf("expected captured output, got %q", vcsErr.Output)
	}
	if vcsErr.ErrorCode() != "vcs_failure" {
		t.Fatalf("unexpected code %q", vcsErr.ErrorCode())
	}
}

func TestPRMergeValidatesStrategy(t *testing.T) {
	fake := &fakeExecutor{}
	s := New(fake)

	if _, err := s.PRMerge(context.Background(), "/tmp/p", "42", "octopus"); err == nil {
		t.Fatal("expected strategy rejection")
	}
	if _, err := s.PRMerge(context.Background(), "/tmp/p", "42", "squash"); err != nil {
		t.Fatalf("squash should be accepted: %v", err)
	}
	if fake.calls[0] != "gh pr merge 42 --squash" {
		t.Fatalf("unexpected command: %q", fake.calls[0])
	}
}

func TestActionsUsesHostedCLI(t *testing.T) {
	fake := &fakeExecutor{}
	s := New(fake)
	s.Actions(context.Background(), "/tmp/p", 5)
	if fake.calls[0] != "gh run list --limit 5" {
		t.Fatalf("unexpected command: %q", fake.calls[0])
	}
}
