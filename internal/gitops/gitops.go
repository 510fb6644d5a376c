// Package gitops is a thin command-executor façade over git and the hosted
// PR tooling (gh). Operations return the command line and its captured
// output; failures carry the combined stdout+stderr. The façade never
// interprets the output semantically.
package gitops

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var branchNameRe = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// Executor runs a command in a directory and returns its combined output.
// The real implementation shells out; tests inject fakes.
type Executor interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner is the os/exec-backed Executor.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// VCSError reports a failed git/gh invocation with its captured output.
type VCSError struct {
	Command string
	Output  string
	Err     error
}

func (e *VCSError) Error() string {
	return fmt.Sprintf("%s failed: %v: %s", e.Command, e.Err, strings.TrimSpace(e.Output))
}

func (e *VCSError) Unwrap() error { return e.Err }

func (e *VCSError) ErrorCode() string { return "vcs_failure" }

// CmdResult is the successful outcome of a VCS operation.
type CmdResult struct {
	Command string `json:"command"`
	Output  string `json:"output"`
}

// MergeStrategies are the hosted-PR merge modes accepted by PRMerge.
var MergeStrategies = map[string]bool{"squash": true, "merge": true, "rebase": true}

// Surface exposes the VCS and hosted-PR operations used by the orchestrator.
type Surface struct {
	exec Executor
}

// New creates a Surface backed by the given executor.
func New(executor Executor) *Surface {
	if executor == nil {
		executor = ExecRunner{}
	}
	return &Surface{exec: executor}
}

func (s *Surface) run(ctx context.Context, dir, name string, args ...string) (CmdResult, error) {
	cmdline := name + " " + strings.Join(args, " ")
	out, err := s.exec.Run(ctx, dir, name, args...)
	if err != nil {
		return CmdResult{}, &VCSError{Command: cmdline, Output: out, Err: err}
	}
	return CmdResult{Command: cmdline, Output: out}, nil
}

// Status returns the working-tree status.
func (s *Surface) Status(ctx context.Context, root string) (CmdResult, error) {
	return s.run(ctx, root, "git", "status")
}

// Commit stages everything and commits with the given message.
func (s *Surface) Commit(ctx context.Context, root, message string) (CmdResult, error) {
	if strings.TrimSpace(message) == "" {
		return CmdResult{}, fmt.Errorf("commit message is required")
	}
	if _, err := s.run(ctx, root, "git", "add", "."); err != nil {
		return CmdResult{}, err
	}
	return s.run(ctx, root, "git", "commit", "-m", message)
}

// Push pushes a branch to a remote, defaulting to origin.
func (s *Surface) Push(ctx context.Context, root, remote, branch string) (CmdResult, error) {
	if remote == "" {
		remote = "origin"
	}
	if err := validateBranch(branch); err != nil {
		return CmdResult{}, err
	}
	return s.run(ctx, root, "git", "push", "-u", remote, branch)
}

// Branch creates a branch, optionally checking it out.
func (s *Surface) Branch(ctx context.Context, root, name string, checkout bool) (CmdResult, error) {
	if err := validateBranch(name); err != nil {
		return CmdResult{}, err
	}
	if checkout {
		return s.run(ctx, root, "git", "checkout", "-b", name)
	}
	return s.run(ctx, root, "git", "branch", name)
}

// Log returns the recent commit log, one line per commit.
func (s *Surface) Log(ctx context.Context, root string, limit int) (CmdResult, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.run(ctx, root, "git", "log", "--oneline", "-n", strconv.Itoa(limit))
}

// Clone clones a remote repository into dest.
func (s *Surface) Clone(ctx context.Context, remoteURL, dest string) (CmdResult, error) {
	if strings.TrimSpace(remoteURL) == "" {
		return CmdResult{}, fmt.Errorf("remote url is required")
	}
	return s.run(ctx, "", "git", "clone", remoteURL, dest)
}

// Actions lists recent hosted-CI runs for the repository.
func (s *Surface) Actions(ctx context.Context, root string, limit int) (CmdResult, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.run(ctx, root, "gh", "run", "list", "--limit", strconv.Itoa(limit))
}

// PRCreate opens a pull request. Head is optional; gh infers the current
// branch when it is empty.
func (s *Surface) PRCreate(ctx context.Context, root, title, body, base, head string) (CmdResult, error) {
	if strings.TrimSpace(title) == "" {
		return CmdResult{}, fmt.Errorf("pr title is required")
	}
	if base == "" {
		base = "main"
	}
	args := []string{"pr", "create", "--title", title, "--body", body, "--base", base}
	if head != "" {
		args = append(args, "--head", head)
	}
	return s.run(ctx, root, "gh", args...)
}

// PRMerge merges a pull request with the given strategy.
func (s *Surface) PRMerge(ctx context.Context, root, prRef, strategy string) (CmdResult, error) {
	if strings.TrimSpace(prRef) == "" {
		return CmdResult{}, fmt.Errorf("pr reference is required")
	}
	if !MergeStrategies[strategy] {
		return CmdResult{}, fmt.Errorf("unsupported merge strategy: %q", strategy)
	}
	return s.run(ctx, root, "gh", "pr", "merge", prRef, "--"+strategy)
}

// PRReviews lists the reviews on a pull request.
func (s *Surface) PRReviews(ctx context.Context, root, prRef string) (CmdResult, error) {
	if strings.TrimSpace(prRef) == "" {
		return CmdResult{}, fmt.Errorf("pr reference is required")
	}
	return s.run(ctx, root, "gh", "pr", "view", prRef, "--json", "reviews")
}

func validateBranch(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("branch name is required")
	}
	if strings.HasPrefix(trimmed, "-") || strings.Contains(trimmed, "..") || !branchNameRe.MatchString(trimmed) {
		return fmt.Errorf("invalid branch name: %q", name)
	}
	return nil
}
