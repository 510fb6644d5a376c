// Package workflow implements the change-test sequence: write a file,
// diff it against the previous content, run the tests, and optionally
// commit, emitting an ordered event trail along the way.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atthub/atthub/internal/gitops"
	"github.com/atthub/atthub/internal/sandbox"
	"github.com/atthub/atthub/internal/store"
	"github.com/atthub/atthub/internal/telemetry"
	"github.com/atthub/atthub/internal/testrun"
)

// Request describes one change-test run.
type Request struct {
	ProjectID     string        `json:"project_id"`
	Root          string        `json:"root"`
	Path          string        `json:"path"`
	Content       string        `json:"content"`
	Suite         string        `json:"suite"`
	Markers       string        `json:"markers,omitempty"`
	Timeout       time.Duration `json:"-"`
	CommitMessage string        `json:"commit_message,omitempty"`
}

// CommitError marks a failure in the commit step, after the tests have
// already passed. Callers distinguish it from earlier write/test errors.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return "commit changes: " + e.Err.Error() }
func (e *CommitError) Unwrap() error { return e.Err }

// Result is the outcome of a change-test run.
type Result struct {
	Passed     bool           `json:"passed"`
	Committed  bool           `json:"committed"`
	Diff       string         `json:"diff"`
	TestResult testrun.Result `json:"test_result"`
	Events     []*store.Event `json:"events"`
}

// Orchestrator sequences sandbox writes, test runs, and commits. The
// store is optional; when nil, events are only returned in the result.
type Orchestrator struct {
	git     *gitops.Surface
	harness *testrun.Harness
	store   store.Store
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Orchestrator.
func New(git *gitops.Surface, harness *testrun.Harness, st store.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		git:     git,
		harness: harness,
		store:   st,
		logger:  logger.With("component", "workflow"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the change-test sequence. Event order is strict:
// code.changed, test.run, then test.passed or test.failed, then
// git.commit when a commit happened.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if strings.TrimSpace(req.Suite) == "" {
		return nil, fmt.Errorf("suite is required")
	}

	box := sandbox.New(req.Root)
	res := &Result{}

	before, err := box.ReadFile(req.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read previous content: %w", err)
		}
		before = ""
	}

	if err := box.WriteFile(req.Path, req.Content); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	diff := sandbox.Diff("a/"+req.Path, "b/"+req.Path, before, req.Content)
	res.Diff = diff
	o.record(ctx, res, req.ProjectID, store.EventCodeChanged, map[string]any{
		"path":       req.Path,
		"diff_chars": len(diff),
	})

	o.record(ctx, res, req.ProjectID, store.EventTestRun, map[string]any{"suite": req.Suite})

	tr, err := o.harness.Run(ctx, req.Root, req.Suite, req.Markers, req.Timeout)
	if err != nil {
		return nil, fmt.Errorf("run tests: %w", err)
	}
	res.TestResult = tr
	res.Passed = tr.Returncode == 0

	kind := store.EventTestFailed
	if res.Passed {
		kind = store.EventTestPassed
	}
	o.record(ctx, res, req.ProjectID, kind, map[string]any{
		"suite":      req.Suite,
		"returncode": tr.Returncode,
	})

	if res.Passed && strings.TrimSpace(req.CommitMessage) != "" {
		if _, err := o.git.Commit(ctx, req.Root, req.CommitMessage); err != nil {
			return nil, &CommitError{Err: err}
		}
		res.Committed = true
		o.record(ctx, res, req.ProjectID, store.EventGitCommit, map[string]any{
			"message": req.CommitMessage,
		})
	}

	o.logger.Info("change-test finished",
		"project_id", req.ProjectID, "suite", req.Suite,
		"passed", res.Passed, "committed", res.Committed)
	return res, nil
}

// record appends the event to the result and, when a store is wired, to
// the log. An append failure degrades observability but never aborts the
// workflow.
func (o *Orchestrator) record(ctx context.Context, res *Result, projectID string, kind store.EventKind, payload map[string]any) {
	ev := &store.Event{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: o.now(),
	}
	res.Events = append(res.Events, ev)
	if o.store == nil {
		return
	}
	if err := o.store.AppendEvent(ctx, ev); err != nil {
		telemetry.IncEventAppendFailure()
		o.logger.Warn("event append failed", "kind", kind, "error", err)
	}
}
