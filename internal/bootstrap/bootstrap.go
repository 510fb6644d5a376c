// Package bootstrap runs the self-bootstrap pipeline: branch, change and
// test, push, PR, CI poll, merge, deploy, and post-deploy verification
// with rollback. The pipeline is a single-track state machine; optional
// phases are gated by provider presence, and every termination is
// preceded by a structured diagnostic event.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atthub/atthub/internal/gitops"
	"github.com/atthub/atthub/internal/store"
	"github.com/atthub/atthub/internal/telemetry"
	"github.com/atthub/atthub/internal/workflow"
)

// Config tunes the polling phases.
type Config struct {
	BranchPrefix     string        // default "bootstrap"
	InitialPoll      time.Duration // default 5s
	MaxPoll          time.Duration // default 60s
	CITimeout        time.Duration // default 10m
	WatchdogRetries  int           // default 3
	WatchdogInterval time.Duration // default 5s
	HealthRetries    int           // default 3
	HealthInterval   time.Duration // default 5s
}

func (c Config) withDefaults() Config {
	if c.BranchPrefix == "" {
		c.BranchPrefix = "bootstrap"
	}
	if c.InitialPoll <= 0 {
		c.InitialPoll = 5 * time.Second
	}
	if c.MaxPoll <= 0 {
		c.MaxPoll = 60 * time.Second
	}
	if c.CITimeout <= 0 {
		c.CITimeout = 10 * time.Minute
	}
	if c.WatchdogRetries <= 0 {
		c.WatchdogRetries = 3
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = 5 * time.Second
	}
	if c.HealthRetries <= 0 {
		c.HealthRetries = 3
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 5 * time.Second
	}
	return c
}

// Request describes one bootstrap cycle for a single code change.
type Request struct {
	ProjectID     string        `json:"project_id"`
	Root          string        `json:"root"`
	Path          string        `json:"file_path"`
	Content       string        `json:"content"`
	Suite         string        `json:"suite"`
	CommitMessage string        `json:"commit_message"`
	TestTimeout   time.Duration `json:"-"`

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

// Result carries enough state for a caller to inspect or resume.
type Result struct {
	Success               bool           `json:"success"`
	FailurePhase          string         `json:"failure_phase,omitempty"`
	Branch                string         `json:"branch"`
	Committed             bool           `json:"committed"`
	PRURL                 string         `json:"pr_url,omitempty"`
	CIStatus              string         `json:"ci_status,omitempty"`
	Merged                bool           `json:"merged"`
	Deployed              bool           `json:"deployed"`
	HealthStatus          string         `json:"health_status,omitempty"`
	RollbackPerformed     bool           `json:"rollback_performed"`
	RollbackSucceeded     bool           `json:"rollback_succeeded"`
	ReleaseMetadataSource string         `json:"release_metadata_source,omitempty"`
	Events                []*store.Event `json:"events"`
}

// Machine executes bootstrap cycles.
type Machine struct {
	cfg       Config
	git       *gitops.Surface
	wf        *workflow.Orchestrator
	store     store.Store
	providers Providers
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Machine. The store is optional; events are always
// returned in the result.
func New(cfg Config, git *gitops.Surface, wf *workflow.Orchestrator, st store.Store, providers Providers, logger *slog.Logger) *Machine {
	if providers.Sleep == nil {
		providers.Sleep = realSleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:       cfg.withDefaults(),
		git:       git,
		wf:        wf,
		store:     st,
		providers: providers,
		logger:    logger.With("component", "bootstrap"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run drives one bootstrap cycle to a terminal result. The returned
// error covers only caller mistakes; pipeline failures terminate cleanly
// inside the Result.
func (m *Machine) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.Root) == "" {
		return nil, fmt.Errorf("project_id and root are required")
	}
	if strings.TrimSpace(req.Path) == "" || strings.TrimSpace(req.Suite) == "" {
		return nil, fmt.Errorf("file_path and suite are required")
	}
	if strings.TrimSpace(req.CommitMessage) == "" {
		req.CommitMessage = "self-bootstrap change"
	}

	res := &Result{}
	meta := m.resolveMetadata(ctx, req, res)

	// Branch.
	branch := strings.TrimSpace(req.BranchName)
	if branch == "" {
		branch = m.cfg.BranchPrefix + "-" + shortHex()
	}
	res.Branch = branch
	if _, err := m.git.Branch(ctx, req.Root, branch, true); err != nil {
		return m.fail(ctx, res, req.ProjectID, "branch", map[string]any{"branch": branch, "error": err.Error()}), nil
	}

	// Change + test.
	wfRes, err := m.wf.Run(ctx, workflow.Request{
		ProjectID:     req.ProjectID,
		Root:          req.Root,
		Path:          req.Path,
		Content:       req.Content,
		Suite:         req.Suite,
		Timeout:       req.TestTimeout,
		CommitMessage: req.CommitMessage,
	})
	if err != nil {
		phase := "workflow"
		var commitErr *workflow.CommitError
		if errors.As(err, &commitErr) {
			phase = "commit"
		}
		return m.fail(ctx, res, req.ProjectID, phase, map[string]any{"error": err.Error()}), nil
	}
	res.Events = append(res.Events, wfRes.Events...)
	res.Committed = wfRes.Committed
	if !wfRes.Committed {
		return m.fail(ctx, res, req.ProjectID, "commit", map[string]any{
			"suite":      req.Suite,
			"returncode": wfRes.TestResult.Returncode,
		}), nil
	}

	// Push.
	if _, err := m.git.Push(ctx, req.Root, "", branch); err != nil {
		return m.fail(ctx, res, req.ProjectID, "push", map[string]any{"branch": branch, "error": err.Error()}), nil
	}

	// PR create.
	if m.providers.PRCreate != nil {
		url, err := m.providers.PRCreate(ctx, PRRequest{
			Title:  orDefault(req.PRTitle, req.CommitMessage),
			Body:   req.PRBody,
			Base:   req.BaseBranch,
			Branch: branch,
		})
		if err != nil {
			return m.fail(ctx, res, req.ProjectID, "pr_create", map[string]any{"error": err.Error()}), nil
		}
		res.PRURL = url
		m.emit(ctx, res, req.ProjectID, store.EventGitPRCreated, map[string]any{"url": url, "branch": branch})
	}

	// CI poll.
	if m.providers.CIStatus != nil {
		if done := m.pollCI(ctx, req, res); done {
			return res, nil
		}
	}

	// Auto-merge.
	if req.AutoMerge && res.PRURL != "" && m.providers.PRMerge != nil {
		if err := m.providers.PRMerge(ctx, res.PRURL); err != nil {
			return m.fail(ctx, res, req.ProjectID, "merge", map[string]any{"url": res.PRURL, "error": err.Error()}), nil
		}
		res.Merged = true
		m.emit(ctx, res, req.ProjectID, store.EventGitPRMerged, map[string]any{"url": res.PRURL})
	}

	// Deploy.
	if m.providers.Deploy != nil && req.DeployTarget != "" {
		m.emit(ctx, res, req.ProjectID, store.EventDeployStarted, map[string]any{"target": req.DeployTarget})
		if err := m.providers.Deploy(ctx, req.DeployTarget); err != nil {
			m.diagnostic(ctx, res, req.ProjectID, "deploy", map[string]any{"target": req.DeployTarget, "error": err.Error()})
			m.emit(ctx, res, req.ProjectID, store.EventDeployDone, map[string]any{"healthy": false})
			res.FailurePhase = "deploy"
			return res, nil
		}
		res.Deployed = true
	}

	// Restart watchdog.
	if m.providers.Watchdog != nil {
		if done := m.watchWatchdog(ctx, req, res, meta); done {
			return res, nil
		}
	}

	// Health check.
	if m.providers.Health != nil && req.DeployTarget != "" {
		if done := m.pollHealth(ctx, req, res, meta); done {
			return res, nil
		}
		res.HealthStatus = "healthy"
	}

	m.emit(ctx, res, req.ProjectID, store.EventDeployDone, map[string]any{"healthy": true})
	res.Success = true
	m.logger.Info("bootstrap cycle complete", "project_id", req.ProjectID, "branch", branch, "pr_url", res.PRURL)
	return res, nil
}

// resolveMetadata fills the release pair when the request has not pinned
// one. A provider failure is advisory: rollback simply has less to work
// with.
func (m *Machine) resolveMetadata(ctx context.Context, req Request, res *Result) ReleaseMetadata {
	if req.PreviousReleaseID != "" || req.RollbackReleaseID != "" {
		res.ReleaseMetadataSource = "request"
		return ReleaseMetadata{ReleaseID: req.ReleaseID, PreviousReleaseID: req.PreviousReleaseID}
	}
	if m.providers.ReleaseMeta == nil {
		res.ReleaseMetadataSource = "none"
		return ReleaseMetadata{}
	}
	meta, err := m.providers.ReleaseMeta(ctx, req.ProjectID)
	if err != nil {
		m.logger.Warn("release metadata unavailable", "project_id", req.ProjectID, "error", err)
		res.ReleaseMetadataSource = "none"
		return ReleaseMetadata{}
	}
	res.ReleaseMetadataSource = "provider"
	return meta
}

// pollCI loops the checker with doubling backoff. Returns true when the
// pipeline terminated.
func (m *Machine) pollCI(ctx context.Context, req Request, res *Result) bool {
	m.emit(ctx, res, req.ProjectID, store.EventBuildStarted, map[string]any{"branch": res.Branch})

	start := m.now()
	wait := m.cfg.InitialPoll
	for {
		status, err := m.providers.CIStatus(ctx)
		if err != nil {
			res.CIStatus = "error"
			m.diagnostic(ctx, res, req.ProjectID, "ci", map[string]any{"error": err.Error()})
			res.FailurePhase = "ci"
			return true
		}
		switch status {
		case CISuccess:
			res.CIStatus = CISuccess
			m.emit(ctx, res, req.ProjectID, store.EventBuildCompleted, map[string]any{"status": CISuccess})
			return false
		case CIFailure:
			res.CIStatus = CIFailure
			m.diagnostic(ctx, res, req.ProjectID, "ci", map[string]any{"ci_status": CIFailure})
			res.FailurePhase = "ci"
			return true
		}

		m.providers.Sleep(ctx, wait)
		wait = min(2*wait, m.cfg.MaxPoll)
		if m.now().Sub(start) >= m.cfg.CITimeout {
			res.CIStatus = "timeout"
			m.diagnostic(ctx, res, req.ProjectID, "ci", map[string]any{"ci_status": "timeout"})
			res.FailurePhase = "ci"
			return true
		}
	}
}

// watchWatchdog polls the restart watchdog. Returns true when the
// pipeline terminated.
func (m *Machine) watchWatchdog(ctx context.Context, req Request, res *Result, meta ReleaseMetadata) bool {
	var last RestartSignal
	for attempt := 0; attempt < m.cfg.WatchdogRetries; attempt++ {
		if attempt > 0 {
			m.providers.Sleep(ctx, m.cfg.WatchdogInterval)
		}
		sig, err := m.providers.Watchdog(ctx)
		if err != nil {
			last = RestartSignal{Reason: err.Error()}
			continue
		}
		if sig.Stable {
			return false
		}
		last = sig
	}

	m.diagnostic(ctx, res, req.ProjectID, "restart_watchdog", map[string]any{
		"reason": last.Reason,
	})
	m.rollback(ctx, req, res, meta)
	m.emit(ctx, res, req.ProjectID, store.EventDeployDone, map[string]any{"healthy": false})
	res.FailurePhase = "restart_watchdog"
	return true
}

// pollHealth polls the health provider. Returns true when the pipeline
// terminated.
func (m *Machine) pollHealth(ctx context.Context, req Request, res *Result, meta ReleaseMetadata) bool {
	for attempt := 0; attempt < m.cfg.HealthRetries; attempt++ {
		if attempt > 0 {
			m.providers.Sleep(ctx, m.cfg.HealthInterval)
		}
		healthy, err := m.providers.Health(ctx, req.DeployTarget)
		if err == nil && healthy {
			return false
		}
	}

	res.HealthStatus = "unhealthy"
	m.diagnostic(ctx, res, req.ProjectID, "health_check", map[string]any{"target": req.DeployTarget})
	m.rollback(ctx, req, res, meta)
	res.FailurePhase = "health_check"
	return true
}

// rollback resolves the target release and invokes the configured
// executor variant, emitting a diagnostic with the outcome.
func (m *Machine) rollback(ctx context.Context, req Request, res *Result, meta ReleaseMetadata) {
	rb := m.providers.Rollback
	if rb == nil {
		return
	}
	releaseID := req.RollbackReleaseID
	if releaseID == "" {
		releaseID = req.PreviousReleaseID
	}
	if releaseID == "" {
		releaseID = meta.PreviousReleaseID
	}

	var err error
	switch {
	case rb.legacy != nil:
		err = rb.legacy(ctx, req.ProjectID, req.DeployTarget)
	case rb.withRelease != nil:
		if releaseID == "" {
			m.logger.Warn("rollback skipped: no release target", "project_id", req.ProjectID)
			return
		}
		err = rb.withRelease(ctx, req.ProjectID, req.DeployTarget, releaseID)
	default:
		return
	}

	res.RollbackPerformed = true
	res.RollbackSucceeded = err == nil
	m.diagnostic(ctx, res, req.ProjectID, "rollback", map[string]any{
		"performed":  true,
		"succeeded":  err == nil,
		"release_id": releaseID,
	})
}

// fail records a diagnostic for the phase and returns the terminal
// result.
func (m *Machine) fail(ctx context.Context, res *Result, projectID, phase string, payload map[string]any) *Result {
	m.diagnostic(ctx, res, projectID, phase, payload)
	res.FailurePhase = phase
	return res
}

func (m *Machine) diagnostic(ctx context.Context, res *Result, projectID, phase string, payload map[string]any) {
	full := map[string]any{"phase": phase}
	for k, v := range payload {
		full[k] = v
	}
	m.emit(ctx, res, projectID, store.EventError, full)
}

func (m *Machine) emit(ctx context.Context, res *Result, projectID string, kind store.EventKind, payload map[string]any) {
	ev := &store.Event{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: m.now(),
	}
	res.Events = append(res.Events, ev)
	if m.store == nil {
		return
	}
	if err := m.store.AppendEvent(ctx, ev); err != nil {
		telemetry.IncEventAppendFailure()
		m.logger.Warn("event append failed", "kind", kind, "error", err)
	}
}

func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
