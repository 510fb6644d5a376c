// Package registry manages the project lifecycle: creation, cloning from
// a remote, archive export, and the pure store pass-throughs. Lifecycle
// changes emit events into the log store; an append failure is logged and
// does not abort the operation.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atthub/atthub/internal/gitops"
	"github.com/atthub/atthub/internal/store"
	"github.com/atthub/atthub/internal/telemetry"
)

// ValidationError reports a caller mistake in a registry request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string     { return e.Msg }
func (e *ValidationError) ErrorCode() string { return "invalid_argument" }

// NotFoundError reports a missing project.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string     { return fmt.Sprintf("project %q not found", e.ID) }
func (e *NotFoundError) ErrorCode() string { return "not_found" }

// Registry owns project records. Filesystem layout: each project lives
// under BaseDir/<name> unless an explicit path is supplied.
type Registry struct {
	store   store.Store
	git     *gitops.Surface
	baseDir string
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Registry rooted at baseDir.
func New(st store.Store, git *gitops.Surface, baseDir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:   st,
		git:     git,
		baseDir: baseDir,
		logger:  logger.With("component", "registry"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest describes a new project.
type CreateRequest struct {
	Name       string `json:"name"`
	Path       string `json:"path,omitempty"`
	ConfigPath string `json:"config_path,omitempty"`
}

// Create records a new project and emits project.created.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*store.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Msg: "project name is required"}
	}
	path := req.Path
	if path == "" {
		path = filepath.Join(r.baseDir, name)
	}
	now := r.now()
	p := &store.Project{
		ID:         uuid.NewString(),
		Name:       name,
		Path:       path,
		ConfigPath: req.ConfigPath,
		Status:     store.StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.store.UpsertProject(ctx, p); err != nil {
		return nil, fmt.Errorf("record project: %w", err)
	}
	r.emit(ctx, p.ID, store.EventProjectCreated, map[string]any{"name": name})
	r.logger.Info("project created", "project_id", p.ID, "name", name)
	return p, nil
}

// CloneRequest describes a project created from a remote repository.
type CloneRequest struct {
	Name      string `json:"name"`
	RemoteURL string `json:"remote_url"`
	Path      string `json:"path,omitempty"`
}

// Clone clones the remote into the project directory and records the
// project with its origin. A missing remote URL is a validation error; a
// failed clone command surfaces as the underlying VCS failure.
func (r *Registry) Clone(ctx context.Context, req CloneRequest) (*store.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Msg: "project name is required"}
	}
	if strings.TrimSpace(req.RemoteURL) == "" {
		return nil, &ValidationError{Msg: "remote_url is required for clone"}
	}
	path := req.Path
	if path == "" {
		path = filepath.Join(r.baseDir, name)
	}

	if _, err := r.git.Clone(ctx, req.RemoteURL, path); err != nil {
		return nil, fmt.Errorf("clone %s: %w", req.RemoteURL, err)
	}

	now := r.now()
	p := &store.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      path,
		RemoteURL: req.RemoteURL,
		Status:    store.StatusCloned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.UpsertProject(ctx, p); err != nil {
		return nil, fmt.Errorf("record project: %w", err)
	}
	r.emit(ctx, p.ID, store.EventProjectCreated, map[string]any{
		"name":       name,
		"cloned":     true,
		"remote_url": req.RemoteURL,
	})
	r.logger.Info("project cloned", "project_id", p.ID, "remote_url", req.RemoteURL)
	return p, nil
}

// Get returns one project or a NotFoundError.
func (r *Registry) Get(ctx context.Context, id string) (*store.Project, error) {
	p, err := r.store.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p == nil {
		return nil, &NotFoundError{ID: id}
	}
	return p, nil
}

// List returns all projects.
func (r *Registry) List(ctx context.Context) ([]*store.Project, error) {
	return r.store.ListProjects(ctx)
}

// Delete removes the project record. Files on disk are left alone.
func (r *Registry) Delete(ctx context.Context, id string) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.DeleteProject(ctx, p.ID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	r.logger.Info("project deleted", "project_id", p.ID)
	return nil
}

// SetStatus updates a project's lifecycle status.
func (r *Registry) SetStatus(ctx context.Context, id string, status store.ProjectStatus) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	p.Status = status
	p.UpdatedAt = r.now()
	return r.store.UpsertProject(ctx, p)
}

func (r *Registry) emit(ctx context.Context, projectID string, kind store.EventKind, payload map[string]any) {
	ev := &store.Event{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: r.now(),
	}
	if err := r.store.AppendEvent(ctx, ev); err != nil {
		telemetry.IncEventAppendFailure()
		r.logger.Warn("event append failed", "kind", kind, "project_id", projectID, "error", err)
	}
}
