// Package store persists the two durable entities of the orchestrator:
// managed projects and the append-only event log. Two implementations are
// provided, PostgreSQL for production and an in-memory store for tests and
// single-process setups.
package store

import (
	"context"
	"fmt"
	"time"
)

// ProjectStatus is the lifecycle state of a managed project.
type ProjectStatus string

const (
	StatusCreated ProjectStatus = "created"
	StatusCloned  ProjectStatus = "cloned"
	StatusRunning ProjectStatus = "running"
	StatusStopped ProjectStatus = "stopped"
	StatusError   ProjectStatus = "error"
)

// Project is a source-controlled project managed by the orchestrator. The
// identifier is unique and immutable; Path is the only directory the code
// sandbox will permit operations in.
type Project struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	RemoteURL  string        `json:"remote_url,omitempty"`
	ConfigPath string        `json:"config_path,omitempty"`
	Status     ProjectStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// EventKind identifies the type of an event record.
type EventKind string

const (
	EventProjectCreated EventKind = "project.created"
	EventCodeChanged    EventKind = "code.changed"
	EventTestRun        EventKind = "test.run"
	EventTestPassed     EventKind = "test.passed"
	EventTestFailed     EventKind = "test.failed"
	EventBuildStarted   EventKind = "build.started"
	EventBuildCompleted EventKind = "build.completed"
	EventDeployStarted  EventKind = "deploy.started"
	EventDeployDone     EventKind = "deploy.completed"
	EventGitCommit      EventKind = "git.commit"
	EventGitPRCreated   EventKind = "git.pr.created"
	EventGitPRMerged    EventKind = "git.pr.merged"
	EventError          EventKind = "error"
)

// ValidKind reports whether k belongs to the closed event-kind set.
func ValidKind(k EventKind) bool {
	switch k {
	case EventProjectCreated, EventCodeChanged, EventTestRun, EventTestPassed,
		EventTestFailed, EventBuildStarted, EventBuildCompleted,
		EventDeployStarted, EventDeployDone, EventGitCommit,
		EventGitPRCreated, EventGitPRMerged, EventError:
		return true
	}
	return false
}

// Event is an immutable record in the append-only log. Payload leaf values
// are strings, numbers, booleans, or null.
type Event struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Kind      EventKind      `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventFilter narrows ListEvents. Zero values mean "no constraint".
type EventFilter struct {
	ProjectID string
	Kind      EventKind
	Since     *time.Time
	Until     *time.Time
}

// DuplicateEventError is returned when an event identifier is appended twice.
type DuplicateEventError struct {
	ID string
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("event %q already recorded", e.ID)
}

func (e *DuplicateEventError) ErrorCode() string { return "duplicate_event" }

// Store is the persistence contract shared by the Postgres and in-memory
// implementations. GetProject returns (nil, nil) when the project does not
// exist. ListEvents returns events in ascending timestamp order. AppendEvent
// is atomic: either the record is durable or the caller observes an error.
type Store interface {
	UpsertProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	DeleteProject(ctx context.Context, id string) error

	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, f EventFilter) ([]*Event, error)

	Ping(ctx context.Context) error
	Close() error
}
