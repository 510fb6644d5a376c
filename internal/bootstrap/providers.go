package bootstrap

import (
	"context"
	"time"
)

// CIStatus values reported by a Checker.
const (
	CISuccess = "success"
	CIFailure = "failure"
	CIPending = "pending"
)

// Sleeper suspends the pipeline. Injectable so tests advance time
// deterministically.
type Sleeper func(ctx context.Context, d time.Duration)

func realSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// RestartSignal is a watchdog reading: whether the deployed runtime has
// stayed up across its restart window, with an optional probe snapshot.
type RestartSignal struct {
	Stable bool           `json:"stable"`
	Reason string         `json:"reason,omitempty"`
	Probe  map[string]any `json:"probe,omitempty"`
}

// ReleaseMetadata is the (current, previous) release pair used to select
// a rollback target.
type ReleaseMetadata struct {
	ReleaseID         string `json:"release_id"`
	PreviousReleaseID string `json:"previous_release_id"`
}

// PRRequest describes the pull request opened for a bootstrap branch.
type PRRequest struct {
	Title  string
	Body   string
	Base   string
	Branch string
}

// Rollback is a sum over the two executor shapes: a legacy executor that
// only knows the deploy target, and one that also receives the resolved
// release identifier. Exactly one variant is registered at configuration
// time.
type Rollback struct {
	legacy      func(ctx context.Context, projectID, target string) error
	withRelease func(ctx context.Context, projectID, target, releaseID string) error
}

// RollbackLegacy wraps a two-argument rollback executor.
func RollbackLegacy(fn func(ctx context.Context, projectID, target string) error) *Rollback {
	return &Rollback{legacy: fn}
}

// RollbackWithRelease wraps a release-aware rollback executor.
func RollbackWithRelease(fn func(ctx context.Context, projectID, target, releaseID string) error) *Rollback {
	return &Rollback{withRelease: fn}
}

// Providers are the injectable collaborators of the pipeline. A nil
// provider skips its phase.
type Providers struct {
	// CIStatus reports the hosted-CI state of the pushed branch.
	CIStatus func(ctx context.Context) (string, error)
	// Health reports whether the deploy target is serving.
	Health func(ctx context.Context, target string) (bool, error)
	// PRCreate opens a pull request and returns its URL.
	PRCreate func(ctx context.Context, req PRRequest) (string, error)
	// PRMerge merges the pull request at the given URL.
	PRMerge func(ctx context.Context, url string) error
	// Deploy ships the merged change to the target.
	Deploy func(ctx context.Context, target string) error
	// Watchdog asserts the runtime survived its restart window.
	Watchdog func(ctx context.Context) (RestartSignal, error)
	// Rollback reverts a bad deploy.
	Rollback *Rollback
	// ReleaseMeta resolves the release pair when the request has not
	// pinned one.
	ReleaseMeta func(ctx context.Context, projectID string) (ReleaseMetadata, error)
	// Sleep suspends between polls. Defaults to a context-aware sleep.
	Sleep Sleeper
}
