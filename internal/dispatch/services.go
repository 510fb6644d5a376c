// Package dispatch owns the process-wide service graph and maps parsed
// tool operations onto component methods. Domain errors pass through
// untranslated; the transport layers convert them at the boundary.
package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/atthub/atthub/internal/deploy"
	"github.com/atthub/atthub/internal/gitops"
	"github.com/atthub/atthub/internal/pool"
	"github.com/atthub/atthub/internal/registry"
	"github.com/atthub/atthub/internal/runtime"
	"github.com/atthub/atthub/internal/store"
	"github.com/atthub/atthub/internal/testrun"
)

// DebugEntry is one line in a project's transient debug log.
type DebugEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// maxDebugEntries bounds the per-project debug log.
const maxDebugEntries = 1000

// TestOutcome is the last recorded test run for a project.
type TestOutcome struct {
	Result  testrun.Result  `json:"result"`
	Summary testrun.Summary `json:"summary"`
}

// Services is the wired-once service graph threaded into every request
// handler. The two in-memory maps live here and die with the process.
type Services struct {
	Store    store.Store
	Registry *registry.Registry
	Git      *gitops.Surface
	Tests    *testrun.Harness
	Runtime  *runtime.Supervisor
	Deploy   *deploy.Facade
	Pool     *pool.Pool
	Logger   *slog.Logger

	mu          sync.Mutex
	testResults map[string]TestOutcome
	debugLogs   map[string][]DebugEntry
}

// NewServices wires the service graph.
func NewServices(
	st store.Store,
	reg *registry.Registry,
	git *gitops.Surface,
	tests *testrun.Harness,
	rt *runtime.Supervisor,
	dep *deploy.Facade,
	pl *pool.Pool,
	logger *slog.Logger,
) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{
		Store:       st,
		Registry:    reg,
		Git:         git,
		Tests:       tests,
		Runtime:     rt,
		Deploy:      dep,
		Pool:        pl,
		Logger:      logger,
		testResults: make(map[string]TestOutcome),
		debugLogs:   make(map[string][]DebugEntry),
	}
}

// RecordTestOutcome stores the last test run for a project.
func (s *Services) RecordTestOutcome(projectID string, out TestOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testResults[projectID] = out
}

// TestOutcomeFor returns the last recorded test run.
func (s *Services) TestOutcomeFor(projectID string) (TestOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.testResults[projectID]
	return out, ok
}

// AppendDebugLog appends one entry, evicting the oldest past the cap.
func (s *Services) AppendDebugLog(projectID string, e DebugEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(s.debugLogs[projectID], e)
	if len(entries) > maxDebugEntries {
		entries = entries[len(entries)-maxDebugEntries:]
	}
	s.debugLogs[projectID] = entries
}

// DebugLogsFor returns up to limit most recent entries.
func (s *Services) DebugLogsFor(projectID string, limit int) []DebugEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.debugLogs[projectID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]DebugEntry, len(entries))
	copy(out, entries)
	return out
}
