// Package deploy composes a trivial build check with the runtime
// supervisor behind a single status tuple.
package deploy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/atthub/atthub/internal/runtime"
)

// manifests are the files whose presence marks a project root as
// buildable.
var manifests = []string{"go.mod", "package.json", "pyproject.toml", "Makefile", "Dockerfile"}

// Status is the deploy-facing view of a project.
type Status struct {
	Built   bool   `json:"built"`
	Running bool   `json:"running"`
	Message string `json:"message"`
}

// Facade fronts build validation and runtime control.
type Facade struct {
	sup    *runtime.Supervisor
	logger *slog.Logger
}

// New creates a Facade over the given supervisor.
func New(sup *runtime.Supervisor, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{sup: sup, logger: logger.With("component", "deploy")}
}

// Build validates that the project root carries a recognized build
// manifest. It never reports running; a build is not a launch.
func (f *Facade) Build(root string) Status {
	for _, name := range manifests {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			f.logger.Info("build check passed", "root", root, "manifest", name)
			return Status{Built: true, Message: fmt.Sprintf("manifest %s found", name)}
		}
	}
	return Status{Built: false, Message: "no build manifest found"}
}

// Run launches the project through the supervisor and reports the
// combined state.
func (f *Facade) Run(root string, cfg runtime.RunConfig) (Status, error) {
	st, err := f.sup.Start(root, cfg)
	if err != nil {
		return Status{}, fmt.Errorf("launch runtime: %w", err)
	}
	return Status{Built: true, Running: st.Running, Message: "runtime started"}, nil
}

// Current mirrors the supervisor state.
func (f *Facade) Current() Status {
	st := f.sup.Status()
	msg := "runtime stopped"
	if st.Running {
		msg = "runtime running"
	}
	return Status{Built: true, Running: st.Running, Message: msg}
}
