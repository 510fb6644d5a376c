// Package testrun launches test processes for a project with per-suite
// target mapping, optional markers, and a hard timeout.
package testrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// TimeoutReturnCode mirrors the conventional exit code of timeout(1).
const TimeoutReturnCode = 124

// suiteTargets maps the canonical suite names onto their target
// directories. Any other suite string is passed through verbatim, which
// supports file- and node-level targeting.
var suiteTargets = map[string]string{
	"unit":        "tests/unit",
	"integration": "tests/integration",
	"e2e":         "tests/e2e",
	"property":    "tests/property",
	"all":         "tests",
}

// Config controls how test commands are built and executed.
type Config struct {
	// Runner is the base test command, split on whitespace. Defaults to
	// "pytest".
	Runner string
	// DefaultTimeout bounds a run when the request does not supply one.
	DefaultTimeout time.Duration
}

// Result is the raw outcome of a single test run.
type Result struct {
	Command    string `json:"command"`
	Returncode int    `json:"returncode"`
	Output     string `json:"captured_output"`
	TimedOut   bool   `json:"timed_out"`
}

// Harness executes test runs.
type Harness struct {
	cfg Config
}

// New creates a Harness, applying defaults for zero-value config fields.
func New(cfg Config) *Harness {
	if strings.TrimSpace(cfg.Runner) == "" {
		cfg.Runner = "pytest"
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 10 * time.Minute
	}
	return &Harness{cfg: cfg}
}

// Command renders the command line for a suite without executing it.
func (h *Harness) Command(suite, markers string) string {
	target := suiteTargets[suite]
	if target == "" {
		target = suite
	}
	cmdline := h.cfg.Runner + " " + target
	if strings.TrimSpace(markers) != "" {
		cmdline += " -m " + markers
	}
	return cmdline
}

// Run executes the suite inside the project root. A timeout yields
// returncode 124 with timed_out set; other failures surface as non-zero
// return codes with the captured output attached.
func (h *Harness) Run(ctx context.Context, root, suite, markers string, timeout time.Duration) (Result, error) {
	if strings.TrimSpace(suite) == "" {
		return Result{}, fmt.Errorf("suite is required")
	}
	if timeout <= 0 {
		timeout = h.cfg.DefaultTimeout
	}
	cmdline := h.Command(suite, markers)

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", cmdline)
	cmd.Dir = root
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()

	res := Result{Command: cmdline, Output: buf.String()}
	if runErr == nil {
		return res, nil
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		res.Returncode = TimeoutReturnCode
		res.TimedOut = true
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.Returncode = exitErr.ExitCode()
		return res, nil
	}

	return res, fmt.Errorf("launch test command: %w", runErr)
}
