// Package runtime supervises at most one child process per instance,
// draining its combined output into a bounded ring buffer and exposing
// cursor-based log reads and pluggable health probing.
package runtime

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// RunConfig describes one child process launch.
type RunConfig struct {
	// Command is the shell command line to run inside the project root.
	Command string `json:"command"`
	// HealthURL, when set, makes probes issue an HTTP GET against it.
	HealthURL string `json:"health_url,omitempty"`
	// HealthCommand, when set (and HealthURL is not), makes probes run
	// this argv and treat exit 0 as healthy.
	HealthCommand []string `json:"health_command,omitempty"`
}

// RuntimeState is the externally visible process state.
type RuntimeState struct {
	Running   bool       `json:"running"`
	PID       *int       `json:"pid"`
	Command   string     `json:"command,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Supervisor owns the single child process slot and its log ring.
// Start and Stop must be externally serialized; reads are safe from any
// goroutine.
type Supervisor struct {
	logger     *slog.Logger
	ring       *LogRing
	grace      time.Duration
	httpClient *http.Client

	mu        sync.Mutex
	cmd       *exec.Cmd
	cfg       RunConfig
	startedAt time.Time
	exited    bool
	drained   chan struct{}
}

// NewSupervisor creates a Supervisor retaining at most maxLogLines of
// child output.
func NewSupervisor(maxLogLines int, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		logger:     logger.With("component", "runtime"),
		ring:       NewLogRing(maxLogLines),
		grace:      3 * time.Second,
		httpClient: &http.Client{},
	}
}

// Start spawns the configured command inside root, clears the log ring,
// and launches the drainer. Calling Start while a child is running is
// idempotent and returns the current state. Start reports running before
// the first output line has been drained; a probe issued in that window
// can see process_running for a child that is about to crash.
func (s *Supervisor) Start(root string, cfg RunConfig) (RuntimeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return s.stateLocked(), nil
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return RuntimeState{}, fmt.Errorf("run command is required")
	}

	cmd := exec.Command("sh", "-c", cfg.Command)
	cmd.Dir = root
	pr, pw, err := os.Pipe()
	if err != nil {
		return RuntimeState{}, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return RuntimeState{}, fmt.Errorf("start child: %w", err)
	}
	// The child holds the write end now.
	pw.Close()

	s.ring.Reset()
	s.cmd = cmd
	s.cfg = cfg
	s.startedAt = time.Now().UTC()
	s.exited = false
	s.drained = make(chan struct{})

	s.logger.Info("child started", "pid", cmd.Process.Pid, "command", cfg.Command)
	go s.drain(cmd, pr, s.drained)

	return s.stateLocked(), nil
}

// drain reads the combined output line by line into the ring, then reaps
// the child.
func (s *Supervisor) drain(cmd *exec.Cmd, pr *os.File, done chan struct{}) {
	defer close(done)
	defer pr.Close()

	sc := bufio.NewScanner(pr)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		s.ring.Append(sc.Text())
	}

	err := cmd.Wait()
	s.mu.Lock()
	s.exited = true
	s.mu.Unlock()
	if err != nil {
		s.logger.Info("child exited", "pid", cmd.Process.Pid, "error", err)
	} else {
		s.logger.Info("child exited", "pid", cmd.Process.Pid)
	}
}

// Stop terminates the child gracefully, escalating to a kill after the
// grace period, and waits for the drainer to finish. Stopping an idle
// supervisor is a no-op.
func (s *Supervisor) Stop() RuntimeState {
	s.mu.Lock()
	cmd := s.cmd
	drained := s.drained
	running := s.runningLocked()
	s.mu.Unlock()

	if cmd == nil {
		return RuntimeState{}
	}
	if running {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			s.logger.Warn("terminate child", "error", err)
		}
		select {
		case <-drained:
		case <-time.After(s.grace):
			s.logger.Warn("grace period elapsed, killing child", "pid", cmd.Process.Pid)
			_ = cmd.Process.Kill()
			<-drained
		}
	} else {
		<-drained
	}

	s.mu.Lock()
	s.cmd = nil
	s.exited = false
	s.mu.Unlock()
	return RuntimeState{}
}

// Status reports the current state, reaping an exited child.
func (s *Supervisor) Status() RuntimeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.exited {
		s.cmd = nil
		s.exited = false
	}
	return s.stateLocked()
}

// ReadLogs pages through the drained output. A nil cursor returns the
// tail.
func (s *Supervisor) ReadLogs(cursor *int, limit int) LogPage {
	return s.ring.Read(cursor, limit)
}

// Ring exposes the underlying log ring for streaming readers.
func (s *Supervisor) Ring() *LogRing {
	return s.ring
}

func (s *Supervisor) runningLocked() bool {
	return s.cmd != nil && !s.exited
}

func (s *Supervisor) stateLocked() RuntimeState {
	if !s.runningLocked() {
		return RuntimeState{}
	}
	pid := s.cmd.Process.Pid
	started := s.startedAt
	return RuntimeState{
		Running:   true,
		PID:       &pid,
		Command:   s.cfg.Command,
		StartedAt: &started,
	}
}
