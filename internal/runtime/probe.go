package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"time"
)

const probeTimeout = 5 * time.Second

// HealthProbe is one liveness observation. Reason is a machine-readable
// token so callers can branch without parsing prose.
type HealthProbe struct {
	Healthy    bool      `json:"healthy"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason"`
	HTTPStatus *int      `json:"http_status,omitempty"`
	Command    []string  `json:"command,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Probe runs the configured health strategy. An HTTP URL wins over a
// command; with neither configured the probe reports on the child process
// itself.
func (s *Supervisor) Probe(ctx context.Context) HealthProbe {
	s.mu.Lock()
	cfg := s.cfg
	running := s.runningLocked()
	s.mu.Unlock()

	switch {
	case cfg.HealthURL != "":
		return s.probeHTTP(ctx, cfg.HealthURL)
	case len(cfg.HealthCommand) > 0:
		return s.probeCommand(ctx, cfg.HealthCommand)
	default:
		p := HealthProbe{Kind: "process", CheckedAt: time.Now().UTC()}
		if running {
			p.Healthy = true
			p.Reason = "process_running"
		} else {
			p.Reason = "process_not_running"
		}
		return p
	}
}

func (s *Supervisor) probeHTTP(ctx context.Context, url string) HealthProbe {
	p := HealthProbe{Kind: "http", CheckedAt: time.Now().UTC()}

	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		p.Reason = "connect_error"
		return p
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			p.Reason = "timeout"
		} else {
			p.Reason = "connect_error"
		}
		return p
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	p.HTTPStatus = &status
	if status < 400 {
		p.Healthy = true
		p.Reason = "http_ok"
	} else {
		p.Reason = fmt.Sprintf("http_status:%d", status)
	}
	return p
}

func (s *Supervisor) probeCommand(ctx context.Context, argv []string) HealthProbe {
	p := HealthProbe{Kind: "command", Command: argv, CheckedAt: time.Now().UTC()}

	runCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	err := cmd.Run()
	if err == nil {
		p.Healthy = true
		p.Reason = "command_ok"
		return p
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		p.Reason = "timeout"
		return p
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		p.Reason = fmt.Sprintf("command_exit:%d", exitErr.ExitCode())
		return p
	}
	p.Reason = "command_exit:-1"
	return p
}
