package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func waitForExit(t *testing.T, s *Supervisor) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st := s.Status(); !st.Running {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("child did not exit in time")
}

func TestStartDrainsOutput(t *testing.T) {
	s := NewSupervisor(100, nil)
	st, err := s.Start(t.TempDir(), RunConfig{Command: `printf 'a\nb\nc\n'`})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !st.Running || st.PID == nil {
		t.Fatalf("expected running state with pid, got %+v", st)
	}
	waitForExit(t, s)

	page := s.ReadLogs(nil, 10)
	if len(page.Lines) != 3 || page.Lines[0] != "a" || page.Lines[2] != "c" {
		t.Fatalf("unexpected logs: %v", page.Lines)
	}
}

func TestStartIdempotentWhileRunning(t *testing.T) {
	s := NewSupervisor(100, nil)
	first, err := s.Start(t.TempDir(), RunConfig{Command: "sleep 5"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	second, err := s.Start(t.TempDir(), RunConfig{Command: "sleep 99"})
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if second.PID == nil || *second.PID != *first.PID {
		t.Fatalf("expected same pid, got %+v and %+v", first, second)
	}
	if second.Command != "sleep 5" {
		t.Fatalf("expected original command, got %q", second.Command)
	}
}

func TestStopTerminatesChild(t *testing.T) {
	s := NewSupervisor(100, nil)
	if _, err := s.Start(t.TempDir(), RunConfig{Command: "sleep 30"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := s.Stop()
	if st.Running {
		t.Fatalf("expected idle state after stop, got %+v", st)
	}
	if cur := s.Status(); cur.Running {
		t.Fatalf("expected not running, got %+v", cur)
	}
}

func TestStartClearsPreviousLogs(t *testing.T) {
	s := NewSupervisor(100, nil)
	if _, err := s.Start(t.TempDir(), RunConfig{Command: `printf 'old\n'`}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForExit(t, s)

	if _, err := s.Start(t.TempDir(), RunConfig{Command: `printf 'new\n'`}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitForExit(t, s)

	page := s.ReadLogs(nil, 10)
	if len(page.Lines) != 1 || page.Lines[0] != "new" {
		t.Fatalf("expected only new output, got %v", page.Lines)
	}
}

func TestStartRequiresCommand(t *testing.T) {
	s := NewSupervisor(100, nil)
	if _, err := s.Start(t.TempDir(), RunConfig{Command: "  "}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestProbeProcessStrategy(t *testing.T) {
	s := NewSupervisor(100, nil)

	p := s.Probe(context.Background())
	if p.Healthy || p.Kind != "process" || p.Reason != "process_not_running" {
		t.Fatalf("unexpected idle probe: %+v", p)
	}

	if _, err := s.Start(t.TempDir(), RunConfig{Command: "sleep 5"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	p = s.Probe(context.Background())
	if !p.Healthy || p.Reason != "process_running" {
		t.Fatalf("unexpected running probe: %+v", p)
	}
}

func TestProbeHTTPStrategy(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	s := NewSupervisor(100, nil)

	s.cfg = RunConfig{HealthURL: healthy.URL}
	p := s.Probe(context.Background())
	if !p.Healthy || p.Kind != "http" || p.Reason != "http_ok" {
		t.Fatalf("unexpected probe: %+v", p)
	}
	if p.HTTPStatus == nil || *p.HTTPStatus != 200 {
		t.Fatalf("expected status 200, got %+v", p.HTTPStatus)
	}

	s.cfg = RunConfig{HealthURL: broken.URL}
	p = s.Probe(context.Background())
	if p.Healthy || p.Reason != "http_status:500" {
		t.Fatalf("unexpected probe: %+v", p)
	}

	s.cfg = RunConfig{HealthURL: "http://127.0.0.1:1/health"}
	p = s.Probe(context.Background())
	if p.Healthy || p.Reason != "connect_error" {
		t.Fatalf("unexpected probe: %+v", p)
	}
}

func TestProbeCommandStrategy(t *testing.T) {
	s := NewSupervisor(100, nil)

	s.cfg = RunConfig{HealthCommand: []string{"true"}}
	p := s.Probe(context.Background())
	if !p.Healthy || p.Kind != "command" || p.Reason != "command_ok" {
		t.Fatalf("unexpected probe: %+v", p)
	}

	s.cfg = RunConfig{HealthCommand: []string{"sh", "-c", "exit 2"}}
	p = s.Probe(context.Background())
	if p.Healthy || p.Reason != "command_exit:2" {
		t.Fatalf("unexpected probe: %+v", p)
	}
}
