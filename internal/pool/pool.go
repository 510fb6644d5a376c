// Package pool tracks the availability of registered external tool
// servers, applying exponential backoff between probes and recording a
// ConnectionEvent for every status transition.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ServerStatus is the availability classification of one server.
type ServerStatus string

const (
	StatusHealthy     ServerStatus = "healthy"
	StatusDegraded    ServerStatus = "degraded"
	StatusUnreachable ServerStatus = "unreachable"
)

// Server is the availability record of one registered external server.
type Server struct {
	Name        string       `json:"name"`
	BaseURL     string       `json:"base_url"`
	Status      ServerStatus `json:"status"`
	LastError   string       `json:"last_error,omitempty"`
	RetryCount  int          `json:"retry_count"`
	LastChecked *time.Time   `json:"last_checked,omitempty"`
	NextRetryAt *time.Time   `json:"next_retry_at,omitempty"`
}

// ConnectionEvent records one status transition.
type ConnectionEvent struct {
	Server     string       `json:"server"`
	FromStatus ServerStatus `json:"from_status"`
	ToStatus   ServerStatus `json:"to_status"`
	Reason     string       `json:"reason"`
	Timestamp  time.Time    `json:"timestamp"`
}

// NoServerError reports that no healthy or degraded server could serve a
// request.
type NoServerError struct{}

func (e *NoServerError) Error() string     { return "no external server available" }
func (e *NoServerError) ErrorCode() string { return "no_server_available" }

// Config tunes the availability state machine.
type Config struct {
	// UnreachableAfter is the consecutive-failure count at which a server
	// is classified unreachable. Defaults to 3.
	UnreachableAfter int
	// MaxBackoff caps the retry delay. Defaults to 60s.
	MaxBackoff time.Duration
}

// Pool owns the server map and the connection-event list. All reads
// return snapshots.
type Pool struct {
	cfg    Config
	prober Prober
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	servers  map[string]*Server
	events   []ConnectionEvent
	inflight map[string]bool
}

// New creates a Pool. A nil prober gets the default HTTP health prober.
func New(cfg Config, prober Prober, logger *slog.Logger) *Pool {
	if cfg.UnreachableAfter <= 0 {
		cfg.UnreachableAfter = 3
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}
	if prober == nil {
		prober = NewHTTPProber(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:      cfg,
		prober:   prober,
		logger:   logger.With("component", "pool"),
		now:      func() time.Time { return time.Now().UTC() },
		servers:  make(map[string]*Server),
		inflight: make(map[string]bool),
	}
}

// Register adds a server or, for an existing name, replaces the record
// and resets all availability counters.
func (p *Pool) Register(name, baseURL string) (Server, error) {
	if name == "" || baseURL == "" {
		return Server{}, fmt.Errorf("server name and base_url are required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &Server{Name: name, BaseURL: baseURL, Status: StatusHealthy}
	p.servers[name] = s
	p.logger.Info("server registered", "server", name, "base_url", baseURL)
	return *s, nil
}

// Unregister removes a server, reporting whether it existed.
func (p *Pool) Unregister(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.servers[name]
	delete(p.servers, name)
	return ok
}

// Get returns a snapshot of one server.
func (p *Pool) Get(name string) (Server, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.servers[name]
	if !ok {
		return Server{}, false
	}
	return *s, true
}

// List returns server snapshots in lexicographic name order.
func (p *Pool) List() []Server {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listLocked()
}

func (p *Pool) listLocked() []Server {
	out := make([]Server, 0, len(p.servers))
	for _, s := range p.servers {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListEvents returns a snapshot of all recorded transitions in order.
func (p *Pool) ListEvents() []ConnectionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConnectionEvent, len(p.events))
	copy(out, p.events)
	return out
}

// CheckServer probes one server unless its retry window has not yet
// opened, in which case the current snapshot is returned unchanged.
// At most one probe per server is in flight; concurrent callers get the
// current snapshot so one outage never advances the counter twice.
func (p *Pool) CheckServer(ctx context.Context, name string) (Server, error) {
	p.mu.Lock()
	s, ok := p.servers[name]
	if !ok {
		p.mu.Unlock()
		return Server{}, fmt.Errorf("server %q not registered", name)
	}
	if p.inflight[name] || (s.NextRetryAt != nil && p.now().Before(*s.NextRetryAt)) {
		snap := *s
		p.mu.Unlock()
		return snap, nil
	}
	p.inflight[name] = true
	baseURL := s.BaseURL
	p.mu.Unlock()

	healthy, reason := p.prober.Probe(ctx, baseURL)

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, name)
	s, ok = p.servers[name]
	if !ok {
		return Server{}, fmt.Errorf("server %q not registered", name)
	}
	p.applyLocked(s, healthy, reason)
	return *s, nil
}

// HealthCheckAll probes every server in lexicographic order, skipping
// those still inside their retry window, and returns the resulting
// snapshots.
func (p *Pool) HealthCheckAll(ctx context.Context) []Server {
	p.mu.Lock()
	names := make([]string, 0, len(p.servers))
	for name := range p.servers {
		names = append(names, name)
	}
	p.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		if _, err := p.CheckServer(ctx, name); err != nil {
			continue // unregistered mid-walk
		}
	}
	return p.List()
}

// MarkDegraded feeds a manual failure into the state machine.
func (p *Pool) MarkDegraded(name, reason string) (Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.servers[name]
	if !ok {
		return Server{}, fmt.Errorf("server %q not registered", name)
	}
	p.applyLocked(s, false, reason)
	return *s, nil
}

// MarkHealthy feeds a manual success into the state machine.
func (p *Pool) MarkHealthy(name string) (Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.servers[name]
	if !ok {
		return Server{}, fmt.Errorf("server %q not registered", name)
	}
	p.applyLocked(s, true, "")
	return *s, nil
}

// ChooseServer picks a candidate: preferred names first in supplied
// order, then the rest lexicographically; within that order the first
// healthy server wins, then the first degraded. Unreachable servers are
// never chosen.
func (p *Pool) ChooseServer(preferred []string) (Server, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ordered := make([]*Server, 0, len(p.servers))
	seen := make(map[string]bool, len(p.servers))
	for _, name := range preferred {
		if s, ok := p.servers[name]; ok && !seen[name] {
			ordered = append(ordered, s)
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(p.servers))
	for name := range p.servers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		ordered = append(ordered, p.servers[name])
	}

	for _, s := range ordered {
		if s.Status == StatusHealthy {
			return *s, true
		}
	}
	for _, s := range ordered {
		if s.Status == StatusDegraded {
			return *s, true
		}
	}
	return Server{}, false
}

// applyLocked runs one probe result through the transition table and
// records a ConnectionEvent when the status changed.
func (p *Pool) applyLocked(s *Server, healthy bool, reason string) {
	t := p.now()
	from := s.Status
	s.LastChecked = &t

	if healthy {
		s.Status = StatusHealthy
		s.RetryCount = 0
		s.NextRetryAt = nil
		s.LastError = ""
	} else {
		s.RetryCount++
		if s.RetryCount >= p.cfg.UnreachableAfter {
			s.Status = StatusUnreachable
		} else {
			s.Status = StatusDegraded
		}
		next := t.Add(p.backoff(s.RetryCount))
		s.NextRetryAt = &next
		s.LastError = reason
	}

	if from != s.Status {
		p.events = append(p.events, ConnectionEvent{
			Server:     s.Name,
			FromStatus: from,
			ToStatus:   s.Status,
			Reason:     reason,
			Timestamp:  t,
		})
		p.logger.Info("server status changed",
			"server", s.Name, "from", from, "to", s.Status, "reason", reason)
	}
}

// backoff is min(2^(count-1), MaxBackoff) seconds.
func (p *Pool) backoff(count int) time.Duration {
	if count < 1 {
		count = 1
	}
	if count > 30 {
		return p.cfg.MaxBackoff
	}
	d := time.Duration(1<<uint(count-1)) * time.Second
	if d > p.cfg.MaxBackoff {
		return p.cfg.MaxBackoff
	}
	return d
}
