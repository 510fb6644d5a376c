package pool

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type scriptedProber struct {
	results []struct {
		healthy bool
		reason  string
	}
	calls []string
}

func (sp *scriptedProber) Probe(_ context.Context, baseURL string) (bool, string) {
	sp.calls = append(sp.calls, baseURL)
	if len(sp.results) == 0 {
		return true, ""
	}
	r := sp.results[0]
	sp.results = sp.results[1:]
	return r.healthy, r.reason
}

func failing(n int, reason string) *scriptedProber {
	sp := &scriptedProber{}
	for i := 0; i < n; i++ {
		sp.results = append(sp.results, struct {
			healthy bool
			reason  string
		}{false, reason})
	}
	return sp
}

func newClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func TestDegradedThenUnreachable(t *testing.T) {
	prober := failing(2, "timeout")
	p := New(Config{UnreachableAfter: 2}, prober, nil)
	clock, nowFn := newClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p.now = nowFn

	if _, err := p.Register("codex", "http://codex.local"); err != nil {
		t.Fatalf("register: %v", err)
	}

	s, err := p.CheckServer(context.Background(), "codex")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if s.Status != StatusDegraded || s.RetryCount != 1 || s.LastError != "timeout" {
		t.Fatalf("after first probe: %+v", s)
	}
	if s.NextRetryAt == nil || !s.NextRetryAt.Equal(clock.Add(time.Second)) {
		t.Fatalf("expected next retry in 1s, got %v", s.NextRetryAt)
	}

	*clock = clock.Add(2 * time.Second)
	s, err = p.CheckServer(context.Background(), "codex")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if s.Status != StatusUnreachable || s.RetryCount != 2 {
		t.Fatalf("after second probe: %+v", s)
	}

	events := p.ListEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ToStatus != StatusDegraded || events[1].ToStatus != StatusUnreachable {
		t.Fatalf("unexpected transitions: %+v", events)
	}
	if events[0].FromStatus != StatusHealthy || events[1].FromStatus != StatusDegraded {
		t.Fatalf("unexpected from statuses: %+v", events)
	}
}

func TestRetryWindowGatesProbes(t *testing.T) {
	prober := failing(5, "connect_error")
	p := New(Config{UnreachableAfter: 3}, prober, nil)
	_, nowFn := newClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p.now = nowFn

	p.Register("a", "http://a")
	p.CheckServer(context.Background(), "a")
	calls := len(prober.calls)

	// Clock has not advanced past next_retry_at.
	s, err := p.CheckServer(context.Background(), "a")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(prober.calls) != calls {
		t.Fatal("probe issued inside retry window")
	}
	if s.RetryCount != 1 {
		t.Fatalf("snapshot mutated: %+v", s)
	}
}

type blockingProber struct {
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (bp *blockingProber) Probe(_ context.Context, _ string) (bool, string) {
	bp.calls++
	close(bp.entered)
	<-bp.release
	return false, "timeout"
}

func TestConcurrentChecksCountOneFailure(t *testing.T) {
	prober := &blockingProber{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := New(Config{UnreachableAfter: 3}, prober, nil)
	p.Register("a", "http://a")

	done := make(chan Server)
	go func() {
		s, _ := p.CheckServer(context.Background(), "a")
		done <- s
	}()
	<-prober.entered

	// Second check while the first probe is still in flight: must return
	// the current snapshot without issuing another probe.
	s, err := p.CheckServer(context.Background(), "a")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if s.RetryCount != 0 || s.Status != StatusHealthy {
		t.Fatalf("snapshot mutated during in-flight probe: %+v", s)
	}
	if prober.calls != 1 {
		t.Fatalf("expected 1 probe call, got %d", prober.calls)
	}

	close(prober.release)
	s = <-done
	if s.RetryCount != 1 || s.Status != StatusDegraded {
		t.Fatalf("after probe: %+v", s)
	}
}

func TestHealthyProbeResetsCounters(t *testing.T) {
	prober := failing(1, "http_status:500")
	p := New(Config{}, prober, nil)
	clock, nowFn := newClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p.now = nowFn

	p.Register("a", "http://a")
	p.CheckServer(context.Background(), "a")
	*clock = clock.Add(time.Minute)

	s, err := p.CheckServer(context.Background(), "a")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if s.Status != StatusHealthy || s.RetryCount != 0 || s.NextRetryAt != nil || s.LastError != "" {
		t.Fatalf("counters not reset: %+v", s)
	}
	events := p.ListEvents()
	if len(events) != 2 || events[1].ToStatus != StatusHealthy {
		t.Fatalf("expected recovery event, got %+v", events)
	}
}

func TestReRegisterResetsRecord(t *testing.T) {
	p := New(Config{}, failing(1, "timeout"), nil)
	p.Register("a", "http://a")
	p.CheckServer(context.Background(), "a")

	s, err := p.Register("a", "http://a-new")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.Status != StatusHealthy || s.RetryCount != 0 || s.BaseURL != "http://a-new" {
		t.Fatalf("record not replaced: %+v", s)
	}
}

func TestBackoffCapped(t *testing.T) {
	p := New(Config{MaxBackoff: 8 * time.Second}, nil, nil)
	tests := []struct {
		count int
		want  time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{10, 8 * time.Second},
		{40, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := p.backoff(tt.count); got != tt.want {
			t.Fatalf("backoff(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestChooseServerOrdering(t *testing.T) {
	p := New(Config{}, nil, nil)
	p.Register("alpha", "http://alpha")
	p.Register("beta", "http://beta")
	p.Register("gamma", "http://gamma")

	// All healthy: lexicographic wins without preference.
	if s, ok := p.ChooseServer(nil); !ok || s.Name != "alpha" {
		t.Fatalf("expected alpha, got %+v", s)
	}
	// Preferred name wins when present.
	if s, ok := p.ChooseServer([]string{"gamma"}); !ok || s.Name != "gamma" {
		t.Fatalf("expected gamma, got %+v", s)
	}
	// Unknown preferred names are ignored.
	if s, ok := p.ChooseServer([]string{"nope", "beta"}); !ok || s.Name != "beta" {
		t.Fatalf("expected beta, got %+v", s)
	}

	p.MarkDegraded("alpha", "manual")
	if s, ok := p.ChooseServer(nil); !ok || s.Name != "beta" {
		t.Fatalf("expected healthy beta over degraded alpha, got %+v", s)
	}

	p.MarkDegraded("beta", "manual")
	p.MarkDegraded("gamma", "manual")
	if s, ok := p.ChooseServer(nil); !ok || s.Name != "alpha" {
		t.Fatalf("expected first degraded, got %+v", s)
	}
}

func TestChooseServerNeverUnreachable(t *testing.T) {
	p := New(Config{UnreachableAfter: 1}, nil, nil)
	p.Register("a", "http://a")
	p.MarkDegraded("a", "down")
	if s, ok := p.Get("a"); !ok || s.Status != StatusUnreachable {
		t.Fatalf("expected unreachable, got %+v", s)
	}
	if _, ok := p.ChooseServer(nil); ok {
		t.Fatal("unreachable server must not be chosen")
	}
}

func TestHealthCheckAllLexicographic(t *testing.T) {
	prober := &scriptedProber{}
	p := New(Config{}, prober, nil)
	p.Register("zeta", "http://zeta")
	p.Register("alpha", "http://alpha")
	p.Register("mid", "http://mid")

	p.HealthCheckAll(context.Background())
	want := []string{"http://alpha", "http://mid", "http://zeta"}
	if len(prober.calls) != 3 {
		t.Fatalf("expected 3 probes, got %d", len(prober.calls))
	}
	for i, url := range want {
		if prober.calls[i] != url {
			t.Fatalf("probe order %d = %q, want %q", i, prober.calls[i], url)
		}
	}
}

func TestMarkHealthyShortcut(t *testing.T) {
	p := New(Config{}, nil, nil)
	p.Register("a", "http://a")
	p.MarkDegraded("a", "manual")
	s, err := p.MarkHealthy("a")
	if err != nil {
		t.Fatalf("mark healthy: %v", err)
	}
	if s.Status != StatusHealthy || s.RetryCount != 0 || s.NextRetryAt != nil {
		t.Fatalf("unexpected state: %+v", s)
	}
}

func TestInvokeRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mcp" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Method != "tools/list" || req.JSONRPC != "2.0" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"tools": []any{}},
		})
	}))
	defer srv.Close()

	p := New(Config{}, nil, nil)
	p.Register("remote", srv.URL)

	res, err := p.Invoke(context.Background(), nil, "tools/list", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Server != "remote" || !strings.Contains(string(res.Result), "tools") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestInvokeNoServerAvailable(t *testing.T) {
	p := New(Config{}, nil, nil)
	_, err := p.Invoke(context.Background(), nil, "tools/list", nil)
	var nse *NoServerError
	if !errors.As(err, &nse) {
		t.Fatalf("expected NoServerError, got %v", err)
	}
	if nse.ErrorCode() != "no_server_available" {
		t.Fatalf("unexpected code %q", nse.ErrorCode())
	}
}

func TestInvokeTransportFailureDegrades(t *testing.T) {
	p := New(Config{}, nil, nil)
	p.Register("dead", "http://127.0.0.1:1")

	if _, err := p.Invoke(context.Background(), nil, "ping", nil); err == nil {
		t.Fatal("expected transport error")
	}
	s, _ := p.Get("dead")
	if s.Status == StatusHealthy {
		t.Fatalf("expected availability hit, got %+v", s)
	}
}
