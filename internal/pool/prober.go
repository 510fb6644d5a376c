package pool

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Prober checks one server's liveness. The reason is only meaningful
// when healthy is false.
type Prober interface {
	Probe(ctx context.Context, baseURL string) (healthy bool, reason string)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, baseURL string) (bool, string)

func (f ProberFunc) Probe(ctx context.Context, baseURL string) (bool, string) {
	return f(ctx, baseURL)
}

// HTTPProber is the default probe: GET {base_url}/health with a 5 s
// timeout, healthy on any 2xx/3xx status.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates the default prober; a nil client gets a fresh
// one.
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProber{client: client}
}

func (hp *HTTPProber) Probe(ctx context.Context, baseURL string) (bool, string) {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false, "connect_error"
	}
	resp, err := hp.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return false, "timeout"
		}
		return false, "connect_error"
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		return true, ""
	}
	return false, fmt.Sprintf("http_status:%d", resp.StatusCode)
}
