package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcErrorBody   `json:"error"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// InvokeResult carries the raw result of a remote call plus the server
// that served it.
type InvokeResult struct {
	Server string          `json:"server"`
	Result json.RawMessage `json:"result"`
}

// Invoke sends a JSON-RPC 2.0 request to the best available server,
// chosen via ChooseServer. A transport failure counts against the
// server's availability; a remote error response does not.
func (p *Pool) Invoke(ctx context.Context, preferred []string, method string, params any) (InvokeResult, error) {
	srv, ok := p.ChooseServer(preferred)
	if !ok {
		return InvokeResult{}, &NoServerError{}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return InvokeResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.BaseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return InvokeResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		p.recordFailure(srv.Name, "connect_error")
		return InvokeResult{}, fmt.Errorf("invoke %s on %s: %w", method, srv.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		p.recordFailure(srv.Name, "connect_error")
		return InvokeResult{}, fmt.Errorf("read response from %s: %w", srv.Name, err)
	}
	if resp.StatusCode >= 400 {
		p.recordFailure(srv.Name, fmt.Sprintf("http_status:%d", resp.StatusCode))
		return InvokeResult{}, fmt.Errorf("invoke %s on %s: status %d", method, srv.Name, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return InvokeResult{}, fmt.Errorf("decode response from %s: %w", srv.Name, err)
	}
	if rpcResp.Error != nil {
		return InvokeResult{}, fmt.Errorf("remote error from %s: %d %s", srv.Name, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return InvokeResult{Server: srv.Name, Result: rpcResp.Result}, nil
}

func (p *Pool) recordFailure(name, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.servers[name]; ok {
		p.applyLocked(s, false, reason)
	}
}
