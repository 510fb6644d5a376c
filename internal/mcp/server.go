// Package mcp exposes the tool catalog and att:// resources over a
// single streamable-http JSON-RPC endpoint (POST /mcp).
package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/atthub/atthub/internal/dispatch"
	"github.com/atthub/atthub/internal/telemetry"
	"github.com/atthub/atthub/internal/toolcall"
)

const protocolVersion = "2025-11-25"

// Handler serves JSON-RPC 2.0 requests against the dispatcher.
type Handler struct {
	svc    *dispatch.Services
	logger *slog.Logger
}

func NewHandler(svc *dispatch.Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger.With("component", "mcp")}
}

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, jsonRPCResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "parse error"},
		})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		h.write(w, jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: dispatch.RPCInvalidRequest, Message: "invalid request envelope"},
		})
		return
	}

	if req.Method == "notifications/initialized" {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	start := time.Now()
	resp := h.dispatch(r, req)
	h.logger.Info("rpc request",
		"method", req.Method,
		"duration_ms", time.Since(start).Milliseconds(),
		"ok", resp.Error == nil,
	)
	h.write(w, resp)
}

func (h *Handler) write(w http.ResponseWriter, resp jsonRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("response encode failed", "error", err)
	}
}

func (h *Handler) dispatch(r *http.Request, req jsonRPCRequest) jsonRPCResponse {
	base := jsonRPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		base.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools":     map[string]any{"listChanged": false},
				"resources": map[string]any{"subscribe": false, "listChanged": false},
			},
			"serverInfo": map[string]any{"name": "atthub", "version": "0.1.0"},
		}
		return base

	case "ping":
		base.Result = map[string]any{}
		return base

	case "tools/list":
		base.Result = map[string]any{"tools": ToolDefinitions()}
		return base

	case "resources/list":
		base.Result = map[string]any{"resources": ResourceDefinitions()}
		return base

	case "tools/call":
		return h.handleToolCall(r, req, base)

	case "resources/read":
		return h.handleResourceRead(r, req, base)

	default:
		base.Error = &rpcError{Code: dispatch.RPCMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return base
	}
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (h *Handler) handleToolCall(r *http.Request, req jsonRPCRequest, base jsonRPCResponse) jsonRPCResponse {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		base.Error = &rpcError{Code: dispatch.RPCInvalidParams, Message: "invalid params: " + err.Error()}
		return base
	}
	if params.Name == "" {
		base.Error = &rpcError{Code: dispatch.RPCInvalidParams, Message: "tool name is required"}
		return base
	}

	start := time.Now()
	defer func() { telemetry.ObserveToolDuration(params.Name, time.Since(start)) }()

	op, err := toolcall.Parse(params.Name, params.Arguments)
	if err != nil {
		telemetry.IncToolCall(params.Name, callStatus(err))
		base.Error = domainError(err)
		return base
	}
	if op == nil {
		base.Error = &rpcError{Code: dispatch.RPCMethodNotFound, Message: fmt.Sprintf("unknown tool: %s", params.Name)}
		return base
	}

	result, err := h.svc.Dispatch(r.Context(), op)
	telemetry.IncToolCall(params.Name, callStatus(err))
	if err != nil {
		base.Error = domainError(err)
		return base
	}
	base.Result = result
	return base
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

func (h *Handler) handleResourceRead(r *http.Request, req jsonRPCRequest, base jsonRPCResponse) jsonRPCResponse {
	var params resourceReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		base.Error = &rpcError{Code: dispatch.RPCInvalidParams, Message: "invalid params: " + err.Error()}
		return base
	}
	if params.URI == "" {
		base.Error = &rpcError{Code: dispatch.RPCInvalidParams, Message: "uri is required"}
		return base
	}

	res, err := toolcall.ParseResourceURI(params.URI)
	if err != nil {
		base.Error = domainError(err)
		return base
	}

	result, err := h.readResource(r, res)
	if err != nil {
		base.Error = domainError(err)
		return base
	}
	base.Result = result
	return base
}

// domainError shapes a component error into the JSON-RPC contract,
// keeping the machine code visible in the message.
func domainError(err error) *rpcError {
	msg := err.Error()
	if code := dispatch.Code(err); code != "" {
		msg = code + ": " + msg
	}
	return &rpcError{Code: dispatch.RPCCode(err), Message: msg}
}

func callStatus(err error) string {
	if err == nil {
		return "ok"
	}
	if code := dispatch.Code(err); code != "" {
		return code
	}
	return "error"
}
