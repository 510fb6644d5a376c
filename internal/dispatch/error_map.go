package dispatch

import (
	"errors"
	"net/http"

	"github.com/atthub/atthub/internal/toolcall"
)

// Coded is implemented by domain errors carrying a stable machine code.
type Coded interface {
	error
	ErrorCode() string
}

// Code extracts the machine code from an error chain, or "" when the
// error carries none.
func Code(err error) string {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}

// HTTPStatus maps a domain error onto the REST status contract.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "invalid_argument", "path_escape":
		return http.StatusUnprocessableEntity
	case "not_found":
		return http.StatusNotFound
	case "vcs_failure":
		return http.StatusBadGateway
	case "no_server_available":
		return http.StatusServiceUnavailable
	case "duplicate_event":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// JSON-RPC error codes shared by the /mcp transport.
const (
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCDomainFailure  = -32000
)

// RPCCode maps a domain error onto the JSON-RPC error contract.
func RPCCode(err error) int {
	var unknown *toolcall.UnknownToolError
	if errors.As(err, &unknown) {
		return RPCMethodNotFound
	}
	if Code(err) == "invalid_argument" {
		return RPCInvalidParams
	}
	return RPCDomainFailure
}
