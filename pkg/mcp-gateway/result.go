package mcpgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vikashloomba/mcp-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-gateway-go/pkg/metrics"
	"github.com/vikashloomba/mcp-gateway-go/pkg/registry"
	"github.com/vikashloomba/mcp-gateway-go/pkg/router"
)

// Code is the machine-readable outcome carried by every response envelope.
type Code string

const (
	CodeOK                   Code = "OK"
	CodeDuplicateInstance    Code = "DUPLICATE_INSTANCE"
	CodeNotFound             Code = "NOT_FOUND"
	CodeServiceNotFound      Code = "SERVICE_NOT_FOUND"
	CodeConnectionError      Code = "CONNECTION_ERROR"
	CodeUnsupportedTransport Code = "UNSUPPORTED_TRANSPORT"
	CodeNotConnected         Code = "NOT_CONNECTED"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeTimeout              Code = "TIMEOUT"
	CodeBackendError         Code = "BACKEND_ERROR"
	CodeInternal             Code = "INTERNAL"
)

// ErrInvalidArgument marks malformed requests.
var ErrInvalidArgument = errors.New("mcpgateway: invalid argument")

// Result is the JSON envelope returned by every REST endpoint.
type Result struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	TraceID   string    `json:"traceId"`
	Timestamp time.Time `json:"timestamp"`
}

// Page wraps a slice of history entries with paging metadata.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// classify maps an error onto an envelope code and HTTP status. Unknown
// errors from a backend call surface as BACKEND_ERROR.
func classify(err error) (Code, int) {
	switch {
	case err == nil:
		return CodeOK, http.StatusOK
	case errors.Is(err, registry.ErrDuplicateInstance):
		return CodeDuplicateInstance, http.StatusConflict
	case errors.Is(err, router.ErrServiceNotFound):
		return CodeServiceNotFound, http.StatusNotFound
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, metrics.ErrNotFound):
		return CodeNotFound, http.StatusNotFound
	case errors.Is(err, mcpmgr.ErrUnsupportedTransport):
		return CodeUnsupportedTransport, http.StatusBadRequest
	case errors.Is(err, mcpmgr.ErrNotConnected):
		return CodeNotConnected, http.StatusServiceUnavailable
	case errors.Is(err, mcpmgr.ErrConnection):
		return CodeConnectionError, http.StatusBadGateway
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, registry.ErrInvalidRecord):
		return CodeInvalidArgument, http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout, http.StatusGatewayTimeout
	default:
		return CodeBackendError, http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (g *Gateway) writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Result{
		Code:      CodeOK,
		Message:   "success",
		Data:      data,
		TraceID:   uuid.NewString(),
		Timestamp: g.now(),
	})
}

func (g *Gateway) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := classify(err)
	res := Result{
		Code:      code,
		Message:   err.Error(),
		TraceID:   uuid.NewString(),
		Timestamp: g.now(),
	}
	level := g.opts.Logger.Warn
	if status >= http.StatusInternalServerError {
		level = g.opts.Logger.Error
	}
	level("request failed", "method", r.Method, "path", r.URL.Path, "code", code, "traceId", res.TraceID, "error", err)
	writeJSON(w, status, res)
}

func (g *Gateway) writeCode(w http.ResponseWriter, status int, code Code, msg string) {
	writeJSON(w, status, Result{Code: code, Message: msg, TraceID: uuid.NewString(), Timestamp: g.now()})
}
