package http

import (
	"encoding/json"

	"github.com/GriffinCanCode/jsrun/internal/sandbox"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Response headers
const (
	HeaderExecutionTime = "X-Execution-Time"
	HeaderRequestID     = "X-Request-ID"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// RunResponse is the body of a successful run.
type RunResponse struct {
	OK     bool                `json:"ok"`
	Result json.RawMessage     `json:"result"`
	Logs   []sandbox.LogRecord `json:"logs"`
}

// ErrorResponse is the body of every failure. Logs is nil for client
// errors and routing failures, and always set (possibly empty) on a 500.
type ErrorResponse struct {
	OK    bool                 `json:"ok"`
	Error string               `json:"error"`
	Logs  *[]sandbox.LogRecord `json:"logs,omitempty"`
}

// fallbackBody is written when a response cannot be encoded.
var fallbackBody = []byte(`{"ok":false,"error":"Internal server error"}`)

// newErrorResponse omits logs when logs is nil. A non-nil empty slice is
// encoded as [].
func newErrorResponse(msg string, logs []sandbox.LogRecord) ErrorResponse {
	resp := ErrorResponse{OK: false, Error: msg}
	if logs != nil {
		resp.Logs = &logs
	}
	return resp
}
