package sandbox

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/GriffinCanCode/jsrun/internal/shared/id"
)

// Level is the severity of a captured console record.
type Level string

const (
	LevelLog   Level = "log"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Levels lists every console level in declaration order.
var Levels = []Level{LevelLog, LevelInfo, LevelWarn, LevelError}

// LogRecord is one console call made by a snippet.
type LogRecord struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Result is a completed execution.
type Result struct {
	ID       id.ExecutionID
	Value    json.RawMessage // JSON text of the completion value, "null" when absent
	Logs     []LogRecord
	Duration time.Duration
}

// Execution statuses reported to observers.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

var (
	ErrContextUsed   = errors.New("evaluation context already used")
	ErrContextClosed = errors.New("evaluation context closed")
	ErrExecutionSlot = errors.New("no execution slot available")
)

// ExecutionError is a compile or runtime failure inside the sandbox.
type ExecutionError struct {
	Message string
	Stack   string
	Timeout bool
}

func (e *ExecutionError) Error() string {
	if e.Stack == "" {
		return e.Message
	}
	return e.Message + " | stack: " + e.Stack
}

// Mirror receives a copy of every console record, typically for verbose
// diagnostic output.
type Mirror interface {
	Mirror(level, message string)
}

// Observer is told about console records and finished executions.
type Observer interface {
	ObserveConsole(level string)
	ObserveExecution(status string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveConsole(string)                  {}
func (nopObserver) ObserveExecution(string, time.Duration) {}
