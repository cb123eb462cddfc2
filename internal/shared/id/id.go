// Package id provides ULID-based identifiers for requests and executions.
//
// IDs are prefixed by kind so they read well in logs and response headers:
//
//	req_01J9Z...   one HTTP request
//	exec_01J9Z...  one snippet execution
//	span_01J9Z...  one tracing span
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies an incoming HTTP request
type RequestID string

// ExecutionID identifies a single snippet execution
type ExecutionID string

// SpanID identifies a tracing span
type SpanID string

const (
	RequestPrefix   = "req"
	ExecutionPrefix = "exec"
	SpanPrefix      = "span"
)

// Generator produces monotonic-per-millisecond ULIDs
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a caller-supplied entropy source.
// Tests use it for deterministic output.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix returns "<prefix>_<ulid>"
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewExecutionID generates an execution ID
func NewExecutionID() ExecutionID {
	return ExecutionID(Default().GenerateWithPrefix(ExecutionPrefix))
}

// NewSpanID generates a span ID
func NewSpanID() SpanID {
	return SpanID(Default().GenerateWithPrefix(SpanPrefix))
}

func (id RequestID) String() string   { return string(id) }
func (id ExecutionID) String() string { return string(id) }
func (id SpanID) String() string      { return string(id) }

// IsValid reports whether s is a bare ULID or a prefixed one
func IsValid(s string) bool {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	_, err := ulid.Parse(s)
	return err == nil
}

// Timestamp extracts the creation time from a bare or prefixed ULID
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
