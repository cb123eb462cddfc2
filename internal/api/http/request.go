package http

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	ErrInvalidJSON  = errors.New("invalid JSON")
	ErrMissingCode  = errors.New("missing code")
	ErrBodyTooLarge = errors.New("request body too large")
)

// Phase is a step in handling one run request.
type Phase int

const (
	PhaseReceived Phase = iota
	PhaseParsing
	PhaseBuildingContext
	PhaseExecuting
	PhaseResponding
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseReceived:        "received",
	PhaseParsing:         "parsing",
	PhaseBuildingContext: "building_context",
	PhaseExecuting:       "executing",
	PhaseResponding:      "responding",
	PhaseDone:            "done",
	PhaseFailed:          "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// decodeRequest extracts the snippet source from a run request body. The body
// must be valid JSON; anything that is not an object with a string "code"
// field is a missing-code error.
func decodeRequest(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", fmt.Errorf("%w: unexpected end of JSON input", ErrInvalidJSON)
	}

	var payload interface{}
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidJSON, oneLine(err.Error()))
	}

	obj, ok := payload.(map[string]interface{})
	if !ok {
		return "", ErrMissingCode
	}
	code, ok := obj["code"].(string)
	if !ok {
		return "", ErrMissingCode
	}
	return code, nil
}

// clientMessage renders a client input error in the wire format.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidJSON):
		return "Invalid JSON: " + strings.TrimPrefix(err.Error(), ErrInvalidJSON.Error()+": ")
	case errors.Is(err, ErrMissingCode):
		return "Missing code"
	case errors.Is(err, ErrBodyTooLarge):
		return "Request body too large"
	default:
		return err.Error()
	}
}

// oneLine collapses multi-line parser diagnostics.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
