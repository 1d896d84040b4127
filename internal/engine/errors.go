package engine

import (
	"errors"
	"fmt"
)

// Engine status codes.
const (
	CodeOK                    = 0x0000
	CodeNoModel               = 0x1000
	CodeInvalidShape          = 0x2001
	CodeInvalidScorer         = 0x2002
	CodeModelIncompatible     = 0x2003
	CodeScorerNotEnabled      = 0x2004
	CodeScorerUnreadable      = 0x2005
	CodeScorerVersionMismatch = 0x2009
	CodeFailInitSession       = 0x3001
	CodeFailRunSession        = 0x3003
	CodeFailCreateStream      = 0x3004
	CodeFailCreateModel       = 0x3007
	CodeInvalidBeamWidth      = 0x4000
	CodeUnsupported           = 0x4001
	CodeStreamClosed          = 0x4002
)

var messages = map[int]string{
	CodeOK:                    "no error",
	CodeNoModel:               "missing model information",
	CodeInvalidShape:          "invalid model shape",
	CodeInvalidScorer:         "invalid scorer file",
	CodeModelIncompatible:     "incompatible model",
	CodeScorerNotEnabled:      "external scorer is not enabled",
	CodeScorerUnreadable:      "could not read scorer file",
	CodeScorerVersionMismatch: "scorer version mismatch",
	CodeFailInitSession:       "failed to initialize decoder session",
	CodeFailRunSession:        "failed to run decoder session",
	CodeFailCreateStream:      "failed to create stream",
	CodeFailCreateModel:       "failed to create model",
	CodeInvalidBeamWidth:      "invalid beam width",
	CodeUnsupported:           "operation not supported by backend",
	CodeStreamClosed:          "stream already finished",
}

// ErrorMessage translates an engine status code.
func ErrorMessage(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown error 0x%04X", code)
}

// Error is a failed engine call.
type Error struct {
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("engine: %s: %s (0x%04X)", e.Op, ErrorMessage(e.Code), e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the status code from err, or CodeOK when err is nil.
func CodeOf(err error) int {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return -1
}

// ErrWhisperUnavailable is returned when the whisper backend is not compiled in.
var ErrWhisperUnavailable = errors.New("engine: whisper backend unavailable (build with -tags whispercpp)")
