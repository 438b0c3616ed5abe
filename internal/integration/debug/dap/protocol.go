package dap

import (
	"errors"
	"fmt"

	godap "github.com/google/go-dap"
)

// Client errors.
var (
	ErrClientClosed       = errors.New("dap client closed")
	ErrUnexpectedResponse = errors.New("unexpected dap response")
)

// ResponseError is returned when the adapter answers a request with
// success=false.
type ResponseError struct {
	// Command is the request command that failed.
	Command string

	// Message is the short error message, e.g. "cancelled".
	Message string

	// Detail is the formatted message from the error body, if any.
	Detail string
}

func (e *ResponseError) Error() string {
	switch {
	case e.Detail != "" && e.Message != "":
		return fmt.Sprintf("%s failed: %s: %s", e.Command, e.Message, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s failed: %s", e.Command, e.Detail)
	case e.Message != "":
		return fmt.Sprintf("%s failed: %s", e.Command, e.Message)
	default:
		return e.Command + " failed"
	}
}

// newResponseError converts a failed response.
func newResponseError(resp *godap.ErrorResponse) *ResponseError {
	e := &ResponseError{
		Command: resp.Command,
		Message: resp.Message,
	}
	if resp.Body.Error != nil {
		e.Detail = resp.Body.Error.Format
	}
	return e
}

// Stop reasons reported in stopped events.
const (
	StopReasonStep                  = "step"
	StopReasonBreakpoint            = "breakpoint"
	StopReasonException             = "exception"
	StopReasonPause                 = "pause"
	StopReasonEntry                 = "entry"
	StopReasonGoto                  = "goto"
	StopReasonFunctionBreakpoint    = "function breakpoint"
	StopReasonDataBreakpoint        = "data breakpoint"
	StopReasonInstructionBreakpoint = "instruction breakpoint"
)

// Output event categories.
const (
	OutputCategoryConsole   = "console"
	OutputCategoryImportant = "important"
	OutputCategoryStdout    = "stdout"
	OutputCategoryStderr    = "stderr"
	OutputCategoryTelemetry = "telemetry"
)

// Evaluate contexts.
const (
	EvaluateContextWatch = "watch"
	EvaluateContextRepl  = "repl"
)

// Breakpoint event reasons.
const (
	BreakpointReasonChanged = "changed"
	BreakpointReasonNew     = "new"
	BreakpointReasonRemoved = "removed"
)
