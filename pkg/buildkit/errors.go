package buildkit

import (
	"fmt"
)

// MalformedResponseError indicates a line in the build response stream that
// could not be parsed as JSON. Decoding stops at the offending line.
type MalformedResponseError struct {
	Line string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("unable to decode daemon response line as JSON: %q", e.Line)
}

// ProtocolError indicates that the daemon sent a response that violates the
// build response contract, such as a trace envelope without trace data or a
// status for a vertex that was never started.
type ProtocolError struct {
	Details string
}

func (e *ProtocolError) Error() string {
	return e.Details
}

func protocolErrorf(format string, a ...interface{}) *ProtocolError {
	return &ProtocolError{Details: fmt.Sprintf(format, a...)}
}
