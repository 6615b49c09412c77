package controlmode

import (
	"fmt"
	"strings"
	"time"

	"github.com/abhinav/tmux-controlmode/internal/stringobj"
)

// Diagnostic carries the context attached to every connection error: the
// argv of the offending command, the last raw frame observed on the wire,
// and a bounded tail of the child's recent stderr. It exists so errors are
// debuggable without external logs.
type Diagnostic struct {
	Argv       []string
	LastFrame  string
	StderrTail []string
}

func (d Diagnostic) String() string {
	var b stringobj.Builder
	b.Put("argv", strings.Join(d.Argv, " "))
	b.Put("lastFrame", d.LastFrame)
	b.Put("stderr", strings.Join(d.StderrTail, " | "))
	return b.String()
}

// ProtocolError reports a malformed or out-of-order frame. It is fatal to
// the whole connection: correlation is positional, so resynchronizing after
// a desync could silently misattribute responses.
type ProtocolError struct {
	Reason string
	Diagnostic
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v %v", e.Reason, e.Diagnostic)
}

// TransportClosedError reports that the control-mode child exited or the
// transport was stopped. Every command still pending at that point fails
// with it.
type TransportClosedError struct {
	// Cause is the underlying failure, if any: io.EOF for a clean child
	// exit, a read error, or the fatal ProtocolError that killed the
	// connection.
	Cause error
	Diagnostic
}

func (e *TransportClosedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport closed: %v %v", e.Cause, e.Diagnostic)
	}
	return fmt.Sprintf("transport closed %v", e.Diagnostic)
}

func (e *TransportClosedError) Unwrap() error { return e.Cause }

// OperationTimeoutError reports that a caller stopped waiting for a command
// or notification. It is local to that caller: the connection and every
// other in-flight command are unaffected.
type OperationTimeoutError struct {
	// Timeout is the wait that expired, if the wait was duration-bound.
	Timeout time.Duration

	// Cause is the context error for context-bound waits.
	Cause error

	Diagnostic
}

func (e *OperationTimeoutError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("operation timed out: %v %v", e.Cause, e.Diagnostic)
	case e.Timeout > 0:
		return fmt.Sprintf("operation timed out after %v %v", e.Timeout, e.Diagnostic)
	default:
		return fmt.Sprintf("operation timed out %v", e.Diagnostic)
	}
}

func (e *OperationTimeoutError) Unwrap() error { return e.Cause }

// CommandError reports a command that tmux answered with %error. It is
// local to that command; the connection remains usable.
type CommandError struct {
	// Output holds the diagnostic lines tmux printed before %error.
	Output []string
	Diagnostic
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed: %v %v", strings.Join(e.Output, "; "), e.Diagnostic)
}
