package controlmode

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/abhinav/tmux-controlmode/internal/stringobj"
)

// Status is the completion status of an issued command.
type Status int

// Command statuses.
const (
	// StatusPending means no %end or %error has arrived yet.
	StatusPending Status = iota

	// StatusOK means the response closed with %end.
	StatusOK

	// StatusError means the response closed with %error.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}

// Result is what a completed command yields.
type Result struct {
	// Stdout holds the literal lines of a successful response.
	Stdout []string

	// Stderr holds the diagnostic lines of a failed response.
	Stderr []string

	Status Status
}

func (r Result) String() string {
	var b stringobj.Builder
	b.Put("status", r.Status)
	b.Put("stdout", strings.Join(r.Stdout, "\n"))
	b.Put("stderr", strings.Join(r.Stderr, "\n"))
	return b.String()
}

// Command is the record of one issued command. The transport owns it until
// its response completes; after that the caller consuming Wait owns the
// Result. A caller that times out abandons the command: its late answer is
// discarded, never delivered.
type Command struct {
	argv []string
	clk  clock.Clock

	// done closes exactly once, after result and err are set.
	done chan struct{}

	result Result
	err    error

	abandoned atomic.Bool
}

func newCommand(argv []string, clk clock.Clock) *Command {
	return &Command{
		argv: argv,
		clk:  clk,
		done: make(chan struct{}),
	}
}

// Argv returns the command's arguments as issued.
func (c *Command) Argv() []string { return c.argv }

// Abandoned reports whether the waiting caller gave up on this command.
func (c *Command) Abandoned() bool { return c.abandoned.Load() }

// complete resolves the command with the given result and error. It must be
// called at most once, by the state machine that owns the command.
func (c *Command) complete(res Result, err error) {
	c.result = res
	c.err = err
	close(c.done)
}

// Wait blocks until the command completes or the timeout expires. A
// non-positive timeout waits forever. Timing out abandons the command for
// this caller only; the connection and the pending FIFO are unaffected.
func (c *Command) Wait(timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		<-c.done
		return c.take()
	}

	t := c.clk.Timer(timeout)
	defer t.Stop()

	select {
	case <-c.done:
		return c.take()
	case <-t.C:
		c.abandoned.Store(true)
		return nil, &OperationTimeoutError{
			Timeout:    timeout,
			Diagnostic: Diagnostic{Argv: c.argv},
		}
	}
}

// WaitContext blocks until the command completes or ctx is done.
func (c *Command) WaitContext(ctx context.Context) (*Result, error) {
	select {
	case <-c.done:
		return c.take()
	case <-ctx.Done():
		c.abandoned.Store(true)
		return nil, &OperationTimeoutError{
			Cause:      ctx.Err(),
			Diagnostic: Diagnostic{Argv: c.argv},
		}
	}
}

// take returns the completed result. The result is delivered even when err
// is a CommandError so callers can inspect the diagnostic lines.
func (c *Command) take() (*Result, error) {
	res := c.result
	return &res, c.err
}
