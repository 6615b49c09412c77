package controlmode

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/abhinav/tmux-controlmode/internal/log"
)

// parserState is the connection's protocol state.
type parserState int

const (
	// stateIdle means no response is open.
	stateIdle parserState = iota

	// stateInResponse means a %begin arrived and exactly one command is
	// current. Literal lines accumulate on it until %end or %error.
	stateInResponse

	// stateDead is terminal: the child exited or the protocol desynced.
	// No new command may be registered.
	stateDead
)

func (s parserState) String() string {
	switch s {
	case stateInResponse:
		return "in-response"
	case stateDead:
		return "dead"
	default:
		return "idle"
	}
}

// parser is the protocol state machine: it owns the connection state, the
// pending-command FIFO, and feeds the notification queue. feedLine is its
// single mutator.
//
// parser is not synchronized. The owning transport serializes register,
// feedLine and markDead: Client under its mutex, LoopClient on its loop
// goroutine. Other goroutines observe completion only through each
// Command's done channel.
type parser struct {
	state   parserState
	pending []*Command // FIFO, head first
	current *Command
	output  []string // literals accumulated for current

	queue *notifyQueue
	clk   clock.Clock
	log   *log.Logger

	// stderrTail reports the bounded tail of the child's recent stderr
	// for error diagnostics. May be nil.
	stderrTail func() []string

	lastFrame    string
	lastActivity time.Time
	deadErr      error
}

func newParser(queue *notifyQueue, clk clock.Clock, logger *log.Logger, stderrTail func() []string) *parser {
	return &parser{
		queue:      queue,
		clk:        clk,
		log:        logger,
		stderrTail: stderrTail,
	}
}

// register appends cmd to the pending FIFO. The transport must call it
// atomically with writing the request line, relative to other writers.
func (p *parser) register(cmd *Command) error {
	if p.state == stateDead {
		return p.closedErr(cmd.argv)
	}
	p.pending = append(p.pending, cmd)
	return nil
}

// inFlight counts commands registered but not yet completed.
func (p *parser) inFlight() int {
	n := len(p.pending)
	if p.current != nil {
		n++
	}
	return n
}

// feedLine classifies one input line and advances the state machine.
// Notifications are enqueued from any state and never touch the open
// response. Any detected desynchronization is fatal to the whole
// connection: correlation is positional, so recovering a single command is
// not possible and is not attempted.
func (p *parser) feedLine(line string) error {
	if p.state == stateDead {
		// Drain quietly; the connection already failed.
		return nil
	}

	f := ClassifyLine(line)
	p.lastFrame = line
	p.lastActivity = p.clk.Now()

	if f.Kind == FrameNotification {
		p.queue.Put(routeNotification(f, p.clk.Now()))
		return nil
	}

	switch p.state {
	case stateIdle:
		switch f.Kind {
		case FrameBegin:
			if len(p.pending) == 0 {
				return p.fatalf("%%begin with no pending command")
			}
			p.current, p.pending = p.pending[0], p.pending[1:]
			p.output = nil
			p.state = stateInResponse

		case FrameEnd, FrameError:
			return p.fatalf("unexpected %%%v with no open response", f.Name)

		case FrameLiteral:
			return p.fatalf("output line %q with no open response", f.Text)
		}

	case stateInResponse:
		switch f.Kind {
		case FrameLiteral:
			p.output = append(p.output, f.Text)

		case FrameBegin:
			return p.fatalf("%%begin while a response is open")

		case FrameEnd:
			p.finish(Result{Stdout: p.output, Status: StatusOK}, nil)

		case FrameError:
			err := &CommandError{
				Output:     p.output,
				Diagnostic: p.diag(p.current.argv),
			}
			p.finish(Result{Stderr: p.output, Status: StatusError}, err)
		}
	}

	return nil
}

// finish completes the current response and returns to idle.
func (p *parser) finish(res Result, err error) {
	cmd := p.current
	p.current = nil
	p.output = nil
	p.state = stateIdle

	if cmd.Abandoned() {
		p.log.Debugf("discarding late answer for abandoned command: %v", cmd.argv)
	}
	// Completing an abandoned command is harmless: its caller is gone and
	// positional correlation keeps the answer from reaching anyone else.
	cmd.complete(res, err)
}

// markDead forces the terminal state and fails the current command and
// every pending one. The exception: EOF while the command in flight is
// kill-server resolves that command OK, because the server exiting is its
// success signal, not a failure.
func (p *parser) markDead(reason error) {
	if p.state == stateDead {
		return
	}

	cmds := p.pending
	if p.current != nil {
		cmds = append([]*Command{p.current}, cmds...)
	}
	output := p.output

	p.state = stateDead
	p.deadErr = reason
	p.current = nil
	p.pending = nil
	p.output = nil

	for i, cmd := range cmds {
		if i == 0 && errors.Is(reason, io.EOF) && isKillServer(cmd.argv) {
			cmd.complete(Result{Stdout: output, Status: StatusOK}, nil)
			continue
		}
		cmd.complete(Result{}, p.closedErr(cmd.argv))
	}
}

func (p *parser) fatalf(format string, args ...interface{}) error {
	err := &ProtocolError{
		Reason:     fmt.Sprintf(format, args...),
		Diagnostic: p.diag(nil),
	}
	p.log.Errorf("connection dead: %v", err)
	p.markDead(err)
	return err
}

func (p *parser) closedErr(argv []string) error {
	return &TransportClosedError{
		Cause:      p.deadErr,
		Diagnostic: p.diag(argv),
	}
}

func (p *parser) diag(argv []string) Diagnostic {
	d := Diagnostic{Argv: argv, LastFrame: p.lastFrame}
	if p.stderrTail != nil {
		d.StderrTail = p.stderrTail()
	}
	return d
}

// isKillServer reports whether argv issues a terminate-the-server command.
func isKillServer(argv []string) bool {
	return len(argv) > 0 && argv[0] == "kill-server"
}
