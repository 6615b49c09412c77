package controlmode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/abhinav/tmux-controlmode/internal/log"
	"github.com/abhinav/tmux-controlmode/internal/paniclog"
	"github.com/abhinav/tmux-controlmode/internal/tail"
)

// LoopClient is the event-loop transport binding: a single goroutine owns
// the parser and the child's stdin, so protocol state needs no locks.
// Requests and input lines reach the loop over channels; a write+register
// pair is atomic because the loop handles one message at a time. A reader
// goroutine still pumps the pipe, but it never touches the state machine.
type LoopClient struct {
	cfg   Config
	clk   clock.Clock
	log   *log.Logger
	queue *notifyQueue

	proc   Process
	stderr *tail.Buffer

	reqc  chan loopRequest
	statc chan chan Stats
	linec chan string
	stopc chan struct{}
	donec chan struct{}

	// Loop-owned; other goroutines must not touch these.
	parser  *parser
	stdin   io.Writer
	readErr error

	stderrDone chan struct{}
	readerDone chan struct{}

	stopOnce sync.Once
	stopErr  error

	final Stats // snapshot taken as the loop exits
}

type loopRequest struct {
	cmd  *Command
	errc chan error
}

// NewLoopClient builds an unstarted event-loop client. Start it before
// issuing commands.
func NewLoopClient(cfg Config) *LoopClient {
	cfg = cfg.fill()
	return &LoopClient{
		cfg:   cfg,
		clk:   cfg.Clock,
		log:   cfg.Log,
		queue: cfg.queue,
		reqc:  make(chan loopRequest),
		statc: make(chan chan Stats),
		linec: make(chan string),
		stopc: make(chan struct{}),
		donec: make(chan struct{}),
	}
}

// Start spawns the control-mode child, the line pump, and the event loop.
func (l *LoopClient) Start() error {
	argv := l.cfg.Target.Argv()
	proc, err := l.cfg.Spawner.Spawn(argv, l.cfg.Env)
	if err != nil {
		return fmt.Errorf("spawn %q: %w", argv, err)
	}

	l.proc = proc
	l.stdin = proc.Stdin()
	l.stderr = &tail.Buffer{Cap: l.cfg.StderrTail}
	l.parser = newParser(l.queue, l.clk, l.log, l.stderr.Lines)
	l.stderrDone = make(chan struct{})
	l.readerDone = make(chan struct{})

	l.log.Debugf("connected: %v", l.cfg.Target)

	go l.drainStderr(proc.Stderr())
	go l.readPump(proc.Stdout())
	go l.loop()
	return nil
}

// readPump moves lines from the child's stdout into the loop. It owns no
// protocol state: closing linec is how EOF reaches the state machine.
func (l *LoopClient) readPump(r io.Reader) {
	defer close(l.readerDone)
	defer close(l.linec)

	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), _maxLineSize)
	for scan.Scan() {
		select {
		case l.linec <- scan.Text():
		case <-l.stopc:
			return
		}
	}
	l.readErr = scan.Err()
}

func (l *LoopClient) drainStderr(r io.Reader) {
	defer close(l.stderrDone)

	logw := &log.Writer{Log: l.log.WithName("stderr"), Level: log.Error}
	defer logw.Close()

	_, _ = io.Copy(io.MultiWriter(l.stderr, logw), r)
}

// loop is the single stream of control for this connection's protocol
// state. It exits only on Stop; after the connection dies it keeps serving
// requests so registrations fail fast with the dead connection's error.
func (l *LoopClient) loop() {
	defer close(l.donec)

	panicw := &log.Writer{Log: l.log, Level: log.Error}
	defer panicw.Close()

	var perr error
	defer func() {
		paniclog.Recover(&perr, panicw)
		if perr != nil {
			l.parser.markDead(perr)
		}
		l.final = l.snapshot()
	}()

	linec := l.linec
	for {
		select {
		case req := <-l.reqc:
			req.errc <- l.send(req.cmd)

		case sc := <-l.statc:
			sc <- l.snapshot()

		case line, ok := <-linec:
			if !ok {
				err := l.readErr
				if err == nil {
					err = io.EOF
				}
				l.parser.markDead(err)
				linec = nil // stop selecting on the closed channel
				continue
			}
			if err := l.parser.feedLine(line); err != nil {
				l.log.Debugf("draining dead connection: %v", err)
			}

		case <-l.stopc:
			l.parser.markDead(errStopped)
			return
		}
	}
}

var errStopped = fmt.Errorf("transport stopped")

// send runs on the loop goroutine only.
func (l *LoopClient) send(cmd *Command) error {
	line, err := commandLine(cmd.argv)
	if err != nil {
		return err
	}

	if err := l.parser.register(cmd); err != nil {
		return err
	}

	l.log.Debugf("run: %v", cmd.argv)
	if _, err := io.WriteString(l.stdin, line+"\n"); err != nil {
		l.parser.markDead(err)
		return l.parser.closedErr(cmd.argv)
	}
	return nil
}

func (l *LoopClient) snapshot() Stats {
	return Stats{
		InFlight:             l.parser.inFlight(),
		QueuedNotifications:  l.queue.Len(),
		DroppedNotifications: l.queue.Dropped(),
		LastError:            l.parser.deadErr,
		LastActivity:         l.parser.lastActivity,
	}
}

// Run issues one command and blocks until its response arrives or the
// timeout expires.
func (l *LoopClient) Run(argv []string, timeout time.Duration) (*Result, error) {
	cmd, err := l.submit(context.Background(), argv)
	if err != nil {
		return nil, err
	}
	return cmd.Wait(timeout)
}

// RunContext issues one command and awaits its result or ctx.
func (l *LoopClient) RunContext(ctx context.Context, argv []string) (*Result, error) {
	cmd, err := l.submit(ctx, argv)
	if err != nil {
		return nil, err
	}
	return cmd.WaitContext(ctx)
}

func (l *LoopClient) submit(ctx context.Context, argv []string) (*Command, error) {
	if l.parser == nil {
		return nil, &TransportClosedError{
			Cause:      errNotStarted,
			Diagnostic: Diagnostic{Argv: argv},
		}
	}

	cmd := newCommand(argv, l.clk)
	req := loopRequest{cmd: cmd, errc: make(chan error, 1)}

	select {
	case l.reqc <- req:
	case <-l.donec:
		return nil, &TransportClosedError{
			Cause:      errStopped,
			Diagnostic: Diagnostic{Argv: argv},
		}
	case <-ctx.Done():
		return nil, &OperationTimeoutError{
			Cause:      ctx.Err(),
			Diagnostic: Diagnostic{Argv: argv},
		}
	}

	if err := <-req.errc; err != nil {
		return nil, err
	}
	return cmd, nil
}

// Stats reports a point-in-time snapshot of the connection.
func (l *LoopClient) Stats() Stats {
	if l.parser == nil {
		return Stats{}
	}

	sc := make(chan Stats, 1)
	select {
	case l.statc <- sc:
		return <-sc
	case <-l.donec:
		return l.final
	}
}

// Stop shuts the loop down, kills the child, and fails every command still
// pending. Stopping an already stopped client is a no-op.
func (l *LoopClient) Stop() error {
	l.stopOnce.Do(func() {
		if l.proc == nil {
			return
		}

		close(l.stopc)
		<-l.donec

		if err := l.proc.Kill(); err != nil {
			l.stopErr = fmt.Errorf("kill child: %w", err)
		}
		<-l.readerDone
		<-l.stderrDone

		if err := l.proc.Wait(); err != nil {
			l.log.Debugf("child exit: %v", err)
		}
	})
	return l.stopErr
}
