package controlmode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/abhinav/tmux-controlmode/internal/log"
	"github.com/abhinav/tmux-controlmode/internal/paniclog"
	"github.com/abhinav/tmux-controlmode/internal/tail"
)

// Response lines can be large: a capture-pane of a wide scrollback easily
// exceeds bufio's default.
const _maxLineSize = 1 << 20

// Config configures a connection to one tmux server. The zero value
// connects to the default server with default bounds.
type Config struct {
	// Target locates the tmux server.
	Target Target

	// Env entries are appended to the child's environment.
	Env []string

	// QueueSize bounds the notification queue.
	// Defaults to DefaultQueueSize.
	QueueSize int

	// Eviction selects what a full queue does with a new notification.
	// Defaults to EvictOldest.
	Eviction EvictionPolicy

	// StderrTail bounds the retained tail of the child's stderr.
	// Defaults to 32 lines.
	StderrTail int

	// Spawner starts the child. Defaults to ExecSpawner.
	Spawner Spawner

	// Clock drives timeouts and notification timestamps.
	// Defaults to the wall clock.
	Clock clock.Clock

	// Log receives debug output. Defaults to log.Discard.
	Log *log.Logger

	// queue overrides the notification queue so an Engine can keep one
	// stream alive across transport incarnations.
	queue *notifyQueue
}

func (c Config) fill() Config {
	if c.Spawner == nil {
		c.Spawner = ExecSpawner{}
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Log == nil {
		c.Log = log.Discard
	}
	if c.queue == nil {
		c.queue = newNotifyQueue(c.QueueSize, c.Eviction, c.Clock)
	}
	return c
}

// errNotStarted reports use of a transport before Start.
var errNotStarted = fmt.Errorf("transport not started")

// Client is the thread/blocking transport binding: one background goroutine
// reads the child's stdout and drives the shared state machine, and callers
// block on each command's completion signal. Writers serialize behind a
// write lock that also covers FIFO registration, so a write+register pair
// is atomic relative to other writers; the parser has its own lock, so the
// reader keeps draining stdout even while a write blocks on a full stdin
// pipe.
type Client struct {
	cfg   Config
	clk   clock.Clock
	log   *log.Logger
	queue *notifyQueue

	wmu   sync.Mutex // serializes writers: FIFO order matches wire order
	stdin io.Writer

	mu     sync.Mutex // guards parser
	parser *parser

	proc       Process
	stderr     *tail.Buffer
	readerDone chan struct{}
	stderrDone chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// NewClient builds an unstarted client. Start it before issuing commands.
func NewClient(cfg Config) *Client {
	cfg = cfg.fill()
	return &Client{
		cfg:   cfg,
		clk:   cfg.Clock,
		log:   cfg.Log,
		queue: cfg.queue,
	}
}

// Start spawns the control-mode child and the connection's single reader.
func (c *Client) Start() error {
	argv := c.cfg.Target.Argv()
	proc, err := c.cfg.Spawner.Spawn(argv, c.cfg.Env)
	if err != nil {
		return fmt.Errorf("spawn %q: %w", argv, err)
	}

	c.proc = proc
	c.stdin = proc.Stdin()
	c.stderr = &tail.Buffer{Cap: c.cfg.StderrTail}
	c.parser = newParser(c.queue, c.clk, c.log, c.stderr.Lines)
	c.readerDone = make(chan struct{})
	c.stderrDone = make(chan struct{})

	c.log.Debugf("connected: %v", c.cfg.Target)

	go c.drainStderr(proc.Stderr())
	go c.readLoop(proc.Stdout())
	return nil
}

// readLoop is the connection's only reader. It feeds every line into the
// state machine and marks the connection dead on EOF or read failure.
func (c *Client) readLoop(r io.Reader) {
	defer close(c.readerDone)

	panicw := &log.Writer{Log: c.log, Level: log.Error}
	defer panicw.Close()

	var err error
	defer func() {
		paniclog.Recover(&err, panicw)

		if err == nil {
			err = io.EOF
		}
		c.mu.Lock()
		c.parser.markDead(err)
		c.mu.Unlock()
	}()

	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), _maxLineSize)
	for scan.Scan() {
		c.mu.Lock()
		ferr := c.parser.feedLine(scan.Text())
		c.mu.Unlock()
		if ferr != nil {
			// Fatal protocol error; keep draining so the child
			// does not block on a full pipe before Stop.
			c.log.Debugf("draining dead connection: %v", ferr)
		}
	}
	err = scan.Err()
}

// drainStderr copies the child's stderr into the bounded diagnostic tail
// and the logs.
func (c *Client) drainStderr(r io.Reader) {
	defer close(c.stderrDone)

	logw := &log.Writer{Log: c.log.WithName("stderr"), Level: log.Error}
	defer logw.Close()

	_, _ = io.Copy(io.MultiWriter(c.stderr, logw), r)
}

// Run issues one command and blocks until its response arrives or the
// timeout expires. A non-positive timeout waits forever. A timed-out
// command is abandoned for this caller only; its late answer is discarded.
func (c *Client) Run(argv []string, timeout time.Duration) (*Result, error) {
	cmd := newCommand(argv, c.clk)
	if err := c.send(cmd); err != nil {
		return nil, err
	}
	return cmd.Wait(timeout)
}

// RunContext is Run bounded by a context instead of a duration.
func (c *Client) RunContext(ctx context.Context, argv []string) (*Result, error) {
	cmd := newCommand(argv, c.clk)
	if err := c.send(cmd); err != nil {
		return nil, err
	}
	return cmd.WaitContext(ctx)
}

// send registers the command and writes its request line. The write lock
// makes the pair atomic relative to other writers, so FIFO order matches
// wire order. Only the registration takes the parser lock: a write blocked
// on a full stdin pipe must not keep the reader from draining stdout.
func (c *Client) send(cmd *Command) error {
	line, err := commandLine(cmd.argv)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.mu.Lock()
	if c.parser == nil {
		c.mu.Unlock()
		return &TransportClosedError{
			Cause:      errNotStarted,
			Diagnostic: Diagnostic{Argv: cmd.argv},
		}
	}
	err = c.parser.register(cmd)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.log.Debugf("run: %v", cmd.argv)
	if _, err := io.WriteString(c.stdin, line+"\n"); err != nil {
		// The child is gone; this fails cmd along with its siblings.
		c.mu.Lock()
		defer c.mu.Unlock()
		c.parser.markDead(err)
		return c.parser.closedErr(cmd.argv)
	}
	return nil
}

// Stats reports a point-in-time snapshot of the connection.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parser == nil {
		return Stats{}
	}
	return Stats{
		InFlight:             c.parser.inFlight(),
		QueuedNotifications:  c.queue.Len(),
		DroppedNotifications: c.queue.Dropped(),
		LastError:            c.parser.deadErr,
		LastActivity:         c.parser.lastActivity,
	}
}

// Stop kills the child, waits for the reader to drain, and fails every
// command still pending. Stopping an already stopped client is a no-op.
func (c *Client) Stop() error {
	c.stopOnce.Do(func() {
		if c.proc == nil {
			return
		}

		var errs error
		if err := c.proc.Kill(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("kill child: %w", err))
		}
		<-c.readerDone
		<-c.stderrDone

		// An exit status is expected after Kill; it is not a stop
		// failure.
		if err := c.proc.Wait(); err != nil {
			c.log.Debugf("child exit: %v", err)
		}
		c.stopErr = errs
	})
	return c.stopErr
}
