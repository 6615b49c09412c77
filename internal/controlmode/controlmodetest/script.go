// Package controlmodetest provides scripted control-mode children for
// testing transports without a real tmux.
package controlmodetest

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/abhinav/tmux-controlmode/internal/controlmode"
)

// Process is an in-memory control-mode child. Tests script its stdout with
// Feed and inspect everything the engine wrote to stdin via Requests.
type Process struct {
	outR *io.PipeReader
	outW *io.PipeWriter
	errR *io.PipeReader
	errW *io.PipeWriter

	requests chan string

	mu   sync.Mutex
	part strings.Builder
	argv []string

	killOnce sync.Once
	killed   chan struct{}
}

var _ controlmode.Process = (*Process)(nil)

// NewProcess builds a scripted child whose streams are all open.
func NewProcess() *Process {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	return &Process{
		outR:     outR,
		outW:     outW,
		errR:     errR,
		errW:     errW,
		requests: make(chan string, 64),
		killed:   make(chan struct{}),
	}
}

// Stdin records lines written by the engine.
func (p *Process) Stdin() io.Writer { return (*stdinWriter)(p) }

// Stdout is the stream the engine's reader consumes.
func (p *Process) Stdout() io.Reader { return p.outR }

// Stderr is the stream the engine's diagnostics tail consumes.
func (p *Process) Stderr() io.Reader { return p.errR }

// Kill closes the child's output streams, delivering EOF to the engine.
func (p *Process) Kill() error {
	p.killOnce.Do(func() {
		close(p.killed)
		p.outW.Close()
		p.errW.Close()
	})
	return nil
}

// Wait blocks until the child was killed.
func (p *Process) Wait() error {
	<-p.killed
	return nil
}

// Feed writes the given lines to the child's stdout, newline terminated.
// It blocks until the engine's reader consumes them.
func (p *Process) Feed(lines ...string) error {
	for _, line := range lines {
		if _, err := io.WriteString(p.outW, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// FeedStderr writes the given lines to the child's stderr.
func (p *Process) FeedStderr(lines ...string) error {
	for _, line := range lines {
		if _, err := io.WriteString(p.errW, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// CloseOutput delivers EOF on the child's stdout without killing it, as a
// real child exiting does.
func (p *Process) CloseOutput() {
	p.outW.Close()
	p.errW.Close()
}

// Requests yields the lines the engine wrote to stdin, one request each.
func (p *Process) Requests() <-chan string { return p.requests }

// Argv reports the argv this process was spawned with, if it was spawned
// through Spawner.
func (p *Process) Argv() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.argv
}

// stdinWriter splits engine writes into request lines.
type stdinWriter Process

func (w *stdinWriter) Write(bs []byte) (int, error) {
	p := (*Process)(w)

	select {
	case <-p.killed:
		return 0, errors.New("write to killed child")
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(bs)
	for {
		idx := strings.IndexByte(string(bs), '\n')
		if idx < 0 {
			p.part.Write(bs)
			return n, nil
		}
		p.part.Write(bs[:idx])
		p.requests <- p.part.String()
		p.part.Reset()
		bs = bs[idx+1:]
	}
}

// Spawner builds a SpawnerFunc that hands out the given processes in order,
// recording the argv each was spawned with. Spawning more times than there
// are processes fails.
func Spawner(procs ...*Process) controlmode.SpawnerFunc {
	var mu sync.Mutex
	i := 0
	return func(argv []string, env []string) (controlmode.Process, error) {
		mu.Lock()
		defer mu.Unlock()

		if i >= len(procs) {
			return nil, errors.New("no scripted process left to spawn")
		}
		p := procs[i]
		i++

		p.mu.Lock()
		p.argv = argv
		p.mu.Unlock()
		return p, nil
	}
}
