package controlmode

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Binding selects a transport scheduling model.
type Binding int

// Supported bindings.
const (
	// BindingThread blocks callers on completion signals while a
	// background goroutine reads the wire. See Client.
	BindingThread Binding = iota

	// BindingLoop funnels all protocol state through one event-loop
	// goroutine. See LoopClient.
	BindingLoop
)

func (b Binding) String() string {
	if b == BindingLoop {
		return "loop"
	}
	return "thread"
}

// Transport is the scheduling-specific half of a connection. Both bindings
// share the same state machine and guarantees: exactly one logical reader,
// atomic write+register, caller-local timeouts.
type Transport interface {
	Start() error
	Run(argv []string, timeout time.Duration) (*Result, error)
	RunContext(ctx context.Context, argv []string) (*Result, error)
	Stats() Stats
	Stop() error
}

var (
	_ Transport = (*Client)(nil)
	_ Transport = (*LoopClient)(nil)
)

// Engine is the public face of one control-mode connection. It fronts a
// transport binding and owns the notification queue, so the notification
// stream stays consumable across restarts while command contexts never
// outlive their connection incarnation: a restarted connection starts with
// an empty FIFO, and contexts abandoned under the old one are already
// failed or discarded.
type Engine struct {
	cfg     Config
	binding Binding
	queue   *notifyQueue

	mu       sync.Mutex
	t        Transport
	restarts int
	closed   bool
}

// New builds an unstarted engine for the given binding.
func New(cfg Config, binding Binding) *Engine {
	cfg = cfg.fill()
	return &Engine{
		cfg:     cfg,
		binding: binding,
		queue:   cfg.queue,
		t:       newTransport(cfg, binding),
	}
}

func newTransport(cfg Config, binding Binding) Transport {
	if binding == BindingLoop {
		return NewLoopClient(cfg)
	}
	return NewClient(cfg)
}

// Start spawns the control-mode child and begins reading.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t.Start()
}

// Run issues one command and blocks for its result. A non-positive timeout
// waits forever.
func (e *Engine) Run(argv []string, timeout time.Duration) (*Result, error) {
	return e.transport().Run(argv, timeout)
}

// RunContext issues one command and awaits its result or ctx.
func (e *Engine) RunContext(ctx context.Context, argv []string) (*Result, error) {
	return e.transport().RunContext(ctx, argv)
}

// Next returns the next notification, waiting up to timeout. Notifications
// carry no ordering relationship to command responses and may interleave at
// any point.
func (e *Engine) Next(timeout time.Duration) (Notification, error) {
	return e.queue.Next(timeout)
}

// NextContext is Next bounded by a context.
func (e *Engine) NextContext(ctx context.Context) (Notification, error) {
	return e.queue.NextContext(ctx)
}

// Restart tears down the current connection and spawns a fresh one against
// the same target. Commands pending under the old connection fail with
// TransportClosedError; frames from the new child can never satisfy them.
func (e *Engine) Restart() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &TransportClosedError{Cause: errStopped}
	}

	err := e.t.Stop()

	e.restarts++
	e.t = newTransport(e.cfg, e.binding)
	return multierr.Append(err, e.t.Start())
}

// Stats reports a read-only snapshot of the engine.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	t, restarts := e.t, e.restarts
	e.mu.Unlock()

	stats := t.Stats()
	stats.Restarts = restarts
	return stats
}

// Stop stops the current connection without closing the notification
// stream; Restart may bring the engine back.
func (e *Engine) Stop() error {
	return e.transport().Stop()
}

// Close stops the connection and ends the notification stream. The engine
// is not usable afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	err := e.t.Stop()
	e.queue.Close()
	return err
}

func (e *Engine) transport() Transport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t
}
