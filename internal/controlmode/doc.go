// Package controlmode speaks the tmux control-mode wire protocol.
//
// A control-mode client is a long-lived tmux child process that accepts
// command lines on stdin and answers on stdout with %begin/%end/%error
// bracketed responses, interleaved with unsolicited %-prefixed notifications.
// Responses arrive strictly in the order commands were written, so this
// package correlates them positionally: there is no per-request token.
//
// The package offers two transport bindings over one shared state machine:
// Client blocks callers on a per-command completion signal while a background
// goroutine reads the wire, and LoopClient funnels every protocol mutation
// through a single event-loop goroutine. Engine fronts either binding and
// adds the bounded notification stream, stats, and restart handling.
package controlmode
