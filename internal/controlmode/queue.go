package controlmode

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultQueueSize bounds the notification queue when the configuration
// does not say otherwise.
const DefaultQueueSize = 1024

// EvictionPolicy controls what a full notification queue does with a new
// notification.
type EvictionPolicy int

// Supported eviction policies.
const (
	// EvictOldest drops the oldest queued notification to make room for
	// the new one. This is the default: a slow consumer sees the most
	// recent state.
	EvictOldest EvictionPolicy = iota

	// EvictNewest drops the incoming notification instead.
	EvictNewest
)

func (p EvictionPolicy) String() string {
	if p == EvictNewest {
		return "newest"
	}
	return "oldest"
}

// notifyQueue is the bounded notification queue. Put never blocks, so the
// frame-feeding path can never stall on a slow notification consumer; a
// full queue evicts per policy and counts the drop.
//
// Put and Close assume a single producer at a time (the connection's one
// reader, then whoever tears the engine down after the reader is joined).
// Next and NextContext are safe for any number of consumers.
type notifyQueue struct {
	ch     chan Notification
	policy EvictionPolicy
	clk    clock.Clock

	dropped atomic.Uint64
	closed  atomic.Bool
}

func newNotifyQueue(capacity int, policy EvictionPolicy, clk clock.Clock) *notifyQueue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &notifyQueue{
		ch:     make(chan Notification, capacity),
		policy: policy,
		clk:    clk,
	}
}

// Put enqueues n, evicting per policy when full. The evict-then-retry is
// race-free only because there is a single producer.
func (q *notifyQueue) Put(n Notification) {
	if q.closed.Load() {
		return
	}

	for {
		select {
		case q.ch <- n:
			return
		default:
		}

		q.dropped.Add(1)
		if q.policy == EvictNewest {
			return
		}

		select {
		case <-q.ch: // evict the oldest
		default:
		}
	}
}

// Next returns the next notification, waiting up to timeout for one to
// arrive. A non-positive timeout waits forever. It fails with an
// OperationTimeoutError on expiry and a TransportClosedError once the queue
// is closed and drained.
func (q *notifyQueue) Next(timeout time.Duration) (Notification, error) {
	if timeout <= 0 {
		n, ok := <-q.ch
		if !ok {
			return Notification{}, &TransportClosedError{}
		}
		return n, nil
	}

	t := q.clk.Timer(timeout)
	defer t.Stop()

	select {
	case n, ok := <-q.ch:
		if !ok {
			return Notification{}, &TransportClosedError{}
		}
		return n, nil
	case <-t.C:
		return Notification{}, &OperationTimeoutError{Timeout: timeout}
	}
}

// NextContext is Next bounded by a context instead of a duration.
func (q *notifyQueue) NextContext(ctx context.Context) (Notification, error) {
	select {
	case n, ok := <-q.ch:
		if !ok {
			return Notification{}, &TransportClosedError{}
		}
		return n, nil
	case <-ctx.Done():
		return Notification{}, &OperationTimeoutError{Cause: ctx.Err()}
	}
}

// Len reports the number of queued notifications.
func (q *notifyQueue) Len() int { return len(q.ch) }

// Dropped reports how many notifications were evicted since creation.
func (q *notifyQueue) Dropped() uint64 { return q.dropped.Load() }

// Close ends the notification stream. Pending notifications remain
// consumable; Next fails once the queue drains. Call only after the
// producer is stopped.
func (q *notifyQueue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}
