package controlmode

import (
	"time"

	"github.com/abhinav/tmux-controlmode/internal/stringobj"
)

// Stats is a read-only snapshot of a connection's health, recomputed on
// demand.
type Stats struct {
	// InFlight counts commands registered but not yet completed.
	InFlight int

	// QueuedNotifications counts notifications awaiting a consumer.
	QueuedNotifications int

	// DroppedNotifications counts notifications evicted from the full
	// queue since the engine was created.
	DroppedNotifications uint64

	// Restarts counts reconnections after dead connections.
	Restarts int

	// LastError is the error that killed the current connection, if it
	// is dead.
	LastError error

	// LastActivity is when the reader last observed a frame.
	LastActivity time.Time
}

func (s Stats) String() string {
	var b stringobj.Builder
	b.Put("inFlight", s.InFlight)
	b.Put("queued", s.QueuedNotifications)
	b.Put("dropped", s.DroppedNotifications)
	b.Put("restarts", s.Restarts)
	b.Put("lastError", s.LastError)
	return b.String()
}
