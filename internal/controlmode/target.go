package controlmode

import (
	"log/slog"
	"strings"

	"github.com/abhinav/tmux-controlmode/internal/log"
)

const _defaultTmux = "tmux"

// Target locates the tmux server a connection attaches to. It is a value
// object: its only job is to build the argv of the control-mode child.
type Target struct {
	// Tmux is the tmux executable. Defaults to "tmux".
	Tmux string

	// SocketName selects a named server socket (tmux -L).
	SocketName string

	// SocketPath selects an explicit socket path (tmux -S).
	// Takes precedence over SocketName.
	SocketPath string

	// ConfigFile is an alternate tmux configuration file (tmux -f).
	ConfigFile string

	// Command is the tmux command the client runs on start, such as
	// ["attach-session", "-t", "main"]. Empty starts a new session.
	Command []string
}

// Argv builds the command line that spawns the control-mode client.
func (t Target) Argv() []string {
	bin := t.Tmux
	if bin == "" {
		bin = _defaultTmux
	}

	args := []string{bin, "-C"}
	switch {
	case t.SocketPath != "":
		args = append(args, "-S", t.SocketPath)
	case t.SocketName != "":
		args = append(args, "-L", t.SocketName)
	}
	if t.ConfigFile != "" {
		args = append(args, "-f", t.ConfigFile)
	}
	return append(args, t.Command...)
}

func (t Target) LogValue() slog.Value {
	return slog.GroupValue(
		log.OmitEmpty(slog.String, "tmux", t.Tmux),
		log.OmitEmpty(slog.String, "socketName", t.SocketName),
		log.OmitEmpty(slog.String, "socketPath", t.SocketPath),
		log.OmitEmpty(slog.String, "configFile", t.ConfigFile),
		log.OmitEmpty(slog.String, "command", strings.Join(t.Command, " ")),
	)
}
