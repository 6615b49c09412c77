package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/abhinav/tmux-controlmode/internal/controlmode"
)

type config struct {
	Tmux       string
	SocketName string
	SocketPath string
	TmuxConfig string

	Binding   bindingFlag
	QueueSize int
	Eviction  evictionFlag
	Timeout   time.Duration

	ConfigFile string
	Once       string
	LogFile    string
	Verbose    bool
	Version    bool
}

func newConfig(flag *flag.FlagSet) *config {
	var c config
	c.RegisterFlags(flag)
	return &c
}

func (c *config) RegisterFlags(flag *flag.FlagSet) {
	// No help here because we put it all in _usage.
	flag.StringVar(&c.Tmux, "tmux", "", "")
	flag.StringVar(&c.SocketName, "socket-name", "", "")
	flag.StringVar(&c.SocketPath, "socket-path", "", "")
	flag.StringVar(&c.TmuxConfig, "tmux-config", "", "")
	flag.Var(&c.Binding, "binding", "")
	flag.IntVar(&c.QueueSize, "queue-size", 0, "")
	flag.Var(&c.Eviction, "evict", "")
	flag.DurationVar(&c.Timeout, "timeout", 0, "")
	flag.StringVar(&c.ConfigFile, "config", "", "")
	flag.StringVar(&c.Once, "once", "", "")
	flag.StringVar(&c.LogFile, "log", "", "")
	flag.BoolVar(&c.Verbose, "verbose", false, "")
	flag.BoolVar(&c.Version, "version", false, "")
}

// FillFrom updates this config object, filling empty values with values from
// the provided struct but not overwriting those that are already set.
func (c *config) FillFrom(o *config) {
	if len(c.Tmux) == 0 {
		c.Tmux = o.Tmux
	}
	if len(c.SocketName) == 0 {
		c.SocketName = o.SocketName
	}
	if len(c.SocketPath) == 0 {
		c.SocketPath = o.SocketPath
	}
	if len(c.TmuxConfig) == 0 {
		c.TmuxConfig = o.TmuxConfig
	}
	if len(c.Binding.name) == 0 {
		c.Binding = o.Binding
	}
	if c.QueueSize == 0 {
		c.QueueSize = o.QueueSize
	}
	if len(c.Eviction.name) == 0 {
		c.Eviction = o.Eviction
	}
	if c.Timeout == 0 {
		c.Timeout = o.Timeout
	}
	if len(c.LogFile) == 0 {
		c.LogFile = o.LogFile
	}
	c.Verbose = c.Verbose || o.Verbose
}

// Target builds the connection target this configuration describes.
func (c *config) Target() controlmode.Target {
	return controlmode.Target{
		Tmux:       c.Tmux,
		SocketName: c.SocketName,
		SocketPath: c.SocketPath,
		ConfigFile: c.TmuxConfig,
	}
}

// BuildLogWriter returns the writer to write logs to, and a function to
// close it when done.
func (c *config) BuildLogWriter(stderr io.Writer) (w io.Writer, done func(), err error) {
	if len(c.LogFile) == 0 {
		return stderr, func() {}, nil
	}

	f, err := os.OpenFile(c.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log %q: %w", c.LogFile, err)
	}
	return f, func() { _ = f.Close() }, nil
}

// fileConfig is the shape of the optional TOML configuration file. Every key
// mirrors a flag; flags win over file values.
type fileConfig struct {
	Tmux       string `toml:"tmux"`
	SocketName string `toml:"socket-name"`
	SocketPath string `toml:"socket-path"`
	TmuxConfig string `toml:"tmux-config"`
	Binding    string `toml:"binding"`
	QueueSize  int    `toml:"queue-size"`
	Eviction   string `toml:"evict"`
	Timeout    string `toml:"timeout"`
	Log        string `toml:"log"`
	Verbose    bool   `toml:"verbose"`
}

func loadConfig(path string) (*config, error) {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("load config %q: unknown key %q", path, undec[0].String())
	}

	c := config{
		Tmux:       fc.Tmux,
		SocketName: fc.SocketName,
		SocketPath: fc.SocketPath,
		TmuxConfig: fc.TmuxConfig,
		QueueSize:  fc.QueueSize,
		LogFile:    fc.Log,
		Verbose:    fc.Verbose,
	}
	if len(fc.Binding) > 0 {
		if err := c.Binding.Set(fc.Binding); err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
	}
	if len(fc.Eviction) > 0 {
		if err := c.Eviction.Set(fc.Eviction); err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
	}
	if len(fc.Timeout) > 0 {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("load config %q: timeout: %w", path, err)
		}
		c.Timeout = d
	}
	return &c, nil
}

// bindingFlag parses "thread" or "loop" into a transport binding. The empty
// value means thread.
type bindingFlag struct{ name string }

var _ flag.Value = (*bindingFlag)(nil)

func (f *bindingFlag) String() string {
	if len(f.name) == 0 {
		return "thread"
	}
	return f.name
}

func (f *bindingFlag) Set(s string) error {
	switch s {
	case "thread", "loop":
		f.name = s
		return nil
	default:
		return fmt.Errorf("unknown binding %q: expected thread or loop", s)
	}
}

// Binding reports the transport binding this flag selects.
func (f *bindingFlag) Binding() controlmode.Binding {
	if f.name == "loop" {
		return controlmode.BindingLoop
	}
	return controlmode.BindingThread
}

// evictionFlag parses "oldest" or "newest" into an eviction policy. The
// empty value means oldest.
type evictionFlag struct{ name string }

var _ flag.Value = (*evictionFlag)(nil)

func (f *evictionFlag) String() string {
	if len(f.name) == 0 {
		return "oldest"
	}
	return f.name
}

func (f *evictionFlag) Set(s string) error {
	switch s {
	case "oldest", "newest":
		f.name = s
		return nil
	default:
		return fmt.Errorf("unknown eviction policy %q: expected oldest or newest", s)
	}
}

// Policy reports the eviction policy this flag selects.
func (f *evictionFlag) Policy() controlmode.EvictionPolicy {
	if f.name == "newest" {
		return controlmode.EvictNewest
	}
	return controlmode.EvictOldest
}
