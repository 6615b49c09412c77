package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
	"go.uber.org/multierr"

	"github.com/abhinav/tmux-controlmode/internal/controlmode"
	"github.com/abhinav/tmux-controlmode/internal/log"
)

// Overridden at release time with -ldflags.
var _version = "dev"

func main() {
	cmd := mainCmd{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
	}
	if err := cmd.Run(os.Args[1:]); err != nil && err != flag.ErrHelp {
		fmt.Fprintln(cmd.Stderr, err)
		os.Exit(1)
	}
}

type mainCmd struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Getenv func(string) string // == os.Getenv

	// Spawner overrides how the tmux child is started.
	// Tests substitute scripted children here.
	Spawner controlmode.Spawner
}

const _usage = `usage: %v [options]

Attaches to a tmux server in control mode and exchanges commands and
notifications with it. Command lines read from stdin are sent to the server;
their output is printed to stdout, and notifications are streamed to the log.

Lines starting with ':' address this program instead of tmux:

	:stats     print connection statistics
	:restart   reconnect to the server
	:quit      exit

The following flags are available:

	-tmux PATH
		tmux executable to run.
		Defaults to "tmux" on $PATH.
	-socket-name NAME
		connect to the server on the socket named NAME (tmux -L).
	-socket-path PATH
		connect to the server on the socket at PATH (tmux -S).
		Takes precedence over -socket-name.
	-tmux-config FILE
		tmux configuration file for the new server (tmux -f).
	-binding thread|loop
		transport scheduling model.
		Defaults to thread.
	-queue-size N
		bound on the notification queue.
	-evict oldest|newest
		which notification a full queue drops.
		Defaults to oldest.
	-timeout DURATION
		per-command timeout, e.g. 5s.
		Waits forever if unspecified.
	-once COMMAND
		run this one command and exit.
	-config FILE
		TOML file with defaults for the flags above.
		Defaults to $TMUX_CONTROLMODE_CONFIG.
	-log FILE
		file to write logs to.
		Uses stderr by default.
	-verbose
		log more output.
	-version
		print the version and exit.
`

func (cmd *mainCmd) Run(args []string) (err error) {
	flag := flag.NewFlagSet("tmux-controlmode", flag.ContinueOnError)
	flag.SetOutput(cmd.Stderr)
	flag.Usage = func() {
		name := flag.Name()
		fmt.Fprintf(flag.Output(), _usage, name)
	}

	cfg := newConfig(flag)

	if err := flag.Parse(args); err != nil {
		return err
	}

	if args := flag.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected arguments %q", args)
	}

	if cfg.Version {
		fmt.Fprintln(cmd.Stdout, flag.Name(), _version)
		return nil
	}

	configFile := cfg.ConfigFile
	if len(configFile) == 0 {
		configFile = cmd.Getenv("TMUX_CONTROLMODE_CONFIG")
	}
	if len(configFile) > 0 {
		fileCfg, err := loadConfig(configFile)
		if err != nil {
			return err
		}
		cfg.FillFrom(fileCfg)
	}

	logW, closeLog, err := cfg.BuildLogWriter(cmd.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	logger := log.New(logW)
	if cfg.Verbose {
		logger = logger.WithLevel(log.Debug)
	}

	engine := controlmode.New(controlmode.Config{
		Target:    cfg.Target(),
		QueueSize: cfg.QueueSize,
		Eviction:  cfg.Eviction.Policy(),
		Spawner:   cmd.Spawner,
		Log:       logger.WithName("engine"),
	}, cfg.Binding.Binding())

	if err := engine.Start(); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, engine.Close())
	}()

	if len(cfg.Once) > 0 {
		argv, err := shellwords.Parse(cfg.Once)
		if err != nil {
			return fmt.Errorf("parse command %q: %w", cfg.Once, err)
		}
		return cmd.runCommand(engine, cfg, argv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go streamNotifications(ctx, engine, logger.WithName("notify"))

	return cmd.interact(engine, cfg)
}

// interact reads command lines from stdin until EOF or :quit.
func (cmd *mainCmd) interact(engine *controlmode.Engine, cfg *config) error {
	scan := bufio.NewScanner(cmd.Stdin)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		switch line {
		case "":
			continue
		case ":quit":
			return nil
		case ":stats":
			fmt.Fprintln(cmd.Stdout, engine.Stats())
			continue
		case ":restart":
			if err := engine.Restart(); err != nil {
				return fmt.Errorf("restart: %w", err)
			}
			continue
		}

		argv, err := shellwords.Parse(line)
		if err != nil {
			fmt.Fprintf(cmd.Stderr, "parse %q: %v\n", line, err)
			continue
		}

		if err := cmd.runCommand(engine, cfg, argv); err != nil {
			return err
		}
	}
	return scan.Err()
}

// runCommand issues one command and prints its output. Command-local
// failures print to stderr and are not fatal; connection failures are.
func (cmd *mainCmd) runCommand(engine *controlmode.Engine, cfg *config, argv []string) error {
	res, err := engine.Run(argv, cfg.Timeout)
	if err != nil {
		var cerr *controlmode.CommandError
		if errors.As(err, &cerr) {
			for _, line := range cerr.Output {
				fmt.Fprintln(cmd.Stderr, line)
			}
			return nil
		}
		return err
	}

	for _, line := range res.Stdout {
		fmt.Fprintln(cmd.Stdout, line)
	}
	return nil
}

// streamNotifications forwards every notification to the log until ctx ends
// or the engine closes.
func streamNotifications(ctx context.Context, engine *controlmode.Engine, logger *log.Logger) {
	for {
		n, err := engine.NextContext(ctx)
		if err != nil {
			return
		}
		logger.Infof("%v", n)
	}
}
