package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhinav/tmux-controlmode/internal/controlmode/controlmodetest"
	"github.com/abhinav/tmux-controlmode/internal/iotest"
	"github.com/abhinav/tmux-controlmode/internal/stub"
)

func noEnv(string) string { return "" }

func TestMainUsage(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	cmd := mainCmd{
		Stdin:  strings.NewReader(""),
		Stdout: io.Discard,
		Stderr: &stderr,
		Getenv: noEnv,
	}

	err := cmd.Run([]string{"-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, stderr.String(), "usage: tmux-controlmode")
}

func TestMainUnexpectedArgs(t *testing.T) {
	t.Parallel()

	cmd := mainCmd{
		Stdin:  strings.NewReader(""),
		Stdout: io.Discard,
		Stderr: io.Discard,
		Getenv: noEnv,
	}

	err := cmd.Run([]string{"foo", "bar"})
	assert.ErrorContains(t, err, `unexpected arguments ["foo" "bar"]`)
}

func TestMainVersion(t *testing.T) {
	restore := stub.Replace(&_version, "42-test")
	defer restore()

	var stdout bytes.Buffer
	cmd := mainCmd{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: io.Discard,
		Getenv: noEnv,
	}

	require.NoError(t, cmd.Run([]string{"-version"}))
	assert.Equal(t, "tmux-controlmode 42-test\n", stdout.String())
}

func TestMainOnce(t *testing.T) {
	t.Parallel()

	proc := controlmodetest.NewProcess()
	go func() {
		req := <-proc.Requests()
		assert.Equal(t, "list-sessions -F '#{session_name}'", req)
		assert.NoError(t, proc.Feed(
			"%begin 1 1 0",
			"main",
			"work",
			"%end 1 1 0",
		))
	}()

	var stdout bytes.Buffer
	cmd := mainCmd{
		Stdin:   strings.NewReader(""),
		Stdout:  &stdout,
		Stderr:  iotest.Writer(t),
		Getenv:  noEnv,
		Spawner: controlmodetest.Spawner(proc),
	}

	err := cmd.Run([]string{
		"-socket-name", "test",
		"-once", "list-sessions -F '#{session_name}'",
	})
	require.NoError(t, err)
	assert.Equal(t, "main\nwork\n", stdout.String())
	assert.Equal(t, []string{"tmux", "-C", "-L", "test"}, proc.Argv())
}

func TestMainOnceCommandError(t *testing.T) {
	t.Parallel()

	proc := controlmodetest.NewProcess()
	go func() {
		<-proc.Requests()
		assert.NoError(t, proc.Feed(
			"%begin 1 1 0",
			"unknown command: frobnicate",
			"%error 1 1 0",
		))
	}()

	var stderr bytes.Buffer
	cmd := mainCmd{
		Stdin:   strings.NewReader(""),
		Stdout:  io.Discard,
		Stderr:  &stderr,
		Getenv:  noEnv,
		Spawner: controlmodetest.Spawner(proc),
	}

	// A failing tmux command is not a program failure.
	err := cmd.Run([]string{"-once", "frobnicate"})
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "unknown command: frobnicate")
}

func TestMainOnceBadCommand(t *testing.T) {
	t.Parallel()

	proc := controlmodetest.NewProcess()
	cmd := mainCmd{
		Stdin:   strings.NewReader(""),
		Stdout:  io.Discard,
		Stderr:  iotest.Writer(t),
		Getenv:  noEnv,
		Spawner: controlmodetest.Spawner(proc),
	}

	err := cmd.Run([]string{"-once", "send-keys 'unterminated"})
	assert.ErrorContains(t, err, "parse command")
}

func TestMainInteractive(t *testing.T) {
	t.Parallel()

	proc := controlmodetest.NewProcess()
	go func() {
		req := <-proc.Requests()
		assert.Equal(t, "display-message hello", req)
		assert.NoError(t, proc.Feed("%begin 1 1 0", "hello", "%end 1 1 0"))
	}()

	stdin := strings.Join([]string{
		"",
		"display-message hello",
		"bad 'quoting",
		":stats",
		":quit",
	}, "\n") + "\n"

	var stdout, stderr bytes.Buffer
	cmd := mainCmd{
		Stdin:   strings.NewReader(stdin),
		Stdout:  &stdout,
		Stderr:  &stderr,
		Getenv:  noEnv,
		Spawner: controlmodetest.Spawner(proc),
	}

	require.NoError(t, cmd.Run(nil))
	assert.Contains(t, stdout.String(), "hello\n")
	assert.Contains(t, stdout.String(), "{}\n", "stats of an idle connection")
	assert.Contains(t, stderr.String(), "bad 'quoting")
}

func TestMainInteractiveRestart(t *testing.T) {
	t.Parallel()

	first := controlmodetest.NewProcess()
	second := controlmodetest.NewProcess()
	go func() {
		req := <-second.Requests()
		assert.Equal(t, "list-sessions", req)
		assert.NoError(t, second.Feed("%begin 1 1 0", "after", "%end 1 1 0"))
	}()

	var stdout bytes.Buffer
	cmd := mainCmd{
		Stdin:   strings.NewReader(":restart\nlist-sessions\n:quit\n"),
		Stdout:  &stdout,
		Stderr:  iotest.Writer(t),
		Getenv:  noEnv,
		Spawner: controlmodetest.Spawner(first, second),
	}

	require.NoError(t, cmd.Run(nil))
	assert.Contains(t, stdout.String(), "after\n")
}

func TestMainConfigFileFromEnv(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("socket-name = \"fromfile\"\n"), 0o600))

	proc := controlmodetest.NewProcess()
	go func() {
		<-proc.Requests()
		assert.NoError(t, proc.Feed("%begin 1 1 0", "%end 1 1 0"))
	}()

	cmd := mainCmd{
		Stdin: strings.NewReader(""),
		Stdout: io.Discard,
		Stderr: iotest.Writer(t),
		Getenv: func(key string) string {
			if key == "TMUX_CONTROLMODE_CONFIG" {
				return path
			}
			return ""
		},
		Spawner: controlmodetest.Spawner(proc),
	}

	require.NoError(t, cmd.Run([]string{"-once", "list-sessions"}))
	assert.Equal(t, []string{"tmux", "-C", "-L", "fromfile"}, proc.Argv())
}

func TestMainBadConfigFile(t *testing.T) {
	t.Parallel()

	cmd := mainCmd{
		Stdin:  strings.NewReader(""),
		Stdout: io.Discard,
		Stderr: io.Discard,
		Getenv: noEnv,
	}

	err := cmd.Run([]string{"-config", filepath.Join(t.TempDir(), "nope.toml")})
	assert.ErrorContains(t, err, "load config")
}
