package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhinav/tmux-controlmode/internal/controlmode"
)

func parseConfig(t *testing.T, args ...string) *config {
	fset := flag.NewFlagSet(t.Name(), flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	cfg := newConfig(fset)
	require.NoError(t, fset.Parse(args))
	return cfg
}

func TestConfigFlags(t *testing.T) {
	t.Parallel()

	cfg := parseConfig(t,
		"-tmux", "/usr/local/bin/tmux",
		"-socket-name", "test",
		"-binding", "loop",
		"-queue-size", "256",
		"-evict", "newest",
		"-timeout", "5s",
		"-verbose",
	)

	assert.Equal(t, "/usr/local/bin/tmux", cfg.Tmux)
	assert.Equal(t, "test", cfg.SocketName)
	assert.Equal(t, controlmode.BindingLoop, cfg.Binding.Binding())
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, controlmode.EvictNewest, cfg.Eviction.Policy())
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.Verbose)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := parseConfig(t)

	assert.Equal(t, controlmode.BindingThread, cfg.Binding.Binding())
	assert.Equal(t, controlmode.EvictOldest, cfg.Eviction.Policy())
	assert.Equal(t, "thread", cfg.Binding.String())
	assert.Equal(t, "oldest", cfg.Eviction.String())
	assert.Zero(t, cfg.Timeout)
}

func TestConfigBadFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		args []string
	}{
		{desc: "binding", args: []string{"-binding", "fiber"}},
		{desc: "eviction", args: []string{"-evict", "random"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()

			fset := flag.NewFlagSet(t.Name(), flag.ContinueOnError)
			fset.SetOutput(io.Discard)
			newConfig(fset)
			assert.Error(t, fset.Parse(tt.args))
		})
	}
}

func TestConfigFillFrom(t *testing.T) {
	t.Parallel()

	cfg := parseConfig(t, "-socket-name", "flag", "-timeout", "1s")
	cfg.FillFrom(&config{
		Tmux:       "/opt/tmux",
		SocketName: "file",
		QueueSize:  64,
		Timeout:    9 * time.Second,
		Verbose:    true,
	})

	// Values set by flags win; everything else comes from the file.
	assert.Equal(t, "flag", cfg.SocketName)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, "/opt/tmux", cfg.Tmux)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.True(t, cfg.Verbose)
}

func TestConfigTarget(t *testing.T) {
	t.Parallel()

	cfg := parseConfig(t, "-socket-path", "/tmp/sock", "-tmux-config", "/dev/null")
	assert.Equal(t, controlmode.Target{
		SocketPath: "/tmp/sock",
		ConfigFile: "/dev/null",
	}, cfg.Target())
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
tmux = "/opt/tmux"
socket-name = "ci"
binding = "loop"
queue-size = 512
evict = "newest"
timeout = "30s"
verbose = true
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/tmux", cfg.Tmux)
	assert.Equal(t, "ci", cfg.SocketName)
	assert.Equal(t, controlmode.BindingLoop, cfg.Binding.Binding())
	assert.Equal(t, 512, cfg.QueueSize)
	assert.Equal(t, controlmode.EvictNewest, cfg.Eviction.Policy())
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc    string
		body    string
		wantErr string
	}{
		{
			desc:    "unknown key",
			body:    `sockets = "oops"`,
			wantErr: "unknown key",
		},
		{
			desc:    "bad binding",
			body:    `binding = "fiber"`,
			wantErr: "unknown binding",
		},
		{
			desc:    "bad eviction",
			body:    `evict = "random"`,
			wantErr: "unknown eviction",
		},
		{
			desc:    "bad timeout",
			body:    `timeout = "soon"`,
			wantErr: "timeout",
		},
		{
			desc:    "bad syntax",
			body:    `tmux = `,
			wantErr: "load config",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()

			_, err := loadConfig(writeConfigFile(t, tt.body))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestBuildLogWriter(t *testing.T) {
	t.Parallel()

	t.Run("default stderr", func(t *testing.T) {
		t.Parallel()

		var stderr bytes.Buffer
		cfg := parseConfig(t)

		w, done, err := cfg.BuildLogWriter(&stderr)
		require.NoError(t, err)
		defer done()

		_, err = io.WriteString(w, "hello")
		require.NoError(t, err)
		assert.Equal(t, "hello", stderr.String())
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "log.txt")
		cfg := parseConfig(t, "-log", path)

		w, done, err := cfg.BuildLogWriter(io.Discard)
		require.NoError(t, err)

		_, err = io.WriteString(w, "hello\n")
		require.NoError(t, err)
		done()

		body, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(body))
	})
}
