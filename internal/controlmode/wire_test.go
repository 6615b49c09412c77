package controlmode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc    string
		give    []string
		want    string
		wantErr string
	}{
		{
			desc: "plain",
			give: []string{"list-sessions"},
			want: "list-sessions",
		},
		{
			desc: "flags",
			give: []string{"new-window", "-t", "@1", "-n", "build"},
			want: "new-window -t @1 -n build",
		},
		{
			desc: "embedded space",
			give: []string{"rename-window", "two words"},
			want: "rename-window 'two words'",
		},
		{
			desc: "empty argument",
			give: []string{"send-keys", ""},
			want: "send-keys ''",
		},
		{
			desc: "single quote",
			give: []string{"display-message", "it's"},
			want: `display-message 'it'\''s'`,
		},
		{
			desc: "semicolon would split commands",
			give: []string{"send-keys", "a;b"},
			want: "send-keys 'a;b'",
		},
		{
			desc:    "newline would split request lines",
			give:    []string{"display-message", "a\nb"},
			wantErr: "line break",
		},
		{
			desc:    "carriage return would split request lines",
			give:    []string{"send-keys", "a\rb"},
			wantErr: "line break",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()

			got, err := commandLine(tt.give)
			if len(tt.wantErr) > 0 {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetArgv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc string
		give Target
		want []string
	}{
		{
			desc: "default",
			want: []string{"tmux", "-C"},
		},
		{
			desc: "socket name",
			give: Target{SocketName: "test"},
			want: []string{"tmux", "-C", "-L", "test"},
		},
		{
			desc: "socket path wins over name",
			give: Target{SocketName: "test", SocketPath: "/tmp/sock"},
			want: []string{"tmux", "-C", "-S", "/tmp/sock"},
		},
		{
			desc: "config file and command",
			give: Target{
				Tmux:       "/usr/local/bin/tmux",
				ConfigFile: "/dev/null",
				Command:    []string{"attach-session", "-t", "main"},
			},
			want: []string{
				"/usr/local/bin/tmux", "-C", "-f", "/dev/null",
				"attach-session", "-t", "main",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.give.Argv())
		})
	}
}
