package tail

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc   string
		cap    int
		writes []string
		want   []string
	}{
		{
			desc:   "empty",
			writes: nil,
			want:   []string{},
		},
		{
			desc:   "single line",
			writes: []string{"foo\n"},
			want:   []string{"foo"},
		},
		{
			desc:   "partial line",
			writes: []string{"foo\nba", "r"},
			want:   []string{"foo", "bar"},
		},
		{
			desc:   "over capacity",
			cap:    2,
			writes: []string{"a\nb\nc\nd\n"},
			want:   []string{"c", "d"},
		},
		{
			desc:   "split across writes",
			cap:    3,
			writes: []string{"one\ntw", "o\nthree\nfour\n"},
			want:   []string{"two", "three", "four"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()

			b := Buffer{Cap: tt.cap}
			for _, s := range tt.writes {
				_, err := io.WriteString(&b, s)
				require.NoError(t, err)
			}

			assert.Equal(t, tt.want, b.Lines())
		})
	}
}
