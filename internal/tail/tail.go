// Package tail retains a bounded tail of a line stream.
package tail

import (
	"bytes"
	"sync"
)

const _defaultCap = 32

// Buffer is an io.Writer that splits its input into lines and retains only
// the most recent lines written to it. Use it to keep a bounded tail of a
// child process' stderr around for error reports.
//
// Buffer is safe for concurrent use.
type Buffer struct {
	// Cap is the maximum number of lines retained.
	// Defaults to 32 if unset.
	Cap int

	mu    sync.Mutex
	lines []string
	part  bytes.Buffer // incomplete last line
}

func (b *Buffer) cap() int {
	if b.Cap > 0 {
		return b.Cap
	}
	return _defaultCap
}

func (b *Buffer) Write(bs []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(bs)
	for {
		idx := bytes.IndexByte(bs, '\n')
		if idx < 0 {
			b.part.Write(bs)
			return n, nil
		}

		b.part.Write(bs[:idx])
		b.push(b.part.String())
		b.part.Reset()
		bs = bs[idx+1:]
	}
}

func (b *Buffer) push(line string) {
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.cap(); over > 0 {
		b.lines = append(b.lines[:0], b.lines[over:]...)
	}
}

// Lines returns a copy of the retained lines, oldest first. A partially
// written last line is included.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.lines)+1)
	out = append(out, b.lines...)
	if b.part.Len() > 0 {
		out = append(out, b.part.String())
	}
	return out
}
