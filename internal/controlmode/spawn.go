package controlmode

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a running control-mode child. The transport owns its streams:
// exactly one reader consumes Stdout, and all writes to Stdin go through
// the transport's write lock.
type Process interface {
	Stdin() io.Writer
	Stdout() io.Reader
	Stderr() io.Reader

	// Kill terminates the child.
	Kill() error

	// Wait reaps the child after its streams are drained.
	Wait() error
}

// Spawner starts control-mode child processes. It is the seam between the
// transport and the operating system; tests substitute scripted children.
type Spawner interface {
	// Spawn starts argv with the given extra environment entries and
	// returns the running process with its three streams piped.
	Spawn(argv []string, env []string) (Process, error)
}

// SpawnerFunc adapts a function to the Spawner interface.
type SpawnerFunc func(argv []string, env []string) (Process, error)

// Spawn calls the function.
func (f SpawnerFunc) Spawn(argv []string, env []string) (Process, error) {
	return f(argv, env)
}

// ExecSpawner spawns real child processes with os/exec.
type ExecSpawner struct{}

var _ Spawner = ExecSpawner{}

// Spawn starts the given command with piped stdin, stdout and stderr.
func (ExecSpawner) Spawn(argv []string, env []string) (Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("spawn: empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", argv, err)
	}

	return &execProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() error {
	// The child may never have seen stdin close; do that first so a
	// well-behaved tmux exits on its own.
	_ = p.stdin.Close()
	return p.cmd.Wait()
}
