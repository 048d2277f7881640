package supervisor

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Process is a running llama.cpp child as seen by the supervisor.
// Stdout and Stderr must be fully read before Wait is called.
type Process interface {
	Stdin() io.Writer
	Stdout() io.Reader
	Stderr() io.Reader
	// Interrupt asks the process to stop (SIGINT).
	Interrupt() error
	Kill() error
	Wait() error
	Pid() int
}

// SpawnFunc starts bin with args. The returned process outlives ctx.
type SpawnFunc func(ctx context.Context, bin string, args []string) (Process, error)

// ExecSpawn starts processes with os/exec.
var ExecSpawn SpawnFunc = NewExecSpawn()

// NewExecSpawn returns an os/exec SpawnFunc that appends env to the inherited environment.
func NewExecSpawn(env ...string) SpawnFunc {
	return func(ctx context.Context, bin string, args []string) (Process, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmd := exec.Command(bin, args...)
		if len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
	}
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }

func (p *execProcess) Interrupt() error { return p.cmd.Process.Signal(os.Interrupt) }
func (p *execProcess) Kill() error      { return p.cmd.Process.Kill() }

func (p *execProcess) Wait() error {
	_ = p.stdin.Close()
	return p.cmd.Wait()
}
