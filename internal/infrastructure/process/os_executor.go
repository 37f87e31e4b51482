package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"plughost.dev/cli/internal/core/domain/process"
	procp "plughost.dev/cli/internal/core/ports/process"
)

var errNotStarted = errors.New("process not running")

// Executor starts plugin programs as OS child processes
type Executor struct {
	env []string
}

// NewExecutor creates an executor that passes the host environment through
func NewExecutor() *Executor {
	return &Executor{env: os.Environ()}
}

// NewExecutorWithEnv creates an executor with a fixed base environment
func NewExecutorWithEnv(env []string) *Executor {
	if env == nil {
		env = os.Environ()
	}
	return &Executor{env: env}
}

// Execute starts cmd and returns once the OS has created the process.
// The process is not bound to ctx; only the start is.
func (e *Executor) Execute(ctx context.Context, cmd process.Command) (procp.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	execCmd := exec.Command(cmd.Executable(), cmd.Args()...)
	execCmd.Dir = cmd.WorkingDir()
	execCmd.Env = e.buildEnvironment(cmd.Env())

	stdin, err := execCmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	// Plain OS pipes so that Wait never closes the read ends while the
	// supervisor is still draining them.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	execCmd.Stdout = stdoutW
	execCmd.Stderr = stderrW

	startErr := execCmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if startErr != nil {
		stdin.Close()
		stdoutR.Close()
		stderrR.Close()
		return nil, fmt.Errorf("failed to start process: %w", startErr)
	}

	p := &osProcess{
		cmd:      execCmd,
		stdin:    stdin,
		stdout:   stdoutR,
		stderr:   stderrR,
		running:  true,
		exitCode: -1,
		done:     make(chan struct{}),
	}
	go p.monitor()

	return p, nil
}

func (e *Executor) buildEnvironment(cmdEnv map[string]string) []string {
	env := append([]string(nil), e.env...)
	for key, value := range cmdEnv {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	return env
}

// osProcess implements procp.Process for an exec.Cmd
type osProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu       sync.RWMutex
	running  bool
	exitCode int
	waitErr  error
	done     chan struct{}
}

func (p *osProcess) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

func (p *osProcess) Stdin() io.WriteCloser { return p.stdin }

func (p *osProcess) Stdout() io.ReadCloser { return p.stdout }

func (p *osProcess) Stderr() io.ReadCloser { return p.stderr }

// Wait blocks until the process has exited
func (p *osProcess) Wait() error {
	<-p.done
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.waitErr
}

func (p *osProcess) Signal(signal process.ProcessSignal) error {
	if !p.IsRunning() {
		return errNotStarted
	}
	return p.cmd.Process.Signal(ConvertSignal(signal))
}

func (p *osProcess) Kill() error {
	if !p.IsRunning() {
		return errNotStarted
	}
	p.stdin.Close()
	return p.cmd.Process.Kill()
}

func (p *osProcess) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *osProcess) ExitCode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode
}

func (p *osProcess) monitor() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.running = false
	p.waitErr = err

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.exitCode = 0
	case errors.As(err, &exitErr):
		p.exitCode = exitErr.ExitCode()
	default:
		p.exitCode = -1
	}
	p.mu.Unlock()

	close(p.done)
}

// ConvertSignal converts a domain signal to an OS signal
func ConvertSignal(signal process.ProcessSignal) os.Signal {
	switch signal {
	case process.SignalInterrupt:
		return syscall.SIGINT
	case process.SignalKill:
		return syscall.SIGKILL
	default:
		return syscall.SIGTERM
	}
}
