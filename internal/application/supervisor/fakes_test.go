package supervisor

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"plughost.dev/cli/internal/core/domain/process"
	procp "plughost.dev/cli/internal/core/ports/process"
	"plughost.dev/cli/internal/core/protocol"
)

// fakeProcess is an in-memory plugin process backed by io.Pipe.
type fakeProcess struct {
	pid int

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	ignoreTerminate bool

	stdoutClosed atomic.Bool
	stderrClosed atomic.Bool

	mu       sync.Mutex
	running  bool
	exitCode int
	signals  []process.ProcessSignal
	killed   bool
	done     chan struct{}
	once     sync.Once
}

func newFakeProcess(pid int) *fakeProcess {
	p := &fakeProcess{pid: pid, running: true, exitCode: -1, done: make(chan struct{})}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

func (p *fakeProcess) write(s string) {
	_, _ = io.WriteString(p.stdoutW, s)
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.mu.Lock()
		p.running = false
		p.exitCode = code
		p.mu.Unlock()
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
		close(p.done)
	})
}

func (p *fakeProcess) PID() int { return p.pid }
func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdinW }
func (p *fakeProcess) Stdout() io.ReadCloser {
	return &trackedReader{PipeReader: p.stdoutR, closed: &p.stdoutClosed}
}

func (p *fakeProcess) Stderr() io.ReadCloser {
	return &trackedReader{PipeReader: p.stderrR, closed: &p.stderrClosed}
}

func (p *fakeProcess) pipesClosed() bool {
	return p.stdoutClosed.Load() && p.stderrClosed.Load()
}

// trackedReader records that the supervisor closed its end of a pipe.
type trackedReader struct {
	*io.PipeReader
	closed *atomic.Bool
}

func (r *trackedReader) Close() error {
	r.closed.Store(true)
	return r.PipeReader.Close()
}

func (p *fakeProcess) Wait() error {
	<-p.done
	return nil
}

func (p *fakeProcess) Signal(sig process.ProcessSignal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	ignore := p.ignoreTerminate
	p.mu.Unlock()
	if !ignore {
		p.exit(143)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(137)
	return nil
}

func (p *fakeProcess) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *fakeProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) receivedSignals() []process.ProcessSignal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]process.ProcessSignal(nil), p.signals...)
}

// fakeExecutor hands out prepared processes keyed by executable.
type fakeExecutor struct {
	mu       sync.Mutex
	procs    map[string]*fakeProcess
	failures map[string]error
	hang     map[string]bool
	commands []process.Command
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		procs:    make(map[string]*fakeProcess),
		failures: make(map[string]error),
		hang:     make(map[string]bool),
	}
}

func (e *fakeExecutor) add(executable string, proc *fakeProcess) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.procs[executable] = proc
}

func (e *fakeExecutor) Execute(ctx context.Context, cmd process.Command) (procp.Process, error) {
	e.mu.Lock()
	e.commands = append(e.commands, cmd)
	proc := e.procs[cmd.Executable()]
	failure := e.failures[cmd.Executable()]
	hang := e.hang[cmd.Executable()]
	e.mu.Unlock()

	if hang {
		<-ctx.Done()
	}
	if failure != nil {
		return nil, failure
	}
	if proc == nil {
		return nil, errors.New("no such program")
	}
	return proc, nil
}

func (e *fakeExecutor) executed() []process.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]process.Command(nil), e.commands...)
}

type dispatchedLine struct {
	plugin string
	line   string
}

// recordingDispatcher remembers every line it is given.
type recordingDispatcher struct {
	mu    sync.Mutex
	lines []dispatchedLine
}

func (d *recordingDispatcher) Dispatch(plugin, line string) (protocol.Command, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, dispatchedLine{plugin: plugin, line: line})
	return protocol.UnknownCommand{Raw: line}, nil
}

func (d *recordingDispatcher) linesFor(plugin string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, l := range d.lines {
		if l.plugin == plugin {
			out = append(out, l.line)
		}
	}
	return out
}
