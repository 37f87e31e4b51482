package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"plughost.dev/cli/internal/core/domain"
	"plughost.dev/cli/internal/core/domain/process"
	procp "plughost.dev/cli/internal/core/ports/process"
	"plughost.dev/cli/internal/core/protocol"
)

const readChunkSize = 4096

// LineDispatcher receives every complete line a plugin writes.
type LineDispatcher interface {
	Dispatch(plugin, line string) (protocol.Command, error)
}

// Options tunes the supervisor. Zero values fall back to DefaultOptions.
type Options struct {
	LaunchTimeout         time.Duration
	ShutdownTimeout       time.Duration
	MaxLineBytes          int
	QueueSize             int
	MaxConcurrentLaunches int
}

// DefaultOptions returns the standard supervisor settings.
func DefaultOptions() Options {
	return Options{
		LaunchTimeout:         5 * time.Second,
		ShutdownTimeout:       3 * time.Second,
		MaxLineBytes:          protocol.DefaultMaxLineBytes,
		QueueSize:             64,
		MaxConcurrentLaunches: 4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LaunchTimeout <= 0 {
		o.LaunchTimeout = d.LaunchTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = d.ShutdownTimeout
	}
	if o.MaxLineBytes == 0 {
		o.MaxLineBytes = d.MaxLineBytes
	}
	if o.QueueSize <= 0 {
		o.QueueSize = d.QueueSize
	}
	if o.MaxConcurrentLaunches <= 0 {
		o.MaxConcurrentLaunches = d.MaxConcurrentLaunches
	}
	return o
}

// event carries either a stdout chunk or the exit of a plugin.
type event struct {
	id       string
	data     []byte
	exited   bool
	exitCode int
}

// LaunchReport summarizes a LaunchAll call.
type LaunchReport struct {
	Launched    []HandleInfo
	Failed      []error
	ParseErrors []error
}

// Err joins every launch and parse failure, or returns nil.
func (r LaunchReport) Err() error {
	return errors.Join(append(append([]error(nil), r.ParseErrors...), r.Failed...)...)
}

// Supervisor launches plugin processes, keeps the registry of handles and
// routes their output to a LineDispatcher. Output is decoded and dispatched
// only on the goroutine running Run.
type Supervisor struct {
	executor   procp.Executor
	dispatcher LineDispatcher
	logger     hclog.Logger
	opts       Options

	mu      sync.RWMutex
	handles map[string]*PluginHandle
	order   []string

	events  chan event
	closed  atomic.Bool
	readers sync.WaitGroup
}

// NewSupervisor creates a supervisor that starts processes through executor
// and hands their lines to dispatcher.
func NewSupervisor(executor procp.Executor, dispatcher LineDispatcher, logger hclog.Logger, opts Options) *Supervisor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	opts = opts.withDefaults()

	return &Supervisor{
		executor:   executor,
		dispatcher: dispatcher,
		logger:     logger.Named("supervisor"),
		opts:       opts,
		handles:    make(map[string]*PluginHandle),
		events:     make(chan event, opts.QueueSize),
	}
}

// Options returns the effective settings.
func (s *Supervisor) Options() Options {
	return s.opts
}

// Launch starts the plugin described by desc. It blocks for at most the
// launch timeout. On failure nothing is registered and a *LaunchError is
// returned.
func (s *Supervisor) Launch(ctx context.Context, desc domain.PluginDescriptor) (*PluginHandle, error) {
	logger := s.logger.With("plugin", desc.Name)

	if s.closed.Load() {
		return nil, &LaunchError{Plugin: desc.Name, SourcePath: desc.SourcePath, Err: ErrClosed}
	}

	cmd, err := process.NewCommand(desc.ExecutablePath, desc.Arguments(), desc.WorkingDirectory)
	if err != nil {
		lerr := &LaunchError{Plugin: desc.Name, SourcePath: desc.SourcePath, Err: err}
		logger.Warn("refusing to launch plugin", "error", lerr)
		return nil, lerr
	}

	h := newHandle(uuid.NewString(), desc, s.opts.MaxLineBytes)
	logger.Debug("launching plugin", "command", cmd.String(), "dir", cmd.WorkingDir())

	proc, err := s.execute(ctx, cmd)
	if err != nil {
		h.terminate(ReasonLaunchFailed, -1, time.Now())
		lerr := &LaunchError{Plugin: desc.Name, SourcePath: desc.SourcePath, Err: err}
		logger.Error("plugin failed to start", "error", lerr)
		return nil, lerr
	}

	h.markRunning(proc, time.Now())
	go func() {
		_ = proc.Wait()
		close(h.exited)
	}()

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		s.teardown(h)
		return nil, &LaunchError{Plugin: desc.Name, SourcePath: desc.SourcePath, Err: ErrClosed}
	}
	s.handles[h.id] = h
	s.order = append(s.order, h.id)
	s.mu.Unlock()

	s.readers.Add(2)
	go s.pumpStdout(h, proc)
	go s.pumpStderr(h, proc)

	logger.Info("plugin started", "id", h.id, "pid", proc.PID())
	return h, nil
}

// execute runs the executor bounded by the launch timeout. A process that
// starts after the deadline is killed.
func (s *Supervisor) execute(ctx context.Context, cmd process.Command) (procp.Process, error) {
	launchCtx, cancel := context.WithTimeout(ctx, s.opts.LaunchTimeout)
	defer cancel()

	type result struct {
		proc procp.Process
		err  error
	}
	results := make(chan result, 1)
	go func() {
		proc, err := s.executor.Execute(launchCtx, cmd)
		results <- result{proc: proc, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, r.err
		}
		return r.proc, nil
	case <-launchCtx.Done():
		go func() {
			if r := <-results; r.proc != nil {
				s.logger.Debug("killing plugin that started late", "command", cmd.String())
				discard(r.proc)
			}
		}()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrLaunchTimeout, s.opts.LaunchTimeout)
	}
}

// LaunchAll launches every descriptor in seq. A failing plugin is recorded
// in the report and never prevents the others from starting.
func (s *Supervisor) LaunchAll(ctx context.Context, seq iter.Seq2[domain.PluginDescriptor, error]) LaunchReport {
	var (
		report LaunchReport
		descs  []domain.PluginDescriptor
	)
	for desc, err := range seq {
		if err != nil {
			report.ParseErrors = append(report.ParseErrors, err)
			continue
		}
		descs = append(descs, desc)
	}

	handles := make([]*PluginHandle, len(descs))
	errs := make([]error, len(descs))

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrentLaunches)
	for i, desc := range descs {
		g.Go(func() error {
			handles[i], errs[i] = s.Launch(ctx, desc)
			return nil
		})
	}
	_ = g.Wait()

	for i := range descs {
		if errs[i] != nil {
			report.Failed = append(report.Failed, errs[i])
			continue
		}
		report.Launched = append(report.Launched, handles[i].Info())
	}

	s.logger.Info("plugins launched",
		"launched", len(report.Launched),
		"failed", len(report.Failed),
		"unreadable", len(report.ParseErrors))
	return report
}

// Run delivers plugin output until ctx is done. Exactly one Run should be
// active; plugin readers block while nobody is delivering.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

func (s *Supervisor) handleEvent(ev event) {
	h := s.lookup(ev.id)
	if h == nil {
		return
	}

	if ev.exited {
		changed, dropped := h.finish(ReasonExited, ev.exitCode, time.Now())
		h.releasePipes()
		if !changed {
			return
		}
		if dropped > 0 {
			s.logger.Debug("discarding unterminated output", "plugin", h.Name(), "bytes", dropped)
		}
		s.logger.Info("plugin exited", "plugin", h.Name(), "id", h.id, "exit_code", ev.exitCode)
		return
	}

	err := h.deliver(ev.data, func(line string) {
		if s.dispatcher == nil {
			return
		}
		_, _ = s.dispatcher.Dispatch(h.Name(), line)
	})
	if err != nil {
		s.logger.Warn("plugin output discarded", "plugin", h.Name(), "error", err)
	}
}

func (s *Supervisor) pumpStdout(h *PluginHandle, proc procp.Process) {
	defer s.readers.Done()

	stdout := proc.Stdout()
	buf := make([]byte, readChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if !s.post(h, event{id: h.id, data: chunk}) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				s.logger.Debug("plugin stdout read failed", "plugin", h.Name(), "error", err)
			}
			break
		}
	}

	select {
	case <-h.exited:
	case <-h.stop:
		return
	}
	s.post(h, event{id: h.id, exited: true, exitCode: proc.ExitCode()})
}

func (s *Supervisor) pumpStderr(h *PluginHandle, proc procp.Process) {
	defer s.readers.Done()

	scanner := bufio.NewScanner(proc.Stderr())
	scanner.Buffer(make([]byte, 0, readChunkSize), max(s.opts.MaxLineBytes, readChunkSize))
	for scanner.Scan() {
		s.logger.Debug("plugin stderr", "plugin", h.Name(), "line", scanner.Text())
	}
}

func (s *Supervisor) post(h *PluginHandle, ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-h.stop:
		return false
	}
}

// Unload terminates the plugin with the given ID and removes it from the
// registry. Any partial line it had written is discarded.
func (s *Supervisor) Unload(id string) error {
	s.mu.Lock()
	h, ok := s.handles[id]
	if ok {
		s.remove(id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, id)
	}
	return s.teardown(h)
}

// remove drops id from the registry; s.mu must be held.
func (s *Supervisor) remove(id string) {
	delete(s.handles, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Supervisor) teardown(h *PluginHandle) error {
	changed, dropped := h.finish(ReasonUnloaded, -1, time.Now())
	h.closeStop()
	if !changed {
		h.releasePipes()
		return nil
	}
	if dropped > 0 {
		s.logger.Debug("discarding unterminated output", "plugin", h.Name(), "bytes", dropped)
	}

	proc := h.process()
	if proc == nil {
		return nil
	}

	h.closeStdin()

	err := s.stopProcess(h, proc)
	h.releasePipes()

	h.mu.Lock()
	h.exitCode = proc.ExitCode()
	h.mu.Unlock()

	if err != nil {
		s.logger.Warn("plugin did not stop cleanly", "plugin", h.Name(), "id", h.id, "error", err)
		return err
	}
	s.logger.Info("plugin unloaded", "plugin", h.Name(), "id", h.id)
	return nil
}

// stopProcess asks the process to terminate and kills it when it is still
// alive after the shutdown timeout.
func (s *Supervisor) stopProcess(h *PluginHandle, proc procp.Process) error {
	if err := proc.Signal(process.SignalTerminate); err == nil {
		timer := time.NewTimer(s.opts.ShutdownTimeout)
		defer timer.Stop()
		select {
		case <-h.exited:
			return nil
		case <-timer.C:
			s.logger.Debug("plugin ignored terminate, killing", "plugin", h.Name())
		}
	}

	select {
	case <-h.exited:
		return nil
	default:
	}

	if err := proc.Kill(); err != nil {
		select {
		case <-h.exited:
			return nil
		default:
			return fmt.Errorf("kill plugin %s: %w", h.Name(), err)
		}
	}

	timer := time.NewTimer(s.opts.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-h.exited:
		return nil
	case <-timer.C:
		return fmt.Errorf("plugin %s still running after kill", h.Name())
	}
}

// Shutdown unloads every plugin. Further launches fail with ErrClosed.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	handles := make([]*PluginHandle, 0, len(s.order))
	for _, id := range s.order {
		handles = append(handles, s.handles[id])
	}
	s.handles = make(map[string]*PluginHandle)
	s.order = nil
	s.mu.Unlock()

	s.logger.Info("shutting down plugins", "count", len(handles))

	errs := make([]error, len(handles))
	var g errgroup.Group
	for i, h := range handles {
		g.Go(func() error {
			errs[i] = s.teardown(h)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		s.readers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return errors.Join(errs...)
	case <-ctx.Done():
		for _, h := range handles {
			if proc := h.process(); proc != nil && proc.IsRunning() {
				_ = proc.Kill()
			}
		}
		return ctx.Err()
	}
}

// Send writes line, newline terminated, to the plugin's standard input.
func (s *Supervisor) Send(id, line string) error {
	h := s.lookup(id)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, id)
	}
	if h.State() != StateRunning {
		return fmt.Errorf("%w: %s", ErrNotRunning, h.Name())
	}

	h.stdinMu.Lock()
	defer h.stdinMu.Unlock()

	if _, err := io.WriteString(h.process().Stdin(), strings.TrimRight(line, "\r\n")+"\n"); err != nil {
		return fmt.Errorf("write to plugin %s: %w", h.Name(), err)
	}
	return nil
}

// List returns snapshots of every registered handle in launch order.
func (s *Supervisor) List() []HandleInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]HandleInfo, 0, len(s.order))
	for _, id := range s.order {
		infos = append(infos, s.handles[id].Info())
	}
	return infos
}

// Get returns the snapshot of one handle.
func (s *Supervisor) Get(id string) (HandleInfo, bool) {
	h := s.lookup(id)
	if h == nil {
		return HandleInfo{}, false
	}
	return h.Info(), true
}

// FindBySource returns the handles launched from the descriptor at path.
func (s *Supervisor) FindBySource(path string) []HandleInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []HandleInfo
	for _, id := range s.order {
		if h := s.handles[id]; h.descriptor.SourcePath == path {
			infos = append(infos, h.Info())
		}
	}
	return infos
}

func (s *Supervisor) lookup(id string) *PluginHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handles[id]
}

// discard kills a process nobody will supervise and releases its pipes.
func discard(proc procp.Process) {
	_ = proc.Kill()
	_ = proc.Stdin().Close()
	_ = proc.Stdout().Close()
	_ = proc.Stderr().Close()
}
