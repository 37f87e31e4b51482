package supervisor

import (
	"sync"
	"sync/atomic"
	"time"

	"plughost.dev/cli/internal/core/domain"
	procp "plughost.dev/cli/internal/core/ports/process"
	"plughost.dev/cli/internal/core/protocol"
)

// PluginHandle is the supervisor's record of one launched plugin.
type PluginHandle struct {
	id         string
	descriptor domain.PluginDescriptor

	mu        sync.RWMutex
	proc      procp.Process
	state     State
	reason    Reason
	exitCode  int
	startedAt time.Time
	stoppedAt time.Time

	// deliverMu serializes decoding and dispatch against unload so that
	// no line is dispatched once the handle has terminated.
	deliverMu sync.Mutex
	decoder   *protocol.LineDecoder

	pending   atomic.Int64
	delivered atomic.Int64

	stdinMu     sync.Mutex
	releaseOnce sync.Once

	// stop is closed when the handle is unloaded; exited is closed once
	// the process has been reaped.
	stop     chan struct{}
	stopOnce sync.Once
	exited   chan struct{}
}

func newHandle(id string, desc domain.PluginDescriptor, maxLineBytes int) *PluginHandle {
	return &PluginHandle{
		id:         id,
		descriptor: desc,
		state:      StateLaunching,
		exitCode:   -1,
		decoder:    protocol.NewLineDecoder(maxLineBytes),
		stop:       make(chan struct{}),
		exited:     make(chan struct{}),
	}
}

// ID returns the supervisor-assigned identifier.
func (h *PluginHandle) ID() string { return h.id }

// Descriptor returns the descriptor the handle was launched from.
func (h *PluginHandle) Descriptor() domain.PluginDescriptor { return h.descriptor }

// Name returns the plugin name.
func (h *PluginHandle) Name() string { return h.descriptor.Name }

// State returns the current lifecycle state.
func (h *PluginHandle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Info returns a snapshot of the handle.
func (h *PluginHandle) Info() HandleInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	info := HandleInfo{
		ID:             h.id,
		Name:           h.descriptor.Name,
		SourcePath:     h.descriptor.SourcePath,
		PID:            -1,
		State:          h.state,
		Reason:         h.reason,
		ExitCode:       h.exitCode,
		StartedAt:      h.startedAt,
		StoppedAt:      h.stoppedAt,
		BufferedBytes:  int(h.pending.Load()),
		LinesDelivered: h.delivered.Load(),
	}
	if h.proc != nil {
		info.PID = h.proc.PID()
	}
	return info
}

func (h *PluginHandle) markRunning(proc procp.Process, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.proc = proc
	h.state = StateRunning
	h.startedAt = now
}

// terminate moves the handle to StateTerminated. It reports false when the
// handle was already terminated; the first reason wins.
func (h *PluginHandle) terminate(reason Reason, exitCode int, now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateTerminated {
		return false
	}
	h.state = StateTerminated
	h.reason = reason
	h.exitCode = exitCode
	h.stoppedAt = now
	return true
}

func (h *PluginHandle) process() procp.Process {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.proc
}

// closeStdin closes the plugin's input; later Sends fail.
func (h *PluginHandle) closeStdin() {
	proc := h.process()
	if proc == nil {
		return
	}
	h.stdinMu.Lock()
	_ = proc.Stdin().Close()
	h.stdinMu.Unlock()
}

// releasePipes closes every pipe of the process. It runs once, on exit or
// on teardown, whichever comes first.
func (h *PluginHandle) releasePipes() {
	h.releaseOnce.Do(func() {
		proc := h.process()
		if proc == nil {
			return
		}
		h.closeStdin()
		_ = proc.Stdout().Close()
		_ = proc.Stderr().Close()
	})
}

func (h *PluginHandle) closeStop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// deliver decodes chunk and hands every completed line to fn. Nothing is
// delivered once the handle has left StateRunning.
func (h *PluginHandle) deliver(chunk []byte, fn func(line string)) error {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	if h.State() != StateRunning {
		return nil
	}

	lines, err := h.decoder.Feed(chunk)
	h.pending.Store(int64(h.decoder.Pending()))
	for _, line := range lines {
		fn(line)
		h.delivered.Add(1)
	}
	return err
}

// finish terminates the handle and discards any partial line, returning the
// number of bytes dropped.
func (h *PluginHandle) finish(reason Reason, exitCode int, now time.Time) (bool, int) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	if !h.terminate(reason, exitCode, now) {
		return false, 0
	}
	dropped := h.decoder.Reset()
	h.pending.Store(0)
	return true, dropped
}
