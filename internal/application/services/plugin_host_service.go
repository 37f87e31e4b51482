package services

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"

	"plughost.dev/cli/internal/application/supervisor"
	"plughost.dev/cli/internal/core/domain"
	"plughost.dev/cli/internal/infrastructure/descriptor"
	"plughost.dev/cli/internal/infrastructure/watcher"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("plugin host already started")

// DescriptorSource finds and reads plugin descriptors.
type DescriptorSource interface {
	Scan(ctx context.Context, root string) iter.Seq2[domain.PluginDescriptor, error]
	Load(path string) (domain.PluginDescriptor, error)
}

// PluginSupervisor is the part of the supervisor the host service drives.
type PluginSupervisor interface {
	Launch(ctx context.Context, desc domain.PluginDescriptor) (*supervisor.PluginHandle, error)
	LaunchAll(ctx context.Context, seq iter.Seq2[domain.PluginDescriptor, error]) supervisor.LaunchReport
	Run(ctx context.Context) error
	Unload(id string) error
	Shutdown(ctx context.Context) error
	List() []supervisor.HandleInfo
	FindBySource(path string) []supervisor.HandleInfo
}

// DescriptorEvents is a running descriptor watcher.
type DescriptorEvents interface {
	Events() <-chan watcher.Event
	Close() error
}

// HostOptions configures the host service.
type HostOptions struct {
	// PluginsDir is scanned when set; otherwise the first existing entry of
	// SearchDirs is used
	PluginsDir string
	SearchDirs []string

	// Watch relaunches descriptors that change while the host runs
	Watch      bool
	NewWatcher func(root string) (DescriptorEvents, error)
}

// HostService ties descriptor discovery to the supervisor and keeps the
// delivery loop running.
type HostService struct {
	loader     DescriptorSource
	supervisor PluginSupervisor
	logger     hclog.Logger
	opts       HostOptions

	mu      sync.Mutex
	root    string
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	watcher DescriptorEvents
}

// NewHostService creates a host service.
func NewHostService(loader DescriptorSource, sup PluginSupervisor, logger hclog.Logger, opts HostOptions) *HostService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &HostService{
		loader:     loader,
		supervisor: sup,
		logger:     logger.Named("host"),
		opts:       opts,
	}
}

// Start resolves the plugin directory, launches every descriptor in it and
// begins delivering plugin output. Launch failures are reported, not
// returned.
func (s *HostService) Start(ctx context.Context) (supervisor.LaunchReport, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return supervisor.LaunchReport{}, ErrAlreadyStarted
	}
	s.started = true
	s.root = s.resolveRoot()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		if err := s.supervisor.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("delivery loop stopped", "error", err)
		}
	}()

	report := s.supervisor.LaunchAll(ctx, s.loader.Scan(ctx, s.root))

	if s.opts.Watch && s.root != "" && s.opts.NewWatcher != nil {
		w, err := s.opts.NewWatcher(s.root)
		if err != nil {
			s.logger.Warn("cannot watch plugin directory", "dir", s.root, "error", err)
		} else {
			s.mu.Lock()
			s.watcher = w
			s.mu.Unlock()
			go s.watch(runCtx, w)
		}
	}

	return report, nil
}

// resolveRoot returns the plugin directory as an absolute path, so source
// paths from scans and from watcher events compare equal.
func (s *HostService) resolveRoot() string {
	dir := s.opts.PluginsDir
	if dir == "" {
		found, ok := descriptor.ResolvePluginDir(s.opts.SearchDirs)
		if !ok {
			s.logger.Warn("no plugin directory found", "searched", s.opts.SearchDirs)
			return ""
		}
		dir = found
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		s.logger.Warn("cannot make plugin directory absolute", "dir", dir, "error", err)
		return filepath.Clean(dir)
	}
	return abs
}

// Root returns the plugin directory in use.
func (s *HostService) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Plugins returns a snapshot of every known plugin.
func (s *HostService) Plugins() []supervisor.HandleInfo {
	return s.supervisor.List()
}

// Rescan launches descriptors that are not currently running. Handles of
// plugins that have exited are replaced.
func (s *HostService) Rescan(ctx context.Context) supervisor.LaunchReport {
	root := s.Root()
	if root == "" {
		return supervisor.LaunchReport{}
	}
	s.logger.Info("rescanning plugin directory", "dir", root)
	return s.supervisor.LaunchAll(ctx, s.notRunning(s.loader.Scan(ctx, root)))
}

// notRunning filters seq down to descriptors without a live handle.
func (s *HostService) notRunning(seq iter.Seq2[domain.PluginDescriptor, error]) iter.Seq2[domain.PluginDescriptor, error] {
	return func(yield func(domain.PluginDescriptor, error) bool) {
		for desc, err := range seq {
			if err == nil && !s.replaceable(desc.SourcePath) {
				continue
			}
			if !yield(desc, err) {
				return
			}
		}
	}
}

// replaceable reports whether nothing live runs from path, dropping the
// records of handles that have terminated.
func (s *HostService) replaceable(path string) bool {
	for _, info := range s.supervisor.FindBySource(path) {
		if info.State != supervisor.StateTerminated {
			return false
		}
		_ = s.supervisor.Unload(info.ID)
	}
	return true
}

// Reload restarts the plugin described by the descriptor at path.
func (s *HostService) Reload(ctx context.Context, path string) error {
	path = absPath(path)
	s.unloadSource(path)

	desc, err := s.loader.Load(path)
	if err != nil {
		return err
	}
	_, err = s.supervisor.Launch(ctx, desc)
	return err
}

func (s *HostService) unloadSource(path string) {
	for _, info := range s.supervisor.FindBySource(absPath(path)) {
		if err := s.supervisor.Unload(info.ID); err != nil {
			s.logger.Warn("cannot unload plugin", "plugin", info.Name, "error", err)
		}
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (s *HostService) watch(ctx context.Context, w DescriptorEvents) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			switch ev.Op {
			case watcher.OpRemoved:
				s.logger.Info("descriptor removed", "path", ev.Path)
				s.unloadSource(ev.Path)
			default:
				s.logger.Info("descriptor changed", "path", ev.Path)
				if err := s.Reload(ctx, ev.Path); err != nil {
					s.logger.Warn("cannot reload plugin", "path", ev.Path, "error", err)
				}
			}
		}
	}
}

// Stop unloads every plugin and stops delivery.
func (s *HostService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	w, cancel, done := s.watcher, s.cancel, s.done
	s.watcher = nil
	s.mu.Unlock()

	var errs []error
	if w != nil {
		if err := w.Close(); err != nil && !errors.Is(err, watcher.ErrWatcherClosed) {
			errs = append(errs, err)
		}
	}

	errs = append(errs, s.supervisor.Shutdown(ctx))
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
