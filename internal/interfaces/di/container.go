package di

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"plughost.dev/cli/internal/application/dispatch"
	"plughost.dev/cli/internal/application/services"
	"plughost.dev/cli/internal/application/supervisor"
	"plughost.dev/cli/internal/config"
	procp "plughost.dev/cli/internal/core/ports/process"
	"plughost.dev/cli/internal/infrastructure/descriptor"
	"plughost.dev/cli/internal/infrastructure/logging"
	"plughost.dev/cli/internal/infrastructure/menu"
	"plughost.dev/cli/internal/infrastructure/process"
	"plughost.dev/cli/internal/infrastructure/watcher"
)

// Options overrides pieces of the container, mostly for tests.
type Options struct {
	// LogOutput receives host logs; defaults to stderr
	LogOutput io.Writer

	// Executor starts plugin processes; defaults to the OS executor
	Executor procp.Executor

	// ExecutableDir anchors the default plugin search path; defaults to
	// the directory of the running binary
	ExecutableDir string
}

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger hclog.Logger

	// Host collaborators
	Console *logging.ConsoleLogger
	MenuBar *menu.Bar

	Loader     *descriptor.Loader
	Dispatcher *dispatch.Dispatcher
	Supervisor *supervisor.Supervisor
	Host       *services.HostService
}

// NewContainer wires every component from cfg.
func NewContainer(cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	logger := logging.NewLogger(logging.Options{
		Level:  cfg.LogLevel,
		Debug:  cfg.Debug,
		Output: opts.LogOutput,
		JSON:   cfg.LogJSON,
	})

	executor := opts.Executor
	if executor == nil {
		executor = process.NewExecutor()
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Console: logging.NewConsoleLogger(logger, 0),
		MenuBar: menu.NewDefaultBar(),
		Loader:  descriptor.NewLoader(logger),
	}

	c.Dispatcher = dispatch.NewDispatcher(c.MenuBar, c.Console, logger)
	c.Supervisor = supervisor.NewSupervisor(executor, c.Dispatcher, logger, supervisor.Options{
		LaunchTimeout:   cfg.LaunchTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxLineBytes:    cfg.MaxLineBytes,
		QueueSize:       cfg.QueueSize,
	})
	c.Host = services.NewHostService(c.Loader, c.Supervisor, logger, services.HostOptions{
		PluginsDir: cfg.PluginsDir,
		SearchDirs: SearchDirs(opts.ExecutableDir),
		Watch:      cfg.Watch,
		NewWatcher: func(root string) (services.DescriptorEvents, error) {
			return watcher.NewDescriptorWatcher(root, logger, watcher.DefaultDebounce)
		},
	})

	logger.Debug("container initialized", "config", cfg.Describe())
	return c, nil
}

// SearchDirs lists the default plugin locations relative to the binary.
func SearchDirs(exeDir string) []string {
	if exeDir == "" {
		if exe, err := os.Executable(); err == nil {
			if resolved, err := filepath.EvalSymlinks(exe); err == nil {
				exe = resolved
			}
			exeDir = filepath.Dir(exe)
		}
	}
	if exeDir == "" {
		return nil
	}
	return descriptor.DefaultPluginDirs(exeDir)
}

// Shutdown stops every plugin, bounded by the configured shutdown timeout.
func (c *Container) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*c.Config.ShutdownTimeout)
	defer cancel()

	if err := c.Host.Stop(ctx); err != nil {
		c.Logger.Warn("plugin shutdown incomplete", "error", err)
		return err
	}
	c.Logger.Debug("plugin host stopped")
	return nil
}
