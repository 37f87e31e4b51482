package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"plughost.dev/cli/internal/application/supervisor"
	"plughost.dev/cli/internal/config"
	"plughost.dev/cli/internal/infrastructure/menu"
	"plughost.dev/cli/internal/interfaces/di"
)

// RunFlags holds flags for the run command
type RunFlags struct {
	PluginsDir      string
	Watch           bool
	Dashboard       bool
	ShowMenu        bool
	LaunchTimeout   time.Duration
	ShutdownTimeout time.Duration
	RefreshRate     time.Duration
}

var runFieldFlags = map[string]string{
	"plugins-dir":      config.FieldPluginsDir,
	"watch":            config.FieldWatch,
	"launch-timeout":   config.FieldLaunchTimeout,
	"shutdown-timeout": config.FieldShutdownTimeout,
}

// NewRunCommand creates the run command
func NewRunCommand(global *GlobalFlags) *cobra.Command {
	flags := &RunFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch all plugins and apply their commands until interrupted",
		Long: `Scan the plugin directory, launch every plugin found and keep applying the
commands they write until the host is interrupted (Ctrl+C).

Examples:
  plughost run
  plughost run --plugins-dir ./plugins --watch
  plughost run --dashboard`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd, global, flags)
		},
	}

	cmd.Flags().StringVar(&flags.PluginsDir, "plugins-dir", "", "Plugin directory (default: search next to the executable)")
	cmd.Flags().BoolVar(&flags.Watch, "watch", false, "Relaunch plugins whose descriptors change")
	cmd.Flags().BoolVar(&flags.Dashboard, "dashboard", false, "Show a live terminal dashboard")
	cmd.Flags().BoolVar(&flags.ShowMenu, "show-menu", false, "Print the menu tree on exit")
	cmd.Flags().DurationVar(&flags.LaunchTimeout, "launch-timeout", 5*time.Second, "How long to wait for a plugin to start")
	cmd.Flags().DurationVar(&flags.ShutdownTimeout, "shutdown-timeout", 3*time.Second, "How long a plugin gets to exit before it is killed")
	cmd.Flags().DurationVar(&flags.RefreshRate, "refresh", 500*time.Millisecond, "Dashboard refresh rate")

	return cmd
}

func runHost(cmd *cobra.Command, global *GlobalFlags, flags *RunFlags) error {
	cfg, err := loadConfig(cmd, global, runFieldFlags)
	if err != nil {
		return err
	}

	opts := di.Options{LogOutput: cmd.ErrOrStderr()}
	if flags.Dashboard {
		// The dashboard owns the terminal; plugin log lines are shown in it.
		opts.LogOutput = io.Discard
	}

	container, err := di.NewContainer(cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	report, err := container.Host.Start(ctx)
	if err != nil {
		return err
	}
	if !flags.Dashboard {
		printLaunchReport(cmd.ErrOrStderr(), container.Host.Root(), report)
	}

	if flags.Dashboard {
		err = runDashboard(ctx, container, flags.RefreshRate)
	} else {
		<-ctx.Done()
	}

	if shutdownErr := container.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	if flags.ShowMenu {
		fmt.Fprintln(cmd.OutOrStdout(), container.MenuBar.Render(menu.RenderOptions{ShowIDs: true}))
	}
	return err
}

func printLaunchReport(w io.Writer, root string, report supervisor.LaunchReport) {
	if root == "" {
		fmt.Fprintln(w, "No plugin directory found")
		return
	}

	fmt.Fprintf(w, "Plugins from %s: %d running, %d failed\n", root, len(report.Launched), len(report.Failed)+len(report.ParseErrors))
	for _, info := range report.Launched {
		fmt.Fprintf(w, "  %s %s (pid %d)\n", okStyle.Render("✓"), info.Name, info.PID)
	}
	for _, err := range report.ParseErrors {
		fmt.Fprintf(w, "  %s %v\n", failStyle.Render("✗"), err)
	}
	for _, err := range report.Failed {
		fmt.Fprintf(w, "  %s %v\n", failStyle.Render("✗"), err)
	}
}
