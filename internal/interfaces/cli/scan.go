package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"plughost.dev/cli/internal/config"
	"plughost.dev/cli/internal/core/domain"
	"plughost.dev/cli/internal/infrastructure/descriptor"
	"plughost.dev/cli/internal/infrastructure/logging"
	"plughost.dev/cli/internal/interfaces/di"
)

// NewScanCommand creates the scan command
func NewScanCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [dir]",
		Short: "List the plugin descriptors found in a directory",
		Long: `Recursively scan a directory for *.plugin descriptors and print what would
be launched, without starting anything.

Without an argument the configured plugins_dir is used, and when that is
unset the default locations next to the executable are searched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global, nil)
			if err != nil {
				return err
			}

			root := cfg.PluginsDir
			if len(args) == 1 {
				root = args[0]
			}
			if root == "" {
				dir, ok := descriptor.ResolvePluginDir(di.SearchDirs(""))
				if !ok {
					return fmt.Errorf("no plugin directory found; pass one or set %s", config.FieldPluginsDir)
				}
				root = dir
			}

			logger := logging.NewLogger(logging.Options{
				Level:  cfg.LogLevel,
				Debug:  cfg.Debug,
				Output: cmd.ErrOrStderr(),
				JSON:   cfg.LogJSON,
			})

			descs, errs := descriptor.NewLoader(logger).Collect(cmd.Context(), root)
			printDescriptors(cmd.OutOrStdout(), root, descs, errs)
			return nil
		},
	}
}

func printDescriptors(w io.Writer, root string, descs []domain.PluginDescriptor, errs []error) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Plugin descriptors in %s", root)))

	if len(descs) == 0 && len(errs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  none found"))
		return
	}

	if len(descs) > 0 {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-20s │ %-24s │ %-20s │ %s", "NAME", "EXECUTABLE", "ARGUMENTS", "DESCRIPTOR")))
	}
	for _, d := range descs {
		exe := d.ExecutablePath
		if !d.Launchable() {
			exe = "(no executable)"
		}
		fmt.Fprintf(w, "%-20s │ %-24s │ %-20s │ %s\n",
			truncateString(d.Name, 20),
			truncateString(exe, 24),
			truncateString(d.ArgumentLine, 20),
			d.SourcePath)
	}

	for _, err := range errs {
		fmt.Fprintf(w, "%s %v\n", failStyle.Render("✗"), err)
	}
}
