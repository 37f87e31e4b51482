package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"plughost.dev/cli/internal/config"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// GlobalFlags holds the persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
	Debug      bool
	LogLevel   string
	LogJSON    bool
}

// globalFieldFlags maps persistent flag names to config fields
var globalFieldFlags = map[string]string{
	"debug":     config.FieldDebug,
	"log-level": config.FieldLogLevel,
	"log-json":  config.FieldLogJSON,
}

// NewRootCommand creates the plughost command tree
func NewRootCommand() *cobra.Command {
	global := &GlobalFlags{}

	rootCmd := &cobra.Command{
		Use:   "plughost",
		Short: "Host for external line-protocol plugins",
		Long: `plughost discovers plugin descriptors (*.plugin), launches each plugin as a
child process and applies the commands it writes to standard output to a
menu model: "#text" lines are logged and AddMenuItem lines add actions.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().StringVar(&global.ConfigPath, "config", "",
		fmt.Sprintf("Config file path (default $%s or ./%s)", config.EnvConfigPath, config.DefaultFileName))
	rootCmd.PersistentFlags().BoolVar(&global.Debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&global.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&global.LogJSON, "log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(NewRunCommand(global))
	rootCmd.AddCommand(NewScanCommand(global))
	rootCmd.AddCommand(NewParseCommand(global))
	rootCmd.AddCommand(NewConfigCommand(global))

	return rootCmd
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// loadConfig merges the configuration sources with every flag the user set
// explicitly. fieldFlags maps command-local flag names to config fields.
func loadConfig(cmd *cobra.Command, global *GlobalFlags, fieldFlags map[string]string) (*config.Config, error) {
	overrides := make(map[string]interface{})

	collect := func(flags *pflag.FlagSet, mapping map[string]string) {
		for name, field := range mapping {
			if f := flags.Lookup(name); f != nil && f.Changed {
				overrides[field] = f.Value.String()
			}
		}
	}
	collect(cmd.Flags(), globalFieldFlags)
	collect(cmd.Flags(), fieldFlags)

	cfg, err := config.Load(config.LoadOptions{Path: global.ConfigPath, Overrides: overrides})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs the command tree and exits non-zero on failure.
func Execute(ctx context.Context) {
	rootCmd := NewRootCommand()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
