package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"plughost.dev/cli/internal/config"
)

// NewConfigCommand creates the config command
func NewConfigCommand(global *GlobalFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
		Long: `Configuration is merged from built-in defaults, a YAML or JSON file,
PLUGHOST_* environment variables and command line flags, each overriding
the previous one.`,
	}

	configCmd.AddCommand(NewConfigShowCommand(global))
	configCmd.AddCommand(NewConfigInitCommand(global))

	return configCmd
}

// NewConfigShowCommand creates the show subcommand
func NewConfigShowCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Current Configuration:"))
			for _, line := range cfg.Describe() {
				fmt.Fprintf(out, "  %s\n", line)
			}
			return nil
		},
	}
}

// NewConfigInitCommand creates the init subcommand
func NewConfigInitCommand(global *GlobalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global, nil)
			if err != nil {
				return err
			}

			path := config.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}

			if err := config.Save(cfg, path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
