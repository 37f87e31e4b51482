package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"plughost.dev/cli/internal/application/dispatch"
	"plughost.dev/cli/internal/core/protocol"
	"plughost.dev/cli/internal/infrastructure/logging"
	"plughost.dev/cli/internal/infrastructure/menu"
)

// ParseFlags holds flags for the parse command
type ParseFlags struct {
	Plugin  string
	ShowIDs bool
	NoMenu  bool
}

// NewParseCommand creates the parse command
func NewParseCommand(global *GlobalFlags) *cobra.Command {
	flags := &ParseFlags{}

	cmd := &cobra.Command{
		Use:   "parse [line...]",
		Short: "Apply plugin protocol lines to the default menu and show the result",
		Long: `Interpret plugin output without launching anything. Each argument is one
line; with no arguments lines are read from standard input, where a final
line without a newline is ignored just as it is for a running plugin.

Examples:
  plughost parse '#hello' 'AddMenuItem,menu_Edit(&Edit)\editActionReIndent(Re-Indent),after#editActionUnindent,Ctrl+Alt+I'
  python3 indentation.py | plughost parse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, global, flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.Plugin, "plugin", "parse", "Plugin name used in log output")
	cmd.Flags().BoolVar(&flags.ShowIDs, "ids", false, "Show menu and action IDs")
	cmd.Flags().BoolVar(&flags.NoMenu, "no-menu", false, "Do not print the resulting menu tree")

	return cmd
}

func runParse(cmd *cobra.Command, global *GlobalFlags, flags *ParseFlags, args []string) error {
	cfg, err := loadConfig(cmd, global, nil)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Options{
		Level:  cfg.LogLevel,
		Debug:  cfg.Debug,
		Output: cmd.ErrOrStderr(),
		JSON:   cfg.LogJSON,
	})

	bar := menu.NewDefaultBar()
	dispatcher := dispatch.NewDispatcher(bar, logging.NewConsoleLogger(logger, 0), logger)
	out := cmd.OutOrStdout()

	apply := func(line string) {
		command, err := dispatcher.Dispatch(flags.Plugin, line)
		switch {
		case command == nil:
			fmt.Fprintf(out, "%s %v\n", failStyle.Render("malformed"), err)
		case err != nil:
			fmt.Fprintf(out, "%s %s: %v\n", warnStyle.Render(command.Kind().String()), command, err)
		default:
			fmt.Fprintf(out, "%s %s\n", okStyle.Render(command.Kind().String()), command)
		}
	}

	if len(args) > 0 {
		for _, line := range args {
			apply(line)
		}
	} else if err := decodeLines(cmd.InOrStdin(), cfg.MaxLineBytes, apply); err != nil {
		return err
	}

	if !flags.NoMenu {
		fmt.Fprintln(out)
		fmt.Fprintln(out, bar.Render(menu.RenderOptions{ShowIDs: flags.ShowIDs}))
	}
	return nil
}

// decodeLines frames r the way plugin output is framed and calls fn for
// every complete line.
func decodeLines(r io.Reader, maxLineBytes int, fn func(string)) error {
	decoder := protocol.NewLineDecoder(maxLineBytes)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			lines, ferr := decoder.Feed(buf[:n])
			for _, line := range lines {
				fn(line)
			}
			if ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
}
