package dispatch

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"plughost.dev/cli/internal/core/ports"
	"plughost.dev/cli/internal/core/protocol"
	"plughost.dev/cli/internal/core/shortcut"
)

// DispatchError reports a command that could not be applied as asked.
type DispatchError struct {
	Plugin  string
	Command string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("plugin %s: applying %s: %v", e.Plugin, e.Command, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Dispatcher interprets plugin lines and applies them to the host.
// It is driven from a single delivery goroutine and keeps no locks.
type Dispatcher struct {
	host    ports.MenuHost
	console ports.Console
	logger  hclog.Logger
}

// NewDispatcher creates a dispatcher writing to host and console.
func NewDispatcher(host ports.MenuHost, console ports.Console, logger hclog.Logger) *Dispatcher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Dispatcher{
		host:    host,
		console: console,
		logger:  logger.Named("dispatch"),
	}
}

// Dispatch parses line and applies the resulting command. Malformed lines
// are logged at debug level and returned as *protocol.ProtocolError.
func (d *Dispatcher) Dispatch(plugin, line string) (protocol.Command, error) {
	cmd, err := protocol.Parse(line)
	if err != nil {
		d.logger.Debug("ignoring malformed plugin command", "plugin", plugin, "error", err)
		return nil, err
	}
	return cmd, d.Apply(plugin, cmd)
}

// Apply performs the effect of cmd. Only AddMenuItem touches host state.
func (d *Dispatcher) Apply(plugin string, cmd protocol.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DispatchError{Plugin: plugin, Command: cmd.String(), Err: fmt.Errorf("host panicked: %v", r)}
			d.logger.Error("host collaborator panicked", "plugin", plugin, "panic", r)
		}
	}()

	switch c := cmd.(type) {
	case protocol.LogCommand:
		if d.console != nil {
			d.console.PluginLog(plugin, c.Text)
		}
		return nil
	case protocol.AddMenuItemCommand:
		return d.addMenuItem(plugin, c)
	case protocol.UnknownCommand:
		if c.Raw != "" {
			d.logger.Debug("ignoring unknown plugin command", "plugin", plugin, "line", c.Raw)
		}
		return nil
	default:
		return nil
	}
}

func (d *Dispatcher) addMenuItem(plugin string, cmd protocol.AddMenuItemCommand) error {
	if d.host == nil {
		return &DispatchError{Plugin: plugin, Command: cmd.String(), Err: errors.New("no menu host attached")}
	}

	menu, err := d.host.FindOrCreateMenu(cmd.Menu)
	if err != nil {
		derr := &DispatchError{Plugin: plugin, Command: cmd.String(), Err: err}
		d.logger.Warn("cannot resolve menu", "plugin", plugin, "error", derr)
		return derr
	}

	spec := ports.ActionSpec{
		ID:    cmd.Action.ID,
		Title: cmd.Action.Title,
		After: cmd.After,
	}

	if cmd.Shortcut != "" {
		normalized, err := shortcut.Normalize(cmd.Shortcut)
		if err != nil {
			d.logger.Warn("dropping invalid shortcut", "plugin", plugin, "action", spec.ID, "shortcut", cmd.Shortcut, "error", err)
		} else {
			spec.Shortcut = normalized
		}
	}

	action, err := d.host.InsertAction(menu, spec)
	if errors.Is(err, ports.ErrAnchorNotFound) {
		// Missing anchor: append to the end of the menu instead.
		d.logger.Warn("anchor not found, appending action",
			"plugin", plugin,
			"error", &DispatchError{Plugin: plugin, Command: cmd.String(), Err: err})
		spec.After = ""
		action, err = d.host.InsertAction(menu, spec)
	}
	if err != nil {
		if pruner, ok := d.host.(ports.MenuPruner); ok {
			pruner.PruneEmptyMenus(cmd.Menu)
		}
		derr := &DispatchError{Plugin: plugin, Command: cmd.String(), Err: err}
		d.logger.Warn("cannot insert action", "plugin", plugin, "error", derr)
		return derr
	}

	d.logger.Debug("menu action added",
		"plugin", plugin,
		"menu", menu.MenuID(),
		"action", action.ActionID(),
		"shortcut", spec.Shortcut)
	return nil
}
