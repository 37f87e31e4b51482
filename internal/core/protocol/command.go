package protocol

import (
	"fmt"
	"strings"

	"plughost.dev/cli/internal/core/ports"
)

// Kind identifies the variant of a Command.
type Kind int

const (
	KindUnknown Kind = iota
	KindLog
	KindAddMenuItem
)

func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindAddMenuItem:
		return "add-menu-item"
	default:
		return "unknown"
	}
}

// Command is one parsed plugin line, ready to be applied.
type Command interface {
	Kind() Kind
	String() string
}

// LogCommand carries free text the plugin wants shown in the host log.
type LogCommand struct {
	Text string
}

func (LogCommand) Kind() Kind { return KindLog }

func (c LogCommand) String() string {
	return fmt.Sprintf("log %q", c.Text)
}

// AddMenuItemCommand asks the host to add an action under a menu path.
type AddMenuItemCommand struct {
	// Menu is the path of menus from the menu bar down to the target menu
	Menu []ports.MenuSegment

	// Action names the new action
	Action ports.MenuSegment

	// After is the ID of the sibling action to insert after; empty appends
	After string

	// Shortcut is the raw key combination; empty for none
	Shortcut string
}

func (AddMenuItemCommand) Kind() Kind { return KindAddMenuItem }

func (c AddMenuItemCommand) String() string {
	ids := make([]string, 0, len(c.Menu))
	for _, seg := range c.Menu {
		ids = append(ids, seg.ID)
	}

	s := fmt.Sprintf("add-menu-item %s/%s (%q)", strings.Join(ids, "/"), c.Action.ID, c.Action.Title)
	if c.After != "" {
		s += " after " + c.After
	}
	if c.Shortcut != "" {
		s += " [" + c.Shortcut + "]"
	}
	return s
}

// UnknownCommand is any line the host does not understand.
type UnknownCommand struct {
	Raw string
}

func (UnknownCommand) Kind() Kind { return KindUnknown }

func (c UnknownCommand) String() string {
	return fmt.Sprintf("unknown %q", c.Raw)
}
