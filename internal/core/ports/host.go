package ports

import "errors"

// ErrAnchorNotFound is returned by a MenuHost when the action named as the
// insertion anchor does not exist in the target menu.
var ErrAnchorNotFound = errors.New("anchor action not found")

// MenuSegment is one id(Title) element of a menu path.
type MenuSegment struct {
	ID    string
	Title string
}

// ActionSpec describes an action a plugin asks the host to add.
type ActionSpec struct {
	ID       string
	Title    string
	After    string // existing action ID; empty appends to the end
	Shortcut string // normalized key combination; empty for none
}

// MenuHandle identifies a menu owned by the host.
type MenuHandle interface {
	MenuID() string
}

// ActionHandle identifies an action owned by the host.
type ActionHandle interface {
	ActionID() string
}

// MenuHost is the narrow view of the host's menu model that plugin commands
// are applied through. Implementations adapt it to the real menu objects.
type MenuHost interface {
	// FindOrCreateMenu walks path from the menu bar, creating any menu that
	// does not exist yet, and returns the innermost menu.
	FindOrCreateMenu(path []MenuSegment) (MenuHandle, error)

	// InsertAction adds action to menu after action.After. When the anchor
	// cannot be found it returns an error wrapping ErrAnchorNotFound and
	// leaves the menu unchanged.
	InsertAction(menu MenuHandle, action ActionSpec) (ActionHandle, error)
}

// MenuPruner is implemented by hosts that can drop the menus a failed
// insert left behind.
type MenuPruner interface {
	// PruneEmptyMenus removes the empty menus at the end of path, deepest
	// first, stopping at the first menu that still has items.
	PruneEmptyMenus(path []MenuSegment)
}

// Console receives the free-text log lines plugins emit.
type Console interface {
	PluginLog(plugin, text string)
}
