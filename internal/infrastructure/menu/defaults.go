package menu

import "plughost.dev/cli/internal/core/ports"

// builtin lists the host's own entries, keyed by top-level menu.
var builtin = []struct {
	menu    ports.MenuSegment
	actions []Action
}{
	{
		menu: ports.MenuSegment{ID: "menu_File", Title: "&File"},
		actions: []Action{
			{ID: "fileActionNew", Title: "&New", Shortcut: "Ctrl+N"},
			{ID: "fileActionOpen", Title: "&Open...", Shortcut: "Ctrl+O"},
			{ID: "fileActionSave", Title: "&Save", Shortcut: "Ctrl+S"},
			{ID: "fileActionQuit", Title: "&Quit", Shortcut: "Ctrl+Q"},
		},
	},
	{
		menu: ports.MenuSegment{ID: "menu_Edit", Title: "&Edit"},
		actions: []Action{
			{ID: "editActionUndo", Title: "&Undo", Shortcut: "Ctrl+Z"},
			{ID: "editActionRedo", Title: "&Redo", Shortcut: "Ctrl+Shift+Z"},
			{ID: "editActionCut", Title: "Cu&t", Shortcut: "Ctrl+X"},
			{ID: "editActionCopy", Title: "&Copy", Shortcut: "Ctrl+C"},
			{ID: "editActionPaste", Title: "&Paste", Shortcut: "Ctrl+V"},
			{ID: "editActionIndent", Title: "&Indent", Shortcut: "Ctrl+I"},
			{ID: "editActionUnindent", Title: "Unin&dent", Shortcut: "Ctrl+Shift+I"},
			{ID: "editActionComment", Title: "C&omment", Shortcut: "Ctrl+D"},
			{ID: "editActionUncomment", Title: "Unco&mment", Shortcut: "Ctrl+Shift+D"},
		},
	},
	{
		menu: ports.MenuSegment{ID: "menu_Design", Title: "&Design"},
		actions: []Action{
			{ID: "designActionReload", Title: "&Reload and Preview", Shortcut: "F4"},
			{ID: "designActionPreview", Title: "&Preview", Shortcut: "F5"},
			{ID: "designActionRender", Title: "&Render", Shortcut: "F6"},
		},
	},
	{
		menu: ports.MenuSegment{ID: "menu_View", Title: "&View"},
		actions: []Action{
			{ID: "viewActionResetView", Title: "Reset View"},
		},
	},
	{
		menu: ports.MenuSegment{ID: "menu_Help", Title: "&Help"},
		actions: []Action{
			{ID: "helpActionAbout", Title: "&About"},
		},
	},
}

// NewDefaultBar returns a bar holding the host's built-in menus, which
// plugins can anchor their own actions against.
func NewDefaultBar() *Bar {
	b := NewBar()
	for _, entry := range builtin {
		path := []ports.MenuSegment{entry.menu}
		for _, action := range entry.actions {
			// Built-in ids are unique, so seeding cannot fail.
			_ = b.AddAction(path, action)
		}
	}
	return b
}
