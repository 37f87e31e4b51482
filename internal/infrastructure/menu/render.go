package menu

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

var (
	menuStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	actionStyle   = lipgloss.NewStyle()
	shortcutStyle = lipgloss.NewStyle().Faint(true)
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// RenderOptions controls Render output.
type RenderOptions struct {
	ShowIDs bool
}

// Render draws the current menu tree.
func (b *Bar) Render(opts RenderOptions) string {
	menus := b.Snapshot()
	if len(menus) == 0 {
		return "(empty menu bar)"
	}

	parts := make([]string, 0, len(menus))
	for _, m := range menus {
		parts = append(parts, renderMenu(m, opts).String())
	}
	return strings.Join(parts, "\n")
}

func renderMenu(m *Menu, opts RenderOptions) *tree.Tree {
	t := tree.Root(menuLabel(m, opts)).Enumerator(tree.RoundedEnumerator)
	for _, item := range m.Items {
		switch {
		case item.Menu != nil:
			t.Child(renderMenu(item.Menu, opts))
		case item.Action != nil:
			t.Child(actionLabel(item.Action, opts))
		}
	}
	return t
}

func menuLabel(m *Menu, opts RenderOptions) string {
	label := menuStyle.Render(DisplayTitle(m.Title))
	if opts.ShowIDs {
		label += " " + idStyle.Render(m.ID)
	}
	return label
}

func actionLabel(a *Action, opts RenderOptions) string {
	label := actionStyle.Render(DisplayTitle(a.Title))
	if a.Shortcut != "" {
		label += "  " + shortcutStyle.Render(a.Shortcut)
	}
	if opts.ShowIDs {
		label += " " + idStyle.Render(a.ID)
	}
	return label
}
