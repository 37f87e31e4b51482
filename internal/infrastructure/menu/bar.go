package menu

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"plughost.dev/cli/internal/core/ports"
)

var (
	// ErrForeignMenu is returned when a handle from another bar is used.
	ErrForeignMenu = errors.New("menu handle does not belong to this menu bar")

	// ErrNotAMenu is returned when a path segment names an action.
	ErrNotAMenu = errors.New("path segment names an action, not a menu")
)

// Action is a leaf menu entry.
type Action struct {
	ID       string
	Title    string
	Shortcut string
}

// ActionID implements ports.ActionHandle.
func (a *Action) ActionID() string { return a.ID }

// Item is either an action or a submenu.
type Item struct {
	Action *Action
	Menu   *Menu
}

// ID returns the identifier of whichever entry the item holds.
func (i Item) ID() string {
	if i.Menu != nil {
		return i.Menu.ID
	}
	if i.Action != nil {
		return i.Action.ID
	}
	return ""
}

// Menu is a titled list of items.
type Menu struct {
	ID    string
	Title string
	Items []Item

	owner *Bar
}

// MenuID implements ports.MenuHandle.
func (m *Menu) MenuID() string { return m.ID }

func (m *Menu) indexOf(id string) int {
	for i, item := range m.Items {
		if item.ID() == id {
			return i
		}
	}
	return -1
}

// Bar is an in-memory menu bar implementing ports.MenuHost. Writes come
// from the plugin delivery loop; reads may come from any goroutine.
type Bar struct {
	mu   sync.RWMutex
	root *Menu
}

// NewBar creates an empty menu bar.
func NewBar() *Bar {
	b := &Bar{}
	b.root = &Menu{owner: b}
	return b
}

// FindOrCreateMenu implements ports.MenuHost.
func (b *Bar) FindOrCreateMenu(path []ports.MenuSegment) (ports.MenuHandle, error) {
	if len(path) == 0 {
		return nil, errors.New("empty menu path")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.root
	for _, seg := range path {
		idx := cur.indexOf(seg.ID)
		if idx == -1 {
			next := &Menu{ID: seg.ID, Title: seg.Title, owner: b}
			cur.Items = append(cur.Items, Item{Menu: next})
			cur = next
			continue
		}

		item := cur.Items[idx]
		if item.Menu == nil {
			return nil, fmt.Errorf("%s: %w", seg.ID, ErrNotAMenu)
		}
		cur = item.Menu
	}

	return cur, nil
}

// InsertAction implements ports.MenuHost. Re-inserting an existing action
// ID updates its title and shortcut in place.
func (b *Bar) InsertAction(handle ports.MenuHandle, spec ports.ActionSpec) (ports.ActionHandle, error) {
	menu, ok := handle.(*Menu)
	if !ok || menu.owner != b {
		return nil, ErrForeignMenu
	}
	if spec.ID == "" {
		return nil, errors.New("action id cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if idx := menu.indexOf(spec.ID); idx != -1 {
		existing := menu.Items[idx].Action
		if existing == nil {
			return nil, fmt.Errorf("%s already names a submenu of %s", spec.ID, menu.ID)
		}
		existing.Title = spec.Title
		existing.Shortcut = spec.Shortcut
		return existing, nil
	}

	action := &Action{ID: spec.ID, Title: spec.Title, Shortcut: spec.Shortcut}
	item := Item{Action: action}

	if spec.After == "" {
		menu.Items = append(menu.Items, item)
		return action, nil
	}

	anchor := menu.indexOf(spec.After)
	if anchor == -1 {
		return nil, fmt.Errorf("%s in %s: %w", spec.After, menu.ID, ports.ErrAnchorNotFound)
	}

	menu.Items = append(menu.Items, Item{})
	copy(menu.Items[anchor+2:], menu.Items[anchor+1:])
	menu.Items[anchor+1] = item
	return action, nil
}

// PruneEmptyMenus implements ports.MenuPruner.
func (b *Bar) PruneEmptyMenus(path []ports.MenuSegment) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chain := []*Menu{b.root}
	for _, seg := range path {
		cur := chain[len(chain)-1]
		idx := cur.indexOf(seg.ID)
		if idx == -1 || cur.Items[idx].Menu == nil {
			break
		}
		chain = append(chain, cur.Items[idx].Menu)
	}

	for i := len(chain) - 1; i > 0; i-- {
		m, parent := chain[i], chain[i-1]
		if len(m.Items) > 0 {
			return
		}
		idx := parent.indexOf(m.ID)
		parent.Items = append(parent.Items[:idx], parent.Items[idx+1:]...)
	}
}

// AddAction appends an action to the menu at path, creating menus as
// needed. Hosts use it to seed their built-in entries.
func (b *Bar) AddAction(path []ports.MenuSegment, action Action) error {
	m, err := b.FindOrCreateMenu(path)
	if err != nil {
		return err
	}
	_, err = b.InsertAction(m, ports.ActionSpec{ID: action.ID, Title: action.Title, Shortcut: action.Shortcut})
	return err
}

// Snapshot returns a deep copy of the top-level menus.
func (b *Bar) Snapshot() []*Menu {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Menu, 0, len(b.root.Items))
	for _, item := range b.root.Items {
		if item.Menu != nil {
			out = append(out, item.Menu.clone())
		}
	}
	return out
}

// Lookup returns a copy of the menu reached by following ids, or nil.
func (b *Bar) Lookup(ids ...string) *Menu {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cur := b.root
	for _, id := range ids {
		idx := cur.indexOf(id)
		if idx == -1 || cur.Items[idx].Menu == nil {
			return nil
		}
		cur = cur.Items[idx].Menu
	}
	return cur.clone()
}

// ActionIDs lists the ids of the entries of m in order.
func (m *Menu) ActionIDs() []string {
	ids := make([]string, 0, len(m.Items))
	for _, item := range m.Items {
		ids = append(ids, item.ID())
	}
	return ids
}

func (m *Menu) clone() *Menu {
	c := &Menu{ID: m.ID, Title: m.Title, Items: make([]Item, 0, len(m.Items))}
	for _, item := range m.Items {
		switch {
		case item.Menu != nil:
			c.Items = append(c.Items, Item{Menu: item.Menu.clone()})
		case item.Action != nil:
			a := *item.Action
			c.Items = append(c.Items, Item{Action: &a})
		}
	}
	return c
}

// DisplayTitle strips keyboard mnemonic markers: "&Edit" becomes "Edit"
// and "&&" becomes a literal ampersand.
func DisplayTitle(title string) string {
	if !strings.Contains(title, "&") {
		return title
	}
	var b strings.Builder
	for i := 0; i < len(title); i++ {
		if title[i] == '&' {
			if i+1 < len(title) && title[i+1] == '&' {
				b.WriteByte('&')
				i++
			}
			continue
		}
		b.WriteByte(title[i])
	}
	return b.String()
}
