// Package shortcut parses the key combinations plugins attach to menu
// actions, such as "Ctrl+Alt+I" or "Shift+F5".
package shortcut

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parse errors
var (
	ErrEmptySpec   = errors.New("empty shortcut specification")
	ErrInvalidSpec = errors.New("invalid shortcut specification")
)

// Modifier is a set of modifier keys.
type Modifier uint8

const (
	ModNone Modifier = 0

	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModMeta
)

// modifierOrder is the order modifiers are printed in.
var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModCtrl, "Ctrl"},
	{ModAlt, "Alt"},
	{ModShift, "Shift"},
	{ModMeta, "Meta"},
}

// Has returns true if m contains mod.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// ModifierFromName maps a modifier name to its value. Matching is case
// insensitive; ModNone means the name is unknown.
func ModifierFromName(name string) Modifier {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ctrl", "control", "ctl":
		return ModCtrl
	case "alt", "option", "opt":
		return ModAlt
	case "shift":
		return ModShift
	case "meta", "cmd", "command", "super", "win":
		return ModMeta
	default:
		return ModNone
	}
}

// namedKey maps a key name or alias to its canonical spelling.
func namedKey(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "enter", "return":
		return "Enter", true
	case "esc", "escape":
		return "Esc", true
	case "tab":
		return "Tab", true
	case "backspace":
		return "Backspace", true
	case "del", "delete":
		return "Del", true
	case "ins", "insert":
		return "Ins", true
	case "home":
		return "Home", true
	case "end":
		return "End", true
	case "pgup", "pageup":
		return "PgUp", true
	case "pgdown", "pgdn", "pagedown":
		return "PgDown", true
	case "up", "down", "left", "right", "space":
		return strings.ToUpper(name[:1]) + strings.ToLower(name[1:]), true
	default:
		return "", false
	}
}

// Shortcut is a parsed key combination.
type Shortcut struct {
	Mods Modifier
	Key  string
}

// Parse parses a "Mod+Mod+Key" specification. The key is either a single
// printable character, a named key, or a function key F1-F35.
func Parse(spec string) (Shortcut, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Shortcut{}, ErrEmptySpec
	}

	// A trailing "++" names the plus key itself.
	keyPart := ""
	if strings.HasSuffix(spec, "++") {
		keyPart = "+"
		spec = strings.TrimSuffix(spec, "++")
	} else if spec == "+" {
		return Shortcut{Key: "+"}, nil
	}

	parts := strings.Split(spec, "+")
	if keyPart == "" {
		keyPart = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}

	var mods Modifier
	for _, p := range parts {
		mod := ModifierFromName(p)
		if mod == ModNone {
			return Shortcut{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidSpec, p)
		}
		mods |= mod
	}

	key, err := parseKey(keyPart)
	if err != nil {
		return Shortcut{}, err
	}
	return Shortcut{Mods: mods, Key: key}, nil
}

func parseKey(part string) (string, error) {
	part = strings.TrimSpace(part)
	if part == "" {
		return "", fmt.Errorf("%w: missing key", ErrInvalidSpec)
	}

	if name, ok := namedKey(part); ok {
		return name, nil
	}

	if n, ok := functionKey(part); ok {
		return fmt.Sprintf("F%d", n), nil
	}

	if utf8.RuneCountInString(part) == 1 {
		r, _ := utf8.DecodeRuneInString(part)
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return "", fmt.Errorf("%w: unprintable key %q", ErrInvalidSpec, part)
		}
		return string(unicode.ToUpper(r)), nil
	}

	return "", fmt.Errorf("%w: unknown key %q", ErrInvalidSpec, part)
}

func functionKey(part string) (int, bool) {
	if len(part) < 2 || (part[0] != 'F' && part[0] != 'f') {
		return 0, false
	}
	n := 0
	for _, r := range part[1:] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
		if n > 35 {
			return 0, false
		}
	}
	return n, n >= 1 && n <= 35
}

// String returns the canonical form, e.g. "Ctrl+Alt+I".
func (s Shortcut) String() string {
	var b strings.Builder
	for _, m := range modifierOrder {
		if s.Mods.Has(m.mod) {
			b.WriteString(m.name)
			b.WriteByte('+')
		}
	}
	b.WriteString(s.Key)
	return b.String()
}

// Normalize parses spec and returns its canonical form.
func Normalize(spec string) (string, error) {
	s, err := Parse(spec)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}
