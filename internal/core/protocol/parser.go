package protocol

import (
	"errors"
	"strings"

	"plughost.dev/cli/internal/core/ports"
)

// Wire tokens of the plugin line protocol.
const (
	LogPrefix        = "#"
	VerbAddMenuItem  = "AddMenuItem"
	FieldSeparator   = ","
	PathSeparator    = `\`
	AnchorPrefix     = "after#"
	minAddMenuFields = 2
	maxAddMenuFields = 4
)

// Parse turns one decoded line into a Command. Lines that match no verb
// become UnknownCommand with a nil error; a recognized verb with unusable
// fields returns a *ProtocolError.
func Parse(line string) (Command, error) {
	switch {
	case strings.HasPrefix(line, LogPrefix):
		return LogCommand{Text: strings.TrimPrefix(line, LogPrefix)}, nil
	case strings.HasPrefix(line, VerbAddMenuItem):
		return parseAddMenuItem(line)
	default:
		return UnknownCommand{Raw: line}, nil
	}
}

// parseAddMenuItem parses AddMenuItem,<menuPath>[,<after#anchor>[,<shortcut>]]
func parseAddMenuItem(line string) (Command, error) {
	fields := strings.Split(line, FieldSeparator)
	if strings.TrimSpace(fields[0]) != VerbAddMenuItem {
		return nil, malformed(line, "unknown verb %q", fields[0])
	}
	if len(fields) < minAddMenuFields {
		return nil, malformed(line, "expected at least %d fields, got %d", minAddMenuFields, len(fields))
	}
	if len(fields) > maxAddMenuFields {
		return nil, malformed(line, "expected at most %d fields, got %d", maxAddMenuFields, len(fields))
	}

	segments, err := ParseMenuPath(fields[1])
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) {
			return nil, malformed(line, "menu path: %s", perr.Reason)
		}
		return nil, malformed(line, "menu path: %v", err)
	}
	if len(segments) < 2 {
		return nil, malformed(line, "menu path needs a menu and an action")
	}

	cmd := AddMenuItemCommand{
		Menu:   segments[:len(segments)-1],
		Action: segments[len(segments)-1],
	}

	if len(fields) > 2 {
		anchor := strings.TrimSpace(fields[2])
		if anchor != "" {
			if !strings.HasPrefix(anchor, AnchorPrefix) {
				return nil, malformed(line, "anchor %q must look like %s<actionId>", anchor, AnchorPrefix)
			}
			cmd.After = strings.TrimSpace(strings.TrimPrefix(anchor, AnchorPrefix))
		}
	}

	if len(fields) > 3 {
		cmd.Shortcut = strings.TrimSpace(fields[3])
	}

	return cmd, nil
}

// ParseMenuPath splits id1(Title1)\id2(Title2)\... into segments. Empty
// segments are skipped, so a doubled separator is accepted as well.
func ParseMenuPath(spec string) ([]ports.MenuSegment, error) {
	var segments []ports.MenuSegment
	for _, part := range strings.Split(spec, PathSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		seg, err := parseSegment(part)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return nil, &ProtocolError{Line: spec, Reason: "empty menu path"}
	}
	return segments, nil
}

// parseSegment parses id(Title). A bare id uses the id as its title.
func parseSegment(part string) (ports.MenuSegment, error) {
	open := strings.IndexByte(part, '(')
	if open == -1 {
		if strings.ContainsRune(part, ')') {
			return ports.MenuSegment{}, &ProtocolError{Line: part, Reason: "unbalanced parenthesis"}
		}
		return ports.MenuSegment{ID: part, Title: part}, nil
	}

	if !strings.HasSuffix(part, ")") {
		return ports.MenuSegment{}, &ProtocolError{Line: part, Reason: "unbalanced parenthesis"}
	}

	id := strings.TrimSpace(part[:open])
	if id == "" {
		return ports.MenuSegment{}, &ProtocolError{Line: part, Reason: "missing id"}
	}

	title := part[open+1 : len(part)-1]
	if title == "" {
		title = id
	}
	return ports.MenuSegment{ID: id, Title: title}, nil
}
