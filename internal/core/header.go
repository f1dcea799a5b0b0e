package core

import (
	"regexp"
	"strings"
)

// headerPattern is the top-level header grammar:
//
//	# <name>[ (id: <identifier>)][ [<Type>[;,]<Type>...]]
//	# <name> [<Type>[;,]<Type>...] (id: <identifier>)
//
// The id marker and the type list may appear in either order.
// It must stay byte-compatible with every other reader of CNL text.
var headerPattern = regexp.MustCompile(`^# (.+?)(?:(?:\s*\(id: ([^()\s]+)\))?(?:\s*\[([^\]]*)\])?|\s*\[([^\]]*)\]\s*\(id: ([^()\s]+)\))\s*$`)

// Header is a parsed top-level header line.
type Header struct {
	Name string
	ID   string
	// Types lists every declared type in bracket order.
	Types []string
	// DeclaredType is the first semicolon-delimited segment of the bracket,
	// trimmed. Empty when the header has no bracket or the bracket is empty.
	DeclaredType string
}

// ParseHeader parses a top-level header line. Lines that start with '#' but
// do not satisfy the grammar report false.
func ParseHeader(line string) (Header, bool) {
	line = strings.TrimRight(line, "\r")
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return Header{}, false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return Header{}, false
	}
	id, types := m[2], m[3]
	if m[5] != "" {
		id, types = m[5], m[4]
	}
	h := Header{Name: name, ID: id}
	if types != "" {
		h.DeclaredType = strings.TrimSpace(strings.SplitN(types, ";", 2)[0])
		for _, t := range strings.FieldsFunc(types, func(r rune) bool { return r == ';' || r == ',' }) {
			if t = strings.TrimSpace(t); t != "" {
				h.Types = append(h.Types, t)
			}
		}
	}
	return h, true
}

// isHeaderLine reports whether line starts a node block.
func isHeaderLine(line string) bool {
	if !strings.HasPrefix(line, "# ") {
		return false
	}
	_, ok := ParseHeader(line)
	return ok
}

// headerMatches reports whether a header line belongs to the node identified
// by nodeID or nodeName. The id marker is a literal substring test; the name
// must be the whole remainder after "# " or be followed by a space.
func headerMatches(line, nodeID, nodeName string) bool {
	line = strings.TrimRight(line, "\r")
	if nodeID != "" && strings.Contains(line, "(id: "+nodeID+")") {
		return true
	}
	if nodeName == "" {
		return false
	}
	rest := strings.TrimPrefix(line, "# ")
	return rest == nodeName || strings.HasPrefix(rest, nodeName+" ")
}
