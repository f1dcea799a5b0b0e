package core

import (
	"regexp"
	"sort"
	"strings"

	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

// DefaultMaxScanLines bounds the backward header scan when no configuration
// overrides it.
const DefaultMaxScanLines = 5000

var (
	openNodeTypePattern  = regexp.MustCompile(`#[^\[\]]*\[([^\]]*)$`)
	openAttributePattern = regexp.MustCompile(`(?:^|\s)has ([^:]*)$`)
)

// ResolveContext determines the slot being filled at pos and the declared
// type of the nearest typed header at or above the cursor line. Headers
// without a type annotation are skipped. text must contain the document at
// least through the cursor line. maxScanLines caps how many lines above the
// cursor line are inspected; zero means no cap.
func ResolveContext(text string, pos models.Position, maxScanLines int) models.SuggestionContext {
	lines, before := linesThroughCursor(text, pos)
	if lines == nil {
		return models.SuggestionContext{Slot: models.NoSlot{}}
	}
	cursorLine := len(lines) - 1

	ctx := models.SuggestionContext{Slot: DetectSlot(before)}
	floor := 0
	if maxScanLines > 0 && cursorLine-maxScanLines > floor {
		floor = cursorLine - maxScanLines
	}
	for i := cursorLine; i >= floor; i-- {
		if typ, ok := headerType(lines[i]); ok {
			ctx.EnclosingNodeType = typ
			break
		}
	}
	return ctx
}

// DetectSlot classifies the text between the start of the cursor line and
// the cursor. Exactly one slot is returned; the checks run in a fixed order
// so degenerate input still resolves deterministically.
func DetectSlot(before string) models.Slot {
	if m := openNodeTypePattern.FindStringSubmatch(before); m != nil {
		return models.NodeTypeSlot{Partial: m[1]}
	}
	if i := strings.LastIndex(before, "<"); i >= 0 && !strings.Contains(before[i:], ">") {
		return models.RelationSlot{Partial: before[i+1:]}
	}
	if m := openAttributePattern.FindStringSubmatch(before); m != nil {
		return models.AttributeSlot{Partial: m[1]}
	}
	return models.NoSlot{}
}

// headerType returns the declared type of a top-level header line. It
// reports false for non-headers and for headers with no declared type.
func headerType(line string) (string, bool) {
	if !strings.HasPrefix(line, "# ") {
		return "", false
	}
	h, ok := ParseHeader(line)
	if !ok || h.DeclaredType == "" {
		return "", false
	}
	return h.DeclaredType, true
}

// linesThroughCursor splits text up to and including the cursor line and
// returns the cursor line truncated at the cursor column. Positions past the
// end of the text are clamped.
func linesThroughCursor(text string, pos models.Position) ([]string, string) {
	if pos.Line < 0 {
		return nil, ""
	}
	lines := strings.SplitN(text, "\n", pos.Line+2)
	if len(lines) > pos.Line+1 {
		lines = lines[:pos.Line+1]
	}
	last := len(lines) - 1
	before := truncateRunes(lines[last], pos.Column)
	lines[last] = before
	return lines, before
}

func truncateRunes(s string, col int) string {
	if col <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == col {
			return s[:i]
		}
		n++
	}
	return s
}

// ContextResolver resolves cursor contexts for one document and remembers
// where headers are, so repeated keystrokes below an unchanged region do not
// rescan it. After every edit call Invalidate with the first edited line, or
// Track with the new text. A ContextResolver is not safe for concurrent use.
type ContextResolver struct {
	maxScanLines int
	headers      []indexedHeader // sorted by line
	scanned      int             // lines [0, scanned) are indexed
	tracked      string
}

type indexedHeader struct {
	line int
	typ  string
}

// NewContextResolver returns a resolver with an empty header index.
func NewContextResolver(maxScanLines int) *ContextResolver {
	return &ContextResolver{maxScanLines: maxScanLines}
}

// Invalidate drops cached header positions at or below fromLine.
func (r *ContextResolver) Invalidate(fromLine int) {
	if fromLine < 0 {
		fromLine = 0
	}
	if fromLine >= r.scanned {
		return
	}
	cut := sort.Search(len(r.headers), func(i int) bool { return r.headers[i].line >= fromLine })
	r.headers = r.headers[:cut]
	r.scanned = fromLine
}

// Track makes text the current document, keeping cached headers above the
// first line that differs from the previously tracked text.
func (r *ContextResolver) Track(text string) {
	if text == r.tracked {
		return
	}
	r.Invalidate(firstChangedLine(r.tracked, text))
	r.tracked = text
}

// firstChangedLine returns the zero-based line of the first byte where a and
// b differ, or the last shared line when one is a prefix of the other.
func firstChangedLine(a, b string) int {
	line := 0
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return line
		}
		if a[i] == '\n' {
			line++
		}
	}
	return line
}

// Resolve is ResolveContext backed by the header index.
func (r *ContextResolver) Resolve(text string, pos models.Position) models.SuggestionContext {
	lines, before := linesThroughCursor(text, pos)
	if lines == nil {
		return models.SuggestionContext{Slot: models.NoSlot{}}
	}
	cursorLine := len(lines) - 1

	ctx := models.SuggestionContext{Slot: DetectSlot(before)}
	if typ, ok := headerType(before); ok {
		ctx.EnclosingNodeType = typ
		return ctx
	}

	// The cursor line itself is never indexed: it is usually mid-edit.
	for r.scanned < cursorLine {
		if typ, ok := headerType(lines[r.scanned]); ok {
			r.headers = append(r.headers, indexedHeader{line: r.scanned, typ: typ})
		}
		r.scanned++
	}

	i := sort.Search(len(r.headers), func(i int) bool { return r.headers[i].line >= cursorLine }) - 1
	if i < 0 {
		return ctx
	}
	h := r.headers[i]
	if r.maxScanLines > 0 && cursorLine-h.line > r.maxScanLines {
		return ctx
	}
	ctx.EnclosingNodeType = h.typ
	return ctx
}
