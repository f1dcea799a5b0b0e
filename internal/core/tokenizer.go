package core

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

// tokenizerState is the only state carried between lines.
type tokenizerState int

const (
	stateNormal tokenizerState = iota
	stateInDescription
)

const (
	descriptionOpen  = "```description"
	descriptionClose = "```"
)

var (
	relationTagPattern = regexp.MustCompile(`^<[^<>]*>`)
	attributePattern   = regexp.MustCompile(`^has [^:]*:`)
	entityNamePattern  = regexp.MustCompile(`^[A-Z][\w\s]*`)
)

// Tokenizer classifies CNL text line by line for syntax highlighting. It
// keeps the description-block mode across lines, so one Tokenizer serves one
// buffer read top to bottom.
type Tokenizer struct {
	state tokenizerState
}

// NewTokenizer returns a tokenizer in the normal state.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{state: stateNormal}
}

// InDescription reports whether the tokenizer is inside a description block.
func (t *Tokenizer) InDescription() bool {
	return t.state == stateInDescription
}

// Reset returns the tokenizer to the normal state.
func (t *Tokenizer) Reset() {
	t.state = stateNormal
}

// TokenizeLine classifies one line. lineNo is copied into every token.
func (t *Tokenizer) TokenizeLine(lineNo int, line string) []models.Token {
	if line == "" {
		return nil
	}
	content := strings.TrimRight(line, "\r")

	if t.state == stateInDescription {
		if strings.TrimSpace(content) == descriptionClose {
			t.state = stateNormal
		}
		return []models.Token{wholeLine(lineNo, line, models.TokenDescriptionBlock)}
	}

	if isIndentedHeader(content) {
		return []models.Token{wholeLine(lineNo, line, models.TokenHeader)}
	}
	if strings.TrimSpace(content) == descriptionOpen {
		t.state = stateInDescription
		return []models.Token{wholeLine(lineNo, line, models.TokenDescriptionBlock)}
	}
	// Header-like lines that fail the grammar are plain text.
	if strings.HasPrefix(strings.TrimLeft(content, " \t"), "#") {
		return []models.Token{wholeLine(lineNo, line, models.TokenPlainText)}
	}
	return classifySpans(lineNo, line)
}

// Tokenize classifies a whole buffer starting from the normal state.
func Tokenize(text string) []models.Token {
	t := NewTokenizer()
	var tokens []models.Token
	for i, line := range strings.Split(text, "\n") {
		tokens = append(tokens, t.TokenizeLine(i, line)...)
	}
	return tokens
}

// isIndentedHeader accepts a valid header preceded by optional whitespace.
func isIndentedHeader(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	_, ok := ParseHeader(trimmed)
	return ok
}

func wholeLine(lineNo int, line string, cat models.TokenCategory) models.Token {
	return models.Token{Line: lineNo, Start: 0, End: len(line), Category: cat, Text: line}
}

// classifySpans walks a non-header line left to right, preferring relation
// tags, then attribute keywords, then capitalized runs. Everything else is
// merged into plain-text spans.
func classifySpans(lineNo int, line string) []models.Token {
	var tokens []models.Token
	plainStart := -1

	flushPlain := func(end int) {
		if plainStart >= 0 && end > plainStart {
			tokens = append(tokens, models.Token{
				Line: lineNo, Start: plainStart, End: end,
				Category: models.TokenPlainText, Text: line[plainStart:end],
			})
		}
		plainStart = -1
	}

	pos := 0
	for pos < len(line) {
		rest := line[pos:]
		cat, n := matchSpan(line, pos, rest)
		if n > 0 {
			flushPlain(pos)
			tokens = append(tokens, models.Token{
				Line: lineNo, Start: pos, End: pos + n, Category: cat, Text: rest[:n],
			})
			pos += n
			continue
		}
		if plainStart < 0 {
			plainStart = pos
		}
		_, size := utf8.DecodeRuneInString(rest)
		pos += size
	}
	flushPlain(len(line))
	return tokens
}

func matchSpan(line string, pos int, rest string) (models.TokenCategory, int) {
	if loc := relationTagPattern.FindStringIndex(rest); loc != nil {
		return models.TokenRelationTag, loc[1]
	}
	if atWordStart(line, pos) {
		if loc := attributePattern.FindStringIndex(rest); loc != nil {
			return models.TokenAttributeKeyword, loc[1]
		}
		if loc := entityNamePattern.FindStringIndex(rest); loc != nil {
			n := len(strings.TrimRight(rest[:loc[1]], " \t\r"))
			return models.TokenHeader, n
		}
	}
	return "", 0
}

func atWordStart(line string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(line[:pos])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
