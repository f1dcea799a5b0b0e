package models

// TokenCategory is the lexical class assigned to a span of CNL text.
type TokenCategory string

const (
	TokenHeader           TokenCategory = "header"
	TokenRelationTag      TokenCategory = "relation_tag"
	TokenAttributeKeyword TokenCategory = "attribute_keyword"
	TokenDescriptionBlock TokenCategory = "description_block"
	TokenPlainText        TokenCategory = "plain_text"
)

// Token is a classified span within one line. Start and End are byte
// offsets into the line, End exclusive.
type Token struct {
	Line     int           `json:"line"`
	Start    int           `json:"start"`
	End      int           `json:"end"`
	Category TokenCategory `json:"category"`
	Text     string        `json:"text"`
}
