package models

// Position is a cursor location: zero-based line and zero-based rune column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SlotKind names the grammatical slot a cursor is in.
type SlotKind string

const (
	SlotNone      SlotKind = "none"
	SlotNodeType  SlotKind = "node_type"
	SlotRelation  SlotKind = "relation"
	SlotAttribute SlotKind = "attribute"
)

// Slot is a closed set of variants: NodeTypeSlot, RelationSlot,
// AttributeSlot and NoSlot.
type Slot interface {
	Kind() SlotKind
	isSlot()
}

// NodeTypeSlot: the cursor is inside an unclosed `[` of a header.
// Partial is the text typed since the bracket.
type NodeTypeSlot struct {
	Partial string
}

// RelationSlot: the cursor follows an unmatched `<`.
type RelationSlot struct {
	Partial string
}

// AttributeSlot: the cursor follows `has ` with no colon yet.
type AttributeSlot struct {
	Partial string
}

// NoSlot: nothing to complete.
type NoSlot struct{}

func (NodeTypeSlot) Kind() SlotKind  { return SlotNodeType }
func (RelationSlot) Kind() SlotKind  { return SlotRelation }
func (AttributeSlot) Kind() SlotKind { return SlotAttribute }
func (NoSlot) Kind() SlotKind        { return SlotNone }

func (NodeTypeSlot) isSlot()  {}
func (RelationSlot) isSlot()  {}
func (AttributeSlot) isSlot() {}
func (NoSlot) isSlot()        {}

// SuggestionContext is derived on every request and never persisted.
// An empty EnclosingNodeType means no enclosing type is known.
type SuggestionContext struct {
	Slot              Slot
	EnclosingNodeType string
}

// HasEnclosingType reports whether the enclosing header declared a type.
func (c SuggestionContext) HasEnclosingType() bool {
	return c.EnclosingNodeType != ""
}

// SuggestionCategory groups suggestions by the registry they came from.
type SuggestionCategory string

const (
	CategoryNodeType  SuggestionCategory = "node_type"
	CategoryRelation  SuggestionCategory = "relation"
	CategoryAttribute SuggestionCategory = "attribute"
)

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Label    string             `json:"label"`
	Detail   string             `json:"detail,omitempty"`
	Category SuggestionCategory `json:"category"`
}

// ContextView is the wire form of a SuggestionContext.
type ContextView struct {
	Slot              SlotKind `json:"slot"`
	Partial           string   `json:"partial,omitempty"`
	EnclosingNodeType string   `json:"enclosing_node_type,omitempty"`
}

// View flattens the context for JSON output.
func (c SuggestionContext) View() ContextView {
	v := ContextView{Slot: SlotNone, EnclosingNodeType: c.EnclosingNodeType}
	switch s := c.Slot.(type) {
	case NodeTypeSlot:
		v.Slot, v.Partial = s.Kind(), s.Partial
	case RelationSlot:
		v.Slot, v.Partial = s.Kind(), s.Partial
	case AttributeSlot:
		v.Slot, v.Partial = s.Kind(), s.Partial
	}
	return v
}
