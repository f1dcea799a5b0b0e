package models

// MergeSide identifies which block a merge line came from. The target is the
// local graph's block, the source is the remote graph's block.
type MergeSide string

const (
	SideTarget MergeSide = "target"
	SideSource MergeSide = "source"
)

// PlannedLine is one line of a merged fragment together with its origin,
// so a later re-parse can attribute rejections to specific lines.
type PlannedLine struct {
	Side  MergeSide `json:"side"`
	Index int       `json:"index"`
	Text  string    `json:"text"`
}
