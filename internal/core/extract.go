package core

import (
	"fmt"
	"strings"

	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

// NodeProvider supplies the structured node list of the active graph.
type NodeProvider interface {
	Nodes(graphID string) ([]models.Node, error)
}

// Block is a node's contiguous span of CNL text. Start and End are byte
// offsets into the source, End exclusive, so
// text[:Start] + Text + text[End:] == text. Lines are zero-based and
// inclusive. A zero Block (Found false) means no header matched.
type Block struct {
	Text      string
	Start     int
	End       int
	StartLine int
	EndLine   int
	Found     bool
}

// ExtractBlock returns the block of the first header matching nodeID or
// nodeName, or "" when none matches. The terminating header is excluded.
func ExtractBlock(text, nodeID, nodeName string) string {
	return FindBlock(text, nodeID, nodeName).Text
}

// FindBlock is ExtractBlock with position information.
func FindBlock(text, nodeID, nodeName string) Block {
	var b Block
	inBlock := false
	offset := 0
	lineNo := 0
	for {
		nl := strings.IndexByte(text[offset:], '\n')
		end := len(text)
		if nl >= 0 {
			end = offset + nl
		}
		line := text[offset:end]

		if inBlock {
			if isHeaderLine(line) {
				// Exclude the newline that precedes the next header.
				b.End = offset - 1
				b.EndLine = lineNo - 1
				break
			}
		} else if isHeaderLine(line) && headerMatches(line, nodeID, nodeName) {
			inBlock = true
			b.Found = true
			b.Start = offset
			b.StartLine = lineNo
		}

		if nl < 0 {
			if inBlock {
				b.End = len(text)
				b.EndLine = lineNo
			}
			break
		}
		offset = end + 1
		lineNo++
	}
	if b.Found {
		b.Text = text[b.Start:b.End]
	}
	return b
}

// LookupNodeName returns nodeName when it is set. Otherwise it looks nodeID up
// in graphID's node list, so that blocks in other graphs whose headers carry
// no id marker can still be matched by name. nodes may be nil.
func LookupNodeName(nodes NodeProvider, graphID, nodeID, nodeName string) (string, error) {
	if nodeName != "" || nodeID == "" || nodes == nil {
		return nodeName, nil
	}
	list, err := nodes.Nodes(graphID)
	if err != nil {
		return "", fmt.Errorf("looking up node %s: %w", nodeID, err)
	}
	return NodeName(list, nodeID), nil
}

// NodeName returns the name of the first node with the given id.
func NodeName(nodes []models.Node, nodeID string) string {
	for _, n := range nodes {
		if n.ID == nodeID {
			return n.Name
		}
	}
	return ""
}

// NodesFromText derives a node list from the headers in text. Nodes without
// an id marker get an empty ID.
func NodesFromText(text string) []models.Node {
	var nodes []models.Node
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "# ") {
			continue
		}
		h, ok := ParseHeader(line)
		if !ok {
			continue
		}
		nodes = append(nodes, models.Node{ID: h.ID, Name: h.Name, Type: h.DeclaredType})
	}
	return nodes
}
