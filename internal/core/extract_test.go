package core

import (
	"errors"
	"reflect"
	"testing"

	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

const twoNodes = "# A (id: 1)\nhas x: 1\n# B (id: 2)\nhas y: 2"

func TestExtractBlock_ByID(t *testing.T) {
	if got, want := ExtractBlock(twoNodes, "1", ""), "# A (id: 1)\nhas x: 1"; got != want {
		t.Errorf("ExtractBlock(id=1) = %q, want %q", got, want)
	}
	if got, want := ExtractBlock(twoNodes, "2", ""), "# B (id: 2)\nhas y: 2"; got != want {
		t.Errorf("ExtractBlock(id=2) = %q, want %q", got, want)
	}
}

func TestExtractBlock_NoMatch(t *testing.T) {
	if got := ExtractBlock(twoNodes, "99", ""); got != "" {
		t.Errorf("ExtractBlock(id=99) = %q, want empty", got)
	}
	if got := ExtractBlock(twoNodes, "", ""); got != "" {
		t.Errorf("ExtractBlock with no identity = %q, want empty", got)
	}
}

func TestExtractBlock_ByName(t *testing.T) {
	text := "# FooBar\nhas a: 1\n# Foo [Thing]\nhas b: 2\n"
	if got, want := ExtractBlock(text, "", "Foo"), "# Foo [Thing]\nhas b: 2\n"; got != want {
		t.Errorf("ExtractBlock(name=Foo) = %q, want %q", got, want)
	}
}

func TestExtractBlock_FirstMatchWins(t *testing.T) {
	text := "# Foo\nfirst\n# Foo\nsecond"
	if got, want := ExtractBlock(text, "", "Foo"), "# Foo\nfirst"; got != want {
		t.Errorf("ExtractBlock() = %q, want %q", got, want)
	}
}

func TestExtractBlock_IgnoresMalformedHeaders(t *testing.T) {
	text := "# A (id: 1)\n#not a header\n  # indented\n## sub\n# B"
	if got, want := ExtractBlock(text, "1", ""), "# A (id: 1)\n#not a header\n  # indented\n## sub"; got != want {
		t.Errorf("ExtractBlock() = %q, want %q", got, want)
	}
}

func TestFindBlock_Positions(t *testing.T) {
	b := FindBlock(twoNodes, "2", "")
	if !b.Found {
		t.Fatal("expected block to be found")
	}
	if b.StartLine != 2 || b.EndLine != 3 {
		t.Errorf("lines = [%d,%d], want [2,3]", b.StartLine, b.EndLine)
	}
	if twoNodes[b.Start:b.End] != b.Text {
		t.Errorf("offsets [%d,%d) do not select the block text", b.Start, b.End)
	}
	if twoNodes[:b.Start]+b.Text+twoNodes[b.End:] != twoNodes {
		t.Error("re-inserting the block does not reproduce the text")
	}
}

type fakeNodeProvider map[string][]models.Node

func (f fakeNodeProvider) Nodes(graphID string) ([]models.Node, error) {
	nodes, ok := f[graphID]
	if !ok {
		return nil, errors.New("no such graph")
	}
	return nodes, nil
}

func TestLookupNodeName(t *testing.T) {
	nodes := fakeNodeProvider{"local": {{ID: "n1", Name: "Alice"}, {ID: "n2", Name: "Bob"}}}

	name, err := LookupNodeName(nodes, "local", "n2", "")
	if err != nil {
		t.Fatalf("LookupNodeName() error: %v", err)
	}
	if name != "Bob" {
		t.Errorf("LookupNodeName(n2) = %q, want Bob", name)
	}

	// The name found locally matches a header without an id marker elsewhere.
	remote := "# Alice [Person]\nhas age: 30\n# Bob\nhas age: 40"
	if got, want := ExtractBlock(remote, "n2", name), "# Bob\nhas age: 40"; got != want {
		t.Errorf("ExtractBlock(n2, %q) = %q, want %q", name, got, want)
	}

	if name, _ := LookupNodeName(nodes, "local", "n3", ""); name != "" {
		t.Errorf("LookupNodeName(n3) = %q, want empty", name)
	}
	if name, _ := LookupNodeName(nodes, "local", "n1", "Explicit"); name != "Explicit" {
		t.Errorf("explicit name replaced by %q", name)
	}
	if name, err := LookupNodeName(nil, "local", "n1", ""); err != nil || name != "" {
		t.Errorf("LookupNodeName(nil provider) = %q, %v", name, err)
	}
	if _, err := LookupNodeName(nodes, "ghost", "n1", ""); err == nil {
		t.Error("LookupNodeName() on an unknown graph should fail")
	}
}

func TestNodesFromText(t *testing.T) {
	text := "# Alice (id: a1) [Person]\nhas age: 3\n#bad\n# Acme [Company; Org]"
	want := []models.Node{
		{ID: "a1", Name: "Alice", Type: "Person"},
		{Name: "Acme", Type: "Company"},
	}
	if got := NodesFromText(text); !reflect.DeepEqual(got, want) {
		t.Errorf("NodesFromText() = %+v, want %+v", got, want)
	}
}
