package core

import (
	"strings"
	"testing"

	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

func endOf(text string) models.Position {
	lines := strings.Split(text, "\n")
	last := lines[len(lines)-1]
	return models.Position{Line: len(lines) - 1, Column: len([]rune(last))}
}

func TestResolveContext_AttributeUnderTypedHeader(t *testing.T) {
	text := "# Alice [Person]\nhas "
	ctx := ResolveContext(text, endOf(text), DefaultMaxScanLines)

	if ctx.EnclosingNodeType != "Person" {
		t.Errorf("EnclosingNodeType = %q, want %q", ctx.EnclosingNodeType, "Person")
	}
	slot, ok := ctx.Slot.(models.AttributeSlot)
	if !ok {
		t.Fatalf("Slot = %T, want AttributeSlot", ctx.Slot)
	}
	if slot.Partial != "" {
		t.Errorf("Partial = %q, want empty", slot.Partial)
	}
}

func TestResolveContext_Slots(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantKind    models.SlotKind
		wantPartial string
	}{
		{"open bracket in header", "# Alice [Per", models.SlotNodeType, "Per"},
		{"empty bracket", "# Alice [", models.SlotNodeType, ""},
		{"closed bracket", "# Alice [Person]", models.SlotNone, ""},
		{"open relation", "# Alice [Person]\n<wor", models.SlotRelation, "wor"},
		{"closed relation", "# Alice [Person]\n<works at> Acme", models.SlotNone, ""},
		{"attribute partial", "# Alice\nhas ag", models.SlotAttribute, "ag"},
		{"attribute after colon", "# Alice\nhas age: 3", models.SlotNone, ""},
		{"attribute mid line", "# Alice\nand has bir", models.SlotAttribute, "bir"},
		{"word containing has", "# Alice\nwhas x", models.SlotNone, ""},
		{"plain", "# Alice\nhello", models.SlotNone, ""},
		{"empty text", "", models.SlotNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ResolveContext(tt.text, endOf(tt.text), 0)
			if ctx.Slot.Kind() != tt.wantKind {
				t.Fatalf("Slot kind = %s, want %s", ctx.Slot.Kind(), tt.wantKind)
			}
			var partial string
			switch s := ctx.Slot.(type) {
			case models.NodeTypeSlot:
				partial = s.Partial
			case models.RelationSlot:
				partial = s.Partial
			case models.AttributeSlot:
				partial = s.Partial
			}
			if partial != tt.wantPartial {
				t.Errorf("Partial = %q, want %q", partial, tt.wantPartial)
			}
		})
	}
}

func TestResolveContext_NearestTypedHeaderWins(t *testing.T) {
	text := "# Acme [Company]\nhas founded: 1990\n# Bob [Person]\n<kno"
	ctx := ResolveContext(text, endOf(text), 0)
	if ctx.EnclosingNodeType != "Person" {
		t.Errorf("EnclosingNodeType = %q, want %q", ctx.EnclosingNodeType, "Person")
	}
	if ctx.Slot.Kind() != models.SlotRelation {
		t.Errorf("Slot kind = %s, want relation", ctx.Slot.Kind())
	}
}

func TestResolveContext_SkipsUntypedHeaders(t *testing.T) {
	schema := models.Schema{RelationTypes: []models.RelationType{
		{Name: "knows", Domain: []string{"Person"}},
		{Name: "employs", Domain: []string{"Company"}},
	}}
	text := "# Alice [Person]\nhas a: 1\n# Bob\n<"
	ctx := ResolveContext(text, models.Position{Line: 3, Column: 1}, 0)
	if ctx.EnclosingNodeType != "Person" {
		t.Fatalf("EnclosingNodeType = %q, want %q", ctx.EnclosingNodeType, "Person")
	}
	got := Suggest(ctx, schema)
	if len(got) != 1 || got[0].Label != "knows" {
		t.Errorf("Suggest = %+v, want only knows", got)
	}

	r := NewContextResolver(0)
	if cached := r.Resolve(text, models.Position{Line: 3, Column: 1}); cached.EnclosingNodeType != "Person" {
		t.Errorf("cached EnclosingNodeType = %q, want %q", cached.EnclosingNodeType, "Person")
	}
}

func TestResolveContext_TypeAfterIDMarker(t *testing.T) {
	text := "# Alice [Person] (id: 1)\nhas "
	if got := ResolveContext(text, endOf(text), 0).EnclosingNodeType; got != "Person" {
		t.Errorf("EnclosingNodeType = %q, want %q", got, "Person")
	}
}

func TestResolveContext_IgnoresTextBelowCursor(t *testing.T) {
	text := "# Alice [Person]\nhas \n# Acme [Company]"
	ctx := ResolveContext(text, models.Position{Line: 1, Column: 4}, 0)
	if ctx.EnclosingNodeType != "Person" {
		t.Errorf("EnclosingNodeType = %q, want %q", ctx.EnclosingNodeType, "Person")
	}
}

func TestResolveContext_NoHeaderAbove(t *testing.T) {
	text := "has \nhas "
	ctx := ResolveContext(text, endOf(text), 0)
	if ctx.HasEnclosingType() {
		t.Errorf("EnclosingNodeType = %q, want none", ctx.EnclosingNodeType)
	}
	if ctx.Slot.Kind() != models.SlotAttribute {
		t.Errorf("Slot kind = %s, want attribute", ctx.Slot.Kind())
	}
}

func TestResolveContext_IndentedHeaderDoesNotCount(t *testing.T) {
	text := "# Alice [Person]\n  # Acme [Company]\nhas "
	ctx := ResolveContext(text, endOf(text), 0)
	if ctx.EnclosingNodeType != "Person" {
		t.Errorf("EnclosingNodeType = %q, want %q", ctx.EnclosingNodeType, "Person")
	}
}

func TestResolveContext_ScanCap(t *testing.T) {
	text := "# Alice [Person]\nx\nx\nx\nhas "
	if got := ResolveContext(text, endOf(text), 2).EnclosingNodeType; got != "" {
		t.Errorf("with cap 2, EnclosingNodeType = %q, want none", got)
	}
	if got := ResolveContext(text, endOf(text), 4).EnclosingNodeType; got != "Person" {
		t.Errorf("with cap 4, EnclosingNodeType = %q, want Person", got)
	}
}

func TestResolveContext_ColumnIsRuneBased(t *testing.T) {
	text := "# Zoë [Person]\nhas ñam"
	ctx := ResolveContext(text, models.Position{Line: 1, Column: 6}, 0)
	slot, ok := ctx.Slot.(models.AttributeSlot)
	if !ok {
		t.Fatalf("Slot = %T, want AttributeSlot", ctx.Slot)
	}
	if slot.Partial != "ña" {
		t.Errorf("Partial = %q, want %q", slot.Partial, "ña")
	}
}

func TestResolveContext_PositionPastEnd(t *testing.T) {
	text := "# Alice [Person]\nhas "
	ctx := ResolveContext(text, models.Position{Line: 9, Column: 99}, 0)
	if ctx.EnclosingNodeType != "Person" {
		t.Errorf("EnclosingNodeType = %q, want Person", ctx.EnclosingNodeType)
	}
	if ctx.Slot.Kind() != models.SlotAttribute {
		t.Errorf("Slot kind = %s, want attribute", ctx.Slot.Kind())
	}
}

func TestContextResolver_InvalidateAfterEdit(t *testing.T) {
	r := NewContextResolver(0)
	text := "# Alice [Person]\nhas a: 1\nhas "
	if got := r.Resolve(text, endOf(text)).EnclosingNodeType; got != "Person" {
		t.Fatalf("first resolve = %q, want Person", got)
	}

	edited := "# Alice [Person]\n# Acme [Company]\nhas "
	r.Invalidate(1)
	if got := r.Resolve(edited, endOf(edited)).EnclosingNodeType; got != "Company" {
		t.Errorf("after edit, EnclosingNodeType = %q, want Company", got)
	}
}
