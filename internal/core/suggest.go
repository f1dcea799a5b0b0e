package core

import "github.com/valter-silva-au/cnl-graph/pkg/models"

// SchemaProvider supplies the current schema snapshot for a graph. The
// snapshot is read-only and must be fetched per request.
type SchemaProvider interface {
	Schema(graphID string) (*models.Schema, error)
}

// Suggest returns the candidates for ctx, in schema registry order. Results
// are built fresh on every call.
func Suggest(ctx models.SuggestionContext, schema models.Schema) []models.Suggestion {
	var out []models.Suggestion
	switch ctx.Slot.(type) {
	case models.NodeTypeSlot:
		for _, nt := range schema.NodeTypes {
			out = append(out, models.Suggestion{
				Label:    nt.Name,
				Detail:   nt.Description,
				Category: models.CategoryNodeType,
			})
		}
	case models.RelationSlot:
		for _, rt := range schema.RelationTypes {
			if !rt.AllowsSource(ctx.EnclosingNodeType) {
				continue
			}
			out = append(out, models.Suggestion{
				Label:    rt.Name,
				Detail:   rt.Description,
				Category: models.CategoryRelation,
			})
		}
	case models.AttributeSlot:
		for _, at := range schema.AttributeTypes {
			if !at.AppliesTo(ctx.EnclosingNodeType) {
				continue
			}
			out = append(out, models.Suggestion{
				Label:    at.Name,
				Detail:   at.Description,
				Category: models.CategoryAttribute,
			})
		}
	}
	return out
}

// SuggestAt resolves the context at pos and returns its suggestions.
func SuggestAt(text string, pos models.Position, schema models.Schema, maxScanLines int) (models.SuggestionContext, []models.Suggestion) {
	ctx := ResolveContext(text, pos, maxScanLines)
	return ctx, Suggest(ctx, schema)
}
