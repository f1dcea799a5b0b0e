package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

var highlightTokens bool

// Token styles.
var (
	headerTokenStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	relationTokenStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	attributeTokenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	descriptionTokenStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
)

func styleForToken(cat models.TokenCategory) (lipgloss.Style, bool) {
	switch cat {
	case models.TokenHeader:
		return headerTokenStyle, true
	case models.TokenRelationTag:
		return relationTokenStyle, true
	case models.TokenAttributeKeyword:
		return attributeTokenStyle, true
	case models.TokenDescriptionBlock:
		return descriptionTokenStyle, true
	default:
		return lipgloss.Style{}, false
	}
}

// renderHighlighted styles every token of text. Plain text and any bytes
// between tokens are copied unchanged.
func renderHighlighted(text string) string {
	tokens := core.Tokenize(text)
	var b strings.Builder
	ti := 0
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		pos := 0
		for ; ti < len(tokens) && tokens[ti].Line == i; ti++ {
			tok := tokens[ti]
			if tok.Start > pos {
				b.WriteString(line[pos:tok.Start])
			}
			if style, ok := styleForToken(tok.Category); ok {
				b.WriteString(style.Render(tok.Text))
			} else {
				b.WriteString(tok.Text)
			}
			pos = tok.End
		}
		if pos < len(line) {
			b.WriteString(line[pos:])
		}
	}
	return b.String()
}

var highlightCmd = &cobra.Command{
	Use:   "highlight <graph|file>",
	Short: "Print CNL text with syntax highlighting",
	Long: `Print CNL text with each span colored by its class: headers, relation
tags, attribute keywords and description blocks. With --tokens, list the
classified spans instead.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeGraphIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _, err := loadDocument(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if highlightTokens {
			for _, tok := range core.Tokenize(text) {
				fmt.Fprintf(out, "%d:%d-%d\t%-18s %q\n", tok.Line, tok.Start, tok.End, tok.Category, tok.Text)
			}
			return nil
		}
		fmt.Fprintln(out, renderHighlighted(text))
		return nil
	},
}

func init() {
	highlightCmd.Flags().BoolVar(&highlightTokens, "tokens", false, "List classified spans instead of rendering")
	rootCmd.AddCommand(highlightCmd)
}
