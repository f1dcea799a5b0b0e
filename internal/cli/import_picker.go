package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/valter-silva-au/cnl-graph/internal/core"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// runProgram runs a bubbletea model to completion. Tests replace it.
var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// graphPickerModel asks which graph to import from when several hold the node.
type graphPickerModel struct {
	node      string
	choices   []string
	cursor    int
	chosen    string
	cancelled bool
}

func newGraphPickerModel(node string, choices []string) graphPickerModel {
	return graphPickerModel{node: node, choices: choices}
}

func (m graphPickerModel) Init() tea.Cmd { return nil }

func (m graphPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "esc", "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen = m.choices[m.cursor]
		return m, tea.Quit
	}
	return m, nil
}

func (m graphPickerModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" Import context "))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  Node %s appears in %d graphs. Import from:\n\n", m.node, len(m.choices)))
	for i, c := range m.choices {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("  > " + c))
		} else {
			b.WriteString("    " + c)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("up/down: move | enter: choose | q: cancel"))
	return b.String()
}

// pickGraph runs the graph picker. An empty result means the user cancelled.
func pickGraph(node string, choices []string) (string, error) {
	final, err := runProgram(newGraphPickerModel(node, choices))
	if err != nil {
		return "", fmt.Errorf("running graph picker: %w", err)
	}
	m, ok := final.(graphPickerModel)
	if !ok || m.cancelled {
		return "", nil
	}
	return m.chosen, nil
}

// mergeModel lets the user pick lines from the local (target) and remote
// (source) blocks. It only edits selections; the caller confirms or cancels
// the session once the program exits.
type mergeModel struct {
	session     *core.MergeSession
	localGraph  string
	remoteGraph string

	side      models.MergeSide
	cursor    map[models.MergeSide]int
	width     int
	confirmed bool
	cancelled bool
	warning   string
}

func newMergeModel(session *core.MergeSession, localGraph string) mergeModel {
	side := models.SideSource
	if len(session.Lines(models.SideSource)) == 0 {
		side = models.SideTarget
	}
	return mergeModel{
		session:     session,
		localGraph:  localGraph,
		remoteGraph: session.RemoteGraphID,
		side:        side,
		cursor:      map[models.MergeSide]int{models.SideTarget: 0, models.SideSource: 0},
	}
}

func (m mergeModel) Init() tea.Cmd { return nil }

func (m mergeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		m.warning = ""
		lines := m.session.Lines(m.side)
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		case "tab", "left", "right", "h", "l":
			other := models.SideTarget
			if m.side == models.SideTarget {
				other = models.SideSource
			}
			if len(m.session.Lines(other)) > 0 {
				m.side = other
			}
		case "up", "k":
			if m.cursor[m.side] > 0 {
				m.cursor[m.side]--
			}
		case "down", "j":
			if m.cursor[m.side] < len(lines)-1 {
				m.cursor[m.side]++
			}
		case " ", "x":
			if len(lines) > 0 {
				_ = m.session.Toggle(m.side, m.cursor[m.side])
			}
		case "a":
			_ = m.session.SelectAll(m.side)
		case "enter":
			if !m.session.CanConfirm() {
				m.warning = "Select at least one line to merge, or press q to cancel."
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m mergeModel) View() string {
	title := titleStyle.Render(fmt.Sprintf(" Merge %s: %s <- %s ", m.session.NodeID, m.localGraph, m.remoteGraph))

	colWidth := 0
	if m.width > 0 {
		colWidth = m.width/2 - 4
	}
	local := m.renderSide(models.SideTarget, "Local ("+m.localGraph+")", colWidth)
	remote := m.renderSide(models.SideSource, "Remote ("+m.remoteGraph+")", colWidth)
	body := lipgloss.JoinHorizontal(lipgloss.Top, local, remote)

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %d line(s) will be appended to %s.\n", len(m.session.Plan()), m.localGraph))
	if m.warning != "" {
		b.WriteString(errorStyle.Render("  " + m.warning))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("tab: switch side | up/down: move | space: toggle | a: all | enter: merge | q: cancel"))
	return b.String()
}

func (m mergeModel) renderSide(side models.MergeSide, label string, width int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(label))
	b.WriteString("\n")

	lines := m.session.Lines(side)
	if len(lines) == 0 {
		b.WriteString("  (no block)")
	}
	for i, line := range lines {
		box := "[ ]"
		if m.session.IsSelected(side, i) {
			box = selectedStyle.Render("[x]")
		}
		marker := "  "
		if side == m.side && i == m.cursor[side] {
			marker = cursorStyle.Render("> ")
		}
		b.WriteString(fmt.Sprintf("%s%s %s", marker, box, line))
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}

	style := panelStyle
	if side == m.side {
		style = activePanelStyle
	}
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(b.String())
}
