package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"fixflow/internal/artifact"
	"fixflow/internal/issue"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle    = lipgloss.NewStyle().Foreground(clrDim)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(clrSubtle)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1).
			Width(18)

	cardSelectedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(clrHighlight).
				Padding(0, 1).
				Width(18).
				Bold(true)

	statusStyle = lipgloss.NewStyle().Foreground(clrGreen).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.currentScreen {
	case screenDetail:
		content = m.viewDetail()
	default:
		content = m.viewBoard()
	}

	return content + "\n" + m.viewFooter()
}

func (m Model) viewBoard() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("fixflow") + dimStyle.Render("  issue board") + "\n\n")

	var cols []string
	for i := range columnStatuses {
		var cb strings.Builder
		cb.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", columnLabels[i], len(m.columns[i]))) + "\n")

		for j, c := range m.columns[i] {
			style := cardStyle
			if i == m.cursorCol && j == m.cursorRow {
				style = cardSelectedStyle
			}
			label := c.ID
			if c.Status == issue.StatusRejected {
				label += "\n" + errorStyle.Render("REJECTED")
			}
			cb.WriteString(style.Render(label) + "\n")
		}
		cols = append(cols, cb.String())
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	return b.String()
}

func (m Model) viewDetail() string {
	var b strings.Builder

	// Tab strip over the artifact trail.
	var tabs []string
	for i, name := range artifact.Names {
		if i == m.detailArtifact {
			tabs = append(tabs, titleStyle.Render("["+name+"]"))
		} else {
			tabs = append(tabs, dimStyle.Render(name))
		}
	}
	b.WriteString(titleStyle.Render(m.detailID) + "  " + strings.Join(tabs, " ") + "\n\n")
	b.WriteString(m.viewport.View())
	return b.String()
}

func (m Model) viewFooter() string {
	var keys [][2]string
	switch m.currentScreen {
	case screenDetail:
		keys = [][2]string{
			{"tab", "next artifact"}, {"↑/↓", "scroll"}, {"esc", "back"},
		}
	default:
		keys = [][2]string{
			{"↑/↓/←/→", "move"}, {"enter", "open"}, {"a", "archive"}, {"r", "refresh"}, {"q", "quit"},
		}
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k[0])+" "+footerDescStyle.Render(k[1]))
	}
	footer := strings.Join(parts, dimStyle.Render("  ·  "))

	if m.statusMsg != "" {
		style := statusStyle
		if strings.HasPrefix(m.statusMsg, "Archive failed") {
			style = errorStyle
		}
		footer = style.Render(m.statusMsg) + "\n" + footer
	}
	return footer
}
