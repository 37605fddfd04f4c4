package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"fixflow/internal/artifact"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentScreen == screenDetail {
			return m.handleDetailKey(msg)
		}
		return m.handleBoardKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vw := m.width - 4
		vh := m.height - 6
		if vw < 20 {
			vw = 20
		}
		if vh < 6 {
			vh = 6
		}
		m.viewport.Width = vw
		m.viewport.Height = vh
		return m, nil

	case issuesRefreshedMsg:
		m.rebuildColumns(msg.cards)
		return m, nil

	case artifactLoadedMsg:
		m.detailID = msg.issueID
		m.detailArtifact = msg.index
		m.viewport.SetContent(msg.content)
		m.viewport.GotoTop()
		m.currentScreen = screenDetail
		return m, nil

	case archivedMsg:
		if msg.err != nil {
			m.statusMsg = "Archive failed: " + msg.err.Error()
		} else {
			m.statusMsg = "Archived " + msg.issueID
		}
		return m, m.refreshIssues()
	}

	return m, nil
}

func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "left", "h":
		m.cursorCol--
		m.clampCursor()
	case "right", "l":
		m.cursorCol++
		m.clampCursor()
	case "up", "k":
		m.cursorRow--
		m.clampCursor()
	case "down", "j":
		m.cursorRow++
		m.clampCursor()

	case "r":
		m.statusMsg = ""
		return m, m.refreshIssues()

	case "a":
		if c := m.selectedCard(); c != nil {
			if !c.Status.Terminal() {
				m.statusMsg = c.ID + " is not terminal; only RESOLVED or REJECTED issues archive"
				return m, nil
			}
			return m, m.archiveIssue(c.ID)
		}

	case "enter":
		if c := m.selectedCard(); c != nil {
			return m, m.loadArtifact(c.ID, 0)
		}
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.currentScreen = screenBoard
		return m, nil

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "right", "l":
		next := (m.detailArtifact + 1) % len(artifact.Names)
		return m, m.loadArtifact(m.detailID, next)

	case "shift+tab", "left", "h":
		prev := (m.detailArtifact - 1 + len(artifact.Names)) % len(artifact.Names)
		return m, m.loadArtifact(m.detailID, prev)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}
