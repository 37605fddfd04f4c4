// Package tui is the interactive dashboard: a board of active issues
// grouped by workflow status, with a detail view that pages through an
// issue's artifact trail.
package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"fixflow/internal/artifact"
	"fixflow/internal/issue"
	"fixflow/internal/workflow"
)

// screen represents which view the TUI is showing.
type screen int

const (
	screenBoard  screen = iota // issue board (main)
	screenDetail               // artifact viewer for one issue
)

// Column indices for navigation.
const (
	colOpen = iota
	colConfirmed
	colReviewed
	colImplemented
	colTested
	colTerminal
	numColumns
)

var columnStatuses = [numColumns][]issue.Status{
	{issue.StatusOpen},
	{issue.StatusConfirmed},
	{issue.StatusReviewed},
	{issue.StatusImplemented},
	{issue.StatusTested},
	{issue.StatusResolved, issue.StatusRejected},
}

var columnLabels = [numColumns]string{
	"OPEN",
	"CONFIRMED",
	"REVIEWED",
	"IMPLEMENTED",
	"TESTED",
	"DONE",
}

// card is one issue on the board.
type card struct {
	ID     string
	Status issue.Status
	Kind   issue.Kind
}

// Model is the top-level bubbletea model.
type Model struct {
	store  *artifact.Store
	width  int
	height int

	currentScreen screen

	// Board state.
	columns   [numColumns][]card
	cursorCol int
	cursorRow int

	// Detail state.
	detailID       string
	detailArtifact int // index into artifact.Names
	viewport       viewport.Model

	statusMsg string
	quitting  bool
}

// New creates a new TUI model over the artifact store.
func New(st *artifact.Store) Model {
	vp := viewport.New(80, 20)
	return Model{
		store:    st,
		viewport: vp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.refreshIssues()
}

type issuesRefreshedMsg struct {
	cards []card
}

type artifactLoadedMsg struct {
	issueID string
	index   int
	content string
}

type archivedMsg struct {
	issueID string
	err     error
}

func (m Model) refreshIssues() tea.Cmd {
	return func() tea.Msg {
		ids, _ := m.store.ListActive()
		cards := make([]card, 0, len(ids))
		for _, id := range ids {
			rec, err := issue.Load(m.store, id)
			if err != nil {
				continue
			}
			cards = append(cards, card{ID: id, Status: rec.Status, Kind: rec.Kind})
		}
		return issuesRefreshedMsg{cards: cards}
	}
}

func (m Model) loadArtifact(issueID string, index int) tea.Cmd {
	return func() tea.Msg {
		name := artifact.Names[index]
		content, ok := m.store.Read(issueID, name)
		if !ok {
			content = "(" + name + ".md not written yet)"
		}
		return artifactLoadedMsg{issueID: issueID, index: index, content: content}
	}
}

func (m Model) archiveIssue(issueID string) tea.Cmd {
	return func() tea.Msg {
		mgr := workflow.NewArchiveManager(m.store)
		return archivedMsg{issueID: issueID, err: mgr.Archive(issueID)}
	}
}

func (m *Model) rebuildColumns(cards []card) {
	for i := range m.columns {
		m.columns[i] = nil
	}
	for _, c := range cards {
		for i, statuses := range columnStatuses {
			for _, s := range statuses {
				if c.Status == s {
					m.columns[i] = append(m.columns[i], c)
				}
			}
		}
	}
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursorCol < 0 {
		m.cursorCol = 0
	}
	if m.cursorCol >= numColumns {
		m.cursorCol = numColumns - 1
	}
	col := m.columns[m.cursorCol]
	if m.cursorRow >= len(col) {
		m.cursorRow = len(col) - 1
	}
	if m.cursorRow < 0 {
		m.cursorRow = 0
	}
}

func (m *Model) selectedCard() *card {
	col := m.columns[m.cursorCol]
	if m.cursorRow < len(col) {
		c := col[m.cursorRow]
		return &c
	}
	return nil
}
