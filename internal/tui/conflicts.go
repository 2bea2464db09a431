// Package tui provides an interactive terminal UI for reviewing and
// resolving sync conflicts.
//
// The browser shows one row per open conflict. Selecting a row and pressing
// "l" keeps the local value, "r" accepts the remote value. Resolutions are
// applied immediately through the engine, so quitting mid-session loses
// nothing.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskbridge/store"
	"taskbridge/sync"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	localStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	remoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// conflictsModel is the bubbletea model for the conflict browser
type conflictsModel struct {
	engine    *sync.Engine
	conflicts []store.Conflict
	cursor    int
	resolved  int
	errText   string
	quitting  bool
	width     int
}

func newConflictsModel(engine *sync.Engine, conflicts []store.Conflict) conflictsModel {
	return conflictsModel{
		engine:    engine,
		conflicts: conflicts,
		width:     80,
	}
}

func (m conflictsModel) Init() tea.Cmd {
	return nil
}

func (m conflictsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "j":
			if m.cursor < len(m.conflicts)-1 {
				m.cursor++
			}
			return m, nil

		case "l":
			return m.resolve(store.ChoiceKeepLocal)

		case "r":
			return m.resolve(store.ChoiceAcceptRemote)
		}
	}

	return m, nil
}

func (m conflictsModel) resolve(choice store.ConflictChoice) (tea.Model, tea.Cmd) {
	if len(m.conflicts) == 0 {
		return m, nil
	}

	c := m.conflicts[m.cursor]
	if _, err := m.engine.ResolveConflict(c.ID, choice); err != nil {
		m.errText = fmt.Sprintf("resolve conflict %d: %v", c.ID, err)
		return m, nil
	}

	m.errText = ""
	m.resolved++
	m.conflicts = append(m.conflicts[:m.cursor], m.conflicts[m.cursor+1:]...)
	if m.cursor >= len(m.conflicts) && m.cursor > 0 {
		m.cursor--
	}

	if len(m.conflicts) == 0 {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m conflictsModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("Sync Conflicts"))
	s.WriteString(fmt.Sprintf("  %d open, %d resolved this session\n\n", len(m.conflicts), m.resolved))

	for i, c := range m.conflicts {
		prefix := "  "
		line := fmt.Sprintf("#%d  %s  %s (%s)", c.ID, shorten(c.ItemID, 8), c.Field, c.Source)
		if i == m.cursor {
			prefix = "> "
			line = selectedStyle.Render(line)
		}
		s.WriteString(prefix + line + "\n")
	}

	if len(m.conflicts) > 0 {
		c := m.conflicts[m.cursor]
		s.WriteString("\n")
		s.WriteString(localStyle.Render("  local:  "+displayValue(c.LocalValue)) + "\n")
		s.WriteString(remoteStyle.Render("  remote: "+displayValue(c.RemoteValue)) + "\n")
		s.WriteString(helpStyle.Render("  detected: "+c.DetectedAt.Format("2006-01-02 15:04")) + "\n")
	}

	if m.errText != "" {
		s.WriteString("\n" + errorStyle.Render(m.errText) + "\n")
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • l: keep local • r: accept remote • q: quit"))
	s.WriteString("\n")

	return s.String()
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func displayValue(v string) string {
	if v == "" {
		return "(empty)"
	}
	return v
}

// RunConflictBrowser starts the interactive conflict resolution UI over the
// engine's current open conflicts. It returns the number of conflicts
// resolved during the session.
func RunConflictBrowser(engine *sync.Engine) (int, error) {
	conflicts, err := engine.ListOpenConflicts(0)
	if err != nil {
		return 0, err
	}
	if len(conflicts) == 0 {
		return 0, nil
	}

	p := tea.NewProgram(newConflictsModel(engine, conflicts), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return 0, fmt.Errorf("error running conflict browser: %w", err)
	}

	m, ok := finalModel.(conflictsModel)
	if !ok {
		return 0, fmt.Errorf("unexpected model type")
	}
	return m.resolved, nil
}
