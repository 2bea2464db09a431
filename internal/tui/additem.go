package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskbridge/store"
)

// Fields collected by the add-item prompt, in order.
const (
	fieldTitle = iota
	fieldDescription
	fieldDueAt
	fieldDuration
	fieldCount
)

// addModel is the bubbletea model for interactive item entry
type addModel struct {
	inputs    []textinput.Model
	focused   int
	item      *store.Item
	errText   string
	cancelled bool
	quitting  bool
}

func newAddModel() addModel {
	inputs := make([]textinput.Model, fieldCount)

	title := textinput.New()
	title.Placeholder = "Title"
	title.Focus()
	title.Width = 50
	inputs[fieldTitle] = title

	desc := textinput.New()
	desc.Placeholder = "Description (optional)"
	desc.Width = 50
	inputs[fieldDescription] = desc

	due := textinput.New()
	due.Placeholder = "Due (2006-01-02 15:04, optional)"
	due.Width = 50
	inputs[fieldDueAt] = due

	dur := textinput.New()
	dur.Placeholder = "Duration minutes (optional)"
	dur.Width = 50
	inputs[fieldDuration] = dur

	return addModel{inputs: inputs}
}

func (m addModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m addModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			m.quitting = true
			return m, tea.Quit

		case "enter":
			if m.focused == fieldCount-1 {
				item, err := m.buildItem()
				if err != nil {
					m.errText = err.Error()
					return m, nil
				}
				m.item = item
				m.quitting = true
				return m, tea.Quit
			}
			return m.focusField(m.focused + 1)

		case "tab", "down":
			return m.focusField((m.focused + 1) % fieldCount)

		case "shift+tab", "up":
			return m.focusField((m.focused + fieldCount - 1) % fieldCount)
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m addModel) focusField(i int) (tea.Model, tea.Cmd) {
	m.inputs[m.focused].Blur()
	m.focused = i
	return m, m.inputs[m.focused].Focus()
}

func (m addModel) buildItem() (*store.Item, error) {
	title := strings.TrimSpace(m.inputs[fieldTitle].Value())
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	item := &store.Item{
		Title:       title,
		Description: strings.TrimSpace(m.inputs[fieldDescription].Value()),
	}

	if due := strings.TrimSpace(m.inputs[fieldDueAt].Value()); due != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04", due, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid due time %q (want 2006-01-02 15:04)", due)
		}
		item.DueAt = &t
	}

	if dur := strings.TrimSpace(m.inputs[fieldDuration].Value()); dur != "" {
		minutes, err := strconv.Atoi(dur)
		if err != nil || minutes < 0 {
			return nil, fmt.Errorf("invalid duration %q (want non-negative minutes)", dur)
		}
		item.DurationMin = minutes
	}

	return item, nil
}

func (m addModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("New Item"))
	s.WriteString("\n\n")

	for i := range m.inputs {
		s.WriteString(m.inputs[i].View())
		s.WriteString("\n")
	}

	if m.errText != "" {
		s.WriteString("\n" + errorStyle.Render(m.errText) + "\n")
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("tab: next field • enter: confirm • esc: cancel"))
	s.WriteString("\n")
	return s.String()
}

// RunAddItem prompts for a new item interactively. Returns nil without error
// when the user cancels.
func RunAddItem() (*store.Item, error) {
	p := tea.NewProgram(newAddModel())
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("error running add prompt: %w", err)
	}

	m, ok := finalModel.(addModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type")
	}
	if m.cancelled {
		return nil, nil
	}
	return m.item, nil
}
