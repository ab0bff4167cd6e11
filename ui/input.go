package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	runewidth "github.com/mattn/go-runewidth"
)

type inputAction int

const (
	inputActionNone inputAction = iota
	inputActionSubmit
	inputActionHistory
	inputActionBack
)

// inputModel is the passage entry screen.
type inputModel struct {
	common   *commonModel
	textarea textarea.Model

	action    inputAction
	submitted string
}

func newInputModel(common *commonModel) inputModel {
	ta := textarea.New()
	ta.Placeholder = "Paste an English passage here…"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(common.cfg.InputHeight)
	ta.SetWidth(60)

	return inputModel{
		common:   common,
		textarea: ta,
	}
}

func (m inputModel) init() tea.Cmd {
	return m.textarea.Focus()
}

func (m *inputModel) setSize(w, _ int) {
	m.textarea.SetWidth(max(20, min(w-4, m.common.contentWidth())))
}

func (m *inputModel) reset() {
	m.textarea.Reset()
}

// takeAction returns and clears the pending action.
func (m *inputModel) takeAction() (inputAction, string) {
	a, s := m.action, m.submitted
	m.action, m.submitted = inputActionNone, ""
	return a, s
}

func (m inputModel) update(msg tea.Msg) (inputModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+s", "ctrl+d":
			passage := strings.TrimSpace(m.textarea.Value())
			if passage == "" {
				return m, nil
			}
			m.action = inputActionSubmit
			m.submitted = passage
			return m, nil
		case "ctrl+r":
			m.action = inputActionHistory
			return m, nil
		case "esc":
			m.action = inputActionBack
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m inputModel) view() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle("New lesson") + "\n\n")
	b.WriteString(indent(m.textarea.View(), 2))
	b.WriteString("\n  " + m.hints())
	return b.String()
}

func (m inputModel) hints() string {
	hints := []string{"ctrl+s analyze", "ctrl+v paste", "ctrl+r history", "esc back", "ctrl+c quit"}
	line := strings.Join(hints, " • ")
	if w := m.common.contentWidth(); runewidth.StringWidth(line) > w {
		line = runewidth.Truncate(line, w, ellipsis)
	}
	return subtleStyle(line)
}
