package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"

	"github.com/dgnsrekt/engrepeat/internal/lesson"
)

type historyAction int

const (
	historyActionNone historyAction = iota
	historyActionBack
	historyActionQuit
)

type filterState int

const (
	unfiltered filterState = iota
	filtering
	filterApplied
)

// historyModel lists stored lessons, newest first, with fuzzy title search.
type historyModel struct {
	common      *commonModel
	filterInput textinput.Model
	filterState filterState

	items  []lesson.Summary
	cursor int
	err    error

	action historyAction
}

func newHistoryModel(common *commonModel) historyModel {
	ti := textinput.New()
	ti.Prompt = "Find: "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(fuchsia)
	ti.CharLimit = 64

	return historyModel{
		common:      common,
		filterInput: ti,
	}
}

// open resets the filter and loads the full list.
func (m *historyModel) open() tea.Cmd {
	m.filterState = unfiltered
	m.filterInput.Reset()
	m.filterInput.Blur()
	m.cursor = 0
	m.err = nil
	return loadHistoryCmd(m.common.deps.History, "")
}

func (m *historyModel) takeAction() historyAction {
	a := m.action
	m.action = historyActionNone
	return a
}

func (m historyModel) selected() (lesson.Summary, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return lesson.Summary{}, false
	}
	return m.items[m.cursor], true
}

func (m historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	store := m.common.deps.History

	switch msg := msg.(type) {
	case historyLoadedMsg:
		// Drop results for a query the user has since changed.
		if msg.query != strings.TrimSpace(m.filterInput.Value()) {
			return m, nil
		}
		m.items = msg.items
		if m.cursor >= len(m.items) {
			m.cursor = max(0, len(m.items)-1)
		}
		return m, nil

	case historyDeletedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, loadHistoryCmd(store, strings.TrimSpace(m.filterInput.Value()))

	case tea.KeyMsg:
		if m.filterState == filtering {
			return m.updateFilter(msg)
		}

		switch msg.String() {
		case "q":
			m.action = historyActionQuit
		case "esc":
			if m.filterState == filterApplied {
				return m, m.open()
			}
			m.action = historyActionBack
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "/":
			m.filterState = filtering
			return m, m.filterInput.Focus()
		case "enter":
			if s, ok := m.selected(); ok {
				return m, openHistoryCmd(store, s.ID)
			}
		case "x", "d":
			if s, ok := m.selected(); ok {
				return m, deleteHistoryCmd(store, s.ID)
			}
		}
	}
	return m, nil
}

func (m historyModel) updateFilter(msg tea.KeyMsg) (historyModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, m.open()
	case "enter", "tab", "down", "up":
		m.filterInput.Blur()
		m.filterState = filterApplied
		if strings.TrimSpace(m.filterInput.Value()) == "" {
			m.filterState = unfiltered
		}
		return m, nil
	}

	var cmd tea.Cmd
	before := m.filterInput.Value()
	m.filterInput, cmd = m.filterInput.Update(msg)
	if m.filterInput.Value() != before {
		m.cursor = 0
		cmd = tea.Batch(cmd, loadHistoryCmd(m.common.deps.History, strings.TrimSpace(m.filterInput.Value())))
	}
	return m, cmd
}

func (m historyModel) view(height int) string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle("History"))
	b.WriteString(subtleStyle(fmt.Sprintf("  %s", humanize.Comma(int64(len(m.items))))+" lessons") + "\n\n")

	if m.filterState != unfiltered {
		b.WriteString("  " + m.filterInput.View() + "\n\n")
	}
	if m.err != nil {
		b.WriteString("  " + lipgloss.NewStyle().Foreground(red).Render(m.err.Error()) + "\n\n")
	}

	if len(m.items) == 0 {
		if m.filterState == unfiltered {
			b.WriteString("  " + subtleStyle("No lessons yet."))
		} else {
			b.WriteString("  " + subtleStyle("Nothing found."))
		}
		return b.String()
	}

	used := strings.Count(b.String(), "\n")
	perPage := max(1, (height-used-2)/2)
	start := 0
	if m.cursor >= perPage {
		start = m.cursor - perPage + 1
	}
	end := min(len(m.items), start+perPage)

	width := m.common.contentWidth()
	for i := start; i < end; i++ {
		b.WriteString(m.itemView(i, m.items[i], width))
	}

	b.WriteString("\n  " + subtleStyle("enter open • / find • x delete • esc back • q quit"))
	return b.String()
}

func (m historyModel) itemView(i int, s lesson.Summary, width int) string {
	gutter := "   "
	title := s.Title
	if i == m.cursor {
		gutter = cursorStyle(" ▌ ")
	}
	titleWidth := max(10, width-4)
	title = runewidth.Truncate(title, titleWidth, ellipsis)
	title = runewidth.FillRight(title, titleWidth)
	if i == m.cursor {
		title = selectedTextStyle(title)
	} else {
		title = wordStyle(title)
	}

	meta := fmt.Sprintf("%d sentences • %s • %s",
		s.Sentences,
		humanize.Time(s.CreatedAt),
		humanize.Bytes(uint64(max(0, s.Size))), //nolint:gosec
	)
	return gutter + title + "\n" + "   " + subtleStyle(meta) + "\n"
}
