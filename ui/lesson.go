package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/engrepeat/internal/lesson"
	"github.com/dgnsrekt/engrepeat/internal/practice"
)

type lessonAction int

const (
	lessonActionNone lessonAction = iota
	lessonActionClear
	lessonActionNew
	lessonActionHistory
	lessonActionHelp
	lessonActionQuit
	lessonActionStatus
)

// lessonModel shows the sentences of a lesson and drives practice and
// word lookups for them.
type lessonModel struct {
	common *commonModel
	lesson *lesson.Lesson
	status *PracticeStatus

	cursor int // selected sentence
	offset int // first rendered sentence

	// Word picker over the selected sentence
	wordMode   bool
	wordCursor int

	// Lookup modal
	modalOpen   bool
	lookingUp   string
	word        *lesson.WordInfo
	wordErr     error
	pronouncing bool

	action        lessonAction
	statusMessage string
	statusIsError bool
}

func newLessonModel(common *commonModel) lessonModel {
	return lessonModel{
		common: common,
		status: NewPracticeStatus(common.cfg.RepeatLimit),
	}
}

func (m *lessonModel) setLesson(l *lesson.Lesson) {
	m.lesson = l
	m.cursor = 0
	m.offset = 0
	m.wordMode = false
	m.closeModal()
	if l == nil {
		m.status.Reset()
	}
}

func (m *lessonModel) closeModal() {
	m.modalOpen = false
	m.lookingUp = ""
	m.word = nil
	m.wordErr = nil
	m.pronouncing = false
}

// takeAction returns and clears the pending action.
func (m *lessonModel) takeAction() lessonAction {
	a := m.action
	m.action = lessonActionNone
	return a
}

func (m *lessonModel) takeStatus() (string, bool) {
	s, e := m.statusMessage, m.statusIsError
	m.statusMessage, m.statusIsError = "", false
	return s, e
}

func (m *lessonModel) setStatus(msg string, isError bool) {
	m.action = lessonActionStatus
	m.statusMessage = msg
	m.statusIsError = isError
}

func (m lessonModel) selected() (lesson.Sentence, bool) {
	if m.lesson == nil || m.cursor < 0 || m.cursor >= len(m.lesson.Sentences) {
		return lesson.Sentence{}, false
	}
	return m.lesson.Sentences[m.cursor], true
}

func (m lessonModel) selectedWord() string {
	s, ok := m.selected()
	if !ok {
		return ""
	}
	words := s.Words()
	if m.wordCursor < 0 || m.wordCursor >= len(words) {
		return ""
	}
	return words[m.wordCursor]
}

func (m lessonModel) update(msg tea.Msg) (lessonModel, tea.Cmd) {
	switch msg := msg.(type) {
	case wordLookedUpMsg:
		if !m.modalOpen || msg.word != m.lookingUp {
			log.Debug("Discarding stale lookup", "word", msg.word, "want", m.lookingUp)
			return m, nil
		}
		if msg.err != nil {
			m.wordErr = msg.err
			return m, nil
		}
		info := msg.info
		m.word = &info
		return m, nil

	case pronounceDoneMsg:
		m.pronouncing = false
		if msg.err != nil {
			var perr *practice.Error
			if errors.As(msg.err, &perr) {
				m.setStatus("Could not pronounce "+msg.word, true)
			} else {
				m.setStatus(msg.err.Error(), true)
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.modalOpen {
			return m.updateModal(msg)
		}
		if m.wordMode {
			return m.updateWordMode(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m lessonModel) updateBrowse(msg tea.KeyMsg) (lessonModel, tea.Cmd) {
	deps := m.common.deps

	switch msg.String() {
	case "q":
		m.action = lessonActionQuit
	case "?":
		m.action = lessonActionHelp
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.lesson != nil && m.cursor < len(m.lesson.Sentences)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		if m.lesson != nil {
			m.cursor = max(0, len(m.lesson.Sentences)-1)
		}

	case "enter", " ":
		s, ok := m.selected()
		if !ok {
			return m, nil
		}
		// Selecting the sentence being practiced stops it.
		if m.status.IsActive(s.ID) {
			deps.Practice.CancelPractice()
			return m, nil
		}
		if err := deps.Practice.StartPractice(s.ID); err != nil {
			log.Error("Could not start practice", "sentence", s.ID, "error", err)
			m.setStatus(err.Error(), true)
		}
	case "s", "esc":
		deps.Practice.CancelPractice()

	case "w", "tab":
		s, ok := m.selected()
		if ok && len(s.Words()) > 0 {
			m.wordMode = true
			m.wordCursor = 0
		}

	case "c":
		if s, ok := m.selected(); ok {
			return m, copyToClipboardCmd(fmt.Sprintf("%s\n%s\n%s", s.Text, s.Phonetic, s.Translation))
		}
	case "n":
		m.action = lessonActionNew
	case "x", "ctrl+l":
		m.action = lessonActionClear
	case "h":
		m.action = lessonActionHistory
	}
	return m, nil
}

func (m lessonModel) updateWordMode(msg tea.KeyMsg) (lessonModel, tea.Cmd) {
	s, _ := m.selected()
	words := s.Words()

	switch msg.String() {
	case "esc", "w", "tab":
		m.wordMode = false
	case "left", "h":
		if m.wordCursor > 0 {
			m.wordCursor--
		}
	case "right", "l":
		if m.wordCursor < len(words)-1 {
			m.wordCursor++
		}
	case "enter", " ":
		word := m.selectedWord()
		if word == "" {
			return m, nil
		}
		m.closeModal()
		m.modalOpen = true
		m.lookingUp = word
		return m, lookupWordCmd(m.common.deps.Analyzer, word)
	case "p":
		if word := m.selectedWord(); word != "" && !m.pronouncing {
			m.pronouncing = true
			return m, pronounceCmd(m.common.deps.Practice, word)
		}
	case "q":
		m.action = lessonActionQuit
	}
	return m, nil
}

func (m lessonModel) updateModal(msg tea.KeyMsg) (lessonModel, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "enter":
		m.closeModal()
	case "p", " ":
		word := m.lookingUp
		if m.word != nil && m.word.Word != "" {
			word = m.word.Word
		}
		if word != "" && !m.pronouncing {
			m.pronouncing = true
			return m, pronounceCmd(m.common.deps.Practice, word)
		}
	}
	return m, nil
}

func (m *lessonModel) view(height int, spin string) string {
	if m.lesson == nil {
		return "\n  " + subtleStyle("No lesson loaded. Press n to paste a passage.")
	}

	width := m.common.contentWidth()
	header := "\n  " + titleStyle(m.lesson.Title) + subtleStyle(fmt.Sprintf("  %d sentences", len(m.lesson.Sentences))) + "\n"
	if detail := m.status.DetailedStatus(width); detail != "" {
		header += "  " + detail + "\n"
	}
	header += "\n"
	avail := max(1, height-strings.Count(header, "\n"))

	if m.modalOpen {
		return header + m.modalView(width, spin)
	}

	blocks := make([]string, len(m.lesson.Sentences))
	for i, s := range m.lesson.Sentences {
		blocks[i] = m.sentenceView(i, s, width, spin)
	}

	m.scrollTo(blocks, avail)

	var b strings.Builder
	used := 0
	for i := m.offset; i < len(blocks); i++ {
		n := strings.Count(blocks[i], "\n") + 1
		if used+n > avail && i > m.offset {
			break
		}
		b.WriteString(blocks[i] + "\n")
		used += n
	}
	return header + b.String()
}

// scrollTo adjusts the offset so the cursor's block is visible.
func (m *lessonModel) scrollTo(blocks []string, avail int) {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	for m.offset < m.cursor {
		lines := 0
		for i := m.offset; i <= m.cursor; i++ {
			lines += strings.Count(blocks[i], "\n") + 1
		}
		if lines <= avail {
			break
		}
		m.offset++
	}
}

func (m lessonModel) sentenceView(i int, s lesson.Sentence, width int, spin string) string {
	selected := i == m.cursor
	active := m.status.IsActive(s.ID)

	gutter := "   "
	if selected {
		gutter = cursorStyle(" ▌ ")
	}

	textWidth := max(10, width-6)
	var text string
	switch {
	case selected && m.wordMode:
		text = m.wordsView(s, textWidth)
	case active:
		text = activeTextStyle(wordwrap.String(s.Text, textWidth))
	case selected:
		text = selectedTextStyle(wordwrap.String(s.Text, textWidth))
	default:
		text = wordStyle(wordwrap.String(s.Text, textWidth))
	}

	lines := []string{text}
	if s.Phonetic != "" {
		lines = append(lines, phoneticStyle(wordwrap.String(s.Phonetic, textWidth)))
	}
	if s.Translation != "" {
		lines = append(lines, translationStyle(wordwrap.String(s.Translation, textWidth)))
	}
	if active {
		lines = append(lines, m.repeatView(textWidth, spin))
	}
	lines = append(lines, dividerStyle(strings.Repeat("─", min(textWidth, 40))))

	number := fmt.Sprintf("%2d ", i+1)
	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	prefix := gutter + faintStyle(number)
	pad := strings.Repeat(" ", runewidth.StringWidth("   "+number))

	out := strings.Split(body, "\n")
	for j := range out {
		if j == 0 {
			out[j] = prefix + out[j]
		} else {
			out[j] = pad + out[j]
		}
	}
	return strings.Join(out, "\n")
}

func (m lessonModel) repeatView(width int, spin string) string {
	if m.status.Loading() {
		return spin + " " + subtleStyle("Loading audio…")
	}
	snap := m.status.Snapshot()
	counter := subtleStyle(" " + m.status.Counter())
	if width < 30 {
		return repeatDots(snap.Repeat, snap.Limit) + counter
	}
	return m.status.ProgressBar(min(width-8, 40)) + counter
}

func (m lessonModel) wordsView(s lesson.Sentence, width int) string {
	words := s.Words()
	parts := make([]string, len(words))
	for i, w := range words {
		if i == m.wordCursor {
			parts[i] = selectedWordStyle(w)
		} else {
			parts[i] = wordStyle(w)
		}
	}
	return wordwrap.String(strings.Join(parts, " "), width)
}

func (m lessonModel) modalView(width int, spin string) string {
	var lines []string
	switch {
	case m.wordErr != nil:
		lines = append(lines,
			titleStyle(m.lookingUp),
			"",
			lipgloss.NewStyle().Foreground(red).Render("Lookup failed: "+m.wordErr.Error()),
		)
	case m.word == nil:
		lines = append(lines, spin+" "+subtleStyle("Looking up "+m.lookingUp+"…"))
	default:
		lines = append(lines,
			titleStyle(m.word.Word),
			phoneticStyle(m.word.Phonetic),
			"",
			wordwrap.String(m.word.Translation, max(10, width-10)),
		)
	}

	hint := "p pronounce • esc close"
	if m.pronouncing {
		hint = spin + " pronouncing…"
	}
	lines = append(lines, "", subtleStyle(hint))

	box := modalStyle.Render(strings.Join(lines, "\n"))
	return indent(box, 2)
}

func (m lessonModel) helpView() string {
	var s string
	s += "\n"
	s += "k/↑      previous sentence   enter    practice / stop\n"
	s += "j/↓      next sentence       s/esc    stop practice\n"
	s += "g/home   first sentence      w/tab    pick a word\n"
	s += "G/end    last sentence       p        pronounce word\n"
	s += "c        copy sentence       n        new passage\n"
	s += "h        history             x        clear lesson\n"
	s += "?        close help          q        quit"

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.common.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}
