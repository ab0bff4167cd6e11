// Package ui provides the interactive practice screen for engrepeat.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/engrepeat/internal/lesson"
	"github.com/dgnsrekt/engrepeat/internal/practice"
)

const (
	statusBarHeight = 1
	ellipsis        = "…"
)

// Analyzer turns passages into lessons and looks up single words.
type Analyzer interface {
	Build(ctx context.Context, passage string) (*lesson.Lesson, error)
	Lookup(ctx context.Context, word string) (lesson.WordInfo, error)
}

// Practice is the repeat-playback controller.
type Practice interface {
	SetLesson(l *lesson.Lesson)
	Clear()
	StartPractice(sentenceID string) error
	CancelPractice()
	Snapshot() practice.Snapshot
	Pronounce(ctx context.Context, text string) error
	OnChange(fn func(practice.Snapshot))
	OnError(fn func(error))
}

// HistoryStore keeps past lessons.
type HistoryStore interface {
	Save(l *lesson.Lesson) error
	Get(id string) (*lesson.Lesson, error)
	Delete(id string) error
	List() []lesson.Summary
	Search(query string) []lesson.Summary
}

// Deps are the services the TUI drives. History may be nil.
type Deps struct {
	Analyzer Analyzer
	Practice Practice
	History  HistoryStore
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug("Starting engrepeat UI", "history", deps.History != nil, "mouse", cfg.EnableMouse)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps), opts...)
}

// state is the top-level application state.
type state int

const (
	stateInput state = iota
	stateLesson
	stateHistory
)

func (s state) String() string {
	return map[state]string{
		stateInput:   "entering passage",
		stateLesson:  "practicing lesson",
		stateHistory: "browsing history",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	deps   Deps
	width  int
	height int
}

// contentWidth is the usable width for wrapped text.
func (c *commonModel) contentWidth() int {
	w := c.width - 4
	if c.cfg.MaxWidth > 0 && w > c.cfg.MaxWidth {
		w = c.cfg.MaxWidth
	}
	return max(w, 20)
}

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	// Sub-models
	input   inputModel
	lesson  lessonModel
	history historyModel

	bridge  *practiceBridge
	spinner spinner.Model

	// Non-empty while a passage is being analyzed
	busy string

	showHelp           bool
	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, deps Deps) model {
	if cfg.InputHeight <= 0 {
		cfg.InputHeight = 10
	}
	if cfg.StatusSeconds <= 0 {
		cfg.StatusSeconds = 3
	}
	common := &commonModel{cfg: cfg, deps: deps}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sp.Style.Foreground(fuchsia)

	m := model{
		common:  common,
		state:   stateInput,
		input:   newInputModel(common),
		lesson:  newLessonModel(common),
		history: newHistoryModel(common),
		spinner: sp,
	}
	if deps.Practice != nil {
		m.bridge = newPracticeBridge(deps.Practice)
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.input.init(), m.spinner.Tick}
	if m.bridge != nil {
		cmds = append(cmds, m.bridge.waitForSnapshot(), m.bridge.waitForError())
	}
	if passage := strings.TrimSpace(m.common.cfg.Passage); passage != "" {
		cmds = append(cmds, buildLessonCmd(m.common.deps.Analyzer, passage))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+z":
			return m, tea.Suspend
		}

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.input.setSize(msg.Width, msg.Height)

	case errMsg:
		m.fatalErr = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case practiceSnapshotMsg:
		m.lesson.status.Update(practice.Snapshot(msg))
		return m, m.bridge.waitForSnapshot()

	case practiceErrorMsg:
		m.lesson.status.SetError(msg.err)
		return m, tea.Batch(
			m.bridge.waitForError(),
			m.showStatusMessage("Speech unavailable, try again", true),
		)

	case lessonBuiltMsg:
		m.busy = ""
		if msg.err != nil {
			return m, m.showStatusMessage("Could not analyze passage: "+msg.err.Error(), true)
		}
		m.openLesson(msg.lesson)
		m.input.reset()
		return m, saveLessonCmd(m.common.deps.History, msg.lesson)

	case lessonSavedMsg:
		if msg.err != nil {
			log.Warn("Saving lesson to history failed", "id", msg.id, "error", msg.err)
			return m, m.showStatusMessage("Lesson not saved to history", true)
		}
		return m, nil

	case historyOpenedMsg:
		if msg.err != nil {
			return m, m.showStatusMessage("Could not open lesson: "+msg.err.Error(), true)
		}
		m.openLesson(msg.lesson)
		return m, nil

	case clipboardMsg:
		if msg.err != nil {
			return m, m.showStatusMessage("Clipboard unavailable", true)
		}
		return m, m.showStatusMessage("Copied to clipboard", false)

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false
		return m, nil

	// Results of lesson and history commands go to their sub-model even if
	// the user has moved to another screen meanwhile.
	case wordLookedUpMsg, pronounceDoneMsg:
		newLesson, cmd := m.lesson.update(msg)
		m.lesson = newLesson
		return m, tea.Batch(append([]tea.Cmd{cmd}, m.handleLessonAction()...)...)

	case historyLoadedMsg, historyDeletedMsg:
		newHistory, cmd := m.history.update(msg)
		m.history = newHistory
		return m, cmd
	}

	switch m.state {
	case stateInput:
		newInput, cmd := m.input.update(msg)
		m.input = newInput
		cmds = append(cmds, cmd)
		switch action, passage := m.input.takeAction(); action {
		case inputActionSubmit:
			if m.busy != "" {
				break
			}
			m.busy = "Analyzing passage…"
			cmds = append(cmds, buildLessonCmd(m.common.deps.Analyzer, passage))
		case inputActionHistory:
			cmds = append(cmds, m.openHistory())
		case inputActionBack:
			if m.lesson.lesson != nil {
				m.state = stateLesson
			}
		}

	case stateLesson:
		newLesson, cmd := m.lesson.update(msg)
		m.lesson = newLesson
		cmds = append(cmds, cmd)
		cmds = append(cmds, m.handleLessonAction()...)

	case stateHistory:
		newHistory, cmd := m.history.update(msg)
		m.history = newHistory
		cmds = append(cmds, cmd)
		switch m.history.takeAction() {
		case historyActionBack:
			if m.lesson.lesson != nil {
				m.state = stateLesson
			} else {
				m.state = stateInput
			}
		case historyActionQuit:
			return m, tea.Quit
		}
	}

	return m, tea.Batch(cmds...)
}

// handleLessonAction applies what the lesson view asked for.
func (m *model) handleLessonAction() []tea.Cmd {
	switch m.lesson.takeAction() {
	case lessonActionClear:
		m.common.deps.Practice.Clear()
		m.lesson.setLesson(nil)
		m.input.reset()
		m.state = stateInput
		log.Debug("Lesson cleared")
		return []tea.Cmd{m.input.init()}
	case lessonActionNew:
		m.state = stateInput
		return []tea.Cmd{m.input.init()}
	case lessonActionHistory:
		return []tea.Cmd{m.openHistory()}
	case lessonActionHelp:
		m.showHelp = !m.showHelp
	case lessonActionQuit:
		return []tea.Cmd{tea.Quit}
	case lessonActionStatus:
		msg, isErr := m.lesson.takeStatus()
		return []tea.Cmd{m.showStatusMessage(msg, isErr)}
	}
	return nil
}

func (m *model) openLesson(l *lesson.Lesson) {
	m.common.deps.Practice.SetLesson(l)
	m.lesson.setLesson(l)
	m.state = stateLesson
}

func (m *model) openHistory() tea.Cmd {
	if m.common.deps.History == nil {
		return m.showStatusMessage("History is disabled", true)
	}
	m.state = stateHistory
	return m.history.open()
}

// showStatusMessage shows msg in the status bar until it times out.
func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(time.Duration(m.common.cfg.StatusSeconds) * time.Second)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var body string
	switch m.state {
	case stateLesson:
		body = m.lesson.view(m.bodyHeight(), m.spinner.View())
	case stateHistory:
		body = m.history.view(m.bodyHeight())
	default:
		body = m.input.view()
		if m.busy != "" {
			body += "\n\n  " + m.spinner.View() + " " + subtleStyle(m.busy)
		}
	}

	var b strings.Builder
	fmt.Fprint(&b, body+"\n")
	m.statusBarView(&b)
	if m.showHelp && m.state == stateLesson {
		fmt.Fprint(&b, "\n"+m.lesson.helpView())
	}
	return b.String()
}

func (m model) bodyHeight() int {
	h := m.common.height - statusBarHeight - 1
	if m.showHelp && m.state == stateLesson {
		h -= strings.Count(m.lesson.helpView(), "\n") + 1
	}
	return max(h, 3)
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()

	var note string
	switch {
	case m.statusMessage != "":
		note = m.statusMessage
	case m.state == stateLesson && m.lesson.lesson != nil:
		note = m.lesson.lesson.Title
	default:
		note = m.state.String()
	}

	practiceStatus := ""
	if s := m.lesson.status.CompactStatus(); s != "" {
		practiceStatus = " " + s + " "
	}
	if m.common.cfg.ShowSeq {
		practiceStatus += subtleStyle(fmt.Sprintf(" #%d ", m.lesson.status.Snapshot().Seq))
	}
	helpNote := statusBarHelpStyle(" ? Help ")

	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(practiceStatus)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)

	style := statusBarNoteStyle
	switch {
	case m.statusMessage != "" && m.statusIsError:
		style = statusBarErrorStyle
	case m.statusMessage != "":
		style = statusBarMessageStyle
	}
	note = style(note)

	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(practiceStatus)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s", logo, note, emptySpace, practiceStatus, helpNote)
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle("ERROR"),
		err,
		subtleStyle(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
