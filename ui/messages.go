package ui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/engrepeat/internal/lesson"
	"github.com/dgnsrekt/engrepeat/internal/practice"
)

// requestTimeout bounds analysis and lookup calls made from the TUI.
const requestTimeout = 90 * time.Second

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	lessonBuiltMsg struct {
		lesson *lesson.Lesson
		err    error
	}
	lessonSavedMsg struct {
		id  string
		err error
	}
	wordLookedUpMsg struct {
		word string
		info lesson.WordInfo
		err  error
	}
	pronounceDoneMsg struct {
		word string
		err  error
	}
	historyLoadedMsg struct {
		query string
		items []lesson.Summary
	}
	historyOpenedMsg struct {
		lesson *lesson.Lesson
		err    error
	}
	historyDeletedMsg struct {
		id  string
		err error
	}
	clipboardMsg struct {
		text string
		err  error
	}
	practiceSnapshotMsg practice.Snapshot
	practiceErrorMsg    struct{ err error }
	statusMessageTimeoutMsg struct{}
)

// practiceBridge forwards controller callbacks into the tea loop. Only the
// newest snapshot is kept; Seq lets the model drop anything older.
type practiceBridge struct {
	snapshots chan practice.Snapshot
	errs      chan error
}

func newPracticeBridge(p Practice) *practiceBridge {
	b := &practiceBridge{
		snapshots: make(chan practice.Snapshot, 1),
		errs:      make(chan error, 8),
	}
	p.OnChange(b.publish)
	p.OnError(b.report)
	return b
}

// publish never blocks. Callbacks are serialized by the controller so the
// slot is empty after the drain.
func (b *practiceBridge) publish(s practice.Snapshot) {
	select {
	case b.snapshots <- s:
	default:
		select {
		case <-b.snapshots:
		default:
		}
		b.snapshots <- s
	}
}

func (b *practiceBridge) report(err error) {
	select {
	case b.errs <- err:
	default:
		log.Warn("Dropped practice error", "error", err)
	}
}

func (b *practiceBridge) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return practiceSnapshotMsg(<-b.snapshots)
	}
}

func (b *practiceBridge) waitForError() tea.Cmd {
	return func() tea.Msg {
		return practiceErrorMsg{<-b.errs}
	}
}

// COMMANDS

func buildLessonCmd(a Analyzer, passage string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		start := time.Now()
		l, err := a.Build(ctx, passage)
		if err != nil {
			log.Error("Passage analysis failed", "error", err)
			return lessonBuiltMsg{err: err}
		}
		log.Info("Lesson built", "id", l.ID, "sentences", len(l.Sentences), "elapsed", time.Since(start))
		return lessonBuiltMsg{lesson: l}
	}
}

func saveLessonCmd(h HistoryStore, l *lesson.Lesson) tea.Cmd {
	if h == nil || l == nil {
		return nil
	}
	return func() tea.Msg {
		return lessonSavedMsg{id: l.ID, err: h.Save(l)}
	}
}

func lookupWordCmd(a Analyzer, word string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		info, err := a.Lookup(ctx, word)
		if err != nil {
			log.Warn("Word lookup failed", "word", word, "error", err)
		}
		return wordLookedUpMsg{word: word, info: info, err: err}
	}
}

func pronounceCmd(p Practice, word string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return pronounceDoneMsg{word: word, err: p.Pronounce(ctx, word)}
	}
}

func loadHistoryCmd(h HistoryStore, query string) tea.Cmd {
	return func() tea.Msg {
		if query == "" {
			return historyLoadedMsg{items: h.List()}
		}
		return historyLoadedMsg{query: query, items: h.Search(query)}
	}
}

func openHistoryCmd(h HistoryStore, id string) tea.Cmd {
	return func() tea.Msg {
		l, err := h.Get(id)
		return historyOpenedMsg{lesson: l, err: err}
	}
}

func deleteHistoryCmd(h HistoryStore, id string) tea.Cmd {
	return func() tea.Msg {
		return historyDeletedMsg{id: id, err: h.Delete(id)}
	}
}

func copyToClipboardCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{text: text, err: clipboard.WriteAll(text)}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}
