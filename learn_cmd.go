package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/engrepeat/internal/lesson"
	"github.com/dgnsrekt/engrepeat/internal/practice"
)

var (
	noSave        bool
	watch         bool
	say           bool
	sentenceIndex int
	practiceAll   bool
	fromLesson    string

	learnCmd = &cobra.Command{
		Use:   "learn [FILE]",
		Short: "Split a passage into sentences with translation and IPA",
		Long: paragraph(fmt.Sprintf("\n%s a passage: each sentence is printed with its Vietnamese translation and phonetics, and the lesson is saved to history.", keyword("Analyze"))),
		Example: paragraph("engrepeat learn notes.md\nengrepeat learn --watch notes.md\necho 'Hello world. How are you?' | engrepeat learn\nengrepeat learn --clipboard"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runLearn,
	}

	wordCmd = &cobra.Command{
		Use:     "word WORD",
		Short:   "Look up a single word",
		Example: paragraph("engrepeat word through\nengrepeat word --say thought"),
		Args:    cobra.ExactArgs(1),
		RunE:    runWord,
	}

	practiceCmd = &cobra.Command{
		Use:   "practice [FILE]",
		Short: "Repeat a sentence without the TUI",
		Long: paragraph(fmt.Sprintf("\n%s a sentence out loud, over and over. Press ctrl+c to stop.", keyword("Play"))),
		Example: paragraph("engrepeat practice notes.md --sentence 2\nengrepeat practice --lesson l-1718000000000 --all"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runPractice,
	}
)

func init() {
	learnCmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "read the passage from the clipboard")
	learnCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the lesson in history")
	learnCmd.Flags().BoolVarP(&watch, "watch", "w", false, "analyze FILE again whenever it is saved")

	wordCmd.Flags().BoolVarP(&say, "say", "s", false, "pronounce the word")

	practiceCmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "read the passage from the clipboard")
	practiceCmd.Flags().IntVarP(&sentenceIndex, "sentence", "n", 1, "sentence to practice, starting at 1")
	practiceCmd.Flags().BoolVarP(&practiceAll, "all", "a", false, "practice every sentence in turn")
	practiceCmd.Flags().StringVarP(&fromLesson, "lesson", "l", "", "practice a lesson from history")
}

func runLearn(cmd *cobra.Command, args []string) error {
	if watch && (len(args) != 1 || args[0] == "-") {
		return errors.New("--watch needs a FILE")
	}

	passage, err := readPassage(args, fromClipboard)
	if err != nil {
		return err
	}
	if passage == "" {
		return errors.New("no passage given: pass a file, pipe text on stdin or use --clipboard")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	w := cmd.OutOrStdout()
	if err := learnPassage(ctx, a, w, passage); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	last := passage
	return watchFile(ctx, args[0], func() {
		passage, err := readPassage(args, false)
		if err != nil {
			log.Warn("Could not reload passage", "file", args[0], "error", err)
			return
		}
		if passage == "" || passage == last {
			return
		}
		last = passage
		fmt.Fprintln(w, faint("\n── reloaded "+args[0]+" ──\n"))
		if err := learnPassage(ctx, a, w, passage); err != nil {
			fmt.Fprintln(w, err)
		}
	})
}

// learnPassage builds a lesson, saves it and prints it.
func learnPassage(ctx context.Context, a *app, w io.Writer, passage string) error {
	l, err := a.builder.Build(ctx, passage)
	if err != nil {
		return err
	}

	if !noSave && a.history != nil {
		if err := a.history.Save(l); err != nil {
			log.Warn("Could not save lesson", "id", l.ID, "error", err)
		}
	}

	printLesson(w, l)
	return nil
}

func printLesson(w io.Writer, l *lesson.Lesson) {
	for i, s := range l.Sentences {
		fmt.Fprintf(w, "%2d. %s\n", i+1, s.Text)
		fmt.Fprintf(w, "    %s\n", translation(s.Translation))
		fmt.Fprintf(w, "    %s\n\n", faint(s.Phonetic))
	}
	fmt.Fprintln(w, faint(fmt.Sprintf("lesson %s", l.ID)))
}

func runWord(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	info, err := a.builder.Lookup(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s  %s\n", keyword(info.Word), faint(info.Phonetic))
	fmt.Fprintf(w, "%s\n", translation(info.Translation))

	if say {
		if err := a.controller.Pronounce(cmd.Context(), info.Word); err != nil {
			return fmt.Errorf("unable to pronounce %q: %w", info.Word, err)
		}
	}
	return nil
}

func runPractice(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	l, err := practiceLesson(ctx, a, args)
	if err != nil {
		return err
	}

	targets, err := pickSentences(l, sentenceIndex, practiceAll)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	rep := newProgressReporter(w)
	a.controller.OnChange(rep.snapshot)
	a.controller.OnError(rep.fail)
	a.controller.SetLesson(l)

	go func() {
		<-ctx.Done()
		a.controller.CancelPractice()
	}()

	for _, s := range targets {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(w, "%s\n    %s\n    %s\n", s.Text, translation(s.Translation), faint(s.Phonetic))
		if err := a.controller.StartPractice(s.ID); err != nil {
			return err
		}
		a.controller.Wait()
		if err := rep.err(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

// practiceLesson loads the --lesson from history or builds one from the
// passage in args.
func practiceLesson(ctx context.Context, a *app, args []string) (*lesson.Lesson, error) {
	if fromLesson != "" {
		if a.history == nil {
			return nil, errors.New("history is disabled")
		}
		return a.history.Get(fromLesson)
	}

	passage, err := readPassage(args, fromClipboard)
	if err != nil {
		return nil, err
	}
	if passage == "" {
		return nil, errors.New("no passage given: pass a file, pipe text on stdin, use --clipboard or --lesson")
	}
	l, err := a.builder.Build(ctx, passage)
	if err != nil {
		return nil, err
	}
	if a.history != nil {
		if err := a.history.Save(l); err != nil {
			log.Warn("Could not save lesson", "id", l.ID, "error", err)
		}
	}
	return l, nil
}

// pickSentences returns the sentences to practice. n counts from 1.
func pickSentences(l *lesson.Lesson, n int, all bool) ([]lesson.Sentence, error) {
	if len(l.Sentences) == 0 {
		return nil, errors.New("lesson has no sentences")
	}
	if all {
		return l.Sentences, nil
	}
	if n < 1 || n > len(l.Sentences) {
		return nil, fmt.Errorf("sentence %d out of range: lesson has %d", n, len(l.Sentences))
	}
	return []lesson.Sentence{l.Sentences[n-1]}, nil
}

// progressReporter prints one line per repeat and remembers the first
// practice failure.
type progressReporter struct {
	w io.Writer

	mu       sync.Mutex
	lastSeen int
	failure  error
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w}
}

func (r *progressReporter) snapshot(s practice.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case s.Loading:
		r.lastSeen = 0
		fmt.Fprintln(r.w, faint("    loading audio…"))
	case s.State == practice.StatePlaying && s.Repeat != r.lastSeen:
		r.lastSeen = s.Repeat
		fmt.Fprintf(r.w, "    ▶ %s\n", progressLine(s.Repeat, s.Limit))
	}
}

func (r *progressReporter) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure == nil {
		r.failure = err
	}
}

func (r *progressReporter) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}

func progressLine(repeat, limit int) string {
	if limit <= 0 {
		return ""
	}
	repeat = max(0, min(repeat, limit))
	return fmt.Sprintf("%s %d/%d", strings.Repeat("●", repeat)+strings.Repeat("○", limit-repeat), repeat, limit)
}
