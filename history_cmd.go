package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/engrepeat/internal/config"
	"github.com/dgnsrekt/engrepeat/internal/lesson"
)

const titleColumn = 40

var (
	historyCmd = &cobra.Command{
		Use:     "history",
		Aliases: []string{"h"},
		Short:   "List, show and delete saved lessons",
		Args:    cobra.NoArgs,
		RunE:    runHistoryList,
	}

	historyListCmd = &cobra.Command{
		Use:     "list [QUERY]",
		Aliases: []string{"ls"},
		Short:   "List saved lessons, newest first",
		Example: paragraph("engrepeat history list\nengrepeat history list weather"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runHistoryList,
	}

	historyShowCmd = &cobra.Command{
		Use:   "show ID",
		Short: "Render a saved lesson",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}

	historyRmCmd = &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"delete"},
		Short:   "Delete saved lessons",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runHistoryRm,
	}
)

func init() {
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyRmCmd)
}

// openHistory opens the store without the provider client, so history
// works with no API key.
func openHistory(c *config.Config) (*lesson.History, error) {
	if !c.History.Enabled {
		return nil, errors.New("history is disabled (history.enabled: false)")
	}
	return lesson.OpenHistory(c.History.Dir, c.History.MaxLessons, c.History.Compression)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	h, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer h.Close() //nolint:errcheck

	var items []lesson.Summary
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		items = h.Search(args[0])
	} else {
		items = h.List()
	}

	w := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(w, faint("No lessons."))
		return nil
	}
	for _, s := range items {
		fmt.Fprintln(w, summaryLine(s))
	}
	return nil
}

func summaryLine(s lesson.Summary) string {
	title := runewidth.Truncate(s.Title, titleColumn, "…")
	title = runewidth.FillRight(title, titleColumn)
	meta := fmt.Sprintf("%3d sentences  %s", s.Sentences, humanize.Time(s.CreatedAt))
	return fmt.Sprintf("%s  %s  %s", keyword(s.ID), title, faint(meta))
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	h, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer h.Close() //nolint:errcheck

	l, err := h.Get(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return renderLesson(cmd.OutOrStdout(), l)
}

// lessonMarkdown lays a lesson out as a markdown document.
func lessonMarkdown(l *lesson.Lesson) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", l.Title)
	fmt.Fprintf(&b, "*%s · %d sentences*\n\n", humanize.Time(l.CreatedAt), len(l.Sentences))
	for i, s := range l.Sentences {
		fmt.Fprintf(&b, "%d. **%s**\n\n", i+1, s.Text)
		if s.Translation != "" {
			fmt.Fprintf(&b, "   %s\n\n", s.Translation)
		}
		if s.Phonetic != "" {
			fmt.Fprintf(&b, "   `%s`\n\n", s.Phonetic)
		}
	}
	return b.String()
}

func renderLesson(w io.Writer, l *lesson.Lesson) error {
	style := styles.AutoStyle
	width := 80
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = min(tw, 120)
		}
	} else {
		style = styles.NoTTYStyle
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}

	out, err := r.Render(lessonMarkdown(l))
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	if _, err := fmt.Fprint(w, out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return nil
}

func runHistoryRm(cmd *cobra.Command, args []string) error {
	h, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer h.Close() //nolint:errcheck

	var errs []error
	for _, id := range args {
		if err := h.Delete(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted", id)
	}
	return errors.Join(errs...)
}
