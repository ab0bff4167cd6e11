package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/engrepeat/internal/practice"
)

// PracticeStatus renders the controller's snapshot for the status bar and
// the active sentence.
type PracticeStatus struct {
	snapshot practice.Snapshot
	limit    int
	bar      progress.Model
	errText  string
}

// NewPracticeStatus creates an idle status display.
func NewPracticeStatus(limit int) *PracticeStatus {
	if limit < 1 {
		limit = practice.DefaultConfig().RepeatLimit
	}
	return &PracticeStatus{
		limit: limit,
		bar: progress.New(
			progress.WithScaledGradient("#5A56E0", "#EE6FF8"),
			progress.WithoutPercentage(),
			progress.WithWidth(20),
		),
	}
}

// Update applies snap. Snapshots older than the current one are ignored.
// It reports whether snap was applied.
func (s *PracticeStatus) Update(snap practice.Snapshot) bool {
	if snap.Seq != 0 && snap.Seq <= s.snapshot.Seq {
		return false
	}
	s.snapshot = snap
	if snap.Limit > 0 {
		s.limit = snap.Limit
	}
	if snap.Active() {
		s.errText = ""
	}
	return true
}

// SetError records a failure to show until the next practice starts.
func (s *PracticeStatus) SetError(err error) {
	if err == nil {
		s.errText = ""
		return
	}
	s.errText = err.Error()
}

// Snapshot returns the last applied snapshot.
func (s *PracticeStatus) Snapshot() practice.Snapshot {
	return s.snapshot
}

// IsActive reports whether sentenceID is being practiced.
func (s *PracticeStatus) IsActive(sentenceID string) bool {
	return sentenceID != "" && s.snapshot.SentenceID == sentenceID
}

// Loading reports whether speech is being fetched.
func (s *PracticeStatus) Loading() bool {
	return s.snapshot.Active() && s.snapshot.Loading
}

// Progress returns the fraction of repeats started.
func (s *PracticeStatus) Progress() float64 {
	if s.limit <= 0 || !s.snapshot.Active() {
		return 0
	}
	p := float64(s.snapshot.Repeat) / float64(s.limit)
	if p > 1 {
		p = 1
	}
	return p
}

// Counter returns "repeat/limit", or "" when idle.
func (s *PracticeStatus) Counter() string {
	if !s.snapshot.Active() {
		return ""
	}
	return fmt.Sprintf("%d/%d", s.snapshot.Repeat, s.limit)
}

// CompactStatus returns a short status string for the status bar.
func (s *PracticeStatus) CompactStatus() string {
	if s.errText != "" && !s.snapshot.Active() {
		return lipgloss.NewStyle().Foreground(red).Render("✗ speech unavailable")
	}
	if !s.snapshot.Active() {
		return ""
	}

	var icon string
	var color lipgloss.TerminalColor
	switch s.snapshot.State {
	case practice.StateLoading:
		icon, color = "⟳", lipgloss.Color("#00AAFF")
	case practice.StatePlaying:
		icon, color = "▶", green
	case practice.StatePausedBetweenRepeats:
		icon, color = "⏸", yellow
	default:
		return ""
	}

	status := lipgloss.NewStyle().Foreground(color).Render(icon + " Repeat")
	if s.snapshot.State != practice.StateLoading {
		status += subtleStyle(" " + s.Counter())
	}
	return status
}

// ProgressBar renders the repeat progress of the active sentence.
func (s *PracticeStatus) ProgressBar(width int) string {
	if width < 10 || !s.snapshot.Active() {
		return ""
	}
	s.bar.Width = width
	return s.bar.ViewAs(s.Progress())
}

// DetailedStatus returns the error line for the lesson view, if any.
func (s *PracticeStatus) DetailedStatus(width int) string {
	if s.errText == "" {
		return ""
	}
	line := truncate.StringWithTail(s.errText, uint(max(0, width-8)), ellipsis) //nolint:gosec
	return lipgloss.NewStyle().Foreground(red).Render("Error: " + line)
}

// Reset returns the display to idle.
func (s *PracticeStatus) Reset() {
	seq := s.snapshot.Seq
	s.snapshot = practice.Snapshot{Seq: seq, Limit: s.limit}
	s.errText = ""
}

func repeatDots(repeat, limit int) string {
	if limit <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 1; i <= limit; i++ {
		if i <= repeat {
			b.WriteString("●")
		} else {
			b.WriteString("○")
		}
	}
	return b.String()
}
