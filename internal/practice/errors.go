package practice

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSentence is returned when practice is requested for a
	// sentence that is not in the current lesson.
	ErrUnknownSentence = errors.New("sentence not in current lesson")

	// ErrNoLesson is returned when practice is requested before a lesson
	// is loaded.
	ErrNoLesson = errors.New("no lesson loaded")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("practice controller is closed")
)

// Error is a failure of one practice step, reported once through the
// controller's error callback.
type Error struct {
	Component  string // speech, audio
	Action     string // acquire, play
	SentenceID string
	Err        error
}

func (e *Error) Error() string {
	if e.SentenceID != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Component, e.Action, e.SentenceID, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Component, e.Action, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
