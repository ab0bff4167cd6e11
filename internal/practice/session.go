package practice

import (
	"context"
	"sync/atomic"

	"github.com/dgnsrekt/engrepeat/internal/lesson"
)

// session is the scoped state of one practice run. The loop holds a
// reference to it; the controller holds the current one. A loop whose
// session is no longer current must not touch controller state.
type session struct {
	id        uint64
	sentence  lesson.Sentence
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

func newSession(id uint64, s lesson.Sentence) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:       id,
		sentence: s,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// stop sets the cancellation flag and interrupts any suspension point.
func (s *session) stop() {
	s.cancelled.Store(true)
	s.cancel()
}

func (s *session) stopped() bool {
	return s.cancelled.Load()
}
