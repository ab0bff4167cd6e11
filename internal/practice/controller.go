// Package practice drives repeat playback: one sentence is synthesized,
// decoded once, and played a fixed number of times with a pause between
// repeats. Starting a new practice supersedes the running one.
package practice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/engrepeat/internal/lesson"
	"github.com/dgnsrekt/engrepeat/internal/pcm"
)

// Acquirer fetches raw speech for a text.
type Acquirer interface {
	Acquire(ctx context.Context, text string) ([]byte, error)
}

// Output plays a decoded buffer and signals on the returned channel when
// it has finished or ctx was cancelled.
type Output interface {
	Play(ctx context.Context, buf *pcm.Buffer) (<-chan struct{}, error)
}

// Observer receives session lifecycle events.
type Observer interface {
	SessionStarted()
	RepeatPlayed()
	SessionEnded(result string)
}

// Session results passed to Observer.SessionEnded.
const (
	ResultCompleted  = "completed"
	ResultCancelled  = "cancelled"
	ResultSuperseded = "superseded"
	ResultFailed     = "failed"

	// ResultNoAudio ends a session whose speech decoded to zero frames.
	ResultNoAudio = "no_audio"
)

// Config holds the playback parameters.
type Config struct {
	RepeatLimit int           // number of repeats per practice
	RepeatDelay time.Duration // pause between repeats
	SampleRate  int           // provider PCM sample rate
	Channels    int           // provider PCM channel count
}

// DefaultConfig returns ten repeats with an 800ms pause of 24kHz mono audio.
func DefaultConfig() Config {
	return Config{
		RepeatLimit: 10,
		RepeatDelay: 800 * time.Millisecond,
		SampleRate:  pcm.SampleRate,
		Channels:    pcm.Channels,
	}
}

// Snapshot is the UI-facing view of the controller.
type Snapshot struct {
	Seq        uint64 // increases with every emitted snapshot
	SentenceID string // empty when idle
	Repeat     int    // 0 when idle or loading
	Limit      int
	Loading    bool
	State      StateType
	Err        error // last failure, cleared when a practice starts
}

// Active reports whether a sentence is being practiced.
func (s Snapshot) Active() bool {
	return s.SentenceID != ""
}

// Controller runs at most one practice session at a time.
type Controller struct {
	acquirer Acquirer
	output   Output
	config   Config
	logger   *log.Logger

	mu       sync.RWMutex
	lesson   *lesson.Lesson
	current  *session
	machine  *StateMachine
	repeat   int
	loading  bool
	lastErr  error
	seq      uint64
	nextID   uint64
	closed   bool
	observer Observer
	onChange func(Snapshot)
	onError  func(error)

	// emitMu keeps callbacks in mutation order.
	emitMu sync.Mutex
	wg     sync.WaitGroup
}

// NewController creates an idle controller.
func NewController(acquirer Acquirer, output Output, config Config) *Controller {
	if config.RepeatLimit < 1 {
		config.RepeatLimit = 1
	}
	return &Controller{
		acquirer: acquirer,
		output:   output,
		config:   config,
		logger:   log.WithPrefix("practice"),
		machine:  NewStateMachine(),
	}
}

// SetObserver registers o for session events.
func (c *Controller) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// OnChange registers a callback for every state change. Callbacks run on
// the controller's goroutines and must not call StartPractice,
// CancelPractice, SetLesson or Clear.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// OnError registers a callback for practice failures.
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Config returns the playback parameters.
func (c *Controller) Config() Config {
	return c.config
}

// Lesson returns the current lesson, or nil.
func (c *Controller) Lesson() *lesson.Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lesson
}

// SetLesson replaces the lesson, cancelling any running practice.
func (c *Controller) SetLesson(l *lesson.Lesson) {
	c.mu.Lock()
	ended := c.cancelLocked()
	c.lesson = l
	c.emitLocked(ended, ResultCancelled)
}

// Clear drops the lesson and cancels any running practice.
func (c *Controller) Clear() {
	c.SetLesson(nil)
}

// StartPractice begins repeat playback of the sentence with the given ID.
// Any running practice is cancelled before this returns, so its loop can
// no longer emit state.
func (c *Controller) StartPractice(sentenceID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.lesson == nil {
		c.mu.Unlock()
		return ErrNoLesson
	}
	sentence, ok := c.lesson.Sentence(sentenceID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSentence, sentenceID)
	}

	superseded := c.cancelLocked()

	c.nextID++
	s := newSession(c.nextID, sentence)
	c.current = s
	c.repeat = 0
	c.loading = true
	c.lastErr = nil
	c.transitionLocked(StateLoading)
	observer := c.observer

	c.wg.Add(1)
	c.emitLocked(superseded, ResultSuperseded)

	if observer != nil {
		observer.SessionStarted()
	}
	c.logger.Debug("Practice started", "session", s.id, "sentence", sentence.ID)

	go c.run(s)
	return nil
}

// CancelPractice stops the running practice, if any. The loop observes the
// cancellation at its next check and makes no further output calls.
func (c *Controller) CancelPractice() {
	c.mu.Lock()
	ended := c.cancelLocked()
	c.emitLocked(ended, ResultCancelled)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Wait blocks until every practice loop has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels any practice, waits for its loop, and rejects further
// StartPractice calls.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	ended := c.cancelLocked()
	c.emitLocked(ended, ResultCancelled)
	c.wg.Wait()
	return nil
}

// Pronounce plays text once. It does not touch the practice session.
func (c *Controller) Pronounce(ctx context.Context, text string) error {
	data, err := c.acquirer.Acquire(ctx, text)
	if err != nil {
		return &Error{Component: "speech", Action: "acquire", Err: err}
	}
	buf := pcm.Decode(data, c.config.SampleRate, c.config.Channels)
	done, err := c.output.Play(ctx, buf)
	if err != nil {
		return &Error{Component: "audio", Action: "play", Err: err}
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the repeat loop of one session.
func (c *Controller) run(s *session) {
	defer c.wg.Done()

	data, err := c.acquirer.Acquire(s.ctx, s.sentence.Text)
	if !c.update(s, func() { c.loading = false }) {
		return
	}
	if err != nil {
		c.fail(s, &Error{Component: "speech", Action: "acquire", SentenceID: s.sentence.ID, Err: err})
		return
	}

	buf := pcm.Decode(data, c.config.SampleRate, c.config.Channels)
	c.logger.Debug("Speech decoded", "session", s.id, "frames", buf.Frames(), "duration", buf.Duration())
	if buf.Empty() {
		c.logger.Debug("Speech has no playable audio", "session", s.id, "bytes", len(data))
		c.finish(s, ResultNoAudio)
		return
	}

	limit := c.config.RepeatLimit
	for i := 1; i <= limit; i++ {
		if s.stopped() {
			return
		}
		repeat := i
		if !c.update(s, func() {
			c.repeat = repeat
			c.transitionLocked(StatePlaying)
		}) {
			return
		}

		done, err := c.output.Play(s.ctx, buf)
		if err != nil {
			c.fail(s, &Error{Component: "audio", Action: "play", SentenceID: s.sentence.ID, Err: err})
			return
		}
		<-done
		if s.stopped() {
			return
		}
		c.played()

		if i < limit {
			if !c.update(s, func() { c.transitionLocked(StatePausedBetweenRepeats) }) {
				return
			}
			if !c.pause(s) {
				return
			}
		}
	}

	c.finish(s, ResultCompleted)
}

// pause waits the inter-repeat delay. It returns false if the session was
// cancelled before or during the wait.
func (c *Controller) pause(s *session) bool {
	if s.stopped() {
		return false
	}
	timer := time.NewTimer(c.config.RepeatDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.ctx.Done():
	}
	return !s.stopped()
}

// update applies fn and emits a snapshot if s is still the current
// session. It reports whether s is current.
func (c *Controller) update(s *session, fn func()) bool {
	c.mu.Lock()
	if c.current != s || s.stopped() {
		c.mu.Unlock()
		return false
	}
	fn()
	c.emitLocked(nil, "")
	return true
}

// finish resets to idle when s ends without error, unless s is stale.
func (c *Controller) finish(s *session, result string) {
	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		c.logger.Debug("Stale practice finished", "session", s.id)
		return
	}
	c.current = nil
	c.resetLocked()
	s.cancel()
	c.emitLocked(s, result)
	c.logger.Debug("Practice ended", "session", s.id, "sentence", s.sentence.ID, "result", result)
}

// fail resets to idle and reports err once, unless s is stale.
func (c *Controller) fail(s *session, err *Error) {
	c.mu.Lock()
	if c.current != s || s.stopped() {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.resetLocked()
	c.lastErr = err
	s.cancel()
	onError := c.onError
	c.emitLocked(s, ResultFailed)

	c.logger.Warn("Practice failed", "sentence", s.sentence.ID, "error", err)
	if onError != nil {
		onError(err)
	}
}

func (c *Controller) played() {
	c.mu.RLock()
	observer := c.observer
	c.mu.RUnlock()
	if observer != nil {
		observer.RepeatPlayed()
	}
}

// cancelLocked stops and detaches the current session and returns it.
func (c *Controller) cancelLocked() *session {
	s := c.current
	if s == nil {
		return nil
	}
	s.stop()
	c.current = nil
	c.resetLocked()
	c.logger.Debug("Practice cancelled", "session", s.id)
	return s
}

func (c *Controller) resetLocked() {
	c.repeat = 0
	c.loading = false
	c.transitionLocked(StateIdle)
}

func (c *Controller) transitionLocked(to StateType) {
	from := c.machine.Current()
	if from == to {
		return
	}
	if to == StateLoading && from != StateIdle {
		c.machine.Transition(StateIdle)
	}
	if !c.machine.Transition(to) {
		c.logger.Warn("Invalid practice state transition", "from", from, "to", to)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Seq:     c.seq,
		Repeat:  c.repeat,
		Limit:   c.config.RepeatLimit,
		Loading: c.loading,
		State:   c.machine.Current(),
		Err:     c.lastErr,
	}
	if c.current != nil {
		snap.SentenceID = c.current.sentence.ID
	}
	return snap
}

// emitLocked must be called with c.mu held; it releases it. The snapshot
// is delivered after the lock is released but before any later mutation
// can emit, and ended, if non-nil, is reported to the observer.
func (c *Controller) emitLocked(ended *session, result string) {
	c.seq++
	snap := c.snapshotLocked()
	onChange := c.onChange
	observer := c.observer

	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	if ended != nil && observer != nil {
		observer.SessionEnded(result)
	}
	if onChange != nil {
		onChange(snap)
	}
}
