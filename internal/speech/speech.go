// Package speech turns text into raw synthesized audio. Every failure of
// the underlying provider is collapsed into ErrUnavailable.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrUnavailable is the only error Acquire returns: the provider failed,
	// timed out, or produced no audio.
	ErrUnavailable = errors.New("speech unavailable")

	// ErrEmptyText is wrapped by ErrUnavailable when asked to speak nothing.
	ErrEmptyText = errors.New("text is empty")

	// ErrEmptyAudio is wrapped by ErrUnavailable when the provider answers
	// without audio bytes.
	ErrEmptyAudio = errors.New("provider returned no audio")
)

// Outcome labels an acquisition result.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeError   Outcome = "error"
	OutcomeEmpty   Outcome = "empty"
	OutcomeTimeout Outcome = "timeout"
)

// Synthesizer produces raw 16-bit PCM for text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text string) ([]byte, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}

// Observer receives the outcome and latency of every acquisition.
type Observer interface {
	ObserveAcquisition(outcome Outcome, elapsed time.Duration)
}

// Acquirer makes single-attempt, time-bounded speech requests.
type Acquirer struct {
	synth    Synthesizer
	timeout  time.Duration
	observer Observer
}

// NewAcquirer wraps synth. A zero timeout leaves requests bounded only by
// the caller's context.
func NewAcquirer(synth Synthesizer, timeout time.Duration) *Acquirer {
	return &Acquirer{synth: synth, timeout: timeout}
}

// SetObserver registers o for acquisition outcomes.
func (a *Acquirer) SetObserver(o Observer) {
	a.observer = o
}

// Acquire returns non-empty audio bytes for text or an error wrapping
// ErrUnavailable. It never retries.
func (a *Acquirer) Acquire(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		a.observe(OutcomeError, start)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ErrEmptyText)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	data, err := a.synth.Synthesize(ctx, text)
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		a.observe(outcome, start)
		log.Debug("Speech acquisition failed", "error", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(data) == 0 {
		a.observe(OutcomeEmpty, start)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ErrEmptyAudio)
	}

	a.observe(OutcomeOK, start)
	log.Debug("Speech acquired", "bytes", len(data), "elapsed", time.Since(start))
	return data, nil
}

func (a *Acquirer) observe(outcome Outcome, start time.Time) {
	if a.observer != nil {
		a.observer.ObserveAcquisition(outcome, time.Since(start))
	}
}
