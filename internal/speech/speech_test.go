package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordingObserver) ObserveAcquisition(outcome Outcome, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestAcquireSuccess(t *testing.T) {
	calls := 0
	synth := SynthesizerFunc(func(ctx context.Context, text string) ([]byte, error) {
		calls++
		if text != "Hello world." {
			t.Errorf("Unexpected text %q", text)
		}
		return []byte{0x00, 0x00, 0x00, 0x40}, nil
	})

	obs := &recordingObserver{}
	a := NewAcquirer(synth, time.Second)
	a.SetObserver(obs)

	data, err := a.Acquire(context.Background(), "Hello world.")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(data) != 4 {
		t.Errorf("Expected 4 bytes, got %d", len(data))
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeOK {
		t.Errorf("Expected ok outcome, got %v", obs.outcomes)
	}
}

func TestAcquireFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		synth   SynthesizerFunc
		outcome Outcome
		cause   error
	}{
		{
			name: "provider error",
			text: "Hi.",
			synth: func(ctx context.Context, text string) ([]byte, error) {
				return nil, errors.New("quota exceeded")
			},
			outcome: OutcomeError,
		},
		{
			name: "empty audio",
			text: "Hi.",
			synth: func(ctx context.Context, text string) ([]byte, error) {
				return []byte{}, nil
			},
			outcome: OutcomeEmpty,
			cause:   ErrEmptyAudio,
		},
		{
			name: "empty text",
			text: "   ",
			synth: func(ctx context.Context, text string) ([]byte, error) {
				t.Error("Synthesizer should not be called for empty text")
				return nil, nil
			},
			outcome: OutcomeError,
			cause:   ErrEmptyText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			a := NewAcquirer(tt.synth, time.Second)
			a.SetObserver(obs)

			data, err := a.Acquire(context.Background(), tt.text)
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("Expected ErrUnavailable, got %v", err)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Errorf("Expected cause %v, got %v", tt.cause, err)
			}
			if data != nil {
				t.Errorf("Expected no data, got %d bytes", len(data))
			}
			if len(obs.outcomes) != 1 || obs.outcomes[0] != tt.outcome {
				t.Errorf("Expected outcome %s, got %v", tt.outcome, obs.outcomes)
			}
		})
	}
}

func TestAcquireTimeout(t *testing.T) {
	synth := SynthesizerFunc(func(ctx context.Context, text string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	obs := &recordingObserver{}
	a := NewAcquirer(synth, 20*time.Millisecond)
	a.SetObserver(obs)

	start := time.Now()
	_, err := a.Acquire(context.Background(), "Slow sentence.")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Timeout was not applied")
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeTimeout {
		t.Errorf("Expected timeout outcome, got %v", obs.outcomes)
	}
}

func TestAcquireNoRetry(t *testing.T) {
	calls := 0
	synth := SynthesizerFunc(func(ctx context.Context, text string) ([]byte, error) {
		calls++
		return nil, errors.New("network down")
	})

	_, _ = NewAcquirer(synth, 0).Acquire(context.Background(), "Once.")
	if calls != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", calls)
	}
}
