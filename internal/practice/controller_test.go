package practice

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/engrepeat/internal/audio"
	"github.com/dgnsrekt/engrepeat/internal/lesson"
	"github.com/dgnsrekt/engrepeat/internal/pcm"
)

type acquirerFunc func(ctx context.Context, text string) ([]byte, error)

func (f acquirerFunc) Acquire(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}

// payloads maps sentence text to a one-sample PCM payload so the output
// can tell which sentence it was asked to play.
func payloads(texts map[string]int16) acquirerFunc {
	return func(_ context.Context, text string) ([]byte, error) {
		return pcm.Encode([]int16{texts[text]}), nil
	}
}

type fakeOutput struct {
	mu     sync.Mutex
	plays  int
	played []float32
	onPlay func(n int)
	err    error
}

func (o *fakeOutput) Play(_ context.Context, buf *pcm.Buffer) (<-chan struct{}, error) {
	o.mu.Lock()
	if o.err != nil {
		o.mu.Unlock()
		return nil, o.err
	}
	o.plays++
	n := o.plays
	if buf.Frames() > 0 {
		o.played = append(o.played, buf.Channel(0)[0])
	}
	onPlay := o.onPlay
	o.mu.Unlock()

	if onPlay != nil {
		onPlay(n)
	}
	done := make(chan struct{})
	close(done)
	return done, nil
}

func (o *fakeOutput) Plays() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.plays
}

func (o *fakeOutput) Played() []float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]float32(nil), o.played...)
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) add(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

type countingObserver struct {
	mu      sync.Mutex
	started int
	played  int
	ended   []string
}

func (o *countingObserver) SessionStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *countingObserver) RepeatPlayed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.played++
}

func (o *countingObserver) SessionEnded(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = append(o.ended, result)
}

func testLesson() *lesson.Lesson {
	return &lesson.Lesson{
		ID:    "l-1",
		Title: "Greetings",
		Sentences: []lesson.Sentence{
			{ID: "s-1", Text: "Hello world.", Translation: "Xin chào thế giới.", Phonetic: "/həˈloʊ wɜːld/"},
			{ID: "s-2", Text: "Goodbye.", Translation: "Tạm biệt.", Phonetic: "/ɡʊdˈbaɪ/"},
		},
	}
}

func testConfig(limit int, delay time.Duration) Config {
	cfg := DefaultConfig()
	cfg.RepeatLimit = limit
	cfg.RepeatDelay = delay
	return cfg
}

func newTestController(t *testing.T, acq Acquirer, out Output, cfg Config) (*Controller, *recorder) {
	t.Helper()
	c := NewController(acq, out, cfg)
	rec := &recorder{}
	c.OnChange(rec.add)
	c.SetLesson(testLesson())
	t.Cleanup(func() { _ = c.Close() })
	return c, rec
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Practice loop did not return")
	}
}

func TestFullRunPlaysEveryRepeat(t *testing.T) {
	out := &fakeOutput{}
	c, rec := newTestController(t, payloads(nil), out, testConfig(3, time.Millisecond))

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitIdle(t, c)

	if out.Plays() != 3 {
		t.Errorf("Expected 3 plays, got %d", out.Plays())
	}

	var repeats []int
	for _, s := range rec.all() {
		if s.State == StatePlaying {
			repeats = append(repeats, s.Repeat)
			if s.SentenceID != "s-1" || s.Limit != 3 {
				t.Errorf("Unexpected playing snapshot %+v", s)
			}
		}
	}
	if len(repeats) != 3 || repeats[0] != 1 || repeats[1] != 2 || repeats[2] != 3 {
		t.Errorf("Expected repeats [1 2 3], got %v", repeats)
	}

	final := c.Snapshot()
	if final.Active() || final.Repeat != 0 || final.State != StateIdle || final.Loading {
		t.Errorf("Expected idle snapshot after completion, got %+v", final)
	}
}

func TestSnapshotsAreOrdered(t *testing.T) {
	c, rec := newTestController(t, payloads(nil), &fakeOutput{}, testConfig(4, 0))

	if err := c.StartPractice("s-2"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitIdle(t, c)

	snaps := rec.all()
	if len(snaps) < 2 {
		t.Fatalf("Expected several snapshots, got %d", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Seq != snaps[i-1].Seq+1 {
			t.Fatalf("Snapshot %d has seq %d after %d", i, snaps[i].Seq, snaps[i-1].Seq)
		}
	}
}

func TestRepeatIndexNeverExceedsLimit(t *testing.T) {
	c, rec := newTestController(t, payloads(nil), &fakeOutput{}, testConfig(10, 0))

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitIdle(t, c)

	for _, s := range rec.all() {
		if s.Repeat < 0 || s.Repeat > 10 {
			t.Errorf("Repeat %d outside 0..10", s.Repeat)
		}
		if !s.Active() && s.Repeat != 0 {
			t.Errorf("Idle snapshot with repeat %d", s.Repeat)
		}
	}
}

func TestCancelAfterRepeats(t *testing.T) {
	tests := []struct {
		name  string
		after int
	}{
		{"during first repeat", 1},
		{"during fourth repeat", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &fakeOutput{}
			c, _ := newTestController(t, payloads(nil), out, testConfig(10, time.Millisecond))
			out.onPlay = func(n int) {
				if n == tt.after {
					c.CancelPractice()
				}
			}

			if err := c.StartPractice("s-1"); err != nil {
				t.Fatalf("StartPractice failed: %v", err)
			}
			waitIdle(t, c)

			if out.Plays() != tt.after {
				t.Errorf("Expected %d plays, got %d", tt.after, out.Plays())
			}
			snap := c.Snapshot()
			if snap.Active() || snap.Repeat != 0 || snap.State != StateIdle {
				t.Errorf("Expected idle snapshot, got %+v", snap)
			}
		})
	}
}

func TestCancelDuringPause(t *testing.T) {
	out := &fakeOutput{}
	c, _ := newTestController(t, payloads(nil), out, testConfig(10, time.Hour))

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitFor(t, "pause", func() bool {
		return c.Snapshot().State == StatePausedBetweenRepeats
	})

	c.CancelPractice()
	waitIdle(t, c)

	if out.Plays() != 1 {
		t.Errorf("Expected 1 play, got %d", out.Plays())
	}
	if snap := c.Snapshot(); snap.Active() || snap.Repeat != 0 {
		t.Errorf("Expected idle snapshot, got %+v", snap)
	}
}

func TestCancelWhileIdle(t *testing.T) {
	c, rec := newTestController(t, payloads(nil), &fakeOutput{}, testConfig(2, 0))
	before := len(rec.all())

	c.CancelPractice()

	if snap := c.Snapshot(); snap.Active() || snap.State != StateIdle {
		t.Errorf("Expected idle snapshot, got %+v", snap)
	}
	if len(rec.all()) != before+1 {
		t.Errorf("Expected one snapshot for cancel")
	}
}

func TestSupersedeDuringAcquisition(t *testing.T) {
	release := make(chan struct{})
	acq := acquirerFunc(func(ctx context.Context, text string) ([]byte, error) {
		if text == "Hello world." {
			<-release
			return pcm.Encode([]int16{100}), nil
		}
		return pcm.Encode([]int16{200}), nil
	})
	out := &fakeOutput{}
	c, rec := newTestController(t, acq, out, testConfig(2, 0))

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice A failed: %v", err)
	}
	if err := c.StartPractice("s-2"); err != nil {
		t.Fatalf("StartPractice B failed: %v", err)
	}
	bStarted := len(rec.all())

	waitFor(t, "B to finish", func() bool { return out.Plays() == 2 && !c.Snapshot().Active() })
	close(release)
	waitIdle(t, c)

	for _, v := range out.Played() {
		if v != float32(200)/32768 {
			t.Errorf("Played sample %v, expected only B's audio", v)
		}
	}
	for i, s := range rec.all()[bStarted:] {
		if s.SentenceID == "s-1" {
			t.Errorf("Snapshot %d shows superseded sentence: %+v", i, s)
		}
	}
	if snap := c.Snapshot(); snap.Active() || snap.Repeat != 0 {
		t.Errorf("Expected idle snapshot, got %+v", snap)
	}
}

func TestSupersedeDuringPause(t *testing.T) {
	out := &fakeOutput{}
	acq := payloads(map[string]int16{"Hello world.": 100, "Goodbye.": 200})
	c, _ := newTestController(t, acq, out, testConfig(10, time.Hour))

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice A failed: %v", err)
	}
	waitFor(t, "A to pause", func() bool {
		return c.Snapshot().State == StatePausedBetweenRepeats
	})

	if err := c.StartPractice("s-2"); err != nil {
		t.Fatalf("StartPractice B failed: %v", err)
	}
	waitFor(t, "B to pause", func() bool {
		s := c.Snapshot()
		return s.SentenceID == "s-2" && s.State == StatePausedBetweenRepeats
	})

	// A's loop must have exited without touching B's state.
	time.Sleep(20 * time.Millisecond)
	snap := c.Snapshot()
	if snap.SentenceID != "s-2" || snap.Repeat != 1 {
		t.Errorf("Expected B at repeat 1, got %+v", snap)
	}
	played := out.Played()
	if len(played) != 2 || played[0] != float32(100)/32768 || played[1] != float32(200)/32768 {
		t.Errorf("Expected one play each of A then B, got %v", played)
	}
}

func TestRestartSameSentence(t *testing.T) {
	out := &fakeOutput{}
	c, _ := newTestController(t, payloads(nil), out, testConfig(10, time.Hour))

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitFor(t, "first pause", func() bool { return out.Plays() == 1 })

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	waitFor(t, "second pause", func() bool {
		return out.Plays() == 2 && c.Snapshot().State == StatePausedBetweenRepeats
	})

	time.Sleep(20 * time.Millisecond)
	if snap := c.Snapshot(); snap.Repeat != 1 || snap.SentenceID != "s-1" {
		t.Errorf("Expected restarted session at repeat 1, got %+v", snap)
	}
	if out.Plays() != 2 {
		t.Errorf("Expected 2 plays, got %d", out.Plays())
	}
}

func TestAcquisitionFailure(t *testing.T) {
	errUnavailable := errors.New("speech unavailable")
	acq := acquirerFunc(func(context.Context, string) ([]byte, error) {
		return nil, errUnavailable
	})
	out := &fakeOutput{}
	c, _ := newTestController(t, acq, out, testConfig(10, 0))

	var mu sync.Mutex
	var reported []error
	c.OnError(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	})

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitIdle(t, c)

	if out.Plays() != 0 {
		t.Errorf("Expected no output calls, got %d", out.Plays())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 {
		t.Fatalf("Expected one reported error, got %d", len(reported))
	}
	if !errors.Is(reported[0], errUnavailable) {
		t.Errorf("Expected reported error to wrap the cause, got %v", reported[0])
	}
	var perr *Error
	if !errors.As(reported[0], &perr) || perr.Component != "speech" || perr.SentenceID != "s-1" {
		t.Errorf("Expected speech *Error for s-1, got %#v", reported[0])
	}

	snap := c.Snapshot()
	if snap.Active() || snap.Repeat != 0 || snap.Loading || snap.State != StateIdle {
		t.Errorf("Expected idle snapshot after failure, got %+v", snap)
	}
	if snap.Err == nil {
		t.Error("Expected snapshot to carry the failure")
	}
}

func TestOutputFailure(t *testing.T) {
	out := &fakeOutput{err: errors.New("device gone")}
	c, _ := newTestController(t, payloads(nil), out, testConfig(3, 0))

	errs := make(chan error, 4)
	c.OnError(func(err error) { errs <- err })

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitIdle(t, c)

	select {
	case err := <-errs:
		var perr *Error
		if !errors.As(err, &perr) || perr.Component != "audio" {
			t.Errorf("Expected audio error, got %v", err)
		}
	default:
		t.Fatal("Expected an error to be reported")
	}
	if len(errs) != 0 {
		t.Errorf("Expected exactly one report, got %d more", len(errs))
	}
}

func TestUnplayablePayload(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"odd length", []byte{1}},
		{"empty", []byte{}},
		{"misaligned stereo", []byte{1, 2, 3, 4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acq := acquirerFunc(func(context.Context, string) ([]byte, error) {
				return tt.data, nil
			})
			cfg := testConfig(3, time.Hour)
			if tt.name == "misaligned stereo" {
				cfg.Channels = 2
			}
			out := &fakeOutput{}
			c, rec := newTestController(t, acq, out, cfg)
			obs := &countingObserver{}
			c.SetObserver(obs)

			var reported int
			var mu sync.Mutex
			c.OnError(func(error) {
				mu.Lock()
				defer mu.Unlock()
				reported++
			})

			if err := c.StartPractice("s-1"); err != nil {
				t.Fatalf("StartPractice failed: %v", err)
			}
			waitIdle(t, c)

			if out.Plays() != 0 {
				t.Errorf("Expected no output calls, got %d", out.Plays())
			}
			for _, snap := range rec.all() {
				if snap.State == StatePlaying || snap.State == StatePausedBetweenRepeats {
					t.Errorf("Unexpected %s snapshot %+v", snap.State, snap)
				}
			}
			snap := c.Snapshot()
			if snap.Active() || snap.Repeat != 0 || snap.State != StateIdle || snap.Err != nil {
				t.Errorf("Expected clean idle snapshot, got %+v", snap)
			}

			mu.Lock()
			defer mu.Unlock()
			if reported != 0 {
				t.Errorf("Expected nothing reported, got %d errors", reported)
			}

			obs.mu.Lock()
			defer obs.mu.Unlock()
			if len(obs.ended) != 1 || obs.ended[0] != ResultNoAudio {
				t.Errorf("Expected session to end with %q, got %v", ResultNoAudio, obs.ended)
			}
		})
	}
}

func TestCancelDuringLoading(t *testing.T) {
	acquiring := make(chan struct{})
	acq := acquirerFunc(func(ctx context.Context, _ string) ([]byte, error) {
		close(acquiring)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	out := &fakeOutput{}
	c, rec := newTestController(t, acq, out, testConfig(10, 0))

	var reported int
	var mu sync.Mutex
	c.OnError(func(error) {
		mu.Lock()
		defer mu.Unlock()
		reported++
	})

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	<-acquiring
	if snap := c.Snapshot(); !snap.Loading || snap.State != StateLoading {
		t.Fatalf("Expected loading snapshot, got %+v", snap)
	}

	c.CancelPractice()
	afterCancel := len(rec.all())
	waitIdle(t, c)

	if out.Plays() != 0 {
		t.Errorf("Expected no output calls, got %d", out.Plays())
	}
	if n := len(rec.all()); n != afterCancel {
		t.Errorf("Expected no snapshots from the cancelled loop, got %d more", n-afterCancel)
	}
	snap := c.Snapshot()
	if snap.Active() || snap.Loading || snap.Repeat != 0 || snap.State != StateIdle {
		t.Errorf("Expected idle snapshot, got %+v", snap)
	}

	mu.Lock()
	defer mu.Unlock()
	if reported != 0 {
		t.Errorf("Expected cancellation not to be reported, got %d errors", reported)
	}
}

func TestLoadingFlag(t *testing.T) {
	release := make(chan struct{})
	acq := acquirerFunc(func(ctx context.Context, text string) ([]byte, error) {
		<-release
		return pcm.Encode([]int16{1}), nil
	})
	c, rec := newTestController(t, acq, &fakeOutput{}, testConfig(1, 0))

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}

	snap := c.Snapshot()
	if !snap.Loading || snap.SentenceID != "s-1" || snap.Repeat != 0 || snap.State != StateLoading {
		t.Errorf("Expected loading snapshot, got %+v", snap)
	}

	close(release)
	waitIdle(t, c)

	var cleared bool
	for _, s := range rec.all() {
		if s.SentenceID == "s-1" && !s.Loading {
			cleared = true
		}
	}
	if !cleared {
		t.Error("Expected a snapshot with loading cleared while active")
	}
	if c.Snapshot().Loading {
		t.Error("Expected loading to be false when idle")
	}
}

func TestStartPracticeErrors(t *testing.T) {
	c := NewController(payloads(nil), &fakeOutput{}, testConfig(1, 0))
	if err := c.StartPractice("s-1"); !errors.Is(err, ErrNoLesson) {
		t.Errorf("Expected ErrNoLesson, got %v", err)
	}

	c.SetLesson(testLesson())
	if err := c.StartPractice("s-404"); !errors.Is(err, ErrUnknownSentence) {
		t.Errorf("Expected ErrUnknownSentence, got %v", err)
	}
	if snap := c.Snapshot(); snap.Active() {
		t.Errorf("Expected no session after rejected start, got %+v", snap)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.StartPractice("s-1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestClearCancelsPractice(t *testing.T) {
	out := &fakeOutput{}
	c, _ := newTestController(t, payloads(nil), out, testConfig(10, time.Hour))

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitFor(t, "pause", func() bool { return out.Plays() == 1 })

	c.Clear()
	waitIdle(t, c)

	if c.Lesson() != nil {
		t.Error("Expected lesson to be cleared")
	}
	if snap := c.Snapshot(); snap.Active() || snap.Repeat != 0 {
		t.Errorf("Expected idle snapshot, got %+v", snap)
	}
	if out.Plays() != 1 {
		t.Errorf("Expected no plays after clear, got %d", out.Plays())
	}
}

func TestObserverEvents(t *testing.T) {
	out := &fakeOutput{}
	c, _ := newTestController(t, payloads(nil), out, testConfig(2, 0))
	obs := &countingObserver{}
	c.SetObserver(obs)

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitIdle(t, c)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.started != 1 || obs.played != 2 {
		t.Errorf("Expected 1 start and 2 repeats, got %d and %d", obs.started, obs.played)
	}
	if len(obs.ended) != 1 || obs.ended[0] != ResultCompleted {
		t.Errorf("Expected [completed], got %v", obs.ended)
	}
}

func TestPronounce(t *testing.T) {
	out := &fakeOutput{}
	var asked string
	acq := acquirerFunc(func(_ context.Context, text string) ([]byte, error) {
		asked = text
		return pcm.Encode([]int16{16384}), nil
	})
	c, rec := newTestController(t, acq, out, testConfig(10, 0))
	before := len(rec.all())

	if err := c.Pronounce(context.Background(), "world"); err != nil {
		t.Fatalf("Pronounce failed: %v", err)
	}
	if asked != "world" {
		t.Errorf("Expected acquisition for %q, got %q", "world", asked)
	}
	if out.Plays() != 1 {
		t.Errorf("Expected exactly one play, got %d", out.Plays())
	}
	if len(rec.all()) != before {
		t.Error("Pronounce should not change practice state")
	}

	failing := NewController(acquirerFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("quota")
	}), out, testConfig(10, 0))
	if err := failing.Pronounce(context.Background(), "world"); err == nil {
		t.Error("Expected error from failing acquirer")
	}
}

func TestHelloWorldOnMockDevice(t *testing.T) {
	mock := audio.NewMockContext(audio.Options{SampleRate: pcm.SampleRate, Channels: pcm.Channels})
	mock.Record = true
	out := audio.NewOutputWithContext(mock)
	acq := acquirerFunc(func(_ context.Context, text string) ([]byte, error) {
		if text != "Hello world." {
			t.Errorf("Unexpected text %q", text)
		}
		return pcm.Encode([]int16{0, 16384}), nil
	})
	c, _ := newTestController(t, acq, out, testConfig(10, time.Millisecond))

	if err := c.StartPractice("s-1"); err != nil {
		t.Fatalf("StartPractice failed: %v", err)
	}
	waitIdle(t, c)

	if mock.Plays() != 10 {
		t.Fatalf("Expected 10 plays, got %d", mock.Plays())
	}
	for i, data := range mock.Played() {
		if len(data) != 8 {
			t.Fatalf("Play %d: expected 8 bytes, got %d", i, len(data))
		}
		first := math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
		second := math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
		if first != 0 || second != 0.5 {
			t.Errorf("Play %d: expected [0 0.5], got [%v %v]", i, first, second)
		}
	}
	if snap := c.Snapshot(); snap.Active() || snap.Repeat != 0 {
		t.Errorf("Expected idle snapshot after run, got %+v", snap)
	}
}
