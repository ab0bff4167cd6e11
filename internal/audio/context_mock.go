package audio

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// MockContext implements Context without a device. Players report playing
// for as long as their data would take on a real device.
type MockContext struct {
	mu         sync.Mutex
	ready      bool
	sampleRate int
	channels   int
	players    map[*MockPlayer]struct{}
	recorded   [][]byte

	// MinDuration is a floor on simulated playback time.
	MinDuration time.Duration
	// OnPlay, when set, is called with the 1-based count each time a
	// player starts for the first time.
	OnPlay func(plays int)
	// Record keeps a copy of every stream for Played. Off by default so a
	// long session on the mock device does not hold its audio.
	Record bool

	PlayersCreated int
	PlayersClosed  int
	plays          int
}

// NewMockContext creates a ready mock context.
func NewMockContext(opts Options) *MockContext {
	log.Debug("Creating mock audio context")
	return &MockContext{
		ready:      true,
		players:    make(map[*MockPlayer]struct{}),
		sampleRate: opts.SampleRate,
		channels:   opts.Channels,
	}
}

// NewPlayer consumes r and returns a player over its bytes.
func (mc *MockContext) NewPlayer(r io.Reader) (Player, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if !mc.ready {
		return nil, ErrNotReady
	}

	p := &MockPlayer{
		context: mc,
		data:    data,
		volume:  1.0,
	}
	mc.players[p] = struct{}{}
	if mc.Record {
		mc.recorded = append(mc.recorded, append([]byte(nil), data...))
	}
	mc.PlayersCreated++

	log.Debug("Created mock audio player", "data_size", len(data), "players_created", mc.PlayersCreated)
	return p, nil
}

// Close closes every open player and marks the context unusable.
func (mc *MockContext) Close() error {
	mc.mu.Lock()
	players := make([]*MockPlayer, 0, len(mc.players))
	for p := range mc.players {
		players = append(players, p)
	}
	mc.ready = false
	mc.mu.Unlock()

	for _, p := range players {
		_ = p.Close()
	}
	return nil
}

// IsReady returns whether the context is ready.
func (mc *MockContext) IsReady() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.ready
}

// SampleRate returns the configured sample rate.
func (mc *MockContext) SampleRate() int {
	return mc.sampleRate
}

// ChannelCount returns the configured channel count.
func (mc *MockContext) ChannelCount() int {
	return mc.channels
}

// Plays returns how many players have started.
func (mc *MockContext) Plays() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.plays
}

// Played returns the data of every player created while Record was set.
func (mc *MockContext) Played() [][]byte {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	out := make([][]byte, 0, len(mc.recorded))
	for _, d := range mc.recorded {
		out = append(out, append([]byte(nil), d...))
	}
	return out
}

// Open returns how many players have not been closed.
func (mc *MockContext) Open() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.players)
}

// Closed returns how many players have been closed.
func (mc *MockContext) Closed() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.PlayersClosed
}

func (mc *MockContext) duration(n int) time.Duration {
	d := time.Duration(0)
	if mc.sampleRate > 0 && mc.channels > 0 {
		frames := n / (BytesPerSample * mc.channels)
		d = time.Duration(frames) * time.Second / time.Duration(mc.sampleRate)
	}
	if d < mc.MinDuration {
		d = mc.MinDuration
	}
	return d
}

// MockPlayer implements Player for MockContext.
type MockPlayer struct {
	context *MockContext
	data    []byte

	mu      sync.Mutex
	timer   *time.Timer
	started bool
	volume  float64

	playing atomic.Bool
	closed  atomic.Bool
}

// Play starts simulated playback. Resuming after Pause restarts the full
// duration.
func (p *MockPlayer) Play() {
	p.mu.Lock()
	if p.closed.Load() || p.playing.Load() {
		p.mu.Unlock()
		return
	}
	first := !p.started
	p.started = true
	p.playing.Store(true)
	p.timer = time.AfterFunc(p.context.duration(len(p.data)), func() {
		p.playing.Store(false)
	})
	p.mu.Unlock()

	if first {
		p.context.mu.Lock()
		p.context.plays++
		n := p.context.plays
		onPlay := p.context.OnPlay
		p.context.mu.Unlock()
		if onPlay != nil {
			onPlay(n)
		}
	}
}

// Pause stops simulated playback.
func (p *MockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.playing.Store(false)
}

// IsPlaying returns whether the simulated playback is still running.
func (p *MockPlayer) IsPlaying() bool {
	return p.playing.Load()
}

// Close stops the player.
func (p *MockPlayer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.Pause()
	p.mu.Lock()
	p.data = nil
	p.mu.Unlock()
	p.context.mu.Lock()
	delete(p.context.players, p)
	p.context.PlayersClosed++
	p.context.mu.Unlock()
	return nil
}

// SetVolume sets the volume.
func (p *MockPlayer) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
}

// Volume returns the volume.
func (p *MockPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}
