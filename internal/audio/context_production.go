//go:build !nocgo
// +build !nocgo

package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// readyTimeout bounds how long device initialization may take.
const readyTimeout = 5 * time.Second

// ErrNotReady is returned when a player is requested from a closed or
// uninitialized context.
var ErrNotReady = errors.New("audio context not ready")

// ProductionContext plays audio on the host device through oto.
type ProductionContext struct {
	mu       sync.Mutex
	context  *oto.Context
	ready    bool
	rate     int
	channels int
}

// NewProductionContext opens the audio device. oto allows one context per
// process, so callers should go through the global context.
func NewProductionContext(opts Options, platform *PlatformInfo) (*ProductionContext, error) {
	bufferSize := opts.BufferSize
	if bufferSize == 0 && platform != nil {
		bufferSize = platform.BufferSize()
	}

	options := &oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: opts.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	}

	log.Debug("Initializing production audio context",
		"sample_rate", options.SampleRate,
		"channels", options.ChannelCount,
		"buffer_size", options.BufferSize)

	otoCtx, readyChan, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}

	select {
	case <-readyChan:
	case <-time.After(readyTimeout):
		// oto v3 contexts cannot be closed; it is left to the garbage collector
		return nil, fmt.Errorf("audio context initialization timeout after %v", readyTimeout)
	}

	log.Debug("Production audio context ready")
	return &ProductionContext{
		context:  otoCtx,
		ready:    true,
		rate:     opts.SampleRate,
		channels: opts.Channels,
	}, nil
}

// NewPlayer creates an oto player over r.
func (pc *ProductionContext) NewPlayer(r io.Reader) (Player, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if !pc.ready || pc.context == nil {
		return nil, ErrNotReady
	}
	return &productionPlayer{player: pc.context.NewPlayer(r)}, nil
}

// Close marks the context unusable.
func (pc *ProductionContext) Close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.ready = false
	pc.context = nil
	return nil
}

// IsReady returns whether the context is ready.
func (pc *ProductionContext) IsReady() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.ready
}

// SampleRate returns the device sample rate.
func (pc *ProductionContext) SampleRate() int {
	return pc.rate
}

// ChannelCount returns the device channel count.
func (pc *ProductionContext) ChannelCount() int {
	return pc.channels
}

type productionPlayer struct {
	player *oto.Player
}

func (p *productionPlayer) Play()                    { p.player.Play() }
func (p *productionPlayer) Pause()                   { p.player.Pause() }
func (p *productionPlayer) IsPlaying() bool          { return p.player.IsPlaying() }
func (p *productionPlayer) Close() error             { return p.player.Close() }
func (p *productionPlayer) SetVolume(volume float64) { p.player.SetVolume(volume) }
func (p *productionPlayer) Volume() float64          { return p.player.Volume() }
