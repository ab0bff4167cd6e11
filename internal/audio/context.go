// Package audio owns the process-wide audio output context and plays
// decoded speech buffers through it.
package audio

import (
	"io"
	"time"
)

// Context is an audio output device opened at a fixed format. Both the
// oto-backed device and the mock used in tests and CI implement it.
type Context interface {
	// NewPlayer creates a player reading interleaved float32 LE samples.
	NewPlayer(r io.Reader) (Player, error)

	// Close releases the context.
	Close() error

	// IsReady returns whether the context can create players.
	IsReady() bool

	// SampleRate returns the sample rate the device was opened with.
	SampleRate() int

	// ChannelCount returns the channel count the device was opened with.
	ChannelCount() int
}

// Player plays a single stream on a Context.
type Player interface {
	// Play starts or resumes playback.
	Play()

	// Pause pauses playback.
	Pause()

	// IsPlaying returns whether audio is still being played.
	IsPlaying() bool

	// Close stops playback and releases the player.
	Close() error

	// SetVolume sets the playback volume (0.0 to 1.0).
	SetVolume(volume float64)

	// Volume returns the current volume.
	Volume() float64
}

// ContextType selects the kind of Context to create.
type ContextType int

const (
	// ContextProduction uses the real audio device via oto.
	ContextProduction ContextType = iota
	// ContextMock simulates playback without a device.
	ContextMock
	// ContextAuto picks production unless the platform suggests mock.
	ContextAuto
)

func (t ContextType) String() string {
	switch t {
	case ContextProduction:
		return "production"
	case ContextMock:
		return "mock"
	case ContextAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// BytesPerSample is the size of one float32 output sample.
const BytesPerSample = 4

// Options configures a new Context.
type Options struct {
	SampleRate int
	Channels   int
	// BufferSize overrides the platform default when non-zero.
	BufferSize time.Duration
}

// DefaultOptions returns options matching the speech provider's format.
func DefaultOptions() Options {
	return Options{
		SampleRate: 24000,
		Channels:   1,
	}
}
