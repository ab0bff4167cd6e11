package audio

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/engrepeat/internal/pcm"
)

// pollInterval is how often a playing stream is checked for completion.
const pollInterval = 20 * time.Millisecond

// Output plays decoded buffers on an audio context.
type Output struct {
	context func() (Context, error)
	volume  float64
}

// NewOutput returns an Output on the lazily created global context.
func NewOutput() *Output {
	return &Output{context: GlobalContext, volume: 1.0}
}

// NewOutputWithContext returns an Output bound to ctx.
func NewOutputWithContext(ctx Context) *Output {
	return &Output{
		context: func() (Context, error) { return ctx, nil },
		volume:  1.0,
	}
}

// SetVolume sets the volume for subsequently started streams.
func (o *Output) SetVolume(volume float64) {
	o.volume = volume
}

// Play starts buf and returns a channel that is closed when it has
// finished. Cancelling ctx stops the stream and closes the channel.
func (o *Output) Play(ctx context.Context, buf *pcm.Buffer) (<-chan struct{}, error) {
	done := make(chan struct{})
	if buf.Empty() {
		close(done)
		return done, nil
	}

	audioCtx, err := o.context()
	if err != nil {
		return nil, fmt.Errorf("audio context: %w", err)
	}
	if buf.SampleRate() != audioCtx.SampleRate() || buf.NumChannels() != audioCtx.ChannelCount() {
		log.Warn("Buffer format differs from audio device",
			"buffer_rate", buf.SampleRate(),
			"device_rate", audioCtx.SampleRate(),
			"buffer_channels", buf.NumChannels(),
			"device_channels", audioCtx.ChannelCount())
	}

	player, err := audioCtx.NewPlayer(bytes.NewReader(buf.Float32LE()))
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	player.SetVolume(o.volume)
	player.Play()

	log.Debug("Playback started", "duration", buf.Duration())

	go func() {
		defer close(done)
		defer player.Close()

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				player.Pause()
				log.Debug("Playback stopped", "reason", ctx.Err())
				return
			case <-ticker.C:
				if !player.IsPlaying() {
					return
				}
			}
		}
	}()

	return done, nil
}
