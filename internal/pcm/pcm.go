// Package pcm decodes the speech provider's raw PCM payload into normalized
// float samples and re-encodes decoded buffers for the output device.
package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Provider audio layout. Gemini speech models return 16-bit signed
// little-endian mono PCM at 24kHz.
const (
	// SampleRate is the provider sample rate in Hz.
	SampleRate = 24000
	// Channels is the provider channel count (1 = mono).
	Channels = 1
	// BitDepth is the bit depth per sample.
	BitDepth = 16
	// BytesPerSample is the number of bytes per single-channel sample.
	BytesPerSample = BitDepth / 8
)

// scale maps the int16 range onto [-1.0, 1.0).
const scale = 32768.0

// Format describes a raw PCM layout.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat returns the provider's fixed format.
func DefaultFormat() Format {
	return Format{
		SampleRate: SampleRate,
		Channels:   Channels,
	}
}

// FrameSize returns the number of bytes in one interleaved frame.
func (f Format) FrameSize() int {
	return BytesPerSample * f.Channels
}

// Validate checks that data is a non-empty whole number of frames.
func Validate(data []byte, f Format) error {
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if len(data) == 0 {
		return errors.New("empty PCM data")
	}
	if len(data)%f.FrameSize() != 0 {
		return fmt.Errorf("PCM data length %d is not aligned to %d-byte frames",
			len(data), f.FrameSize())
	}
	return nil
}

// Duration returns the playing time of dataLen bytes of raw PCM.
func Duration(dataLen int, f Format) time.Duration {
	if f.SampleRate <= 0 || f.FrameSize() <= 0 {
		return 0
	}
	frames := dataLen / f.FrameSize()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Encode packs int16 samples (already interleaved) as little-endian PCM.
func Encode(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(s))
	}
	return out
}

// Buffer is a decoded, playable representation of a PCM payload. Samples
// are stored per channel and normalized to [-1.0, 1.0].
type Buffer struct {
	sampleRate int
	channels   [][]float32
}

// Decode converts interleaved 16-bit little-endian PCM into a Buffer.
//
// Each sample of channel c in frame i is int16[i*channels+c] / 32768. Input
// that is empty or not a whole number of frames decodes to a zero-frame
// buffer rather than an error, since the payload length is always under
// the provider's control.
func Decode(data []byte, sampleRate, channels int) *Buffer {
	if channels < 0 {
		channels = 0
	}
	b := &Buffer{
		sampleRate: sampleRate,
		channels:   make([][]float32, channels),
	}
	f := Format{SampleRate: sampleRate, Channels: channels}
	if Validate(data, f) != nil {
		for c := range b.channels {
			b.channels[c] = []float32{}
		}
		return b
	}

	frames := len(data) / f.FrameSize()
	for c := 0; c < channels; c++ {
		samples := make([]float32, frames)
		for i := 0; i < frames; i++ {
			off := (i*channels + c) * BytesPerSample
			v := int16(binary.LittleEndian.Uint16(data[off:]))
			samples[i] = float32(float64(v) / scale)
		}
		b.channels[c] = samples
	}
	return b
}

// SampleRate returns the buffer's sample rate in Hz.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// NumChannels returns the number of channels.
func (b *Buffer) NumChannels() int {
	return len(b.channels)
}

// Frames returns the number of frames per channel.
func (b *Buffer) Frames() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Empty reports whether the buffer holds no frames.
func (b *Buffer) Empty() bool {
	return b == nil || b.Frames() == 0
}

// Channel returns the samples for channel c. The slice must not be modified.
func (b *Buffer) Channel(c int) []float32 {
	if c < 0 || c >= len(b.channels) {
		return nil
	}
	return b.channels[c]
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.sampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.sampleRate)
}

// Float32LE interleaves the buffer as little-endian 32-bit floats, the
// layout the output device is opened with.
func (b *Buffer) Float32LE() []byte {
	n := len(b.channels)
	frames := b.Frames()
	out := make([]byte, frames*n*4)
	for i := 0; i < frames; i++ {
		for c := 0; c < n; c++ {
			off := (i*n + c) * 4
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(b.channels[c][i]))
		}
	}
	return out
}
