//go:build nocgo
// +build nocgo

package audio

import (
	"errors"
	"io"
)

// ErrNotReady is returned when a player is requested from a closed or
// uninitialized context.
var ErrNotReady = errors.New("audio context not ready")

var errNoCgo = errors.New("audio not available in nocgo build")

// ProductionContext stub for nocgo builds.
type ProductionContext struct{}

// NewProductionContext always fails without cgo.
func NewProductionContext(opts Options, platform *PlatformInfo) (*ProductionContext, error) {
	return nil, errNoCgo
}

func (pc *ProductionContext) NewPlayer(r io.Reader) (Player, error) {
	return nil, errNoCgo
}

func (pc *ProductionContext) Close() error      { return nil }
func (pc *ProductionContext) IsReady() bool     { return false }
func (pc *ProductionContext) SampleRate() int   { return 0 }
func (pc *ProductionContext) ChannelCount() int { return 0 }
