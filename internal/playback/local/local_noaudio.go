//go:build noaudio

package local

import (
	"context"
	"errors"
)

// ErrNoAudio is returned by every constructor in noaudio builds.
var ErrNoAudio = errors.New("built without audio support")

// Available reports whether this build can open the audio device.
func Available() bool {
	return false
}

// Engine is unavailable in noaudio builds.
type Engine struct{}

// NewEngine always fails in noaudio builds.
func NewEngine(int, int) (*Engine, error) {
	return nil, ErrNoAudio
}

// Player is unavailable in noaudio builds.
type Player struct{}

// NewPlayer always fails in noaudio builds.
func (e *Engine) NewPlayer(string, string, bool, float64) (*Player, error) {
	return nil, ErrNoAudio
}

// Play always fails in noaudio builds.
func (p *Player) Play(context.Context) error { return ErrNoAudio }

// Pause always fails in noaudio builds.
func (p *Player) Pause(context.Context) error { return ErrNoAudio }

// Resume always fails in noaudio builds.
func (p *Player) Resume(context.Context) error { return ErrNoAudio }

// IsPlaying always fails in noaudio builds.
func (p *Player) IsPlaying(context.Context) (bool, error) { return false, ErrNoAudio }

// SetVolume always fails in noaudio builds.
func (p *Player) SetVolume(context.Context, float64) error { return ErrNoAudio }

// Volume always fails in noaudio builds.
func (p *Player) Volume(context.Context) (float64, error) { return 0, ErrNoAudio }

// HardStop always fails in noaudio builds.
func (p *Player) HardStop(context.Context) error { return ErrNoAudio }

// Start always fails in noaudio builds.
func (p *Player) Start(context.Context) (<-chan struct{}, error) { return nil, ErrNoAudio }
