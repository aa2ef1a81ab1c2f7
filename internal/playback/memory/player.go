package memory

import (
	"context"
	"sync"
)

// Player is an in-memory playback channel. It tracks play/pause state,
// volume, position and a simulated stall flag, and can complete content
// playback on demand.
type Player struct {
	name string

	// mu protects all fields below.
	mu       sync.Mutex
	playing  bool
	volume   float64
	position int
	stalled  bool
	failNext error
	content  chan struct{}
}

// New creates a stopped in-memory player with the given initial volume.
func New(name string, initialVolume float64) *Player {
	return &Player{
		name:   name,
		volume: initialVolume,
	}
}

// Name returns the player identifier.
func (p *Player) Name() string {
	return p.name
}

// Play starts playback from the beginning.
func (p *Player) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure(); err != nil {
		return err
	}

	p.playing = true
	p.position = 0

	return nil
}

// Pause suspends playback, keeping the position.
func (p *Player) Pause(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure(); err != nil {
		return err
	}

	p.playing = false

	return nil
}

// Resume continues playback from the paused position.
func (p *Player) Resume(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure(); err != nil {
		return err
	}

	p.playing = true

	return nil
}

// IsPlaying reports whether the player is currently playing.
func (p *Player) IsPlaying(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure(); err != nil {
		return false, err
	}

	return p.playing, nil
}

// SetVolume records the applied volume.
func (p *Player) SetVolume(_ context.Context, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure(); err != nil {
		return err
	}

	p.volume = volume

	return nil
}

// Volume returns the last applied volume.
func (p *Player) Volume(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.volume, nil
}

// HardStop pauses playback and resets the position to the start.
func (p *Player) HardStop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure(); err != nil {
		return err
	}

	p.playing = false
	p.position = 0

	return nil
}

// Start begins one-shot content playback and returns a completion channel
// closed by CompleteContent.
func (p *Player) Start(context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure(); err != nil {
		return nil, err
	}

	p.playing = true
	p.position = 0
	p.content = make(chan struct{})

	return p.content, nil
}

// CompleteContent signals natural completion of the content started last.
func (p *Player) CompleteContent() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.content != nil {
		close(p.content)
		p.content = nil
		p.playing = false
	}
}

// Stalled reports the simulated buffering state.
func (p *Player) Stalled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stalled
}

// SetStalled flips the simulated buffering state.
func (p *Player) SetStalled(stalled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stalled = stalled
}

// FailNext makes the next controller call return err, then clears itself.
func (p *Player) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failNext = err
}

// Position returns the simulated playback position.
func (p *Player) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.position
}

// takeFailure consumes a pending injected failure. Callers must hold mu.
func (p *Player) takeFailure() error {
	err := p.failNext
	p.failNext = nil

	return err
}
