//go:build !noaudio

package local

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Available reports whether this build can open the audio device.
func Available() bool {
	return true
}

// Engine owns the process-wide oto context. oto allows a single context per
// process, so every Player shares one Engine.
type Engine struct {
	ctx *oto.Context
}

// NewEngine opens the audio device for signed 16-bit little-endian stereo
// output at the given sample rate.
func NewEngine(sampleRate, channelCount int) (*Engine, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("create oto context: %w", err)
	}

	<-ready

	return &Engine{ctx: ctx}, nil
}

// Player plays one pre-loaded PCM source on the shared audio device.
type Player struct {
	name   string
	engine *Engine

	// mu protects all fields below.
	mu      sync.Mutex
	playing bool
	reader  *sampleReader
	oto     *oto.Player
	done    chan struct{}
}

// NewPlayer loads the file at path (WAV or raw s16le PCM) into memory and
// returns a stopped player. Loop mode wraps at the end of the samples, which
// suits the short ambient fallback track.
func (e *Engine) NewPlayer(name, path string, loop bool, initialVolume float64) (*Player, error) {
	samples, err := loadPCM(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	p := &Player{
		name:   name,
		engine: e,
	}
	p.reader = &sampleReader{
		samples: samples,
		loop:    loop,
		volume:  initialVolume,
		onEnd:   p.contentEnded,
	}

	return p, nil
}

// Play starts playback from the beginning of the source.
func (p *Player) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.restartLocked()
}

// Pause suspends playback, keeping the position.
func (p *Player) Pause(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.oto != nil {
		p.oto.Pause()
	}

	p.playing = false

	return nil
}

// Resume continues playback from the paused position.
func (p *Player) Resume(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.oto == nil {
		return p.restartLocked()
	}

	p.oto.Play()
	p.playing = true

	return nil
}

// IsPlaying reports whether the player is currently playing.
func (p *Player) IsPlaying(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.playing, nil
}

// SetVolume applies a volume in [0, 100] to the sample reader.
func (p *Player) SetVolume(_ context.Context, volume float64) error {
	p.reader.setVolume(volume)

	return nil
}

// Volume returns the last applied volume.
func (p *Player) Volume(context.Context) (float64, error) {
	return p.reader.getVolume(), nil
}

// HardStop pauses playback and resets the position to the start.
func (p *Player) HardStop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.oto != nil {
		p.oto.Pause()
	}

	p.playing = false
	p.reader.rewind()

	return nil
}

// Start begins one-shot content playback and returns a channel closed when
// the samples run out. Looping players never close it.
func (p *Player) Start(context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.restartLocked(); err != nil {
		return nil, err
	}

	p.done = make(chan struct{})

	return p.done, nil
}

// restartLocked rewinds the reader and replaces the device player.
// Callers must hold mu.
func (p *Player) restartLocked() error {
	if p.oto != nil {
		if err := p.oto.Close(); err != nil {
			return fmt.Errorf("close device player: %w", err)
		}
	}

	p.reader.rewind()
	p.oto = p.engine.ctx.NewPlayer(p.reader)
	p.oto.Play()
	p.playing = true

	return nil
}

// contentEnded closes the completion channel once the samples run out.
func (p *Player) contentEnded() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playing = false

	if p.done != nil {
		close(p.done)
		p.done = nil
	}
}

// sampleReader serves s16le frames to oto, applying the software volume and
// reporting natural end of the samples.
type sampleReader struct {
	samples []byte
	loop    bool
	onEnd   func()

	// mu protects pos, volume and ended.
	mu     sync.Mutex
	pos    int
	volume float64
	ended  bool
}

// Read copies the next chunk of samples, scaled by the current volume.
func (r *sampleReader) Read(out []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos >= len(r.samples) {
		if !r.loop {
			if !r.ended {
				r.ended = true
				if r.onEnd != nil {
					go r.onEnd()
				}
			}

			return 0, io.EOF
		}

		r.pos = 0
	}

	n := copy(out, r.samples[r.pos:])
	r.pos += n

	// Keep whole frames so per-sample scaling stays aligned.
	n -= n % 2

	scale := r.volume / 100
	for i := 0; i < n; i += 2 {
		sample := int16(uint16(out[i]) | uint16(out[i+1])<<8)
		sample = int16(float64(sample) * scale)
		out[i] = byte(sample)
		out[i+1] = byte(sample >> 8)
	}

	return n, nil
}

// rewind resets the read position for a fresh playback.
func (r *sampleReader) rewind() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pos = 0
	r.ended = false
}

// setVolume updates the software volume, clamped to [0, 100].
func (r *sampleReader) setVolume(volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.volume = volume
}

// getVolume returns the current software volume.
func (r *sampleReader) getVolume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.volume
}

// errNotPCM is returned for WAV files without a usable data chunk.
var errNotPCM = errors.New("no PCM data chunk found")

// loadPCM reads a whole audio file into memory. WAV containers are unwrapped
// to their data chunk; anything else is treated as raw s16le PCM.
func loadPCM(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	if len(contents) < 12 || string(contents[0:4]) != "RIFF" || string(contents[8:12]) != "WAVE" {
		return contents, nil
	}

	// Walk RIFF chunks until the data chunk.
	offset := 12
	for offset+8 <= len(contents) {
		id := string(contents[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(contents[offset+4 : offset+8]))
		body := offset + 8

		if id == "data" {
			end := body + size
			if end > len(contents) {
				end = len(contents)
			}

			return contents[body:end], nil
		}

		// Chunks are word-aligned.
		offset = body + size + size%2
	}

	return nil, errNotPCM
}
