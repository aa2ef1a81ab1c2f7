package ducking

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/azan-scheduler/internal/audio/fade"
	"github.com/oshokin/azan-scheduler/internal/logger"
)

const (
	// DefaultLevel is the ducked volume as a percentage of the original.
	DefaultLevel = 30.0
	// DefaultGrace is the falling-edge debounce window.
	DefaultGrace = 200 * time.Millisecond
)

// State is an externally visible snapshot of the controller.
type State struct {
	// Ducking reports whether the volume is currently ducked.
	Ducking bool
	// OriginalVolume is the captured pre-duck volume. It is only meaningful
	// while Ducking is true.
	OriginalVolume float64
}

// Ducker lowers and restores the volume of one channel.
type Ducker struct {
	channel *fade.Channel
	// level is the ducked volume as a percentage of the captured original.
	level   float64
	fadeOut time.Duration
	fadeIn  time.Duration
	grace   time.Duration

	// mu protects all fields below.
	mu             sync.Mutex
	ducking        bool
	originalVolume float64
	graceTimer     *time.Timer
	generation     uint64
}

// New creates a ducker over the channel. A non-positive level or grace falls
// back to the defaults.
func New(channel *fade.Channel, level float64, fadeOut, fadeIn, grace time.Duration) *Ducker {
	if level <= 0 || level > 100 {
		level = DefaultLevel
	}

	if grace <= 0 {
		grace = DefaultGrace
	}

	return &Ducker{
		channel: channel,
		level:   level,
		fadeOut: fadeOut,
		fadeIn:  fadeIn,
		grace:   grace,
	}
}

// Snapshot returns the current duck state.
func (d *Ducker) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := State{Ducking: d.ducking}
	if d.ducking {
		state.OriginalVolume = d.originalVolume
	}

	return state
}

// Duck captures the current volume and ramps down to the configured level.
// Calling it while already ducking is a no-op; a pending grace-window restore
// is cancelled so the duck simply continues.
func (d *Ducker) Duck(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelGraceLocked()

	if d.ducking {
		return
	}

	d.ducking = true
	d.originalVolume = d.channel.Volume()
	target := d.originalVolume * d.level / 100

	logger.InfoKV(ctx, "Ducking volume", "from", d.originalVolume, "to", target)

	d.channel.RampTo(ctx, target, d.fadeOut)
}

// Restore ramps back to the captured original volume. Calling it while not
// ducking is a no-op.
func (d *Ducker) Restore(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelGraceLocked()

	if !d.ducking {
		return
	}

	d.ducking = false

	logger.InfoKV(ctx, "Restoring ducked volume", "to", d.originalVolume)

	d.channel.RampTo(ctx, d.originalVolume, d.fadeIn)
}

// Observe polls the foreground-active signal and feeds the derived edges into
// the controller until the context is done. A falling edge only restores
// after the grace window passes without the signal rising again.
func (d *Ducker) Observe(ctx context.Context, active func() bool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	previous := active()
	if previous {
		d.Duck(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := active()
			if current == previous {
				continue
			}

			previous = current
			if current {
				d.Duck(ctx)
			} else {
				d.scheduleRestore(ctx)
			}
		}
	}
}

// scheduleRestore arms the grace-window timer for a debounced restore.
func (d *Ducker) scheduleRestore(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ducking {
		return
	}

	d.cancelGraceLocked()
	d.generation++
	generation := d.generation

	d.graceTimer = time.AfterFunc(d.grace, func() {
		d.mu.Lock()
		stale := generation != d.generation
		d.mu.Unlock()

		if stale {
			return
		}

		d.Restore(ctx)
	})
}

// cancelGraceLocked disarms a pending debounced restore. Callers must hold mu.
func (d *Ducker) cancelGraceLocked() {
	d.generation++

	if d.graceTimer != nil {
		d.graceTimer.Stop()
		d.graceTimer = nil
	}
}
