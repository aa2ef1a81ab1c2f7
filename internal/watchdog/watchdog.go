package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/azan-scheduler/internal/audio/fade"
	"github.com/oshokin/azan-scheduler/internal/logger"
	"github.com/oshokin/azan-scheduler/internal/playback"
)

const (
	// DefaultStallTimeout is how long a stall may last before fallback.
	DefaultStallTimeout = 3 * time.Second
	// DefaultCrossfadeDuration is the fallback/recovery crossfade length.
	DefaultCrossfadeDuration = 500 * time.Millisecond
)

// State is an externally visible snapshot of the watchdog.
type State struct {
	// Buffering reports whether the monitored stream is currently stalled.
	Buffering bool
	// FallbackActive reports whether fallback audio is playing.
	FallbackActive bool
	// Source names the stream that stalled; empty when not buffering.
	Source string
}

// Hooks notify the host about fallback transitions. Either may be nil.
type Hooks struct {
	// OnFallback fires when fallback audio is activated.
	OnFallback func(ctx context.Context, source string)
	// OnRestored fires when the original stream is restored.
	OnRestored func(ctx context.Context)
}

// BusyFunc reports whether an interruption sequence is in flight; the
// watchdog defers to it.
type BusyFunc func() bool

// Watchdog owns the stall timer and fallback state for one primary stream.
type Watchdog struct {
	primary  *fade.Channel
	fallback *fade.Channel
	// primaryPlayer is resumed on recovery; the fallback crossfade hard-stops
	// it, so volume alone cannot bring the stream back.
	primaryPlayer playback.Controller
	// fallbackPlayer is started when fallback audio is activated; the track
	// is pre-cached and loops.
	fallbackPlayer playback.Controller
	timeout        time.Duration
	crossfade      time.Duration
	busy           BusyFunc
	hooks          Hooks

	// mu protects all fields below.
	mu             sync.Mutex
	buffering      bool
	fallbackActive bool
	source         string
	originalVolume float64
	timer          *time.Timer
	generation     uint64
	active         *fade.Fade
}

// New creates a watchdog over the primary and fallback channels. Zero
// timeout or crossfade durations fall back to the defaults; busy and either
// player may be nil.
func New(
	primary, fallback *fade.Channel,
	primaryPlayer, fallbackPlayer playback.Controller,
	timeout, crossfadeDuration time.Duration,
	busy BusyFunc,
	hooks Hooks,
) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultStallTimeout
	}

	if crossfadeDuration <= 0 {
		crossfadeDuration = DefaultCrossfadeDuration
	}

	if busy == nil {
		busy = func() bool { return false }
	}

	return &Watchdog{
		primary:        primary,
		fallback:       fallback,
		primaryPlayer:  primaryPlayer,
		fallbackPlayer: fallbackPlayer,
		timeout:        timeout,
		crossfade:      crossfadeDuration,
		busy:           busy,
		hooks:          hooks,
	}
}

// Snapshot returns the current watchdog state.
func (w *Watchdog) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return State{
		Buffering:      w.buffering,
		FallbackActive: w.fallbackActive,
		Source:         w.source,
	}
}

// Monitor polls the stalled function and feeds the derived edges into the
// watchdog until the context is done. It adapts backends that only expose
// state, not events.
func (w *Watchdog) Monitor(ctx context.Context, stalled func() bool, source string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	previous := stalled()
	if previous {
		w.HandleStall(ctx, source)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := stalled()
			if current == previous {
				continue
			}

			previous = current
			if current {
				w.HandleStall(ctx, source)
			} else {
				w.HandleResume(ctx)
			}
		}
	}
}

// HandleStall processes a stall edge: it arms the fallback timeout. A stall
// that ends before the timeout never activates fallback.
func (w *Watchdog) HandleStall(ctx context.Context, source string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buffering {
		return
	}

	w.buffering = true
	w.source = source
	w.generation++
	generation := w.generation

	logger.InfoKV(ctx, "Playback stalled, fallback timer armed", "source", source, "timeout", w.timeout.String())

	w.timer = time.AfterFunc(w.timeout, func() {
		w.timedOut(ctx, generation)
	})
}

// HandleResume processes a resume edge: it disarms a pending timeout and,
// when fallback audio is active, crossfades back to the primary stream.
func (w *Watchdog) HandleResume(ctx context.Context) {
	w.mu.Lock()

	if !w.buffering && !w.fallbackActive {
		w.mu.Unlock()

		return
	}

	w.buffering = false
	w.source = ""
	w.generation++
	w.disarmTimerLocked()

	if !w.fallbackActive {
		w.mu.Unlock()
		logger.Info(ctx, "Stall was transient, no fallback needed")

		return
	}

	w.deactivateLocked(ctx)
	w.mu.Unlock()

	if w.hooks.OnRestored != nil {
		w.hooks.OnRestored(ctx)
	}
}

// ForceFallback activates fallback audio immediately, bypassing the stall
// signal but using the same crossfade path.
func (w *Watchdog) ForceFallback(ctx context.Context) {
	w.mu.Lock()

	if w.fallbackActive {
		w.mu.Unlock()

		return
	}

	source := w.source
	w.activateLocked(ctx, source)
	w.mu.Unlock()

	if w.hooks.OnFallback != nil {
		w.hooks.OnFallback(ctx, source)
	}
}

// StopFallback reverses a fallback immediately, bypassing the resume signal.
func (w *Watchdog) StopFallback(ctx context.Context) {
	w.mu.Lock()

	if !w.fallbackActive {
		w.mu.Unlock()

		return
	}

	w.deactivateLocked(ctx)
	w.mu.Unlock()

	if w.hooks.OnRestored != nil {
		w.hooks.OnRestored(ctx)
	}
}

// timedOut fires when a stall outlived the timeout.
func (w *Watchdog) timedOut(ctx context.Context, generation uint64) {
	if w.busy() {
		// An interruption sequence owns the volume right now; stalling logic
		// must not override its fades.
		logger.Warn(ctx, "Stall timeout elapsed during interruption sequence, fallback suppressed")

		return
	}

	w.mu.Lock()

	if generation != w.generation || !w.buffering || w.fallbackActive {
		w.mu.Unlock()

		return
	}

	source := w.source
	w.activateLocked(ctx, source)
	w.mu.Unlock()

	if w.hooks.OnFallback != nil {
		w.hooks.OnFallback(ctx, source)
	}
}

// activateLocked starts the fallback track and crossfades to it.
// Callers must hold mu.
func (w *Watchdog) activateLocked(ctx context.Context, source string) {
	w.originalVolume = w.primary.Volume()

	if w.fallbackPlayer != nil {
		if err := w.fallbackPlayer.Play(ctx); err != nil {
			logger.ErrorKV(ctx, "Failed to start fallback audio", "error", err)

			return
		}
	}

	if w.active != nil {
		w.active.Cancel()
	}

	w.active = fade.Crossfade(ctx, w.primary, w.fallback, w.originalVolume, w.crossfade)
	w.fallbackActive = true

	logger.InfoKV(ctx, "Fallback audio activated", "source", source, "volume", w.originalVolume)
}

// deactivateLocked crossfades from the fallback back to the primary stream.
// Callers must hold mu.
func (w *Watchdog) deactivateLocked(ctx context.Context) {
	if w.active != nil {
		w.active.Cancel()
	}

	// The activation crossfade hard-stopped the primary; it must be playing
	// again before volume is handed back to it.
	if w.primaryPlayer != nil {
		if err := w.primaryPlayer.Resume(ctx); err != nil {
			logger.ErrorKV(ctx, "Failed to resume primary playback", "error", err)
		}
	}

	w.active = fade.Crossfade(ctx, w.fallback, w.primary, w.originalVolume, w.crossfade)
	w.fallbackActive = false

	logger.InfoKV(ctx, "Stream restored, fallback audio stopped", "volume", w.originalVolume)
}

// disarmTimerLocked stops a pending fallback timer. Callers must hold mu.
func (w *Watchdog) disarmTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
