package fade

import (
	"context"
	"sync"
	"time"
)

// Fade is a single in-flight crossfade between two channels.
type Fade struct {
	out *Job
	in  *Job

	// mu protects cancelled and err; done is closed exactly once.
	mu        sync.Mutex
	cancelled bool
	err       error
	done      chan struct{}
}

// Crossfade ramps the outgoing channel from its current volume to silence and
// the incoming channel from its current volume to the target, on the same step
// cadence. On natural completion the outgoing channel is hard-stopped (paused,
// position reset) with its volume forced to zero, and the incoming channel's
// volume is forced exactly to the target. Cancellation mid-flight cancels both
// ramps and freezes both channels at their last interpolated volume.
func Crossfade(ctx context.Context, outgoing, incoming *Channel, target float64, duration time.Duration) *Fade {
	f := &Fade{
		done: make(chan struct{}),
	}

	f.out = outgoing.RampTo(ctx, MinVolume, duration)
	f.in = incoming.RampTo(ctx, target, duration)

	go f.finish(ctx, outgoing, incoming, clampVolume(target))

	return f
}

// Done is closed when the crossfade has resolved.
func (f *Fade) Done() <-chan struct{} {
	return f.done
}

// Err returns nil after natural completion, ErrRampCancelled after
// cancellation, or the first error that aborted either ramp.
// It is only meaningful once Done is closed.
func (f *Fade) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.err
}

// Cancel cancels both underlying ramps independently. No endpoint values are
// applied; both channels keep their last interpolated volume.
func (f *Fade) Cancel() {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()

	f.out.Cancel()
	f.in.Cancel()
}

// finish waits for both ramps, applies endpoint semantics on natural
// completion, and resolves the fade.
func (f *Fade) finish(ctx context.Context, outgoing, incoming *Channel, target float64) {
	<-f.out.Done()
	<-f.in.Done()

	f.mu.Lock()
	cancelled := f.cancelled
	f.mu.Unlock()

	var err error

	switch {
	case cancelled:
		err = ErrRampCancelled
	case f.out.Err() != nil:
		err = f.out.Err()
	case f.in.Err() != nil:
		err = f.in.Err()
	default:
		err = f.applyEndpoints(ctx, outgoing, incoming, target)
	}

	f.mu.Lock()
	f.err = err
	f.mu.Unlock()

	close(f.done)
}

// applyEndpoints hard-stops the outgoing channel and forces both channels to
// their exact endpoint volumes, avoiding floating-point drift from the last
// interpolation step.
func (f *Fade) applyEndpoints(ctx context.Context, outgoing, incoming *Channel, target float64) error {
	if stopper, ok := outgoing.sink.(Stopper); ok {
		if err := stopper.HardStop(ctx); err != nil {
			return err
		}
	}

	if err := outgoing.apply(ctx, MinVolume); err != nil {
		return err
	}

	return incoming.apply(ctx, target)
}
