package fade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// StepCount is the fixed number of discrete volume updates per ramp,
	// regardless of duration.
	StepCount = 20

	// MinVolume and MaxVolume bound every applied volume value.
	MinVolume = 0.0
	MaxVolume = 100.0
)

// ErrRampCancelled resolves a job that was cancelled before completing.
var ErrRampCancelled = errors.New("ramp cancelled")

// Sink receives the discrete volume updates emitted by a ramp.
type Sink interface {
	ApplyVolume(ctx context.Context, volume float64) error
}

// Stopper is implemented by sinks that can hard-stop their channel:
// pause playback and reset the position to the start. Crossfade uses it
// on the outgoing channel after natural completion.
type Stopper interface {
	HardStop(ctx context.Context) error
}

// Channel owns the volume of one audio output and the single live ramp on it.
type Channel struct {
	name string
	sink Sink

	// mu protects volume and active.
	mu     sync.Mutex
	volume float64
	active *Job
}

// NewChannel creates a channel over the provided sink with an initial volume.
func NewChannel(name string, sink Sink, initialVolume float64) *Channel {
	return &Channel{
		name:   name,
		sink:   sink,
		volume: clampVolume(initialVolume),
	}
}

// Name returns the channel identifier used in logs.
func (c *Channel) Name() string {
	return c.name
}

// Volume returns the last volume applied to the sink.
func (c *Channel) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.volume
}

// Ramp interpolates linearly from the given volume to the target over the
// duration, emitting StepCount discrete updates. Starting a ramp cancels any
// ramp already live on the channel. A duration too short to yield a positive
// step interval applies the target immediately and resolves synchronously.
func (c *Channel) Ramp(ctx context.Context, from, to float64, duration time.Duration) *Job {
	from = clampVolume(from)
	to = clampVolume(to)

	job := &Job{
		from: from,
		to:   to,
		done: make(chan struct{}),
	}

	c.mu.Lock()
	previous := c.active
	c.active = job
	c.mu.Unlock()

	// Invalidate the previous writer before emitting anything.
	if previous != nil {
		previous.Cancel()
	}

	// Sub-step durations truncate to a zero interval, which a ticker
	// cannot drive.
	interval := duration / StepCount
	if interval <= 0 {
		job.resolve(c.apply(ctx, to))

		return job
	}

	go job.run(ctx, c, interval)

	return job
}

// RampTo ramps from the channel's current volume to the target.
func (c *Channel) RampTo(ctx context.Context, to float64, duration time.Duration) *Job {
	return c.Ramp(ctx, c.Volume(), to, duration)
}

// CancelActive cancels the live ramp, if any. The sink retains whatever
// volume was last applied.
func (c *Channel) CancelActive() {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
}

// apply pushes a volume to the sink and records it as the channel's volume.
func (c *Channel) apply(ctx context.Context, volume float64) error {
	volume = clampVolume(volume)

	if err := c.sink.ApplyVolume(ctx, volume); err != nil {
		return fmt.Errorf("apply volume on %s: %w", c.name, err)
	}

	c.mu.Lock()
	c.volume = volume
	c.mu.Unlock()

	return nil
}

// Job is a single in-flight volume ramp. It resolves exactly once, either
// on natural completion, on cancellation, or on a sink error.
type Job struct {
	from float64
	to   float64

	// mu protects resolved and err; done is closed exactly once.
	mu       sync.Mutex
	resolved bool
	err      error
	done     chan struct{}
}

// Done is closed when the job has resolved.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns nil after natural completion, ErrRampCancelled after
// cancellation, or the sink error that aborted the ramp.
// It is only meaningful once Done is closed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.err
}

// Cancel stops further ticks. Cancelling a resolved job is a no-op.
func (j *Job) Cancel() {
	j.resolve(ErrRampCancelled)
}

// resolve records the outcome exactly once and closes done.
func (j *Job) resolve(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.resolved {
		return
	}

	j.resolved = true
	j.err = err
	close(j.done)
}

// run emits the interpolated steps until completion or cancellation.
func (j *Job) run(ctx context.Context, channel *Channel, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for step := 1; step <= StepCount; step++ {
		select {
		case <-j.done:
			return
		case <-ctx.Done():
			j.resolve(ctx.Err())
			return
		case <-ticker.C:
			value := j.from + (j.to-j.from)*float64(step)/StepCount
			if err := channel.apply(ctx, value); err != nil {
				j.resolve(err)
				return
			}
		}
	}

	j.resolve(nil)
}

// clampVolume bounds a volume value to [MinVolume, MaxVolume].
func clampVolume(v float64) float64 {
	if v < MinVolume {
		return MinVolume
	}

	if v > MaxVolume {
		return MaxVolume
	}

	return v
}
