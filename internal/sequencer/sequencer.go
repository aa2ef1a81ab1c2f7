package sequencer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/azan-scheduler/internal/audio/fade"
	"github.com/oshokin/azan-scheduler/internal/domain/prayer"
	"github.com/oshokin/azan-scheduler/internal/logger"
	"github.com/oshokin/azan-scheduler/internal/playback"
)

// State identifies a stage of the interruption sequence.
type State string

const (
	// StateIdle means no sequence is in flight.
	StateIdle State = "idle"
	// StateFadingOut means the main stream is fading to silence.
	StateFadingOut State = "fading_out"
	// StatePausedAwaitingInterrupt means the stream is paused and the
	// interrupt content is about to start.
	StatePausedAwaitingInterrupt State = "paused_awaiting_interrupt"
	// StatePlayingInterrupt means the interrupt content is playing.
	StatePlayingInterrupt State = "playing_interrupt_content"
	// StatePostInterruptDelay means the configured pause after the interrupt
	// content is running.
	StatePostInterruptDelay State = "post_interrupt_delay"
	// StatePostAction means the configured post action is being applied.
	StatePostAction State = "post_action"
)

var (
	// ErrSequenceInProgress rejects a trigger while another sequence is in
	// flight. Concurrent triggers are never queued or interleaved.
	ErrSequenceInProgress = errors.New("interruption sequence already in progress")
	// ErrCallbackFailed wraps an external playback callback failure.
	ErrCallbackFailed = errors.New("playback callback failed")
)

// ManualEventName marks sequences started by TriggerNow rather than a timer.
const ManualEventName = "manual"

// StateChange describes one state transition, for external observers.
type StateChange struct {
	// State is the stage just entered.
	State State
	// Event is the prayer event driving the sequence.
	Event prayer.Event
	// At is when the transition happened.
	At time.Time
}

// Notifier receives state transitions. It must not block.
type Notifier func(change StateChange)

// SettingsFunc returns the current schedule settings. The sequencer snapshots
// them once per trigger so a mid-sequence configuration change cannot tear a
// running sequence.
type SettingsFunc func() *prayer.Settings

// RearmFunc re-arms the scheduler for the next occurrence. It is called on
// every return to Idle, even after a failed sequence.
type RearmFunc func(ctx context.Context)

// Sequencer owns the interruption state machine.
type Sequencer struct {
	playback  playback.Controller
	interrupt playback.ContentPlayer
	alternate playback.ContentPlayer
	channel   *fade.Channel
	settings  SettingsFunc
	rearm     RearmFunc
	notify    Notifier

	// inProgress is the mutual-exclusion guard across manual and scheduled
	// triggers.
	inProgress atomic.Bool

	// mu protects state and current.
	mu      sync.Mutex
	state   State
	current prayer.Event
}

// New creates an idle sequencer. The notifier may be nil.
func New(
	controller playback.Controller,
	interrupt, alternate playback.ContentPlayer,
	channel *fade.Channel,
	settings SettingsFunc,
	rearm RearmFunc,
	notify Notifier,
) *Sequencer {
	return &Sequencer{
		playback:  controller,
		interrupt: interrupt,
		alternate: alternate,
		channel:   channel,
		settings:  settings,
		rearm:     rearm,
		notify:    notify,
		state:     StateIdle,
	}
}

// State returns the current stage.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// InProgress reports whether a sequence is in flight. The watchdog checks it
// to keep stall handling from overriding an active interruption.
func (s *Sequencer) InProgress() bool {
	return s.inProgress.Load()
}

// HandleTrigger runs a scheduled sequence. It is the scheduler's fire
// callback and executes on the timer goroutine.
func (s *Sequencer) HandleTrigger(ctx context.Context, event prayer.Event) {
	if !s.inProgress.CompareAndSwap(false, true) {
		logger.WarnKV(ctx, "Scheduled trigger rejected, sequence in progress", "event", event.Name)

		return
	}

	s.run(ctx, event)
}

// TriggerNow starts a sequence immediately, outside the schedule. The same
// mutual-exclusion rules apply; the sequence itself runs asynchronously.
func (s *Sequencer) TriggerNow(ctx context.Context) error {
	if !s.inProgress.CompareAndSwap(false, true) {
		logger.Warn(ctx, "Manual trigger rejected, sequence in progress")

		return ErrSequenceInProgress
	}

	go s.run(ctx, prayer.Event{Name: ManualEventName})

	return nil
}

// run executes the full state machine for one trigger. It always leaves the
// sequencer Idle and re-arms the scheduler unless the context is done.
func (s *Sequencer) run(ctx context.Context, event prayer.Event) {
	settings := s.settings().Clone()
	if settings == nil {
		settings = &prayer.Settings{}
	}

	originalVolume := s.channel.Volume()

	logger.InfoKV(ctx, "Interruption sequence started", "event", event.Name)

	wasPlaying, err := s.playback.IsPlaying(ctx)
	if err != nil {
		s.abort(ctx, event, "query playback state", err)

		return
	}

	s.setState(ctx, StateFadingOut, event)

	if wasPlaying {
		job := s.channel.RampTo(ctx, fade.MinVolume, settings.FadeOut)
		<-job.Done()

		// A cancelled ramp means another writer (a duck, typically) took the
		// channel; the sequence still owns playback and proceeds to pause.
		if jobErr := job.Err(); jobErr != nil && !errors.Is(jobErr, fade.ErrRampCancelled) {
			s.abort(ctx, event, "fade out", jobErr)

			return
		}

		if pauseErr := s.playback.Pause(ctx); pauseErr != nil {
			s.abort(ctx, event, "pause playback", pauseErr)

			return
		}
	}

	s.setState(ctx, StatePausedAwaitingInterrupt, event)

	completed, err := s.interrupt.Start(ctx)
	if err != nil {
		s.abort(ctx, event, "play interrupt content", err)

		return
	}

	s.setState(ctx, StatePlayingInterrupt, event)

	if !s.awaitInterrupt(ctx, completed, settings.AssumedInterruptDuration) {
		s.finish(ctx, event)

		return
	}

	s.setState(ctx, StatePostInterruptDelay, event)

	if !sleep(ctx, settings.PostActionDelay) {
		s.finish(ctx, event)

		return
	}

	s.setState(ctx, StatePostAction, event)

	switch settings.PostAction {
	case prayer.PostActionResume:
		if wasPlaying {
			if resumeErr := s.playback.Resume(ctx); resumeErr != nil {
				s.abort(ctx, event, "resume playback", resumeErr)

				return
			}

			s.fadeIn(ctx, originalVolume, settings.FadeIn)
		}
	case prayer.PostActionAlternate:
		if _, altErr := s.alternate.Start(ctx); altErr != nil {
			s.abort(ctx, event, "play alternate content", altErr)

			return
		}

		s.fadeIn(ctx, originalVolume, settings.FadeIn)
	case prayer.PostActionSilence:
		// Playback stays stopped.
	}

	logger.InfoKV(ctx, "Interruption sequence completed", "event", event.Name)
	s.finish(ctx, event)
}

// awaitInterrupt waits for the interrupt content's natural end, bounded by
// the assumed duration when the player cannot signal completion. An elapsed
// assumed duration is treated as completion, not failure. Returns false only
// when the context is done.
func (s *Sequencer) awaitInterrupt(ctx context.Context, completed <-chan struct{}, assumed time.Duration) bool {
	if completed == nil && assumed <= 0 {
		logger.Warn(ctx, "No completion signal and no assumed duration, continuing immediately")

		return ctx.Err() == nil
	}

	var timeout <-chan time.Time

	if assumed > 0 {
		timer := time.NewTimer(assumed)
		defer timer.Stop()

		timeout = timer.C
	}

	select {
	case <-completed:
		return true
	case <-timeout:
		logger.InfoKV(ctx, "Assumed interrupt duration elapsed, treating as completion", "assumed", assumed.String())

		return true
	case <-ctx.Done():
		return false
	}
}

// fadeIn ramps the channel back up. A failure here is logged but does not
// change the outcome: the sequence is already past its post action.
func (s *Sequencer) fadeIn(ctx context.Context, target float64, duration time.Duration) {
	job := s.channel.RampTo(ctx, target, duration)
	<-job.Done()

	if err := job.Err(); err != nil && !errors.Is(err, fade.ErrRampCancelled) {
		logger.ErrorKV(ctx, "Fade in failed", "error", err)
	}
}

// abort logs a callback failure and short-circuits the machine to Idle,
// skipping the remaining steps.
func (s *Sequencer) abort(ctx context.Context, event prayer.Event, stage string, err error) {
	logger.ErrorKV(ctx, "Interruption sequence aborted",
		"event", event.Name, "stage", stage, "error", errors.Join(ErrCallbackFailed, err))

	s.finish(ctx, event)
}

// finish returns to Idle, releases the mutual-exclusion guard and re-arms
// the scheduler. A cancelled context skips re-arming: the daemon is shutting
// down.
func (s *Sequencer) finish(ctx context.Context, event prayer.Event) {
	s.setState(ctx, StateIdle, event)
	s.inProgress.Store(false)

	if ctx.Err() == nil {
		s.rearm(ctx)
	}
}

// setState records and publishes a state transition.
func (s *Sequencer) setState(ctx context.Context, state State, event prayer.Event) {
	s.mu.Lock()
	s.state = state
	s.current = event
	s.mu.Unlock()

	logger.DebugKV(ctx, "Sequence state changed", "state", string(state), "event", event.Name)

	if s.notify != nil {
		s.notify(StateChange{State: state, Event: event, At: time.Now()})
	}
}

// sleep waits for the duration or the context, whichever ends first.
func sleep(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
