package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oshokin/azan-scheduler/internal/domain/prayer"
	"github.com/oshokin/azan-scheduler/internal/logger"
)

var (
	// ErrNoEvents indicates an empty or fully excluded event set.
	ErrNoEvents = errors.New("no triggering prayer events")
	// ErrDisabled indicates that scheduled interruptions are turned off.
	ErrDisabled = errors.New("scheduled interruptions are disabled")
)

// Clock abstracts the monotonic time source so tests can inject a fake.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the OS.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Trigger describes the next armed interruption.
type Trigger struct {
	// Event is the prayer event the trigger belongs to.
	Event prayer.Event
	// Delay is how long after "now" the trigger fires.
	Delay time.Duration
	// At is the absolute trigger time.
	At time.Time
}

// FireFunc is invoked on the timer goroutine when an armed trigger elapses.
type FireFunc func(ctx context.Context, event prayer.Event)

// Scheduler owns the single armed timer. A generation counter guarantees a
// cancelled timer can never fire into a state that has since moved on.
type Scheduler struct {
	clock Clock
	fire  FireFunc

	// mu protects all fields below.
	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	armed      bool
	next       Trigger
}

// New creates a scheduler that invokes fire when an armed trigger elapses.
func New(clock Clock, fire FireFunc) *Scheduler {
	return &Scheduler{
		clock: clock,
		fire:  fire,
	}
}

// ComputeNextTrigger selects the chronologically nearest future trigger for
// the given events: the minimal (eventMinutes - nowMinutes) mod day, minus
// the lead interval. A negative lead delay rolls to the next day; a
// same-minute trigger (zero delay) fires now. Delays beyond one day are
// skipped as a defensive bound against clock anomalies.
func ComputeNextTrigger(events prayer.Day, now time.Time, minutesBefore int) (Trigger, error) {
	nowMinutes := now.Hour()*60 + now.Minute()

	best := Trigger{}
	found := false

	for _, event := range events.Triggering() {
		if event.Validate() != nil {
			continue
		}

		until := event.Minutes - nowMinutes
		if until <= 0 {
			// Already passed today, consider tomorrow's occurrence.
			until += prayer.MinutesPerDay
		}

		delay := until - minutesBefore
		if delay < 0 {
			// The lead window has already passed, chain to the next cycle.
			delay += prayer.MinutesPerDay
		}

		if delay < 0 || delay > prayer.MinutesPerDay {
			continue
		}

		candidate := Trigger{
			Event: event,
			Delay: time.Duration(delay) * time.Minute,
		}
		candidate.At = now.Add(candidate.Delay)

		if !found || candidate.Delay < best.Delay {
			best = candidate
			found = true
		}
	}

	if !found {
		return Trigger{}, ErrNoEvents
	}

	return best, nil
}

// Schedule cancels any previously armed timer and arms a new one for the next
// trigger. It returns the armed trigger, ErrDisabled when interruptions are
// turned off, or ErrNoEvents when nothing can be armed.
func (s *Scheduler) Schedule(ctx context.Context, events prayer.Day, settings *prayer.Settings) (Trigger, error) {
	s.CancelScheduled()

	if settings == nil || !settings.Enabled {
		return Trigger{}, ErrDisabled
	}

	trigger, err := ComputeNextTrigger(events, s.clock.Now(), settings.MinutesBefore)
	if err != nil {
		return Trigger{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	generation := s.generation
	s.armed = true
	s.next = trigger
	s.timer = time.AfterFunc(trigger.Delay, func() {
		s.fired(ctx, generation, trigger.Event)
	})

	logger.InfoKV(ctx, "Interruption armed",
		"event", trigger.Event.Name, "delay", trigger.Delay.String(), "at", trigger.At.Format(time.RFC3339))

	return trigger, nil
}

// CancelScheduled disarms the timer, if armed. A timer that already fired but
// has not yet been dispatched is invalidated by the generation bump.
func (s *Scheduler) CancelScheduled() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.armed = false

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Next returns the currently armed trigger, if any.
func (s *Scheduler) Next() (Trigger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.next, s.armed
}

// fired dispatches an elapsed timer unless it has been superseded.
func (s *Scheduler) fired(ctx context.Context, generation uint64, event prayer.Event) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()

		return
	}

	s.armed = false
	s.timer = nil
	s.mu.Unlock()

	s.fire(ctx, event)
}
