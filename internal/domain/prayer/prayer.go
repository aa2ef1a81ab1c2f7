package prayer

import (
	"errors"
	"fmt"
	"time"
)

// MinutesPerDay is the number of minutes in a civil day.
const MinutesPerDay = 24 * 60

// PostAction selects what happens after the interrupt content finishes.
type PostAction string

const (
	// PostActionResume resumes the previously playing stream and fades it back in.
	PostActionResume PostAction = "resume"
	// PostActionSilence leaves playback stopped.
	PostActionSilence PostAction = "silence"
	// PostActionAlternate switches to the alternate content source.
	PostActionAlternate PostAction = "alternate"
)

var (
	// errEventNameRequired is returned when an event has an empty name.
	errEventNameRequired = errors.New("event name must be provided")
	// errMinutesBeforeNegative is returned when the lead interval is negative.
	errMinutesBeforeNegative = errors.New("minutes before must not be negative")
)

// Event is a single prayer time expressed as minutes since midnight.
type Event struct {
	// Name identifies the prayer (e.g. "Fajr", "Dhuhr").
	Name string `yaml:"name"`
	// Minutes is the time of day in minutes since midnight.
	Minutes int `yaml:"minutes"`
	// SkipInterrupt excludes the event from triggering interruptions
	// (e.g. "Sunrise" is informational only).
	SkipInterrupt bool `yaml:"skip_interrupt,omitempty"`
}

// Validate checks the event for a name and a time of day within one day.
func (e Event) Validate() error {
	if e.Name == "" {
		return errEventNameRequired
	}

	if e.Minutes < 0 || e.Minutes >= MinutesPerDay {
		return fmt.Errorf("event %q: minutes %d out of range [0, %d)", e.Name, e.Minutes, MinutesPerDay)
	}

	return nil
}

// Day is the full set of prayer events for one day.
// It is replaced wholesale whenever upstream prayer-time data changes.
type Day []Event

// Clone returns a copy of the day so callers cannot mutate the original.
func (d Day) Clone() Day {
	if d == nil {
		return nil
	}

	cloned := make(Day, len(d))
	copy(cloned, d)

	return cloned
}

// Triggering returns only the events that participate in interruptions.
func (d Day) Triggering() Day {
	result := make(Day, 0, len(d))
	for _, e := range d {
		if !e.SkipInterrupt {
			result = append(result, e)
		}
	}

	return result
}

// Equal reports whether two daily sets are identical.
// The scheduler uses it to detect a wholesale replacement.
func (d Day) Equal(other Day) bool {
	if len(d) != len(other) {
		return false
	}

	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}

	return true
}

// Validate checks every event in the set.
func (d Day) Validate() error {
	for _, e := range d {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Settings controls how an interruption sequence behaves.
// It is mutated by external configuration and read-only to the core;
// any change must atomically cancel and reschedule.
type Settings struct {
	// Enabled arms or disarms scheduled interruptions entirely.
	Enabled bool
	// MinutesBefore is the lead interval: the fade-out begins this many
	// minutes before the actual prayer time.
	MinutesBefore int
	// FadeOut is the duration of the fade to silence before pausing.
	FadeOut time.Duration
	// FadeIn is the duration of the fade back to the original volume.
	FadeIn time.Duration
	// PostAction selects what happens after the interrupt content finishes.
	PostAction PostAction
	// PostActionDelay is the pause between interrupt content and post action.
	PostActionDelay time.Duration
	// AssumedInterruptDuration bounds the wait for interrupt content when the
	// player cannot signal natural completion.
	AssumedInterruptDuration time.Duration
}

// Clone returns a copy of the settings to avoid leaking internal references.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// Validate checks settings fields for internal consistency.
func (s *Settings) Validate() error {
	if s.MinutesBefore < 0 {
		return errMinutesBeforeNegative
	}

	switch s.PostAction {
	case PostActionResume, PostActionSilence, PostActionAlternate:
	default:
		return fmt.Errorf("unknown post action %q", s.PostAction)
	}

	return nil
}
