package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/azan-scheduler/internal/domain/prayer"
)

// fakeClock is a fixed Clock for deterministic trigger computation.
type fakeClock struct {
	// now is the fixed instant returned by Now.
	now time.Time
}

// Now returns the configured instant.
func (c *fakeClock) Now() time.Time {
	return c.now
}

// at builds a time of day from minutes since midnight.
func at(minutes int) time.Time {
	return time.Date(2026, time.August, 30, minutes/60, minutes%60, 0, 0, time.UTC)
}

// testDay is the standard six-event set used across tests.
func testDay() prayer.Day {
	return prayer.Day{
		{Name: "Fajr", Minutes: 315},
		{Name: "Sunrise", Minutes: 390, SkipInterrupt: true},
		{Name: "Dhuhr", Minutes: 750},
		{Name: "Asr", Minutes: 980},
		{Name: "Maghrib", Minutes: 1185},
		{Name: "Isha", Minutes: 1290},
	}
}

// TestComputeNextTrigger_SameMinuteFiresNow verifies the lead-window boundary:
// at 05:13 with Fajr at 05:15 and a two-minute lead, the trigger is due now.
func TestComputeNextTrigger_SameMinuteFiresNow(t *testing.T) {
	t.Parallel()

	events := prayer.Day{{Name: "Fajr", Minutes: 315}, {Name: "Dhuhr", Minutes: 750}}

	trigger, err := ComputeNextTrigger(events, at(313), 2)

	require.NoError(t, err)
	require.Equal(t, "Fajr", trigger.Event.Name)
	require.Equal(t, time.Duration(0), trigger.Delay)
}

// TestComputeNextTrigger_LeadWindowPassedPicksNext verifies that an event
// whose lead window has already passed yields to the next event.
func TestComputeNextTrigger_LeadWindowPassedPicksNext(t *testing.T) {
	t.Parallel()

	events := prayer.Day{{Name: "Fajr", Minutes: 315}, {Name: "Dhuhr", Minutes: 750}}

	// 05:14 - Fajr's two-minute lead began at 05:13, so Dhuhr is next.
	trigger, err := ComputeNextTrigger(events, at(314), 2)

	require.NoError(t, err)
	require.Equal(t, "Dhuhr", trigger.Event.Name)
	require.Equal(t, time.Duration(750-314-2)*time.Minute, trigger.Delay)
}

// TestComputeNextTrigger_WrapsToTomorrow verifies day wrapping after the last
// event of the day.
func TestComputeNextTrigger_WrapsToTomorrow(t *testing.T) {
	t.Parallel()

	// 23:00 is past Isha (21:30), so tomorrow's Fajr is next.
	trigger, err := ComputeNextTrigger(testDay(), at(1380), 2)

	require.NoError(t, err)
	require.Equal(t, "Fajr", trigger.Event.Name)
	require.Equal(t, time.Duration(1440-1380+315-2)*time.Minute, trigger.Delay)
}

// TestComputeNextTrigger_ExcludesFlaggedEvents verifies that non-triggering
// events such as sunrise never arm an interruption.
func TestComputeNextTrigger_ExcludesFlaggedEvents(t *testing.T) {
	t.Parallel()

	// 06:00 sits between Fajr and Sunrise; Sunrise must be skipped.
	trigger, err := ComputeNextTrigger(testDay(), at(360), 2)

	require.NoError(t, err)
	require.Equal(t, "Dhuhr", trigger.Event.Name)
}

// TestComputeNextTrigger_EmptySets verifies the SchedulingError cases.
func TestComputeNextTrigger_EmptySets(t *testing.T) {
	t.Parallel()

	_, err := ComputeNextTrigger(nil, at(313), 2)
	require.ErrorIs(t, err, ErrNoEvents)

	onlyExcluded := prayer.Day{{Name: "Sunrise", Minutes: 390, SkipInterrupt: true}}
	_, err = ComputeNextTrigger(onlyExcluded, at(313), 2)
	require.ErrorIs(t, err, ErrNoEvents)

	malformed := prayer.Day{{Name: "Fajr", Minutes: 9999}}
	_, err = ComputeNextTrigger(malformed, at(313), 2)
	require.ErrorIs(t, err, ErrNoEvents)
}

// TestComputeNextTrigger_NearestOfAllEvents checks the selection across the
// full six-event day for several times of day.
func TestComputeNextTrigger_NearestOfAllEvents(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		nowMinutes int
		wantEvent  string
	}{
		{name: "early morning", nowMinutes: 60, wantEvent: "Fajr"},
		{name: "before noon", nowMinutes: 700, wantEvent: "Dhuhr"},
		{name: "afternoon", nowMinutes: 900, wantEvent: "Asr"},
		{name: "evening", nowMinutes: 1200, wantEvent: "Isha"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			trigger, err := ComputeNextTrigger(testDay(), at(tc.nowMinutes), 2)
			require.NoError(t, err)
			require.Equal(t, tc.wantEvent, trigger.Event.Name)
			require.GreaterOrEqual(t, trigger.Delay, time.Duration(0))
		})
	}
}

// TestSchedulerFiresDueTrigger verifies that a zero-delay trigger fires the
// callback with the selected event.
func TestSchedulerFiresDueTrigger(t *testing.T) {
	t.Parallel()

	fired := make(chan prayer.Event, 1)
	s := New(&fakeClock{now: at(313)}, func(_ context.Context, event prayer.Event) {
		fired <- event
	})

	settings := &prayer.Settings{Enabled: true, MinutesBefore: 2, PostAction: prayer.PostActionResume}
	trigger, err := s.Schedule(context.Background(), testDay(), settings)

	require.NoError(t, err)
	require.Equal(t, "Fajr", trigger.Event.Name)

	select {
	case event := <-fired:
		require.Equal(t, "Fajr", event.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("due trigger did not fire")
	}

	_, armed := s.Next()
	require.False(t, armed)
}

// TestSchedulerCancelPreventsFire verifies that cancellation disarms the
// timer and invalidates any in-flight fire.
func TestSchedulerCancelPreventsFire(t *testing.T) {
	t.Parallel()

	fired := make(chan prayer.Event, 1)
	s := New(&fakeClock{now: at(313)}, func(_ context.Context, event prayer.Event) {
		fired <- event
	})

	settings := &prayer.Settings{Enabled: true, MinutesBefore: 0, PostAction: prayer.PostActionResume}

	// Dhuhr only: trigger is hours away, cancellation must disarm it.
	_, err := s.Schedule(context.Background(), prayer.Day{{Name: "Dhuhr", Minutes: 750}}, settings)
	require.NoError(t, err)

	_, armed := s.Next()
	require.True(t, armed)

	s.CancelScheduled()

	_, armed = s.Next()
	require.False(t, armed)

	select {
	case <-fired:
		t.Fatal("cancelled trigger fired")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestSchedulerRescheduleReplacesTimer verifies there is no double-fire
// window when Schedule is called again.
func TestSchedulerRescheduleReplacesTimer(t *testing.T) {
	t.Parallel()

	fired := make(chan prayer.Event, 2)
	s := New(&fakeClock{now: at(313)}, func(_ context.Context, event prayer.Event) {
		fired <- event
	})

	settings := &prayer.Settings{Enabled: true, MinutesBefore: 2, PostAction: prayer.PostActionResume}

	_, err := s.Schedule(context.Background(), prayer.Day{{Name: "Dhuhr", Minutes: 750}}, settings)
	require.NoError(t, err)

	// Rescheduling with a due event must fire exactly once, for the new set.
	_, err = s.Schedule(context.Background(), prayer.Day{{Name: "Fajr", Minutes: 315}}, settings)
	require.NoError(t, err)

	select {
	case event := <-fired:
		require.Equal(t, "Fajr", event.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("rescheduled trigger did not fire")
	}

	select {
	case event := <-fired:
		t.Fatalf("unexpected second fire for %s", event.Name)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestSchedulerDisabledSettings verifies that disabled settings never arm.
func TestSchedulerDisabledSettings(t *testing.T) {
	t.Parallel()

	s := New(&fakeClock{now: at(313)}, func(context.Context, prayer.Event) {
		t.Error("disabled scheduler fired")
	})

	_, err := s.Schedule(context.Background(), testDay(), &prayer.Settings{Enabled: false})
	require.ErrorIs(t, err, ErrDisabled)

	_, err = s.Schedule(context.Background(), testDay(), nil)
	require.ErrorIs(t, err, ErrDisabled)

	_, armed := s.Next()
	require.False(t, armed)
}
