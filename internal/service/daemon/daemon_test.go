package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/azan-scheduler/internal/config"
	"github.com/oshokin/azan-scheduler/internal/domain/prayer"
	"github.com/oshokin/azan-scheduler/internal/playback/memory"
	"github.com/oshokin/azan-scheduler/internal/sequencer"
)

// testDaemon bundles a daemon with its in-memory backends.
type testDaemon struct {
	d         *Daemon
	primary   *memory.Player
	interrupt *memory.Player
	fallback  *memory.Player
}

// newTestDaemon assembles a daemon on in-memory players with fast timings.
func newTestDaemon(t *testing.T, day prayer.Day) *testDaemon {
	t.Helper()

	cfg := config.Default()
	cfg.Audio.PrimaryFile = "primary.wav"
	cfg.Audio.InterruptFile = "azan.wav"
	cfg.Schedule.MinutesBefore = 2
	cfg.Schedule.FadeOut = 20 * time.Millisecond
	cfg.Schedule.FadeIn = 20 * time.Millisecond
	cfg.Schedule.PostActionDelay = 10 * time.Millisecond
	cfg.Schedule.AssumedInterruptDuration = 50 * time.Millisecond
	cfg.Duck.FadeOut = 20 * time.Millisecond
	cfg.Duck.FadeIn = 20 * time.Millisecond

	tb := &testDaemon{
		primary:   memory.New("primary", 100),
		interrupt: memory.New("interrupt", 100),
		fallback:  memory.New("fallback", 0),
	}

	tb.d = newDaemon(cfg, Options{NoAudio: true}, players{
		primary:   tb.primary,
		interrupt: tb.interrupt,
		alternate: memory.New("alternate", 100),
		fallback:  tb.fallback,
		staller:   tb.primary,
	}, day)

	return tb
}

// TestManualTriggerRunsFullSequence drives a manual interruption through the
// assembled daemon and checks it returns to idle with playback resumed.
func TestManualTriggerRunsFullSequence(t *testing.T) {
	t.Parallel()

	tb := newTestDaemon(t, prayer.Day{{Name: "Fajr", Minutes: 315}})
	ctx := context.Background()

	require.NoError(t, tb.primary.Play(ctx))
	require.NoError(t, tb.d.TriggerNow(ctx))

	// A second trigger while the first is in flight is rejected.
	require.Eventually(t, func() bool {
		return tb.d.sequencer.InProgress()
	}, 2*time.Second, time.Millisecond)
	require.ErrorIs(t, tb.d.TriggerNow(ctx), sequencer.ErrSequenceInProgress)

	require.Eventually(t, func() bool {
		return tb.d.snapshot().Sequence == string(sequencer.StateIdle) && !tb.d.sequencer.InProgress()
	}, 5*time.Second, 5*time.Millisecond)

	// Post action is resume: the primary plays again at full volume.
	playing, err := tb.primary.IsPlaying(ctx)
	require.NoError(t, err)
	require.True(t, playing)

	require.Eventually(t, func() bool {
		return tb.d.snapshot().Volume == 100
	}, 2*time.Second, 5*time.Millisecond)

	// The sequence re-armed the scheduler.
	_, armed := tb.d.scheduler.Next()
	require.True(t, armed)
}

// TestSnapshotCarriesArmedTrigger verifies the initial snapshot after arming.
func TestSnapshotCarriesArmedTrigger(t *testing.T) {
	t.Parallel()

	tb := newTestDaemon(t, prayer.Day{{Name: "Dhuhr", Minutes: 770}})

	tb.d.rearm(context.Background())

	snap := tb.d.snapshot()
	require.Equal(t, string(sequencer.StateIdle), snap.Sequence)
	require.Equal(t, "Dhuhr", snap.NextEvent)
	require.NotNil(t, snap.NextAt)
	require.False(t, snap.Buffering)
	require.False(t, snap.FallbackActive)
}

// TestFallbackCommands verifies the manual fallback surface on the daemon.
func TestFallbackCommands(t *testing.T) {
	t.Parallel()

	tb := newTestDaemon(t, nil)
	ctx := context.Background()

	tb.d.ForceFallback(ctx)
	require.True(t, tb.d.snapshot().FallbackActive)

	require.Eventually(t, func() bool {
		playing, err := tb.fallback.IsPlaying(ctx)

		return err == nil && playing
	}, 2*time.Second, 5*time.Millisecond)

	tb.d.StopFallback(ctx)
	require.False(t, tb.d.snapshot().FallbackActive)
}

// TestDuckCommands verifies the duck surface lowers and restores the main volume.
func TestDuckCommands(t *testing.T) {
	t.Parallel()

	tb := newTestDaemon(t, nil)
	ctx := context.Background()

	tb.d.Duck(ctx)

	require.Eventually(t, func() bool {
		snap := tb.d.snapshot()

		return snap.Ducking && snap.Volume == 30
	}, 2*time.Second, 5*time.Millisecond)

	tb.d.Restore(ctx)

	require.Eventually(t, func() bool {
		snap := tb.d.snapshot()

		return !snap.Ducking && snap.Volume == 100
	}, 2*time.Second, 5*time.Millisecond)
}

// TestReloadReplacesDayAndRearms verifies a prayer times change reschedules.
func TestReloadReplacesDayAndRearms(t *testing.T) {
	t.Parallel()

	tb := newTestDaemon(t, prayer.Day{{Name: "Fajr", Minutes: 315}})
	ctx := context.Background()

	dir := t.TempDir()
	path := dir + "/prayer-times.yaml"
	tb.d.prayerTimesPath = path

	require.NoError(t, config.SavePrayerTimes(path, prayer.Day{{Name: "Isha", Minutes: 1260}}))

	tb.d.reload(ctx, path)

	trigger, armed := tb.d.scheduler.Next()
	require.True(t, armed)
	require.Equal(t, "Isha", trigger.Event.Name)

	// Reloading identical contents leaves the armed trigger in place.
	tb.d.reload(ctx, path)

	again, armed := tb.d.scheduler.Next()
	require.True(t, armed)
	require.Equal(t, trigger.At, again.At)
}

// TestReloadMatchesRelativePrayerTimesPath verifies that a relative
// configured path is recognized when the watcher reports the change with an
// absolute one, so the settings file is not re-applied by mistake.
func TestReloadMatchesRelativePrayerTimesPath(t *testing.T) {
	// No t.Parallel: the test changes the working directory.
	tb := newTestDaemon(t, prayer.Day{{Name: "Fajr", Minutes: 315}})
	ctx := context.Background()

	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, config.SavePrayerTimes("prayer-times.yaml", prayer.Day{{Name: "Isha", Minutes: 1260}}))
	tb.d.prayerTimesPath = "prayer-times.yaml"

	cfg := config.Default()
	cfg.Audio.PrimaryFile = "primary.wav"
	cfg.Audio.InterruptFile = "azan.wav"
	cfg.Schedule.MinutesBefore = 7

	cfgPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))
	tb.d.configPath = cfgPath

	abs, err := filepath.Abs("prayer-times.yaml")
	require.NoError(t, err)

	tb.d.reload(ctx, abs)

	// The prayer times were applied, the settings file was left alone.
	trigger, armed := tb.d.scheduler.Next()
	require.True(t, armed)
	require.Equal(t, "Isha", trigger.Event.Name)
	require.NotEqual(t, 7, tb.d.currentSettings().MinutesBefore)
}
