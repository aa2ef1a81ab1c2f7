package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/azan-scheduler/internal/domain/prayer"
)

// validConfig returns a configuration that passes validation.
func validConfig() *Config {
	cfg := Default()
	cfg.Audio.PrimaryFile = "primary.wav"
	cfg.Audio.InterruptFile = "azan.wav"

	return cfg
}

// TestValidate checks required fields and default filling.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing primary file.
	cfg := Default()
	require.ErrorIs(t, Validate(cfg), errPrimaryFileRequired)

	// Missing interrupt file.
	cfg = Default()
	cfg.Audio.PrimaryFile = "primary.wav"
	require.ErrorIs(t, Validate(cfg), errInterruptFileRequired)

	// Bad listen address.
	cfg = validConfig()
	cfg.ListenAddress = "bad:address"
	require.Error(t, Validate(cfg))

	// Bad log level.
	cfg = validConfig()
	cfg.LogLevel = "loud"
	require.Error(t, Validate(cfg))

	// Bad post action.
	cfg = validConfig()
	cfg.Schedule.PostAction = "rewind"
	require.Error(t, Validate(cfg))

	// Alternate post action without an alternate source.
	cfg = validConfig()
	cfg.Schedule.PostAction = "alternate"
	require.ErrorIs(t, Validate(cfg), errAlternateFileRequired)

	// Zeroed durations fall back to defaults.
	cfg = validConfig()
	cfg.Schedule.FadeOut = 0
	cfg.Schedule.AssumedInterruptDuration = 0
	cfg.Watchdog.PollInterval = 0

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultFadeDuration, cfg.Schedule.FadeOut)
	require.Equal(t, DefaultAssumedInterruptDuration, cfg.Schedule.AssumedInterruptDuration)
	require.Equal(t, DefaultPollInterval, cfg.Watchdog.PollInterval)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := validConfig()
	cfg.Schedule.MinutesBefore = 3
	cfg.Schedule.FadeOut = 6 * time.Second
	cfg.Duck.Level = 20

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Audio, loaded.Audio)
	require.Equal(t, cfg.Schedule, loaded.Schedule)
	require.Equal(t, cfg.Duck, loaded.Duck)

	// File exists with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestToSettings verifies the YAML schedule section maps onto the domain type.
func TestToSettings(t *testing.T) {
	t.Parallel()

	section := ScheduleConfig{
		Enabled:                  true,
		MinutesBefore:            2,
		FadeOut:                  5 * time.Second,
		FadeIn:                   5 * time.Second,
		PostAction:               "alternate",
		PostActionDelay:          time.Second,
		AssumedInterruptDuration: 4 * time.Minute,
	}

	settings := section.ToSettings()
	require.NoError(t, settings.Validate())
	require.True(t, settings.Enabled)
	require.Equal(t, 2, settings.MinutesBefore)
	require.Equal(t, prayer.PostActionAlternate, settings.PostAction)
	require.Equal(t, 4*time.Minute, settings.AssumedInterruptDuration)
}

// TestPrayerTimesRoundtrip ensures the daily set survives save and load.
func TestPrayerTimesRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "prayer-times.yaml")

	day := prayer.Day{
		{Name: "Fajr", Minutes: 315},
		{Name: "Sunrise", Minutes: 390, SkipInterrupt: true},
		{Name: "Dhuhr", Minutes: 770},
	}

	require.NoError(t, SavePrayerTimes(path, day))

	loaded, err := LoadPrayerTimes(path)
	require.NoError(t, err)
	require.True(t, day.Equal(loaded))
}

// TestLoadPrayerTimesRejectsInvalid ensures out-of-range events fail loading.
func TestLoadPrayerTimesRejectsInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "prayer-times.yaml")

	contents := "events:\n  - name: Fajr\n    minutes: 1500\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := LoadPrayerTimes(path)
	require.Error(t, err)
}

// TestWatcherReportsWrites verifies change events for a watched file with debounce.
func TestWatcherReportsWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "prayer-times.yaml")
	require.NoError(t, os.WriteFile(path, []byte("events: []\n"), 0o600))

	w, err := NewWatcher(path)
	require.NoError(t, err)

	defer func() { _ = w.Close() }()

	require.NoError(t, os.WriteFile(path, []byte("events:\n  - name: Fajr\n    minutes: 315\n"), 0o600))

	select {
	case changed := <-w.Events:
		require.Equal(t, path, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event received")
	}

	// Unrelated files in the same directory are filtered out.
	other := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("x: 1\n"), 0o600))

	select {
	case changed := <-w.Events:
		t.Fatalf("unexpected event for %s", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

// TestWatcherCloseWithPendingEvents verifies that closing mid-stream is safe:
// the event loop owns the channels and shuts them down after Close returns.
func TestWatcherCloseWithPendingEvents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "prayer-times.yaml")
	require.NoError(t, os.WriteFile(path, []byte("events: []\n"), 0o600))

	w, err := NewWatcher(path)
	require.NoError(t, err)

	// Generate events nobody is receiving, then close underneath them.
	require.NoError(t, os.WriteFile(path, []byte("events: []\n# a\n"), 0o600))
	require.NoError(t, w.Close())

	// Both channels drain and close once the loop exits.
	deadline := time.After(5 * time.Second)

	for open := true; open; {
		select {
		case _, open = <-w.Events:
		case <-deadline:
			t.Fatal("events channel never closed")
		}
	}

	select {
	case _, open := <-w.Errors:
		require.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("errors channel never closed")
	}

	// Closing again is a no-op.
	require.NoError(t, w.Close())
}
