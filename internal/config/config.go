package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/azan-scheduler/internal/domain/prayer"
	"github.com/oshokin/azan-scheduler/internal/logger"
)

const (
	// DefaultConfigFilename is the default filename for daemon settings.
	DefaultConfigFilename = "azan-scheduler.yaml"

	// DefaultPrayerTimesFilename is the default filename for the daily prayer times.
	DefaultPrayerTimesFilename = "prayer-times.yaml"

	// DefaultListenAddress is the default address of the control HTTP server.
	DefaultListenAddress = "127.0.0.1:8090"

	// DefaultFadeDuration is the default length of volume fades.
	DefaultFadeDuration = 4 * time.Second

	// DefaultPostActionDelay is the default pause after interrupt content.
	DefaultPostActionDelay = 2 * time.Second

	// DefaultAssumedInterruptDuration bounds the wait for interrupt content
	// when the player cannot signal completion.
	DefaultAssumedInterruptDuration = 5 * time.Minute

	// DefaultSampleRate is the default output sample rate in Hz.
	DefaultSampleRate = 44100

	// DefaultChannelCount is the default number of output channels.
	DefaultChannelCount = 2

	// DefaultPollInterval is the default interval for polled stall and
	// duck signals.
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errPrimaryFileRequired is returned when the primary audio source is missing.
	errPrimaryFileRequired = errors.New("primary audio file must be provided")
	// errInterruptFileRequired is returned when the interrupt audio source is missing.
	errInterruptFileRequired = errors.New("interrupt audio file must be provided")
	// errAlternateFileRequired is returned when the post action needs an
	// alternate source that was not configured.
	errAlternateFileRequired = errors.New("alternate post action requires an alternate audio file")
)

// AudioConfig names the audio sources and output format.
type AudioConfig struct {
	// PrimaryFile is the main content played between interruptions.
	PrimaryFile string `yaml:"primary_file"`
	// InterruptFile is the content played during an interruption.
	InterruptFile string `yaml:"interrupt_file"`
	// AlternateFile is played after an interruption when the post action
	// selects the alternate source. Optional.
	AlternateFile string `yaml:"alternate_file,omitempty"`
	// FallbackFile is the looping local track used when the primary stalls.
	// Optional; without it the watchdog only reports stalls.
	FallbackFile string `yaml:"fallback_file,omitempty"`
	// SampleRate is the output sample rate in Hz.
	SampleRate int `yaml:"sample_rate"`
	// ChannelCount is the number of output channels.
	ChannelCount int `yaml:"channel_count"`
}

// ScheduleConfig controls scheduled interruptions.
type ScheduleConfig struct {
	// Enabled arms or disarms scheduled interruptions entirely.
	Enabled bool `yaml:"enabled"`
	// MinutesBefore is how many minutes before the prayer time the
	// fade-out begins.
	MinutesBefore int `yaml:"minutes_before"`
	// FadeOut is the duration of the fade to silence.
	FadeOut time.Duration `yaml:"fade_out"`
	// FadeIn is the duration of the fade back to the original volume.
	FadeIn time.Duration `yaml:"fade_in"`
	// PostAction selects what happens after the interrupt content finishes:
	// "resume", "silence" or "alternate".
	PostAction string `yaml:"post_action"`
	// PostActionDelay is the pause between interrupt content and post action.
	PostActionDelay time.Duration `yaml:"post_action_delay"`
	// AssumedInterruptDuration bounds the wait for interrupt content when the
	// player cannot signal natural completion.
	AssumedInterruptDuration time.Duration `yaml:"assumed_interrupt_duration"`
}

// ToSettings converts the YAML section to the domain settings type.
func (s ScheduleConfig) ToSettings() *prayer.Settings {
	return &prayer.Settings{
		Enabled:                  s.Enabled,
		MinutesBefore:            s.MinutesBefore,
		FadeOut:                  s.FadeOut,
		FadeIn:                   s.FadeIn,
		PostAction:               prayer.PostAction(s.PostAction),
		PostActionDelay:          s.PostActionDelay,
		AssumedInterruptDuration: s.AssumedInterruptDuration,
	}
}

// WatchdogConfig controls stall detection and fallback audio.
type WatchdogConfig struct {
	// StallTimeout is how long a stall may last before fallback audio starts.
	StallTimeout time.Duration `yaml:"stall_timeout"`
	// CrossfadeDuration is the length of the fallback/recovery crossfade.
	CrossfadeDuration time.Duration `yaml:"crossfade_duration"`
	// PollInterval is how often the stall signal is sampled.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DuckConfig controls transient volume ducking.
type DuckConfig struct {
	// Level is the ducked volume as a percentage of the original.
	Level float64 `yaml:"level"`
	// FadeOut is the duration of the duck fade.
	FadeOut time.Duration `yaml:"fade_out"`
	// FadeIn is the duration of the restore fade.
	FadeIn time.Duration `yaml:"fade_in"`
	// Grace is the falling-edge debounce window.
	Grace time.Duration `yaml:"grace"`
	// PollInterval is how often the foreground-active signal is sampled.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Config holds all daemon settings.
type Config struct {
	// ListenAddress is the address of the control HTTP server.
	ListenAddress string `yaml:"listen_addr"`
	// LogLevel is the minimum log level: debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
	// PrayerTimesFile is the path to the YAML file with the daily prayer times.
	PrayerTimesFile string `yaml:"prayer_times_file"`
	// Audio names the audio sources and output format.
	Audio AudioConfig `yaml:"audio"`
	// Schedule controls scheduled interruptions.
	Schedule ScheduleConfig `yaml:"schedule"`
	// Watchdog controls stall detection and fallback audio.
	Watchdog WatchdogConfig `yaml:"watchdog"`
	// Duck controls transient volume ducking.
	Duck DuckConfig `yaml:"duck"`
}

// Default returns a configuration with every field at its default value.
// The audio file paths are left empty and must be filled in before use.
func Default() *Config {
	return &Config{
		ListenAddress:   DefaultListenAddress,
		LogLevel:        "info",
		PrayerTimesFile: DefaultPrayerTimesFilename,
		Audio: AudioConfig{
			SampleRate:   DefaultSampleRate,
			ChannelCount: DefaultChannelCount,
		},
		Schedule: ScheduleConfig{
			Enabled:                  true,
			MinutesBefore:            2,
			FadeOut:                  DefaultFadeDuration,
			FadeIn:                   DefaultFadeDuration,
			PostAction:               string(prayer.PostActionResume),
			PostActionDelay:          DefaultPostActionDelay,
			AssumedInterruptDuration: DefaultAssumedInterruptDuration,
		},
		Watchdog: WatchdogConfig{
			StallTimeout:      3 * time.Second,
			CrossfadeDuration: 500 * time.Millisecond,
			PollInterval:      DefaultPollInterval,
		},
		Duck: DuckConfig{
			Level:        30,
			FadeOut:      time.Second,
			FadeIn:       time.Second,
			Grace:        200 * time.Millisecond,
			PollInterval: DefaultPollInterval,
		},
	}
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling in defaults for fields left unset.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	if cfg.PrayerTimesFile == "" {
		cfg.PrayerTimesFile = DefaultPrayerTimesFilename
	}

	if cfg.Audio.PrimaryFile == "" {
		return errPrimaryFileRequired
	}

	if cfg.Audio.InterruptFile == "" {
		return errInterruptFileRequired
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}

	if cfg.Audio.ChannelCount <= 0 {
		cfg.Audio.ChannelCount = DefaultChannelCount
	}

	if cfg.Schedule.FadeOut <= 0 {
		cfg.Schedule.FadeOut = DefaultFadeDuration
	}

	if cfg.Schedule.FadeIn <= 0 {
		cfg.Schedule.FadeIn = DefaultFadeDuration
	}

	if cfg.Schedule.PostActionDelay < 0 {
		cfg.Schedule.PostActionDelay = DefaultPostActionDelay
	}

	if cfg.Schedule.AssumedInterruptDuration <= 0 {
		cfg.Schedule.AssumedInterruptDuration = DefaultAssumedInterruptDuration
	}

	if cfg.Watchdog.PollInterval <= 0 {
		cfg.Watchdog.PollInterval = DefaultPollInterval
	}

	if cfg.Duck.PollInterval <= 0 {
		cfg.Duck.PollInterval = DefaultPollInterval
	}

	if err := cfg.Schedule.ToSettings().Validate(); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	if cfg.Schedule.PostAction == string(prayer.PostActionAlternate) && cfg.Audio.AlternateFile == "" {
		return errAlternateFileRequired
	}

	return nil
}

// prayerTimesFile is the YAML layout of the daily prayer times file.
type prayerTimesFile struct {
	// Events is the full set of prayer events for one day.
	Events []prayer.Event `yaml:"events"`
}

// LoadPrayerTimes reads and validates the daily prayer times from the
// provided path.
func LoadPrayerTimes(path string) (prayer.Day, error) {
	if path == "" {
		path = DefaultPrayerTimesFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read prayer times: %w", err)
	}

	var file prayerTimesFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, fmt.Errorf("unmarshal prayer times: %w", err)
	}

	day := prayer.Day(file.Events)
	if err := day.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prayer times: %w", err)
	}

	return day, nil
}

// SavePrayerTimes writes the daily prayer times to the provided path.
func SavePrayerTimes(path string, day prayer.Day) error {
	if path == "" {
		path = DefaultPrayerTimesFilename
	}

	if err := day.Validate(); err != nil {
		return fmt.Errorf("invalid prayer times: %w", err)
	}

	data, err := yaml.Marshal(prayerTimesFile{Events: day})
	if err != nil {
		return fmt.Errorf("marshal prayer times: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write prayer times: %w", err)
	}

	return nil
}
