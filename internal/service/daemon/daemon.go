package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/azan-scheduler/internal/api/ws"
	"github.com/oshokin/azan-scheduler/internal/audio/fade"
	"github.com/oshokin/azan-scheduler/internal/config"
	"github.com/oshokin/azan-scheduler/internal/domain/prayer"
	"github.com/oshokin/azan-scheduler/internal/ducking"
	"github.com/oshokin/azan-scheduler/internal/logger"
	"github.com/oshokin/azan-scheduler/internal/playback"
	"github.com/oshokin/azan-scheduler/internal/playback/local"
	"github.com/oshokin/azan-scheduler/internal/playback/memory"
	"github.com/oshokin/azan-scheduler/internal/scheduler"
	"github.com/oshokin/azan-scheduler/internal/sequencer"
	"github.com/oshokin/azan-scheduler/internal/version"
	"github.com/oshokin/azan-scheduler/internal/watchdog"
)

// shutdownTimeout bounds the graceful HTTP server shutdown.
const shutdownTimeout = 5 * time.Second

// Options are the command-line overrides applied on top of the config file.
type Options struct {
	// ConfigPath is the daemon settings file.
	ConfigPath string
	// PrayerTimesPath overrides the prayer times file named in the config.
	PrayerTimesPath string
	// ListenAddress overrides the control server address from the config.
	ListenAddress string
	// NoAudio forces the in-memory playback backend, for hosts without an
	// audio device.
	NoAudio bool
}

// players bundles the playback backends the daemon drives.
type players struct {
	primary   playback.Controller
	interrupt playback.ContentPlayer
	alternate playback.ContentPlayer
	fallback  playback.Controller
	// staller is non-nil when the primary backend can report buffering.
	staller playback.Staller
}

// Snapshot is the full externally visible daemon state, sent to websocket
// clients on connect and on every transition.
type Snapshot struct {
	// Sequence is the current interruption sequence stage.
	Sequence string `json:"sequence"`
	// NextEvent names the next armed prayer event, if any.
	NextEvent string `json:"next_event,omitempty"`
	// NextAt is the absolute time of the next armed trigger.
	NextAt *time.Time `json:"next_at,omitempty"`
	// Buffering reports whether the primary stream is stalled.
	Buffering bool `json:"buffering"`
	// FallbackActive reports whether fallback audio is playing.
	FallbackActive bool `json:"fallback_active"`
	// FallbackSource names the stream that stalled, if any.
	FallbackSource string `json:"fallback_source,omitempty"`
	// Ducking reports whether the main volume is ducked.
	Ducking bool `json:"ducking"`
	// Volume is the current main channel volume.
	Volume float64 `json:"volume"`
}

// Daemon is the assembled long-running process.
type Daemon struct {
	cfg *config.Config

	configPath      string
	prayerTimesPath string
	listenAddress   string

	players    players
	mainCh     *fade.Channel
	fallbackCh *fade.Channel

	scheduler *scheduler.Scheduler
	sequencer *sequencer.Sequencer
	watchdog  *watchdog.Watchdog
	ducker    *ducking.Ducker
	hub       *ws.Hub

	// mu protects day and settings, which hot reload replaces wholesale.
	mu       sync.Mutex
	day      prayer.Day
	settings *prayer.Settings
}

// Run loads configuration, assembles the daemon and supervises it until the
// context is done.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	prayerTimesPath := opts.PrayerTimesPath
	if prayerTimesPath == "" {
		prayerTimesPath = cfg.PrayerTimesFile
	}

	day, err := config.LoadPrayerTimes(prayerTimesPath)
	if err != nil {
		return err
	}

	p, err := buildPlayers(ctx, cfg, opts.NoAudio)
	if err != nil {
		return err
	}

	d := newDaemon(cfg, opts, p, day)
	d.prayerTimesPath = prayerTimesPath

	return d.run(ctx)
}

// newDaemon wires the components together. The playback backends are
// injected so tests can run the full daemon on in-memory players.
func newDaemon(cfg *config.Config, opts Options, p players, day prayer.Day) *Daemon {
	d := &Daemon{
		cfg:             cfg,
		configPath:      opts.ConfigPath,
		prayerTimesPath: cfg.PrayerTimesFile,
		listenAddress:   cfg.ListenAddress,
		players:         p,
		day:             day,
		settings:        cfg.Schedule.ToSettings(),
	}

	if opts.ListenAddress != "" {
		d.listenAddress = opts.ListenAddress
	}

	d.mainCh = fade.NewChannel("main", playback.NewSink(p.primary), fade.MaxVolume)
	d.fallbackCh = fade.NewChannel("fallback", playback.NewSink(p.fallback), fade.MinVolume)

	d.hub = ws.NewHub(d, func() any { return d.snapshot() })

	d.scheduler = scheduler.New(scheduler.SystemClock{}, func(ctx context.Context, event prayer.Event) {
		d.sequencer.HandleTrigger(ctx, event)
	})

	d.sequencer = sequencer.New(
		p.primary,
		p.interrupt,
		p.alternate,
		d.mainCh,
		d.currentSettings,
		d.rearm,
		func(sequencer.StateChange) {
			d.hub.Broadcast(context.Background(), "state", d.snapshot())
		},
	)

	d.watchdog = watchdog.New(
		d.mainCh,
		d.fallbackCh,
		p.primary,
		p.fallback,
		cfg.Watchdog.StallTimeout,
		cfg.Watchdog.CrossfadeDuration,
		d.sequencer.InProgress,
		watchdog.Hooks{
			OnFallback: func(ctx context.Context, _ string) {
				d.hub.Broadcast(ctx, "state", d.snapshot())
			},
			OnRestored: func(ctx context.Context) {
				d.hub.Broadcast(ctx, "state", d.snapshot())
			},
		},
	)

	d.ducker = ducking.New(d.mainCh, cfg.Duck.Level, cfg.Duck.FadeOut, cfg.Duck.FadeIn, cfg.Duck.Grace)

	return d
}

// buildPlayers opens the configured audio backend, or falls back to the
// in-memory one when the build or the host has no audio support.
func buildPlayers(ctx context.Context, cfg *config.Config, noAudio bool) (players, error) {
	if noAudio || !local.Available() {
		logger.Info(ctx, "Audio device disabled, using in-memory playback")

		primary := memory.New("primary", fade.MaxVolume)

		return players{
			primary:   primary,
			interrupt: memory.New("interrupt", fade.MaxVolume),
			alternate: memory.New("alternate", fade.MaxVolume),
			fallback:  memory.New("fallback", fade.MinVolume),
			staller:   primary,
		}, nil
	}

	engine, err := local.NewEngine(cfg.Audio.SampleRate, cfg.Audio.ChannelCount)
	if err != nil {
		return players{}, err
	}

	primary, err := engine.NewPlayer("primary", cfg.Audio.PrimaryFile, true, fade.MaxVolume)
	if err != nil {
		return players{}, err
	}

	interrupt, err := engine.NewPlayer("interrupt", cfg.Audio.InterruptFile, false, fade.MaxVolume)
	if err != nil {
		return players{}, err
	}

	p := players{
		primary:   primary,
		interrupt: interrupt,
		// Inert placeholders keep the wiring uniform when the optional
		// sources are not configured.
		alternate: playback.ContentPlayer(memory.New("alternate", fade.MaxVolume)),
		fallback:  playback.Controller(memory.New("fallback", fade.MinVolume)),
	}

	if cfg.Audio.AlternateFile != "" {
		alternate, err := engine.NewPlayer("alternate", cfg.Audio.AlternateFile, true, fade.MaxVolume)
		if err != nil {
			return players{}, err
		}

		p.alternate = alternate
	}

	if cfg.Audio.FallbackFile != "" {
		fallback, err := engine.NewPlayer("fallback", cfg.Audio.FallbackFile, true, fade.MinVolume)
		if err != nil {
			return players{}, err
		}

		p.fallback = fallback
	}

	return p, nil
}

// run starts playback, arms the first trigger and supervises the server
// goroutines until the context is done.
func (d *Daemon) run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "daemon")

	if err := d.players.primary.Play(ctx); err != nil {
		// The stream may simply be down; the watchdog takes it from here.
		logger.ErrorKV(ctx, "Failed to start primary playback", "error", err)
	}

	d.rearm(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.hub.Run(ctx)

		return nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.hub.Handler(ctx))
	mux.HandleFunc("/healthz", handleHealth)

	server := &http.Server{
		Addr:              d.listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.InfoKV(ctx, "Control server listening", "addr", d.listenAddress)

		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if d.players.staller != nil {
		g.Go(func() error {
			d.watchdog.Monitor(ctx, d.players.staller.Stalled, "primary", d.cfg.Watchdog.PollInterval)

			return nil
		})
	}

	g.Go(func() error {
		d.watchFiles(ctx)

		return nil
	})

	err := g.Wait()

	d.scheduler.CancelScheduled()
	logger.Info(ctx, "Daemon stopped")

	return err
}

// rearm cancels any armed trigger and schedules the next one from the
// current events and settings. The sequencer calls it after every sequence.
func (d *Daemon) rearm(ctx context.Context) {
	d.mu.Lock()
	day := d.day.Clone()
	settings := d.settings.Clone()
	d.mu.Unlock()

	_, err := d.scheduler.Schedule(ctx, day, settings)

	switch {
	case errors.Is(err, scheduler.ErrDisabled):
		logger.Info(ctx, "Scheduled interruptions are disabled")
	case errors.Is(err, scheduler.ErrNoEvents):
		logger.Warn(ctx, "No triggering prayer events, nothing armed")
	case err != nil:
		logger.ErrorKV(ctx, "Failed to arm next trigger", "error", err)
	}

	d.hub.Broadcast(ctx, "state", d.snapshot())
}

// currentSettings returns the live schedule settings for the sequencer.
func (d *Daemon) currentSettings() *prayer.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.settings.Clone()
}

// snapshot collects the full daemon state.
func (d *Daemon) snapshot() Snapshot {
	snap := Snapshot{
		Sequence: string(d.sequencer.State()),
		Volume:   d.mainCh.Volume(),
	}

	if trigger, ok := d.scheduler.Next(); ok {
		snap.NextEvent = trigger.Event.Name
		at := trigger.At
		snap.NextAt = &at
	}

	wState := d.watchdog.Snapshot()
	snap.Buffering = wState.Buffering
	snap.FallbackActive = wState.FallbackActive
	snap.FallbackSource = wState.Source

	snap.Ducking = d.ducker.Snapshot().Ducking

	return snap
}

// watchFiles reloads the prayer times and settings when their files change.
func (d *Daemon) watchFiles(ctx context.Context) {
	paths := []string{d.prayerTimesPath}
	if d.configPath != "" {
		paths = append(paths, d.configPath)
	}

	watcher, err := config.NewWatcher(paths...)
	if err != nil {
		logger.WarnKV(ctx, "Hot reload disabled", "error", err)
		<-ctx.Done()

		return
	}

	defer func() { _ = watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-watcher.Events:
			if !ok {
				return
			}

			d.reload(ctx, path)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return
			}

			logger.WarnKV(ctx, "File watcher error", "error", watchErr)
		}
	}
}

// reload applies a changed file. A failed reload keeps the previous state.
func (d *Daemon) reload(ctx context.Context, path string) {
	day, dayErr := config.LoadPrayerTimes(d.prayerTimesPath)
	if dayErr != nil {
		logger.WarnKV(ctx, "Ignoring invalid prayer times file", "path", path, "error", dayErr)

		return
	}

	d.mu.Lock()
	changed := !d.day.Equal(day)
	if changed {
		d.day = day
	}

	// The watcher reports absolute paths; the configured one may be relative.
	if d.configPath != "" && path != absPath(d.prayerTimesPath) {
		if cfg, cfgErr := config.Load(d.configPath); cfgErr == nil {
			d.settings = cfg.Schedule.ToSettings()
			changed = true

			if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok && level != logger.Level() {
				logger.SetLevel(level)
			}
		} else {
			logger.WarnKV(ctx, "Ignoring invalid settings file", "path", path, "error", cfgErr)
		}
	}
	d.mu.Unlock()

	if !changed {
		return
	}

	logger.InfoKV(ctx, "Configuration reloaded, rescheduling", "path", path)
	d.rearm(ctx)
}

// absPath resolves a path for comparison, keeping it as-is on failure.
func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return abs
}

// TriggerNow starts a manual interruption sequence.
func (d *Daemon) TriggerNow(ctx context.Context) error {
	return d.sequencer.TriggerNow(ctx)
}

// ForceFallback switches to fallback audio immediately.
func (d *Daemon) ForceFallback(ctx context.Context) {
	d.watchdog.ForceFallback(ctx)
}

// StopFallback returns from fallback audio to the primary stream.
func (d *Daemon) StopFallback(ctx context.Context) {
	d.watchdog.StopFallback(ctx)
}

// Duck lowers the main volume for a transient foreground event.
func (d *Daemon) Duck(ctx context.Context) {
	d.ducker.Duck(ctx)
}

// Restore undoes a duck.
func (d *Daemon) Restore(ctx context.Context) {
	d.ducker.Restore(ctx)
}

// handleHealth reports liveness and the build version.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version.Short(),
	})
}
