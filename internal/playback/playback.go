package playback

import "context"

// Controller drives one audio channel. All calls may fail: the caller is
// responsible for catching errors and recovering.
type Controller interface {
	// Play starts playback from the beginning of the source.
	Play(ctx context.Context) error
	// Pause suspends playback, keeping the position.
	Pause(ctx context.Context) error
	// Resume continues playback from the paused position.
	Resume(ctx context.Context) error
	// IsPlaying reports whether the channel is currently playing.
	IsPlaying(ctx context.Context) (bool, error)
	// SetVolume applies a volume in [0, 100].
	SetVolume(ctx context.Context, volume float64) error
	// Volume returns the last applied volume.
	Volume(ctx context.Context) (float64, error)
}

// ContentPlayer plays a one-shot piece of content (interrupt or alternate
// audio). Start returns a channel closed on natural completion, or nil when
// the backend cannot signal it; callers then fall back to an assumed
// duration.
type ContentPlayer interface {
	Start(ctx context.Context) (<-chan struct{}, error)
}

// Staller is implemented by controllers that can report network buffering,
// letting the watchdog derive stall/resume edges by polling.
type Staller interface {
	Stalled() bool
}
