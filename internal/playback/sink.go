package playback

import "context"

// HardStopper is implemented by backends that can pause and rewind in one
// call. The sink falls back to a plain pause when it is absent.
type HardStopper interface {
	HardStop(ctx context.Context) error
}

// ControllerSink adapts a Controller to the volume-sink shape the fade
// engine consumes, so ramps and crossfades drive the external channel's
// global volume.
type ControllerSink struct {
	controller Controller
}

// NewSink wraps a controller for use as a fade sink.
func NewSink(controller Controller) *ControllerSink {
	return &ControllerSink{controller: controller}
}

// ApplyVolume forwards a discrete ramp update to the controller.
func (s *ControllerSink) ApplyVolume(ctx context.Context, volume float64) error {
	return s.controller.SetVolume(ctx, volume)
}

// HardStop pauses the channel and resets its position where the backend
// supports it.
func (s *ControllerSink) HardStop(ctx context.Context) error {
	if stopper, ok := s.controller.(HardStopper); ok {
		return stopper.HardStop(ctx)
	}

	return s.controller.Pause(ctx)
}
