// Package daemon assembles and supervises the long-running scheduler
// process: playback backends, fade channels, the interrupt sequencer, the
// buffering watchdog, the ducking controller, configuration hot reload and
// the websocket control server.
package daemon
