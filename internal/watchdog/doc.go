// Package watchdog detects playback stalls and recovers with fallback audio.
//
// A stall arms a timeout; if playback does not resume in time, the watchdog
// crossfades to a pre-cached looping fallback track, and crossfades back when
// the stream recovers. Manual force/stop entry points use the same crossfade
// path, which keeps the behaviour deterministic under test. The watchdog
// yields to the sequencer: it never starts a fallback while an interruption
// sequence is in flight.
package watchdog
