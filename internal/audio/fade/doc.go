// Package fade implements the shared volume-ramp and crossfade primitives.
//
// A Channel owns the single global volume of one audio output. At most one
// ramp Job is live per channel: starting a new ramp cancels the previous one
// (last writer wins), so competing fades can never oscillate. Crossfade
// synchronizes two jobs on the same step cadence, one fading out and one
// fading in.
package fade
