// Package sequencer drives the multi-stage interruption sequence.
//
// A trigger (scheduled or manual) moves an explicit state machine through
// fade-out, pause, interrupt content, a configurable delay and a post action,
// invoking the external playback callbacks at each stage. A single
// in-progress guard makes manual and scheduled triggers mutually exclusive,
// and any failing callback short-circuits the machine back to Idle so one
// bad occurrence can never disable future scheduling.
package sequencer
