// Package ducking briefly lowers the main volume for transient foreground
// events (e.g. a spoken announcement) and restores it afterwards.
//
// Duck and Restore are idempotent and edge-triggered. The polling observer
// adapts signal sources without an event model, debouncing the falling edge
// with a short grace window so signal flutter does not cause volume
// oscillation.
package ducking
