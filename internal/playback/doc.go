// Package playback defines the narrow interfaces the orchestration core
// consumes to control external audio channels.
//
// The core never talks to a concrete audio backend directly: the daemon wires
// either the local oto-based players or the in-memory ones behind these
// interfaces, and tests substitute fakes.
package playback
