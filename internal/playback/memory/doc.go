// Package memory provides an in-memory playback backend.
//
// It implements the playback interfaces without touching an audio device,
// which serves the --no-audio daemon mode, builds without audio support, and
// deterministic tests (stalls and completion are simulated explicitly).
package memory
