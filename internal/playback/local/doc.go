// Package local plays pre-cached PCM/WAV files on the machine's audio device
// through oto.
//
// It implements the playback interfaces with a software volume applied in the
// sample reader. Builds with the "noaudio" tag get a stub that reports audio
// as unavailable, letting the daemon fall back to the in-memory backend.
package local
