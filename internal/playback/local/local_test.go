//go:build !noaudio

package local

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeWAV builds a minimal RIFF/WAVE file around the given PCM payload.
func writeWAV(t *testing.T, pcm []byte) string {
	t.Helper()

	header := make([]byte, 0, 44+len(pcm))
	header = append(header, []byte("RIFF")...)
	header = binary.LittleEndian.AppendUint32(header, uint32(36+len(pcm)))
	header = append(header, []byte("WAVE")...)
	header = append(header, []byte("fmt ")...)
	header = binary.LittleEndian.AppendUint32(header, 16)
	header = append(header, make([]byte, 16)...)
	header = append(header, []byte("data")...)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(pcm)))
	header = append(header, pcm...)

	path := filepath.Join(t.TempDir(), "sound.wav")
	require.NoError(t, os.WriteFile(path, header, 0o600))

	return path
}

// TestLoadPCMUnwrapsWAV verifies that the data chunk is extracted from a WAV
// container and that raw files pass through untouched.
func TestLoadPCMUnwrapsWAV(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}

	samples, err := loadPCM(writeWAV(t, pcm))
	require.NoError(t, err)
	require.Equal(t, pcm, samples)

	rawPath := filepath.Join(t.TempDir(), "sound.pcm")
	require.NoError(t, os.WriteFile(rawPath, pcm, 0o600))

	samples, err = loadPCM(rawPath)
	require.NoError(t, err)
	require.Equal(t, pcm, samples)
}

// TestSampleReaderScalesVolume verifies the per-sample software volume.
func TestSampleReaderScalesVolume(t *testing.T) {
	t.Parallel()

	samples := make([]byte, 4)
	binary.LittleEndian.PutUint16(samples[0:2], uint16(int16(1000)))
	binary.LittleEndian.PutUint16(samples[2:4], uint16(int16(-1000)))

	r := &sampleReader{samples: samples, volume: 50}

	out := make([]byte, 4)
	n, err := r.Read(out)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	require.Equal(t, int16(500), int16(binary.LittleEndian.Uint16(out[0:2])))
	require.Equal(t, int16(-500), int16(binary.LittleEndian.Uint16(out[2:4])))
}

// TestSampleReaderEndAndLoop verifies EOF signalling for one-shot content
// and wrapping for looping content.
func TestSampleReaderEndAndLoop(t *testing.T) {
	t.Parallel()

	ended := make(chan struct{})
	oneShot := &sampleReader{
		samples: []byte{1, 0, 2, 0},
		volume:  100,
		onEnd:   func() { close(ended) },
	}

	buf := make([]byte, 8)
	_, err := oneShot.Read(buf)
	require.NoError(t, err)

	_, err = oneShot.Read(buf)
	require.ErrorIs(t, err, io.EOF)

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("end of one-shot content was not signalled")
	}

	looping := &sampleReader{samples: []byte{1, 0, 2, 0}, loop: true, volume: 100}

	for i := 0; i < 3; i++ {
		n, err := looping.Read(buf)
		require.NoError(t, err)
		require.Equal(t, 4, n)
	}
}
