package fade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestCrossfadeNaturalCompletion verifies that the outgoing channel is
// hard-stopped with its volume forced to zero and the incoming channel is
// forced exactly to the target.
func TestCrossfadeNaturalCompletion(t *testing.T) {
	t.Parallel()

	outSink := new(recordingSink)
	inSink := new(recordingSink)
	outgoing := NewChannel("primary", outSink, 60)
	incoming := NewChannel("fallback", inSink, 0)

	f := Crossfade(context.Background(), outgoing, incoming, 60, 100*time.Millisecond)
	<-f.Done()

	require.NoError(t, f.Err())
	require.Equal(t, 1, outSink.stopCount())
	require.InDelta(t, MinVolume, outgoing.Volume(), 1e-9)
	require.InDelta(t, 60, incoming.Volume(), 1e-9)

	inValues := inSink.snapshot()
	require.NotEmpty(t, inValues)
	require.InDelta(t, 60, inValues[len(inValues)-1], 1e-9)
}

// TestCrossfadeCancelFreezesBothChannels verifies that cancellation cancels
// both ramps without applying endpoint values or stopping the outgoing
// channel.
func TestCrossfadeCancelFreezesBothChannels(t *testing.T) {
	t.Parallel()

	outSink := new(recordingSink)
	inSink := new(recordingSink)
	outgoing := NewChannel("primary", outSink, 80)
	incoming := NewChannel("fallback", inSink, 0)

	f := Crossfade(context.Background(), outgoing, incoming, 80, 2*time.Second)
	time.Sleep(250 * time.Millisecond)
	f.Cancel()
	<-f.Done()

	require.ErrorIs(t, f.Err(), ErrRampCancelled)
	require.Zero(t, outSink.stopCount())

	// Both channels freeze at their last interpolated volume.
	require.Greater(t, outgoing.Volume(), MinVolume)
	require.Less(t, incoming.Volume(), 80.0)

	outApplied := len(outSink.snapshot())
	inApplied := len(inSink.snapshot())
	time.Sleep(250 * time.Millisecond)
	require.Len(t, outSink.snapshot(), outApplied)
	require.Len(t, inSink.snapshot(), inApplied)
}

// TestCrossfadeZeroDuration verifies that endpoint semantics still apply when
// both ramps resolve synchronously.
func TestCrossfadeZeroDuration(t *testing.T) {
	t.Parallel()

	outSink := new(recordingSink)
	inSink := new(recordingSink)
	outgoing := NewChannel("primary", outSink, 45)
	incoming := NewChannel("fallback", inSink, 10)

	f := Crossfade(context.Background(), outgoing, incoming, 45, 0)
	<-f.Done()

	require.NoError(t, f.Err())
	require.Equal(t, 1, outSink.stopCount())
	require.InDelta(t, MinVolume, outgoing.Volume(), 1e-9)
	require.InDelta(t, 45, incoming.Volume(), 1e-9)
}
