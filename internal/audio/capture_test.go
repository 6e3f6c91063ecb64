package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOnPCMDeliversOrderedChunksAndFlushesResidualOnStop(t *testing.T) {
	var got [][]byte
	c := &Capture{sink: func(chunk []byte) { got = append(got, chunk) }}

	first := make([]byte, chunkSizeBytes+10)
	for i := range first {
		first[i] = 1
	}
	n, err := c.onPCM(first)
	require.NoError(t, err)
	require.Equal(t, len(first), n)
	require.Len(t, got, 1)

	second := make([]byte, chunkSizeBytes-10)
	for i := range second {
		second[i] = 2
	}
	_, err = c.onPCM(second)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, byte(1), got[1][0])
	require.Equal(t, byte(2), got[1][chunkSizeBytes-1])

	_, err = c.onPCM([]byte{3, 3})
	require.NoError(t, err)
	require.NoError(t, c.Stop())
	require.Len(t, got, 3)
	require.Equal(t, []byte{3, 3}, got[2])
	require.Equal(t, int64(len(first)+len(second)+2), c.BytesCaptured())

	require.NoError(t, c.Stop())
	require.Len(t, got, 3)
}

func TestOnPCMAfterStopReturnsEOF(t *testing.T) {
	c := &Capture{}
	require.NoError(t, c.Stop())

	n, err := c.onPCM([]byte{1, 2})
	require.Error(t, err)
	require.Zero(t, n)
}

func TestWatchExitsWhenCaptureStops(t *testing.T) {
	c := &Capture{done: make(chan struct{})}
	exited := make(chan struct{})
	go func() {
		c.watch(context.Background())
		close(exited)
	}()

	require.NoError(t, c.Stop())
	require.Eventually(t, func() bool {
		select {
		case <-exited:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestWatchStopsCaptureOnCancel(t *testing.T) {
	c := &Capture{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		c.watch(ctx)
		close(exited)
	}()

	cancel()
	<-exited
	c.mu.Lock()
	defer c.mu.Unlock()
	require.True(t, c.stopped)
}
