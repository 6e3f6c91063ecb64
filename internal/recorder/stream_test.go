package recorder

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/lilibet/internal/audio"
)

type fakeCapture struct {
	sink     audio.Sink
	stops    int
	residual []byte
	stopErr  error
}

func (f *fakeCapture) Stop() error {
	f.stops++
	if f.stops == 1 && len(f.residual) > 0 {
		f.sink(f.residual)
	}
	return f.stopErr
}

type streamFixture struct {
	recorder *StreamRecorder
	captures []*fakeCapture
	selects  int
}

func newStreamFixture(t *testing.T, selection audio.Selection, selectErr error) *streamFixture {
	t.Helper()
	fx := &streamFixture{}
	fx.recorder = &StreamRecorder{
		selectDevice: func(context.Context, string, string) (audio.Selection, error) {
			fx.selects++
			return selection, selectErr
		},
		startCapture: func(_ context.Context, _ audio.Device, sink audio.Sink) (capture, error) {
			c := &fakeCapture{sink: sink}
			fx.captures = append(fx.captures, c)
			return c, nil
		},
	}
	return fx
}

func TestStreamRecorderKeepsChunkOrder(t *testing.T) {
	fx := newStreamFixture(t, audio.Selection{Device: audio.Device{ID: "mic"}}, nil)

	handle, err := fx.recorder.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateRecording, handle.State())
	require.Equal(t, VariantStream, handle.Variant())

	c := fx.captures[0]
	c.residual = []byte{5, 6}
	c.sink([]byte{1, 2})
	c.sink(nil)
	c.sink([]byte{3, 4})

	_, err = handle.UploadPayload()
	require.ErrorIs(t, err, ErrStillRecording)

	require.NoError(t, handle.Stop(context.Background()))
	require.Equal(t, StateStopped, handle.State())
	require.Equal(t, int64(6), handle.BytesCaptured())

	payload, err := handle.UploadPayload()
	require.NoError(t, err)
	require.Equal(t, "recording.wav", payload.Filename)
	require.Equal(t, "audio/wav", payload.ContentType)
	require.Equal(t, "RIFF", string(payload.Data[:4]))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, payload.Data[44:])
}

func TestStreamRecorderStopIsIdempotentAndReleasesOnce(t *testing.T) {
	fx := newStreamFixture(t, audio.Selection{Device: audio.Device{ID: "mic"}}, nil)
	handle, err := fx.recorder.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, handle.Stop(context.Background()))
	require.NoError(t, handle.Stop(context.Background()))
	require.NoError(t, handle.Release())
	require.NoError(t, handle.Release())

	require.Len(t, fx.captures, 1)
	require.Equal(t, 1, fx.captures[0].stops)
	require.Equal(t, 1, fx.selects)
}

func TestStreamRecorderStopReleasesEvenWhenCaptureFails(t *testing.T) {
	fx := newStreamFixture(t, audio.Selection{Device: audio.Device{ID: "mic"}}, nil)
	handle, err := fx.recorder.Start(context.Background())
	require.NoError(t, err)
	fx.captures[0].stopErr = errors.New("stream close failed")

	require.Error(t, handle.Stop(context.Background()))
	require.Equal(t, StateStopped, handle.State())
	require.Equal(t, 1, fx.captures[0].stops)

	fx.captures[0].sink([]byte{9})
	require.Zero(t, handle.BytesCaptured())
}

func TestStreamRecorderEmptyRecording(t *testing.T) {
	fx := newStreamFixture(t, audio.Selection{Device: audio.Device{ID: "mic"}}, nil)
	handle, err := fx.recorder.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, handle.Stop(context.Background()))

	_, err = handle.UploadPayload()
	require.ErrorIs(t, err, ErrEmptyRecording)
	_, err = handle.PlayableReference()
	require.ErrorIs(t, err, ErrEmptyRecording)
}

func TestStreamRecorderPlayableReferenceIsFreshDataURI(t *testing.T) {
	fx := newStreamFixture(t, audio.Selection{Device: audio.Device{ID: "mic"}}, nil)
	handle, err := fx.recorder.Start(context.Background())
	require.NoError(t, err)
	fx.captures[0].sink([]byte{1, 0, 2, 0})
	require.NoError(t, handle.Stop(context.Background()))

	first, err := handle.PlayableReference()
	require.NoError(t, err)
	second, err := handle.PlayableReference()
	require.NoError(t, err)
	require.Equal(t, first, second)

	const prefix = "data:audio/wav;base64,"
	require.True(t, strings.HasPrefix(first, prefix))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(first, prefix))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 2, 0}, decoded[44:])
}

func TestStreamRecorderMapsSelectionErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "muted", err: audio.ErrInputMuted, want: ErrPermissionDenied},
		{name: "no devices", err: audio.ErrNoInputDevices, want: ErrDeviceUnavailable},
		{name: "no server", err: audio.ErrServerUnavailable, want: ErrDeviceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newStreamFixture(t, audio.Selection{}, tc.err)
			_, err := fx.recorder.Start(context.Background())
			require.ErrorIs(t, err, tc.want)
			require.Empty(t, fx.captures)
		})
	}
}

func TestStreamRecorderDebugDumpWritesWAV(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	fx := newStreamFixture(t, audio.Selection{Device: audio.Device{ID: "mic"}}, nil)
	fx.recorder.dumpAudio = true
	handle, err := fx.recorder.Start(context.Background())
	require.NoError(t, err)
	fx.captures[0].sink([]byte{1, 2})
	require.NoError(t, handle.Stop(context.Background()))

	matches, err := filepath.Glob(filepath.Join(state, "lilibet", "debug", "audio-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}
