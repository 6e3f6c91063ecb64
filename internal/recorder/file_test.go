package recorder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// captureScript writes the bytes to the output path (last arg) on SIGINT.
const captureScript = `#!/usr/bin/env bash
out="${@: -1}"
trap 'printf "m4a-bytes" > "$out"; exit 255' INT
while true; do sleep 0.05; done
`

func newTestFileRecorder(t *testing.T, script string) *FileRecorder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	r := NewFile(testAudioConfig(path), nil)
	r.tempRoot = t.TempDir()
	r.stopGrace = 2 * time.Second
	return r
}

func TestFileRecorderFinalizesBeforeRead(t *testing.T) {
	r := newTestFileRecorder(t, captureScript)

	handle, err := r.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, VariantFile, handle.Variant())

	_, err = handle.PlayableReference()
	require.ErrorIs(t, err, ErrStillRecording)

	require.NoError(t, handle.Stop(context.Background()))
	require.NoError(t, handle.Stop(context.Background()))
	require.Equal(t, StateStopped, handle.State())

	ref, err := handle.PlayableReference()
	require.NoError(t, err)
	again, err := handle.PlayableReference()
	require.NoError(t, err)
	require.Equal(t, ref, again)
	require.Equal(t, "recording.m4a", filepath.Base(ref))

	payload, err := handle.UploadPayload()
	require.NoError(t, err)
	require.Equal(t, "m4a-bytes", string(payload.Data))
	require.Equal(t, "audio/m4a", payload.ContentType)
	require.Equal(t, "recording.m4a", payload.Filename)
	require.Equal(t, int64(len("m4a-bytes")), handle.BytesCaptured())

	require.NoError(t, handle.Release())
	_, err = os.Stat(filepath.Dir(ref))
	require.True(t, os.IsNotExist(err))
	require.NoError(t, handle.Release())
}

func TestFileRecorderEmptyRecording(t *testing.T) {
	r := newTestFileRecorder(t, "#!/usr/bin/env bash\ntrap 'exit 0' INT\nwhile true; do sleep 0.05; done\n")

	handle, err := r.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, handle.Stop(context.Background()))

	_, err = handle.UploadPayload()
	require.ErrorIs(t, err, ErrEmptyRecording)
	require.NoError(t, handle.Release())
}

func TestFileRecorderPermissionDeniedOnEarlyExit(t *testing.T) {
	r := newTestFileRecorder(t, "#!/usr/bin/env bash\necho 'default: Permission denied' 1>&2\nexit 1\n")

	_, err := r.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)

	entries, readErr := os.ReadDir(r.tempRoot)
	require.NoError(t, readErr)
	require.Empty(t, entries)
}

func TestFileRecorderDeviceUnavailableOnEarlyExit(t *testing.T) {
	r := newTestFileRecorder(t, "#!/usr/bin/env bash\necho 'default: No such device' 1>&2\nexit 1\n")

	_, err := r.Start(context.Background())
	require.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestFileRecorderMissingBinary(t *testing.T) {
	r := NewFile(testAudioConfig(filepath.Join(t.TempDir(), "missing-ffmpeg")), nil)
	_, err := r.Start(context.Background())
	require.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestFileRecorderReleaseWithoutStopKillsCapture(t *testing.T) {
	r := newTestFileRecorder(t, captureScript)

	handle, err := r.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, handle.Release())
	require.Equal(t, StateStopped, handle.State())
}

func TestClassifyEarlyExit(t *testing.T) {
	require.ErrorIs(t, classifyEarlyExit(nil, "Access denied by policy"), ErrPermissionDenied)
	require.ErrorIs(t, classifyEarlyExit(nil, ""), ErrDeviceUnavailable)
	require.ErrorContains(t, classifyEarlyExit(nil, ""), "exited before recording started")
}
