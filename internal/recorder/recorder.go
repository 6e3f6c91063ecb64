// Package recorder exposes one capture capability over two platform variants:
// an ffmpeg-managed file and an in-process Pulse stream.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/rbright/lilibet/internal/audio"
	"github.com/rbright/lilibet/internal/config"
)

var (
	// ErrPermissionDenied means microphone access was refused.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable means no capture device or capture tool is usable.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrEmptyRecording means the stopped recording holds no audio.
	ErrEmptyRecording = errors.New("recording is empty")
	// ErrStillRecording means output was requested before Stop.
	ErrStillRecording = errors.New("recording still in progress")
)

// Variant names the platform recorder implementation.
type Variant string

const (
	VariantFile   Variant = "file"
	VariantStream Variant = "stream"
)

// HandleState tracks one recording handle.
type HandleState string

const (
	StateRecording HandleState = "recording"
	StateStopped   HandleState = "stopped"
)

// Payload is the upload form of a finished recording.
type Payload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Recorder starts recordings on one platform variant.
type Recorder interface {
	Start(ctx context.Context) (Handle, error)
	Variant() Variant
}

// Handle is one live or finished recording.
//
// Stop is idempotent and always releases the capture resource. Release drops
// any buffered audio or temp files and implies Stop.
type Handle interface {
	Stop(ctx context.Context) error
	PlayableReference() (string, error)
	UploadPayload() (Payload, error)
	State() HandleState
	Variant() Variant
	BytesCaptured() int64
	Release() error
}

var (
	lookPath   = exec.LookPath
	pulseProbe = audio.Probe
)

// Detect picks the recorder variant once for the process.
//
// "auto" prefers the Pulse stream when a server answers and falls back to the
// ffmpeg file recorder when the capture binary resolves.
func Detect(ctx context.Context, cfg config.Config, logger *slog.Logger) Recorder {
	stream := func() Recorder { return NewStream(cfg.Audio, cfg.Debug, logger) }
	file := func() Recorder { return NewFile(cfg.Audio, logger) }

	switch strings.ToLower(strings.TrimSpace(cfg.Audio.Variant)) {
	case string(VariantFile):
		return file()
	case string(VariantStream):
		return stream()
	}

	if err := pulseProbe(ctx); err == nil {
		return stream()
	}
	if len(cfg.Audio.Capture.Argv) > 0 {
		if _, err := lookPath(cfg.Audio.Capture.Argv[0]); err == nil {
			return file()
		}
	}
	if logger != nil {
		logger.Warn("no capture backend detected; recording will fail until pulse is reachable")
	}
	return stream()
}
