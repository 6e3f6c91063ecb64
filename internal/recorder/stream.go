package recorder

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/lilibet/internal/audio"
	"github.com/rbright/lilibet/internal/config"
)

const (
	streamContentType = "audio/wav"
	streamFilename    = "recording.wav"
)

// capture is the part of audio.Capture a stream handle owns.
type capture interface {
	Stop() error
}

type (
	selectFunc  func(ctx context.Context, input string, fallback string) (audio.Selection, error)
	captureFunc func(ctx context.Context, device audio.Device, sink audio.Sink) (capture, error)
)

// StreamRecorder records push-based Pulse chunks into memory.
type StreamRecorder struct {
	input     string
	fallback  string
	dumpAudio bool
	logger    *slog.Logger

	selectDevice selectFunc
	startCapture captureFunc
}

// NewStream builds the in-process Pulse recorder.
func NewStream(cfg config.AudioConfig, debug config.DebugConfig, logger *slog.Logger) *StreamRecorder {
	return &StreamRecorder{
		input:        cfg.Input,
		fallback:     cfg.Fallback,
		dumpAudio:    debug.EnableAudioDump,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		startCapture: func(ctx context.Context, device audio.Device, sink audio.Sink) (capture, error) {
			return audio.StartCapture(ctx, device, sink)
		},
	}
}

// Variant reports VariantStream.
func (r *StreamRecorder) Variant() Variant { return VariantStream }

// Start resolves the input device and opens one capture stream.
func (r *StreamRecorder) Start(ctx context.Context) (Handle, error) {
	selection, err := r.selectDevice(ctx, r.input, r.fallback)
	if err != nil {
		return nil, classifySelectionErr(err)
	}
	if selection.Warning != "" && r.logger != nil {
		r.logger.Warn(selection.Warning, "device", selection.Device.ID)
	}

	handle := &streamHandle{
		device:    selection.Device,
		state:     StateRecording,
		dumpAudio: r.dumpAudio,
		logger:    r.logger,
	}
	c, err := r.startCapture(ctx, selection.Device, handle.appendChunk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	handle.capture = c
	return handle, nil
}

func classifySelectionErr(err error) error {
	if errors.Is(err, audio.ErrInputMuted) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

type streamHandle struct {
	device    audio.Device
	dumpAudio bool
	logger    *slog.Logger
	capture   capture

	mu     sync.Mutex
	state  HandleState
	sealed bool
	chunks [][]byte
	size   int64

	stopOnce    sync.Once
	stopErr     error
	releaseOnce sync.Once
}

// appendChunk is the capture sink. Chunks keep arrival order.
func (h *streamHandle) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sealed {
		return
	}
	h.chunks = append(h.chunks, chunk)
	h.size += int64(len(chunk))
}

func (h *streamHandle) Stop(_ context.Context) error {
	h.stopOnce.Do(func() {
		if h.capture != nil {
			h.stopErr = h.capture.Stop()
		}

		h.mu.Lock()
		h.sealed = true
		h.state = StateStopped
		h.mu.Unlock()

		if h.dumpAudio {
			h.writeDebugDump()
		}
	})
	return h.stopErr
}

func (h *streamHandle) writeDebugDump() {
	pcm := h.pcm()
	if len(pcm) == 0 {
		return
	}
	path, err := dumpWAV(pcm, audio.SampleRate)
	if h.logger == nil {
		return
	}
	if err != nil {
		h.logger.Warn("unable to write debug audio dump", "error", err.Error())
		return
	}
	h.logger.Debug("debug audio dump written", "path", path)
}

func (h *streamHandle) pcm() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return bytes.Join(h.chunks, nil)
}

// finished returns the concatenated PCM once the handle is stopped.
func (h *streamHandle) finished() ([]byte, error) {
	if h.State() != StateStopped {
		return nil, ErrStillRecording
	}
	pcm := h.pcm()
	if len(pcm) == 0 {
		return nil, ErrEmptyRecording
	}
	return pcm, nil
}

// PlayableReference returns a freshly encoded data URI on every call.
func (h *streamHandle) PlayableReference() (string, error) {
	pcm, err := h.finished()
	if err != nil {
		return "", err
	}
	wav := encodeWAV(pcm, audio.SampleRate, 1)
	return "data:" + streamContentType + ";base64," + base64.StdEncoding.EncodeToString(wav), nil
}

func (h *streamHandle) UploadPayload() (Payload, error) {
	pcm, err := h.finished()
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Data:        encodeWAV(pcm, audio.SampleRate, 1),
		ContentType: streamContentType,
		Filename:    streamFilename,
	}, nil
}

func (h *streamHandle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *streamHandle) Variant() Variant { return VariantStream }

func (h *streamHandle) BytesCaptured() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

func (h *streamHandle) Release() error {
	err := h.Stop(context.Background())
	h.releaseOnce.Do(func() {
		h.mu.Lock()
		h.chunks = nil
		h.mu.Unlock()
	})
	return err
}
