package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rbright/lilibet/internal/audio"
	"github.com/rbright/lilibet/internal/config"
)

const (
	fileContentType = "audio/m4a"
	fileFilename    = "recording.m4a"
)

// FileRecorder records through an ffmpeg subprocess into a private .m4a file.
type FileRecorder struct {
	argv        []string
	inputFormat string
	input       string
	logger      *slog.Logger

	tempRoot    string
	startupWait time.Duration
	stopGrace   time.Duration
}

// NewFile builds the ffmpeg-managed recorder.
func NewFile(cfg config.AudioConfig, logger *slog.Logger) *FileRecorder {
	argv := cfg.Capture.Argv
	if len(argv) == 0 {
		argv = []string{"ffmpeg"}
	}
	format := strings.TrimSpace(cfg.InputFormat)
	if format == "" {
		format = "pulse"
	}
	input := strings.TrimSpace(cfg.Input)
	if input == "" {
		input = "default"
	}
	return &FileRecorder{
		argv:        argv,
		inputFormat: format,
		input:       input,
		logger:      logger,
		startupWait: 250 * time.Millisecond,
		stopGrace:   1200 * time.Millisecond,
	}
}

// Variant reports VariantFile.
func (r *FileRecorder) Variant() Variant { return VariantFile }

// Start launches the capture process and waits briefly for early failures.
func (r *FileRecorder) Start(ctx context.Context) (Handle, error) {
	binary, err := lookPath(r.argv[0])
	if err != nil {
		return nil, fmt.Errorf("%w: capture command %q not found", ErrDeviceUnavailable, r.argv[0])
	}

	dir, err := os.MkdirTemp(r.tempRoot, "lilibet-rec-*")
	if err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}
	path := filepath.Join(dir, fileFilename)

	args := append([]string{}, r.argv[1:]...)
	args = append(args,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-f", r.inputFormat,
		"-i", r.input,
		"-ac", "1",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-c:a", "aac",
		path,
	)

	// Not CommandContext: cancellation must go through SIGINT so the
	// container trailer gets written.
	cmd := exec.Command(binary, args...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: start capture: %v", ErrDeviceUnavailable, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = os.RemoveAll(dir)
		return nil, classifyEarlyExit(err, stderr.String())
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		_ = os.RemoveAll(dir)
		return nil, ctx.Err()
	case <-time.After(r.startupWait):
	}

	return &fileHandle{
		dir:     dir,
		path:    path,
		process: cmd.Process,
		waitErr: waitErr,
		stderr:  stderr,
		grace:   r.stopGrace,
		logger:  r.logger,
		state:   StateRecording,
	}, nil
}

func classifyEarlyExit(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if detail == "" && err != nil {
		detail = err.Error()
	}
	lower := strings.ToLower(detail)
	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "access denied") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, detail)
	}
	if detail == "" {
		detail = "capture exited before recording started"
	}
	return fmt.Errorf("%w: %s", ErrDeviceUnavailable, detail)
}

type fileHandle struct {
	dir     string
	path    string
	process *os.Process
	waitErr <-chan error
	stderr  *lockedBuffer
	grace   time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	state HandleState
	size  int64

	stopOnce    sync.Once
	stopErr     error
	releaseOnce sync.Once
	releaseErr  error
}

// Stop interrupts ffmpeg so it finalizes the file, killing it after the grace
// period or when ctx ends first.
func (h *fileHandle) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() {
		_ = h.process.Signal(os.Interrupt)

		var err error
		select {
		case err = <-h.waitErr:
		case <-time.After(h.grace):
			_ = h.process.Kill()
			err = <-h.waitErr
		case <-ctx.Done():
			_ = h.process.Kill()
			err = <-h.waitErr
		}

		h.stopErr = normalizeStopErr(err)
		if h.stopErr != nil {
			if detail := strings.TrimSpace(h.stderr.String()); detail != "" {
				h.stopErr = fmt.Errorf("%w: %s", h.stopErr, detail)
			}
		}

		var size int64
		if info, statErr := os.Stat(h.path); statErr == nil {
			size = info.Size()
		}

		h.mu.Lock()
		h.state = StateStopped
		h.size = size
		h.mu.Unlock()
	})
	return h.stopErr
}

// normalizeStopErr treats a non-zero exit after SIGINT as a normal stop.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func (h *fileHandle) finishedSize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateStopped {
		return ErrStillRecording
	}
	if h.size == 0 {
		return ErrEmptyRecording
	}
	return nil
}

// PlayableReference returns the stable file path.
func (h *fileHandle) PlayableReference() (string, error) {
	if err := h.finishedSize(); err != nil {
		return "", err
	}
	return h.path, nil
}

func (h *fileHandle) UploadPayload() (Payload, error) {
	if err := h.finishedSize(); err != nil {
		return Payload{}, err
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		return Payload{}, fmt.Errorf("read recording: %w", err)
	}
	if len(data) == 0 {
		return Payload{}, ErrEmptyRecording
	}
	return Payload{Data: data, ContentType: fileContentType, Filename: fileFilename}, nil
}

func (h *fileHandle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *fileHandle) Variant() Variant { return VariantFile }

func (h *fileHandle) BytesCaptured() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Release stops capture if needed and removes the private temp dir.
func (h *fileHandle) Release() error {
	stopErr := h.Stop(context.Background())
	h.releaseOnce.Do(func() {
		h.releaseErr = os.RemoveAll(h.dir)
		if h.releaseErr != nil && h.logger != nil {
			h.logger.Warn("remove recording dir failed", "dir", h.dir, "error", h.releaseErr.Error())
		}
	})
	return errors.Join(stopErr, h.releaseErr)
}

// lockedBuffer collects subprocess stderr while it may still be written.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
