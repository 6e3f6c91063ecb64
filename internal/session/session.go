// Package session drives one recording attempt from capture to delivered text
// and coordinates attempts for a single UI surface.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/lilibet/internal/backend"
	"github.com/rbright/lilibet/internal/fsm"
	"github.com/rbright/lilibet/internal/recorder"
)

// DefaultTranscribeTimeout bounds one speech-to-text round trip.
const DefaultTranscribeTimeout = 20 * time.Second

var (
	ErrNoSpeechDetected         = backend.ErrNoSpeechDetected
	ErrTranscriptionUnavailable = backend.ErrTranscriptionUnavailable
	// ErrSessionUsed means Start was called on an attempt that already ran.
	ErrSessionUsed = errors.New("recording session already used")
	// ErrAbandoned means the attempt was discarded while an operation was in flight.
	ErrAbandoned = errors.New("recording abandoned")
)

// Transcriber turns an uploaded recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, payload recorder.Payload) (backend.TranscriptionResult, error)
}

// Options tunes one Session.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Session is one recording attempt. It is never reused.
type Session struct {
	id          string
	recorder    recorder.Recorder
	transcriber Transcriber
	timeout     time.Duration
	logger      *slog.Logger

	mu         sync.Mutex
	state      fsm.State
	handle     recorder.Handle
	err        error
	cancel     context.CancelFunc
	transcript string
	bytes      int64
	startedAt  time.Time
	finishedAt time.Time
	latency    time.Duration
}

// New prepares an idle attempt.
func New(rec recorder.Recorder, transcriber Transcriber, opts Options) *Session {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTranscribeTimeout
	}
	return &Session{
		id:          uuid.NewString(),
		recorder:    rec,
		transcriber: transcriber,
		timeout:     timeout,
		logger:      opts.Logger,
		state:       fsm.StateIdle,
	}
}

// ID returns the attempt identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that ended the attempt, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// transition must be called with s.mu held.
func (s *Session) transition(event fsm.Event) error {
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Start acquires the microphone and begins capture.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if !s.startedAt.IsZero() || !s.finishedAt.IsZero() {
		s.mu.Unlock()
		return ErrSessionUsed
	}
	if err := s.transition(fsm.EventStart); err != nil {
		s.mu.Unlock()
		return err
	}
	s.startedAt = time.Now()
	s.mu.Unlock()

	handle, err := s.recorder.Start(ctx)

	s.mu.Lock()
	if s.state != fsm.StateRequestingPermission {
		s.mu.Unlock()
		if handle != nil {
			_ = handle.Release()
		}
		return ErrAbandoned
	}
	if err != nil {
		s.failLocked(err)
		failure := s.err
		s.mu.Unlock()
		return failure
	}
	s.handle = handle
	_ = s.transition(fsm.EventGranted)
	s.mu.Unlock()
	return nil
}

// Stop ends capture, uploads the recording, and returns the trimmed text.
// The capture resource is released on every path.
func (s *Session) Stop(ctx context.Context) (string, error) {
	s.mu.Lock()
	if err := s.transition(fsm.EventStop); err != nil {
		s.mu.Unlock()
		return "", err
	}
	handle := s.handle
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	stopErr := handle.Stop(ctx)
	payload, payloadErr := handle.UploadPayload()

	s.mu.Lock()
	if s.state != fsm.StateStopping {
		s.mu.Unlock()
		return "", ErrAbandoned
	}
	s.bytes = handle.BytesCaptured()
	if stopErr != nil && s.logger != nil {
		s.logger.Warn("recorder stop reported error", "session_id", s.id, "error", stopErr.Error())
	}
	if payloadErr == nil && s.logger != nil {
		if ref, err := handle.PlayableReference(); err == nil {
			s.logger.Debug("recording ready", "session_id", s.id, "playable", describeReference(ref))
		}
	}
	if payloadErr != nil {
		s.failLocked(payloadErr)
		s.releaseLocked()
		failure := s.err
		s.mu.Unlock()
		return "", failure
	}
	_ = s.transition(fsm.EventReleased)
	s.mu.Unlock()

	started := time.Now()
	result, err := s.transcriber.Transcribe(tctx, payload)
	latency := time.Since(started)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = latency
	s.releaseLocked()
	if s.state != fsm.StateTranscribing {
		return "", ErrAbandoned
	}
	if err != nil {
		s.failLocked(classifyTranscribeErr(err))
		return "", s.err
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		s.failLocked(ErrNoSpeechDetected)
		return "", s.err
	}
	s.transcript = text
	s.finishedAt = time.Now()
	_ = s.transition(fsm.EventTranscribed)
	return text, nil
}

// describeReference keeps data URIs out of logs.
func describeReference(ref string) string {
	meta, data, ok := strings.Cut(ref, ",")
	if !ok || !strings.HasPrefix(meta, "data:") {
		return ref
	}
	return fmt.Sprintf("%s (%d bytes encoded)", meta, len(data))
}

func classifyTranscribeErr(err error) error {
	switch {
	case errors.Is(err, ErrNoSpeechDetected), errors.Is(err, ErrTranscriptionUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out", ErrTranscriptionUnavailable)
	default:
		return fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, err)
	}
}

// Abandon discards the attempt from any state and releases the microphone.
// Safe to call repeatedly.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.releaseLocked()
	_ = s.transition(fsm.EventAbandon)
	if s.finishedAt.IsZero() {
		s.finishedAt = time.Now()
	}
}

// releaseLocked releases and forgets the held handle.
func (s *Session) releaseLocked() {
	if s.handle == nil {
		return
	}
	handle := s.handle
	s.handle = nil
	if err := handle.Release(); err != nil && s.logger != nil {
		s.logger.Warn("recorder release failed", "session_id", s.id, "error", err.Error())
	}
}

func (s *Session) failLocked(err error) {
	s.err = &Failure{Err: err, Message: UserMessage(err)}
	s.finishedAt = time.Now()
	_ = s.transition(fsm.EventFail)
}

// Result snapshots the attempt for logging.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	variant := ""
	if s.recorder != nil {
		variant = string(s.recorder.Variant())
	}
	return Result{
		ID:                s.id,
		State:             s.state,
		Transcript:        s.transcript,
		Err:               s.err,
		Variant:           variant,
		BytesCaptured:     s.bytes,
		TranscribeLatency: s.latency,
		StartedAt:         s.startedAt,
		FinishedAt:        s.finishedAt,
	}
}

// Result is the observable outcome of one attempt.
type Result struct {
	ID                string
	State             fsm.State
	Transcript        string
	Cancelled         bool
	Err               error
	Variant           string
	BytesCaptured     int64
	TranscribeLatency time.Duration
	StartedAt         time.Time
	FinishedAt        time.Time
}
