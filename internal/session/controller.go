package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/lilibet/internal/fsm"
	"github.com/rbright/lilibet/internal/ipc"
	"github.com/rbright/lilibet/internal/recorder"
)

var (
	// ErrSessionActive rejects a new recording while one is still running.
	ErrSessionActive = errors.New("a recording is already in progress")
	// ErrNoSession means there is no recording to finish.
	ErrNoSession = errors.New("no recording in progress")
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowTranscribing(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

// SpeechStopper silences spoken output before the microphone opens.
type SpeechStopper interface {
	Stop()
}

type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowTranscribing(context.Context)  {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) CueCancel(context.Context)         {}
func (noopIndicator) Hide(context.Context)              {}

// Config wires a Controller.
type Config struct {
	Logger      *slog.Logger
	Recorder    recorder.Recorder
	Transcriber Transcriber
	Indicator   Indicator
	Speech      SpeechStopper
	Timeout     time.Duration
}

// Controller owns at most one live Session for one UI surface.
type Controller struct {
	logger      *slog.Logger
	recorder    recorder.Recorder
	transcriber Transcriber
	indicator   Indicator
	speech      SpeechStopper
	timeout     time.Duration

	mu      sync.Mutex
	current *Session

	actions chan action
}

// NewController constructs a controller with a no-op indicator fallback.
func NewController(cfg Config) *Controller {
	indicator := cfg.Indicator
	if indicator == nil {
		indicator = noopIndicator{}
	}
	return &Controller{
		logger:      cfg.Logger,
		recorder:    cfg.Recorder,
		transcriber: cfg.Transcriber,
		indicator:   indicator,
		speech:      cfg.Speech,
		timeout:     cfg.Timeout,
		actions:     make(chan action, 1),
	}
}

// State reports the live session state, or idle.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return fsm.StateIdle
	}
	return current.State()
}

// IsTranscribing reports whether a recording is being uploaded or recognized.
func (c *Controller) IsTranscribing() bool {
	state := c.State()
	return state == fsm.StateStopping || state == fsm.StateTranscribing
}

// Begin starts a new recording attempt. It never opens a second recorder
// while one attempt is still live.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil {
		state := c.current.State()
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrSessionActive, state)
	}
	if c.recorder == nil || c.transcriber == nil {
		c.mu.Unlock()
		return errors.New("recording is not configured")
	}
	s := New(c.recorder, c.transcriber, Options{Timeout: c.timeout, Logger: c.logger})
	c.current = s
	c.mu.Unlock()

	if c.speech != nil {
		c.speech.Stop()
	}

	c.indicator.ShowRecording(ctx)
	if err := s.Start(ctx); err != nil {
		c.clear(s)
		if errors.Is(err, ErrAbandoned) {
			// Abandon already cued and logged this attempt.
			return err
		}
		c.indicator.ShowError(context.Background(), UserMessage(err))
		c.logResult(s.Result())
		return err
	}
	return nil
}

// Finish stops the live attempt and waits for its transcript.
func (c *Controller) Finish(ctx context.Context) Result {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return Result{State: fsm.StateIdle, Err: ErrNoSession}
	}
	if state := s.State(); state != fsm.StateRecording {
		return Result{ID: s.ID(), State: state, Err: fmt.Errorf("cannot finish from state %s", state)}
	}

	c.indicator.ShowTranscribing(ctx)
	_, err := s.Stop(ctx)
	c.indicator.CueStop(context.Background())
	c.clear(s)

	result := s.Result()
	switch {
	case errors.Is(err, ErrAbandoned):
		result.Cancelled = true
		result.Err = nil
	case err != nil:
		result.Err = err
		c.indicator.ShowError(context.Background(), UserMessage(err))
	default:
		c.indicator.CueComplete(context.Background())
		c.indicator.Hide(context.Background())
	}
	c.logResult(result)
	return result
}

// Abandon discards the live attempt, if any, and releases the microphone.
func (c *Controller) Abandon() Result {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()
	if s == nil {
		return Result{State: fsm.StateIdle, Cancelled: true}
	}

	s.Abandon()
	c.indicator.CueCancel(context.Background())
	c.indicator.Hide(context.Background())

	result := s.Result()
	result.Cancelled = true
	c.logResult(result)
	return result
}

func (c *Controller) clear(s *Session) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()
}

// Run executes one owner lifecycle: begin, then wait for stop, cancel, or ctx.
func (c *Controller) Run(ctx context.Context) Result {
	select {
	case <-c.actions:
	default:
	}

	if err := c.Begin(ctx); err != nil {
		return Result{State: fsm.StateIdle, Err: err, StartedAt: time.Now(), FinishedAt: time.Now()}
	}

	select {
	case <-ctx.Done():
		result := c.Abandon()
		result.Cancelled = false
		result.Err = ctx.Err()
		return result
	case a := <-c.actions:
		switch a {
		case actionStop:
			return c.Finish(ctx)
		case actionCancel:
			return c.Abandon()
		default:
			result := c.Abandon()
			result.Cancelled = false
			result.Err = fmt.Errorf("unknown action %d", a)
			return result
		}
	}
}

// Handle serves IPC commands for the owner process.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return ipc.Response{OK: true, State: string(c.State()), Message: "status"}
	case "toggle":
		return c.requestStop("toggle")
	case "stop":
		return c.requestStop("stop")
	case "cancel":
		return c.requestCancel()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) requestStop(source string) ipc.Response {
	state := c.State()
	if state == fsm.StateStopping || state == fsm.StateTranscribing {
		return ipc.Response{OK: false, State: string(state), Error: "already transcribing"}
	}
	if state != fsm.StateRecording && state != fsm.StateRequestingPermission {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", source, state)}
	}

	select {
	case c.actions <- actionStop:
		return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
	}
}

// requestCancel is accepted in any live state; abandonment cancels an
// in-flight transcription too.
func (c *Controller) requestCancel() ipc.Response {
	state := c.State()
	if fsm.Terminal(state) {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot cancel from state %s", state)}
	}

	if state == fsm.StateStopping || state == fsm.StateTranscribing {
		c.Abandon()
		return ipc.Response{OK: true, State: string(state), Message: "transcription abandoned"}
	}

	select {
	case c.actions <- actionCancel:
		return ipc.Response{OK: true, State: string(state), Message: "cancel requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "cancel already requested"}
	}
}

func (c *Controller) logResult(result Result) {
	if c.logger == nil {
		return
	}
	attrs := []any{
		"session_id", result.ID,
		"state", string(result.State),
		"variant", result.Variant,
		"cancelled", result.Cancelled,
		"bytes_captured", result.BytesCaptured,
		"transcript_length", len(result.Transcript),
		"transcribe_latency_ms", result.TranscribeLatency.Milliseconds(),
	}
	if !result.StartedAt.IsZero() && !result.FinishedAt.IsZero() {
		attrs = append(attrs, "duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds())
	}
	if result.Err != nil {
		c.logger.Error("recording session failed", append(attrs, "error", result.Err.Error())...)
		return
	}
	c.logger.Info("recording session finished", attrs...)
}
