// Package speech speaks tutor replies through a local text-to-speech engine.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rbright/lilibet/internal/config"
)

// ErrSpeechOutput means the engine failed to speak an utterance.
var ErrSpeechOutput = errors.New("speech output failed")

// Outcome is the single result of one Speak call.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeStopped Outcome = "stopped"
	OutcomeSkipped Outcome = "skipped"
)

// Voice holds engine-neutral voice parameters. Pitch and Rate are multipliers
// around 1.0; Volume is 0..1.
type Voice struct {
	Language string
	Pitch    float64
	Rate     float64
	Volume   float64
}

// DefaultVoice is a slightly brisk, bright British English voice.
func DefaultVoice() Voice {
	return Voice{Language: "en-GB", Pitch: 1.1, Rate: 1.2, Volume: 0.8}
}

// VoiceFromConfig fills unset fields from DefaultVoice.
func VoiceFromConfig(cfg config.SpeechConfig) Voice {
	voice := DefaultVoice()
	if lang := strings.TrimSpace(cfg.Language); lang != "" {
		voice.Language = lang
	}
	if cfg.Pitch > 0 {
		voice.Pitch = cfg.Pitch
	}
	if cfg.Rate > 0 {
		voice.Rate = cfg.Rate
	}
	if cfg.Volume > 0 {
		voice.Volume = cfg.Volume
	}
	return voice
}

type utterance struct {
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// Speaker plays at most one utterance at a time.
type Speaker struct {
	engine Engine
	voice  Voice
	logger *slog.Logger

	mu      sync.Mutex
	current *utterance
}

// New builds a Speaker around one engine.
func New(engine Engine, voice Voice, logger *slog.Logger) *Speaker {
	return &Speaker{engine: engine, voice: voice, logger: logger}
}

// Engine returns the engine name for diagnostics.
func (s *Speaker) Engine() string { return s.engine.Name }

// Speak blocks until text has been spoken, stopped, or skipped. A new call
// stops any utterance already in flight.
func (s *Speaker) Speak(ctx context.Context, text string) (Outcome, error) {
	clean := StripPictographs(text)
	if clean == "" {
		return OutcomeSkipped, nil
	}

	uctx, cancel := context.WithCancel(ctx)
	u := &utterance{cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	prev := s.current
	s.current = u
	if prev != nil {
		prev.stopped = true
	}
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		if s.current == u {
			s.current = nil
		}
		s.mu.Unlock()
		close(u.done)
	}()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}
	if s.engine.queued() {
		// A queue engine would otherwise play leftovers before this text.
		s.engine.cancelQueue(uctx)
	}

	// Stop may have landed while the previous utterance was winding down.
	s.mu.Lock()
	stopped := u.stopped
	s.mu.Unlock()
	if stopped || uctx.Err() != nil {
		return OutcomeStopped, nil
	}

	argv := s.engine.args(clean, s.voice)
	cmd := exec.CommandContext(uctx, argv[0], argv[1:]...)
	cmd.WaitDelay = 500 * time.Millisecond
	output, err := cmd.CombinedOutput()

	s.mu.Lock()
	stopped = u.stopped
	s.mu.Unlock()
	if stopped || ctx.Err() != nil {
		return OutcomeStopped, nil
	}
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		if s.logger != nil {
			s.logger.Warn("speech engine failed", "engine", s.engine.Name, "error", detail)
		}
		return "", fmt.Errorf("%w: %s: %s", ErrSpeechOutput, s.engine.Name, detail)
	}
	return OutcomeDone, nil
}

// Stop cancels the in-flight utterance and waits for it to end.
func (s *Speaker) Stop() {
	s.mu.Lock()
	u := s.current
	s.current = nil
	if u != nil {
		u.stopped = true
	}
	s.mu.Unlock()
	if u == nil {
		return
	}

	if s.engine.queued() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		s.engine.cancelQueue(ctx)
		cancel()
	}
	u.cancel()
	<-u.done
}

// Speaking reports whether an utterance is in flight.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}
