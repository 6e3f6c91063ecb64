package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rbright/lilibet/internal/config"
	"github.com/rbright/lilibet/internal/speech"
	"github.com/rbright/lilibet/internal/tutor"
)

// newSpeaker returns nil when speech is disabled or no engine is installed.
func newSpeaker(cfg config.SpeechConfig, logger *slog.Logger) (*speech.Speaker, error) {
	if !cfg.Enable {
		return nil, nil
	}
	engine, err := speech.Detect(cfg.Engine)
	if err != nil {
		return nil, err
	}
	logger.Debug("speech engine selected", "engine", engine.Name, "binary", engine.Binary)
	return speech.New(engine, speech.VoiceFromConfig(cfg), logger), nil
}

func (r Runner) commandSpeak(ctx context.Context, cfg config.Config, text string, logger *slog.Logger) int {
	cfg.Speech.Enable = true
	speaker, err := newSpeaker(cfg.Speech, logger)
	if err != nil {
		return r.fail(err)
	}

	outcome, err := speaker.Speak(ctx, text)
	if err != nil {
		return r.fail(err)
	}
	if outcome == speech.OutcomeSkipped {
		fmt.Fprintln(r.Stderr, "nothing to speak")
	}
	return 0
}

func (r Runner) commandSubjects() int {
	subjects, err := tutor.Subjects()
	if err != nil {
		return r.fail(err)
	}
	for _, subject := range subjects {
		fmt.Fprintf(r.Stdout, "%-8s %-8s %s\n", subject.ID, subject.Name, subject.Blurb)
	}
	return 0
}
