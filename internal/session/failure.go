package session

import (
	"errors"

	"github.com/rbright/lilibet/internal/recorder"
)

// Failure pairs the underlying error with the message shown to the learner.
type Failure struct {
	Err     error
	Message string
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// UserMessage maps a session error to an actionable, friendly message.
func UserMessage(err error) string {
	var failure *Failure
	if errors.As(err, &failure) && failure.Message != "" {
		return failure.Message
	}

	switch {
	case err == nil:
		return ""
	case errors.Is(err, recorder.ErrPermissionDenied):
		return "Please allow microphone access to record your question."
	case errors.Is(err, recorder.ErrDeviceUnavailable):
		return "No microphone is available. Check your audio input and try again."
	case errors.Is(err, recorder.ErrEmptyRecording):
		return "Nothing was recorded. Hold on a moment longer and try again."
	case errors.Is(err, ErrNoSpeechDetected):
		return "I didn't catch that. Please try again."
	case errors.Is(err, ErrTranscriptionUnavailable):
		return "Couldn't transcribe your recording right now. Please try again."
	case errors.Is(err, ErrSessionActive):
		return "Still working on your last recording."
	default:
		return "Recording failed. Please try again."
	}
}
