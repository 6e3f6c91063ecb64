// Package config resolves, parses, validates, and defaults lilibet configuration.
package config

import (
	"strings"
	"time"
)

const (
	developmentBaseURL = "http://localhost:3001"
	productionBaseURL  = "https://lilibet-backend-production.up.railway.app"
)

// Config is the fully materialized runtime configuration used by lilibet.
type Config struct {
	Backend    BackendConfig
	Transcribe TranscribeConfig
	Audio      AudioConfig
	Speech     SpeechConfig
	Tutor      TutorConfig
	Indicator  IndicatorConfig
	Debug      DebugConfig
}

// BackendConfig locates the tutor backend. BaseURL wins over Development.
type BackendConfig struct {
	BaseURL     string
	Development bool
	TimeoutMS   int
	Token       string
}

// URL resolves the backend base URL once for the process.
func (b BackendConfig) URL() string {
	if base := strings.TrimRight(strings.TrimSpace(b.BaseURL), "/"); base != "" {
		return base
	}
	if b.Development {
		return developmentBaseURL
	}
	return productionBaseURL
}

// Timeout returns the per-request timeout for non-transcription calls.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMS) * time.Millisecond
}

// TranscribeConfig bounds the speech-to-text round trip.
type TranscribeConfig struct {
	TimeoutMS int
}

// Timeout returns the transcription deadline.
func (t TranscribeConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMS) * time.Millisecond
}

// AudioConfig selects the recorder variant and its capture source.
type AudioConfig struct {
	Variant     string
	Input       string
	Fallback    string
	InputFormat string
	Capture     CommandConfig
}

// SpeechConfig controls spoken tutor replies.
type SpeechConfig struct {
	Enable   bool
	Engine   string
	Language string
	Pitch    float64
	Rate     float64
	Volume   float64
}

// TutorConfig holds chat defaults. ServerHistory lets the backend keep the
// history of conversations it has already saved.
type TutorConfig struct {
	Subject       string
	Model         string
	DisplayName   string
	ServerHistory bool
}

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable            bool
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundCancelFile   string
	ErrorTimeoutMS    int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
