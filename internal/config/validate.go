package config

import (
	"fmt"
	"net/url"
	"strings"
)

var (
	validVariants = map[string]struct{}{"auto": {}, "file": {}, "stream": {}}
	validEngines  = map[string]struct{}{"auto": {}, "queue": {}, "direct": {}}
	validSubjects = map[string]struct{}{"math": {}, "reading": {}, "writing": {}, "science": {}}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if base := strings.TrimSpace(cfg.Backend.BaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("backend.base_url must be an absolute http(s) URL")
		}
		if cfg.Backend.Development {
			warnings = append(warnings, Warning{Message: "backend.base_url is set; backend.development is ignored"})
		}
	}
	if cfg.Backend.TimeoutMS <= 0 {
		return nil, fmt.Errorf("backend.timeout_ms must be > 0")
	}
	if cfg.Transcribe.TimeoutMS <= 0 {
		return nil, fmt.Errorf("transcribe.timeout_ms must be > 0")
	}
	if cfg.Transcribe.TimeoutMS < 15000 || cfg.Transcribe.TimeoutMS > 30000 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("transcribe.timeout_ms=%d is outside the recommended 15000-30000 range", cfg.Transcribe.TimeoutMS)})
	}

	variant := strings.ToLower(strings.TrimSpace(cfg.Audio.Variant))
	if _, ok := validVariants[variant]; !ok {
		return nil, fmt.Errorf("audio.variant must be one of: auto, file, stream")
	}
	if variant != "stream" && len(cfg.Audio.Capture.Argv) == 0 {
		return nil, fmt.Errorf("audio.capture_cmd must not be empty")
	}
	if strings.TrimSpace(cfg.Audio.InputFormat) == "" {
		return nil, fmt.Errorf("audio.input_format must not be empty")
	}

	engine := strings.ToLower(strings.TrimSpace(cfg.Speech.Engine))
	if _, ok := validEngines[engine]; !ok {
		return nil, fmt.Errorf("speech.engine must be one of: auto, queue, direct")
	}
	if strings.TrimSpace(cfg.Speech.Language) == "" {
		return nil, fmt.Errorf("speech.language must not be empty")
	}
	if cfg.Speech.Pitch <= 0 || cfg.Speech.Pitch > 2 {
		return nil, fmt.Errorf("speech.pitch must be in (0, 2]")
	}
	if cfg.Speech.Rate <= 0 || cfg.Speech.Rate > 10 {
		return nil, fmt.Errorf("speech.rate must be in (0, 10]")
	}
	if cfg.Speech.Volume < 0 || cfg.Speech.Volume > 1 {
		return nil, fmt.Errorf("speech.volume must be in [0, 1]")
	}

	if subject := cfg.Tutor.Subject; subject != "" {
		if _, ok := validSubjects[subject]; !ok {
			return nil, fmt.Errorf("tutor.subject %q is not one of: math, reading, writing, science", subject)
		}
	}
	if strings.TrimSpace(cfg.Tutor.Model) == "" {
		return nil, fmt.Errorf("tutor.model must not be empty")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	return warnings, nil
}
