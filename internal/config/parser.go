package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type filePayload struct {
	Backend    *backendPayload    `json:"backend"`
	Transcribe *transcribePayload `json:"transcribe"`
	Audio      *audioPayload      `json:"audio"`
	Speech     *speechPayload     `json:"speech"`
	Tutor      *tutorPayload      `json:"tutor"`
	Indicator  *indicatorPayload  `json:"indicator"`
	Debug      *debugPayload      `json:"debug"`
}

type backendPayload struct {
	BaseURL     *string `json:"base_url"`
	Development *bool   `json:"development"`
	TimeoutMS   *int    `json:"timeout_ms"`
}

type transcribePayload struct {
	TimeoutMS *int `json:"timeout_ms"`
}

type audioPayload struct {
	Variant     *string `json:"variant"`
	Input       *string `json:"input"`
	Fallback    *string `json:"fallback"`
	InputFormat *string `json:"input_format"`
	CaptureCmd  *string `json:"capture_cmd"`
}

type speechPayload struct {
	Enable   *bool    `json:"enable"`
	Engine   *string  `json:"engine"`
	Language *string  `json:"language"`
	Pitch    *float64 `json:"pitch"`
	Rate     *float64 `json:"rate"`
	Volume   *float64 `json:"volume"`
}

type tutorPayload struct {
	Subject       *string `json:"subject"`
	Model         *string `json:"model"`
	DisplayName   *string `json:"display_name"`
	ServerHistory *bool   `json:"server_history"`
}

type indicatorPayload struct {
	Enable            *bool   `json:"enable"`
	DesktopAppName    *string `json:"desktop_app_name"`
	SoundEnable       *bool   `json:"sound_enable"`
	SoundStartFile    *string `json:"sound_start_file"`
	SoundStopFile     *string `json:"sound_stop_file"`
	SoundCompleteFile *string `json:"sound_complete_file"`
	SoundCancelFile   *string `json:"sound_cancel_file"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms"`
}

type debugPayload struct {
	AudioDump *bool `json:"audio_dump"`
}

// Parse reads JSONC configuration content on top of base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload filePayload
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (p filePayload) applyTo(cfg *Config) error {
	if b := p.Backend; b != nil {
		setString(&cfg.Backend.BaseURL, b.BaseURL)
		setBool(&cfg.Backend.Development, b.Development)
		setInt(&cfg.Backend.TimeoutMS, b.TimeoutMS)
	}

	if p.Transcribe != nil {
		setInt(&cfg.Transcribe.TimeoutMS, p.Transcribe.TimeoutMS)
	}

	if a := p.Audio; a != nil {
		setString(&cfg.Audio.Variant, a.Variant)
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
		setString(&cfg.Audio.InputFormat, a.InputFormat)
		if a.CaptureCmd != nil {
			argv, err := splitCommand(*a.CaptureCmd)
			if err != nil {
				return fmt.Errorf("invalid audio.capture_cmd: %w", err)
			}
			cfg.Audio.Capture = CommandConfig{Raw: *a.CaptureCmd, Argv: argv}
		}
	}

	if s := p.Speech; s != nil {
		setBool(&cfg.Speech.Enable, s.Enable)
		setString(&cfg.Speech.Engine, s.Engine)
		setString(&cfg.Speech.Language, s.Language)
		setFloat(&cfg.Speech.Pitch, s.Pitch)
		setFloat(&cfg.Speech.Rate, s.Rate)
		setFloat(&cfg.Speech.Volume, s.Volume)
	}

	if t := p.Tutor; t != nil {
		if t.Subject != nil {
			cfg.Tutor.Subject = strings.ToLower(strings.TrimSpace(*t.Subject))
		}
		setString(&cfg.Tutor.Model, t.Model)
		setString(&cfg.Tutor.DisplayName, t.DisplayName)
		setBool(&cfg.Tutor.ServerHistory, t.ServerHistory)
	}

	if i := p.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.SoundStartFile, i.SoundStartFile)
		setString(&cfg.Indicator.SoundStopFile, i.SoundStopFile)
		setString(&cfg.Indicator.SoundCompleteFile, i.SoundCompleteFile)
		setString(&cfg.Indicator.SoundCancelFile, i.SoundCancelFile)
		setInt(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if p.Debug != nil {
		setBool(&cfg.Debug.EnableAudioDump, p.Debug.AudioDump)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
