package config

// Default returns the configuration used when no file is present.
func Default() Config {
	capture := "ffmpeg"

	return Config{
		Backend: BackendConfig{
			Development: false,
			TimeoutMS:   15000,
		},
		Transcribe: TranscribeConfig{TimeoutMS: 20000},
		Audio: AudioConfig{
			Variant:     "auto",
			Input:       "default",
			Fallback:    "default",
			InputFormat: "pulse",
			Capture:     CommandConfig{Raw: capture, Argv: mustSplitCommand(capture)},
		},
		Speech: SpeechConfig{
			Enable:   true,
			Engine:   "auto",
			Language: "en-GB",
			Pitch:    1.1,
			Rate:     1.2,
			Volume:   0.8,
		},
		Tutor: TutorConfig{
			Model: "openai",
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "lilibet",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
	}
}
