package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "LILIBET_"

// Environment merges LILIBET_* values from an optional dotenv file with the
// process environment. Process values win.
func Environment(dotenvPath string) (map[string]string, error) {
	values := map[string]string{}

	if strings.TrimSpace(dotenvPath) != "" {
		fileValues, err := godotenv.Read(dotenvPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read dotenv %q: %w", dotenvPath, err)
		}
		for key, value := range fileValues {
			if strings.HasPrefix(key, envPrefix) {
				values[key] = value
			}
		}
	}

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		values[key] = value
	}
	return values, nil
}

// ApplyEnv overlays environment values onto cfg.
func ApplyEnv(cfg Config, env map[string]string) (Config, error) {
	if v, ok := env["LILIBET_BASE_URL"]; ok && strings.TrimSpace(v) != "" {
		cfg.Backend.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := env["LILIBET_DEV"]; ok && strings.TrimSpace(v) != "" {
		dev, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("LILIBET_DEV: %w", err)
		}
		cfg.Backend.Development = dev
	}
	if v, ok := env["LILIBET_TOKEN"]; ok {
		cfg.Backend.Token = strings.TrimSpace(v)
	}
	if v, ok := env["LILIBET_SUBJECT"]; ok && strings.TrimSpace(v) != "" {
		cfg.Tutor.Subject = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := env["LILIBET_NAME"]; ok && strings.TrimSpace(v) != "" {
		cfg.Tutor.DisplayName = strings.TrimSpace(v)
	}
	return cfg, nil
}
