// Package doctor runs readiness diagnostics for config, backend, audio, and speech.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/lilibet/internal/audio"
	"github.com/rbright/lilibet/internal/config"
	"github.com/rbright/lilibet/internal/indicator"
	"github.com/rbright/lilibet/internal/speech"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report for the terminal.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes every check for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", loaded.Path),
	}}

	checks = append(checks, checkBackend(ctx, cfg.Backend.URL()))
	checks = append(checks, checkToken(cfg.Backend.Token))
	checks = append(checks, checkRecorder(ctx, cfg.Audio)...)
	checks = append(checks, checkSpeech(cfg.Speech))

	if cfg.Indicator.Enable {
		checks = append(checks, checkEnv("DBUS_SESSION_BUS_ADDRESS", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "session bus available", "DBUS_SESSION_BUS_ADDRESS is empty; notifications will not show"))
		checks = append(checks, checkNotifications(ctx))
	}

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkBackend treats any HTTP response as reachable; only transport
// failures fail the check.
func checkBackend(ctx context.Context, base string) Check {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return Check{Name: "backend", Pass: false, Message: fmt.Sprintf("invalid base url %q: %v", base, err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "backend", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	resp.Body.Close()
	return Check{Name: "backend", Pass: true, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, base)}
}

func checkNotifications(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := indicator.Probe(ctx); err != nil {
		return Check{Name: "notifications", Pass: false, Message: err.Error()}
	}
	return Check{Name: "notifications", Pass: true, Message: "notification daemon is running"}
}

func checkToken(token string) Check {
	if strings.TrimSpace(token) == "" {
		return Check{Name: "auth", Pass: true, Message: "not signed in; history and autosave are off"}
	}
	return Check{Name: "auth", Pass: true, Message: "LILIBET_TOKEN is set"}
}

func checkRecorder(ctx context.Context, cfg config.AudioConfig) []Check {
	switch strings.ToLower(strings.TrimSpace(cfg.Variant)) {
	case "file":
		return []Check{checkCommand(cfg.Capture.Argv, "audio.capture_cmd")}
	case "stream":
		return []Check{checkAudioSelection(ctx, cfg)}
	default:
		if err := audio.Probe(ctx); err == nil {
			return []Check{{Name: "audio.variant", Pass: true, Message: "auto: stream"}, checkAudioSelection(ctx, cfg)}
		}
		return []Check{{Name: "audio.variant", Pass: true, Message: "auto: file (pulse unavailable)"}, checkCommand(cfg.Capture.Argv, "audio.capture_cmd")}
	}
}

// checkAudioSelection runs live device selection to surface fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkSpeech(cfg config.SpeechConfig) Check {
	if !cfg.Enable {
		return Check{Name: "speech", Pass: true, Message: "disabled"}
	}
	engine, err := speech.Detect(cfg.Engine)
	if err != nil {
		return Check{Name: "speech", Pass: false, Message: strings.TrimPrefix(err.Error(), speech.ErrSpeechOutput.Error()+": ")}
	}
	return Check{Name: "speech", Pass: true, Message: fmt.Sprintf("%s engine at %s", engine.Name, engine.Binary)}
}

