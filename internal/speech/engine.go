package speech

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Engine describes how to drive one text-to-speech binary.
type Engine struct {
	Name   string
	Binary string
	// CancelArgs, when set, purges the engine's own playback queue.
	CancelArgs []string
	build      func(binary string, text string, voice Voice) []string
}

func (e Engine) args(text string, voice Voice) []string {
	return e.build(e.Binary, text, voice)
}

func (e Engine) queued() bool { return len(e.CancelArgs) > 0 }

func (e Engine) cancelQueue(ctx context.Context) {
	_ = exec.CommandContext(ctx, e.Binary, e.CancelArgs...).Run()
}

// Queue drives speech-dispatcher through spd-say. Utterances go into a
// daemon-side FIFO that outlives the client process, so it must be purged
// with -C before new speech and on stop.
func Queue(binary string) Engine {
	if binary == "" {
		binary = "spd-say"
	}
	return Engine{
		Name:       "queue",
		Binary:     binary,
		CancelArgs: []string{"-C"},
		build: func(binary string, text string, v Voice) []string {
			return []string{
				binary,
				"--wait",
				"-l", v.Language,
				"-r", strconv.Itoa(relative(v.Rate)),
				"-p", strconv.Itoa(relative(v.Pitch)),
				"-i", strconv.Itoa(clamp(int(math.Round(v.Volume*200-100)), -100, 100)),
				"--", text,
			}
		},
	}
}

// Direct runs espeak-ng per utterance; stopping kills the process.
func Direct(binary string) Engine {
	if binary == "" {
		binary = "espeak-ng"
	}
	return Engine{
		Name:   "direct",
		Binary: binary,
		build: func(binary string, text string, v Voice) []string {
			return []string{
				binary,
				"-v", strings.ToLower(v.Language),
				"-s", strconv.Itoa(clamp(int(math.Round(175*v.Rate)), 80, 450)),
				"-p", strconv.Itoa(clamp(int(math.Round(50*v.Pitch)), 0, 99)),
				"-a", strconv.Itoa(clamp(int(math.Round(100*v.Volume)), 0, 200)),
				"--", text,
			}
		},
	}
}

// relative maps a 1.0-centred multiplier onto speech-dispatcher's -100..100.
func relative(multiplier float64) int {
	return clamp(int(math.Round((multiplier-1)*100)), -100, 100)
}

func clamp(v int, lo int, hi int) int {
	return max(lo, min(hi, v))
}

var lookPath = exec.LookPath

// Detect picks an engine by name. "auto" prefers the queue engine.
func Detect(name string) (Engine, error) {
	queue, direct := Queue(""), Direct("")

	var candidates []Engine
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		candidates = []Engine{queue, direct}
	case "queue":
		candidates = []Engine{queue}
	case "direct":
		candidates = []Engine{direct}
	default:
		return Engine{}, fmt.Errorf("%w: unknown engine %q", ErrSpeechOutput, name)
	}

	for _, engine := range candidates {
		if path, err := lookPath(engine.Binary); err == nil {
			engine.Binary = path
			return engine, nil
		}
	}
	names := make([]string, 0, len(candidates))
	for _, engine := range candidates {
		names = append(names, engine.Binary)
	}
	return Engine{}, fmt.Errorf("%w: none of %s found in PATH", ErrSpeechOutput, strings.Join(names, ", "))
}
