package indicator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/lilibet/internal/config"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueCancel
)

const (
	cueSampleRate = 22050
	cueGap        = 18 * time.Millisecond
	cueFade       = 6 * time.Millisecond
	cueVolume     = 0.16
)

// note is one pitch held for a duration.
type note struct {
	hz  float64
	dur time.Duration
}

// cue pairs a built-in melody with the config field that may replace it.
type cue struct {
	melody []note
	file   func(config.IndicatorConfig) string
}

var cues = map[cueKind]cue{
	cueStart: {
		melody: []note{{523.25, 60 * time.Millisecond}, {659.25, 60 * time.Millisecond}, {783.99, 80 * time.Millisecond}},
		file:   func(c config.IndicatorConfig) string { return c.SoundStartFile },
	},
	cueStop: {
		melody: []note{{587.33, 110 * time.Millisecond}},
		file:   func(c config.IndicatorConfig) string { return c.SoundStopFile },
	},
	cueComplete: {
		melody: []note{{783.99, 60 * time.Millisecond}, {1046.5, 100 * time.Millisecond}},
		file:   func(c config.IndicatorConfig) string { return c.SoundCompleteFile },
	},
	cueCancel: {
		melody: []note{{440, 70 * time.Millisecond}, {329.63, 100 * time.Millisecond}},
		file:   func(c config.IndicatorConfig) string { return c.SoundCancelFile },
	},
}

// Cue file players, tried in order.
var cuePlayers = [][]string{
	{"pw-play", "--media-role", "Notification"},
	{"paplay"},
}

// emitCue plays the configured file for kind, falling back to the built-in melody.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("emit cue: %w", err)
	}
	c, ok := cues[kind]
	if !ok {
		return nil
	}
	if path := cuePath(kind, cfg); path != "" {
		if err := playCueFile(ctx, path); err == nil {
			return nil
		}
	}
	return playSamples(render(c.melody))
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	c, ok := cues[kind]
	if !ok {
		return ""
	}
	return config.ExpandHome(c.file(cfg))
}

func playCueFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cue file %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	var errs []error
	for _, player := range cuePlayers {
		args := append(append([]string{}, player[1:]...), path)
		err := exec.CommandContext(ctx, player[0], args...).Run()
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", player[0], err))
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("play cue file %q: %w", path, errors.Join(errs...))
}

// sampleReader feeds a fixed buffer to a pulse playback stream.
type sampleReader struct {
	samples []int16
	pos     int
}

func (r *sampleReader) read(buf []int16) (int, error) {
	n := copy(buf, r.samples[r.pos:])
	r.pos += n
	if r.pos >= len(r.samples) {
		return n, pulse.EndOfData
	}
	return n, nil
}

func playSamples(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("lilibet"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	src := &sampleReader{samples: samples}
	stream, err := client.NewPlayback(
		pulse.Int16Reader(src.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("lilibet cue"),
	)
	if err != nil {
		return fmt.Errorf("open cue playback: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue: %w", err)
	}
	return nil
}

// render turns a melody into mono PCM with a short silence between notes.
func render(melody []note) []int16 {
	var pcm []int16
	gap := sampleCount(cueGap)
	for i, n := range melody {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, tone(n, cueVolume)...)
	}
	return pcm
}

// tone renders one note with raised-cosine fades at both ends.
func tone(n note, volume float64) []int16 {
	total := sampleCount(n.dur)
	if total == 0 || n.hz <= 0 || volume <= 0 {
		return nil
	}
	fade := min(sampleCount(cueFade), total/2)

	out := make([]int16, total)
	step := 2 * math.Pi * n.hz / cueSampleRate
	for i := range out {
		gain := 1.0
		if edge := min(i, total-1-i); edge < fade {
			gain = 0.5 - 0.5*math.Cos(math.Pi*float64(edge)/float64(fade))
		}
		out[i] = int16(math.Round(math.Sin(step*float64(i)) * volume * gain * math.MaxInt16))
	}
	return out
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
