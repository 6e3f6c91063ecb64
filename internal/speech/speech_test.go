package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/lilibet/internal/config"
)

// writeEngineScript records every invocation's args as one line in the log
// file. Spoken text is the last argument; "-C" alone is a queue purge.
func writeEngineScript(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	scriptPath := filepath.Join(dir, "engine.sh")
	script := "#!/usr/bin/env bash\n" +
		"set -euo pipefail\n" +
		"printf '%s\\n' \"$*\" >> " + logPath + "\n" +
		body + "\n"
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o755))
	return scriptPath, logPath
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestStripPictographs(t *testing.T) {
	cases := map[string]string{
		"Great job! 🎉":          "Great job!",
		"  🚀 Let's go 🌟  ":      "Let's go",
		"Sunny ☀ day ✨":          "Sunny  day",
		"🇬🇧":                    "",
		"plain text":             "plain text",
		"Think 🤔 about it 🪐 ok": "Think  about it  ok",
	}
	for in, want := range cases {
		require.Equal(t, want, StripPictographs(in), "input %q", in)
	}
}

func TestSpeakSkipsBlankText(t *testing.T) {
	script, logPath := writeEngineScript(t, "exit 0")
	speaker := New(Direct(script), DefaultVoice(), nil)

	outcome, err := speaker.Speak(context.Background(), " 😀 🎉 ")
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.Empty(t, readCalls(t, logPath))
}

func TestSpeakDirectPassesVoiceAndText(t *testing.T) {
	script, logPath := writeEngineScript(t, "exit 0")
	speaker := New(Direct(script), DefaultVoice(), nil)

	outcome, err := speaker.Speak(context.Background(), "Hello there 👋")
	require.NoError(t, err)
	require.Equal(t, OutcomeDone, outcome)
	require.Equal(t, []string{"-v en-gb -s 210 -p 55 -a 80 -- Hello there"}, readCalls(t, logPath))
	require.False(t, speaker.Speaking())
}

func TestSpeakQueuePurgesBeforeSpeaking(t *testing.T) {
	script, logPath := writeEngineScript(t, "exit 0")
	speaker := New(Queue(script), DefaultVoice(), nil)

	outcome, err := speaker.Speak(context.Background(), "Fractions are parts of a whole.")
	require.NoError(t, err)
	require.Equal(t, OutcomeDone, outcome)

	calls := readCalls(t, logPath)
	require.Len(t, calls, 2)
	require.Equal(t, "-C", calls[0])
	require.Equal(t, "--wait -l en-GB -r 20 -p 10 -i 60 -- Fractions are parts of a whole.", calls[1])
}

func TestSpeakFailureWrapsErrSpeechOutput(t *testing.T) {
	script, _ := writeEngineScript(t, "echo 'no audio device' >&2\nexit 3")
	speaker := New(Direct(script), DefaultVoice(), nil)

	outcome, err := speaker.Speak(context.Background(), "hello")
	require.ErrorIs(t, err, ErrSpeechOutput)
	require.Contains(t, err.Error(), "no audio device")
	require.Empty(t, outcome)
}

func TestStopEndsInFlightUtterance(t *testing.T) {
	script, _ := writeEngineScript(t, "exec sleep 5")
	speaker := New(Direct(script), DefaultVoice(), nil)

	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := speaker.Speak(context.Background(), "a long answer")
		done <- result{outcome, err}
	}()

	require.Eventually(t, speaker.Speaking, 2*time.Second, 5*time.Millisecond)
	speaker.Stop()
	require.False(t, speaker.Speaking())

	select {
	case got := <-done:
		require.NoError(t, got.err)
		require.Equal(t, OutcomeStopped, got.outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("speak did not return after stop")
	}
}

func TestSpeakCancelsPreviousUtterance(t *testing.T) {
	script, _ := writeEngineScript(t, "if [[ \"${@: -1}\" == first ]]; then exec sleep 5; fi")
	speaker := New(Direct(script), DefaultVoice(), nil)

	first := make(chan Outcome, 1)
	go func() {
		outcome, _ := speaker.Speak(context.Background(), "first")
		first <- outcome
	}()
	require.Eventually(t, speaker.Speaking, 2*time.Second, 5*time.Millisecond)

	outcome, err := speaker.Speak(context.Background(), "second")
	require.NoError(t, err)
	require.Equal(t, OutcomeDone, outcome)
	require.Equal(t, OutcomeStopped, <-first)
}

func TestConcurrentSpeaksLeaveNothingPlayingAfterStop(t *testing.T) {
	script, _ := writeEngineScript(t, "if [[ \"${1:-}\" == -C ]]; then sleep 0.3; exit 0; fi\nexec sleep 5")
	speaker := New(Queue(script), DefaultVoice(), nil)

	outcomes := make(chan Outcome, 2)
	errs := make(chan error, 2)
	for _, text := range []string{"first", "second"} {
		text := text
		go func() {
			outcome, err := speaker.Speak(context.Background(), text)
			errs <- err
			outcomes <- outcome
		}()
	}

	require.Eventually(t, speaker.Speaking, 2*time.Second, 5*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	speaker.Stop()

	for i := 0; i < 2; i++ {
		select {
		case outcome := <-outcomes:
			require.NoError(t, <-errs)
			require.Equal(t, OutcomeStopped, outcome)
		case <-time.After(3 * time.Second):
			t.Fatal("utterance kept playing after Stop")
		}
	}
	require.False(t, speaker.Speaking())
}

func TestStopDuringQueuePurgeSkipsEngine(t *testing.T) {
	script, logPath := writeEngineScript(t, "if [[ \"${1:-}\" == -C ]]; then sleep 0.5; exit 0; fi\nexec sleep 5")
	speaker := New(Queue(script), DefaultVoice(), nil)

	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := speaker.Speak(context.Background(), "never heard")
		done <- result{outcome, err}
	}()

	require.Eventually(t, speaker.Speaking, 2*time.Second, 5*time.Millisecond)
	speaker.Stop()
	require.False(t, speaker.Speaking())

	select {
	case got := <-done:
		require.NoError(t, got.err)
		require.Equal(t, OutcomeStopped, got.outcome)
	case <-time.After(3 * time.Second):
		t.Fatal("Speak did not return after Stop")
	}
	for _, call := range readCalls(t, logPath) {
		require.Equal(t, "-C", call)
	}
}

func TestStopWithoutUtteranceIsNoop(t *testing.T) {
	speaker := New(Direct("espeak-ng"), DefaultVoice(), nil)
	speaker.Stop()
	speaker.Stop()
	require.False(t, speaker.Speaking())
}

func TestVoiceFromConfig(t *testing.T) {
	voice := VoiceFromConfig(config.SpeechConfig{Language: "en-US", Rate: 1.0})
	require.Equal(t, Voice{Language: "en-US", Pitch: 1.1, Rate: 1.0, Volume: 0.8}, voice)
	require.Equal(t, DefaultVoice(), VoiceFromConfig(config.SpeechConfig{}))
}

func TestDetect(t *testing.T) {
	original := lookPath
	t.Cleanup(func() { lookPath = original })

	available := map[string]bool{}
	lookPath = func(name string) (string, error) {
		if available[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	_, err := Detect("auto")
	require.ErrorIs(t, err, ErrSpeechOutput)
	require.Contains(t, err.Error(), "spd-say, espeak-ng")

	available["espeak-ng"] = true
	engine, err := Detect("auto")
	require.NoError(t, err)
	require.Equal(t, "direct", engine.Name)
	require.Equal(t, "/usr/bin/espeak-ng", engine.Binary)

	available["spd-say"] = true
	engine, err = Detect("")
	require.NoError(t, err)
	require.Equal(t, "queue", engine.Name)

	engine, err = Detect("direct")
	require.NoError(t, err)
	require.Equal(t, "direct", engine.Name)

	_, err = Detect("festival")
	require.ErrorIs(t, err, ErrSpeechOutput)
}
