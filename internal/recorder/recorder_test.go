package recorder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/lilibet/internal/config"
)

func testAudioConfig(command string) config.AudioConfig {
	cfg := config.Default().Audio
	cfg.Capture = config.CommandConfig{Raw: command, Argv: []string{command}}
	return cfg
}

func stubProbes(t *testing.T, pulseErr error, lookErr error) {
	t.Helper()
	prevProbe, prevLook := pulseProbe, lookPath
	pulseProbe = func(context.Context) error { return pulseErr }
	lookPath = func(file string) (string, error) {
		if lookErr != nil {
			return "", lookErr
		}
		return "/usr/bin/" + file, nil
	}
	t.Cleanup(func() {
		pulseProbe, lookPath = prevProbe, prevLook
	})
}

func TestDetect(t *testing.T) {
	unreachable := errors.New("no pulse")
	missing := errors.New("not found")

	cases := []struct {
		name     string
		variant  string
		pulseErr error
		lookErr  error
		want     Variant
	}{
		{name: "explicit file", variant: "file", pulseErr: nil, want: VariantFile},
		{name: "explicit stream", variant: "stream", pulseErr: unreachable, want: VariantStream},
		{name: "auto prefers stream", variant: "auto", want: VariantStream},
		{name: "auto falls back to file", variant: "auto", pulseErr: unreachable, want: VariantFile},
		{name: "auto with nothing", variant: "auto", pulseErr: unreachable, lookErr: missing, want: VariantStream},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stubProbes(t, tc.pulseErr, tc.lookErr)
			cfg := config.Default()
			cfg.Audio.Variant = tc.variant
			require.Equal(t, tc.want, Detect(context.Background(), cfg, nil).Variant())
		})
	}
}
