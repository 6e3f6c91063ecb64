// Package indicator shows recording state as desktop notifications and plays
// short audio cues at session transitions.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/lilibet/internal/config"
)

const (
	dispatchTimeout     = 400 * time.Millisecond
	persistentTimeoutMS = 300000
)

// Desktop drives freedesktop notifications for one recording surface.
type Desktop struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	notifier notifier

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
	cues           sync.WaitGroup
}

// New creates an indicator from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Desktop {
	return &Desktop{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		notifier: sessionBus{},
	}
}

// ShowRecording shows the listening notification and plays the start cue.
func (d *Desktop) ShowRecording(ctx context.Context) {
	d.playCue(ctx, cueStart)
	d.show(ctx, persistentTimeoutMS, d.messages.recording)
}

// ShowTranscribing replaces the notification while the recording uploads.
func (d *Desktop) ShowTranscribing(ctx context.Context) {
	d.show(ctx, persistentTimeoutMS, d.messages.processing)
}

// ShowError replaces the notification with a short-lived error.
func (d *Desktop) ShowError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = d.messages.errorText
	}
	timeout := d.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	d.show(ctx, timeout, text)
}

func (d *Desktop) CueStop(ctx context.Context)     { d.playCue(ctx, cueStop) }
func (d *Desktop) CueComplete(ctx context.Context) { d.playCue(ctx, cueComplete) }
func (d *Desktop) CueCancel(ctx context.Context)   { d.playCue(ctx, cueCancel) }

// Hide closes the current notification, if any.
func (d *Desktop) Hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}
	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()
	if id == 0 {
		return
	}
	d.run(ctx, func(ctx context.Context) error { return d.notifier.Dismiss(ctx, id) })
}

// Wait blocks until queued cues have finished playing.
func (d *Desktop) Wait() {
	d.cues.Wait()
}

func (d *Desktop) show(ctx context.Context, timeoutMS int, text string) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		d.mu.Lock()
		replaceID := d.notificationID
		d.mu.Unlock()

		id, err := d.notifier.Notify(ctx, d.appName(), replaceID, text, timeoutMS)
		if err != nil {
			return err
		}

		d.mu.Lock()
		d.notificationID = id
		d.mu.Unlock()
		return nil
	})
}

func (d *Desktop) appName() string {
	if name := strings.TrimSpace(d.cfg.DesktopAppName); name != "" {
		return name
	}
	return "lilibet"
}

// run bounds one notification call.
func (d *Desktop) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("indicator dispatch failed", err)
	}
}

// playCue serializes cues and plays them off the caller's goroutine.
func (d *Desktop) playCue(ctx context.Context, kind cueKind) {
	if !d.cfg.SoundEnable {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.cues.Add(1)
	go func() {
		defer d.cues.Done()
		d.soundMu.Lock()
		defer d.soundMu.Unlock()
		if err := emitCue(ctx, kind, d.cfg); err != nil {
			d.log("indicator audio cue failed", err)
		}
	}()
}

func (d *Desktop) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, "error", err.Error())
}
