package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/lilibet/internal/backend"
	"github.com/rbright/lilibet/internal/config"
	"github.com/rbright/lilibet/internal/indicator"
	"github.com/rbright/lilibet/internal/ipc"
	"github.com/rbright/lilibet/internal/recorder"
	"github.com/rbright/lilibet/internal/session"
	"github.com/rbright/lilibet/internal/transcript"
)

const forwardTimeout = 220 * time.Millisecond

func (r Runner) commandStatus(ctx context.Context) int {
	resp, handled, err := tryForward(ctx, ipc.RuntimeSocketPath(), ipc.CommandStatus)
	if handled {
		if err != nil {
			return r.fail(err)
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	resp, handled, err := tryForward(ctx, ipc.RuntimeSocketPath(), command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active lilibet recording")
		return 1
	}
	if err != nil {
		return r.fail(err)
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandRecord toggles dictation: it stops a running owner, or becomes the
// owner and records until stop, cancel, or a signal.
func (r Runner) commandRecord(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath := ipc.RuntimeSocketPath()

	if resp, handled, err := tryForward(ctx, socketPath, ipc.CommandToggle); handled {
		return r.printForwarded(resp, err)
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, ipc.CommandToggle)
			return r.printForwarded(resp, forwardErr)
		}
		return r.fail(err)
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	ind := indicator.New(cfg.Indicator, logger)
	defer ind.Wait()
	controller := session.NewController(session.Config{
		Logger:      logger,
		Recorder:    recorder.Detect(ctx, cfg, logger),
		Transcriber: backend.NewFromConfig(cfg, logger),
		Indicator:   ind,
		Timeout:     cfg.Transcribe.Timeout(),
	})

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	fmt.Fprintln(r.Stderr, "recording; run `lilibet record` or `lilibet stop` to finish, `lilibet cancel` to discard")
	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		return r.fail(fmt.Errorf("ipc server failed: %w", serverErr))
	}

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintln(r.Stderr, session.UserMessage(result.Err))
		return r.fail(result.Err)
	}
	if text := transcript.Normalize(result.Transcript); text != "" {
		fmt.Fprintln(r.Stdout, text)
	}
	return 0
}

func (r Runner) printForwarded(resp ipc.Response, err error) int {
	if err != nil {
		return r.fail(err)
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward reports handled=false only when no owner is listening.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}
	if ipc.IsNotRunning(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
