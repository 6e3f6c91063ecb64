package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/lilibet/internal/backend"
	"github.com/rbright/lilibet/internal/fsm"
	"github.com/rbright/lilibet/internal/recorder"
)

type fakeHandle struct {
	mu       sync.Mutex
	stopped  bool
	stops    int
	releases int
	data     []byte
}

func (h *fakeHandle) Stop(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		h.stops++
	}
	return nil
}

func (h *fakeHandle) PlayableReference() (string, error) { return "/tmp/recording.m4a", nil }

func (h *fakeHandle) UploadPayload() (recorder.Payload, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.data) == 0 {
		return recorder.Payload{}, recorder.ErrEmptyRecording
	}
	return recorder.Payload{Data: h.data, ContentType: "audio/wav", Filename: "recording.wav"}, nil
}

func (h *fakeHandle) State() recorder.HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return recorder.StateStopped
	}
	return recorder.StateRecording
}

func (h *fakeHandle) Variant() recorder.Variant { return recorder.VariantStream }

func (h *fakeHandle) BytesCaptured() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.data))
}

func (h *fakeHandle) Release() error {
	_ = h.Stop(context.Background())
	h.mu.Lock()
	h.releases++
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) counts() (stops int, releases int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stops, h.releases
}

type fakeRecorder struct {
	mu       sync.Mutex
	startErr error
	data     []byte
	gate     chan struct{}
	handles  []*fakeHandle
}

func (r *fakeRecorder) Start(context.Context) (recorder.Handle, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	h := &fakeHandle{data: r.data}
	r.handles = append(r.handles, h)
	return h, nil
}

func (r *fakeRecorder) Variant() recorder.Variant { return recorder.VariantStream }

func (r *fakeRecorder) starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *fakeRecorder) handle(t *testing.T, i int) *fakeHandle {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Greater(t, len(r.handles), i)
	return r.handles[i]
}

type fakeTranscriber struct {
	text  string
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _ recorder.Payload) (backend.TranscriptionResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return backend.TranscriptionResult{}, ctx.Err()
		}
	}
	return backend.TranscriptionResult{Success: f.err == nil, Text: f.text}, f.err
}

type fakeIndicator struct {
	recording    atomic.Int32
	transcribing atomic.Int32
	stopCues     atomic.Int32
	completeCues atomic.Int32
	cancelCues   atomic.Int32

	mu     sync.Mutex
	errors []string
}

func (f *fakeIndicator) ShowRecording(context.Context)    { f.recording.Add(1) }
func (f *fakeIndicator) ShowTranscribing(context.Context) { f.transcribing.Add(1) }
func (f *fakeIndicator) ShowError(_ context.Context, msg string) {
	f.mu.Lock()
	f.errors = append(f.errors, msg)
	f.mu.Unlock()
}
func (f *fakeIndicator) CueStop(context.Context)     { f.stopCues.Add(1) }
func (f *fakeIndicator) CueComplete(context.Context) { f.completeCues.Add(1) }
func (f *fakeIndicator) CueCancel(context.Context)   { f.cancelCues.Add(1) }
func (*fakeIndicator) Hide(context.Context)          {}

func (f *fakeIndicator) errorMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.errors...)
}

type fakeSpeech struct {
	stops atomic.Int32
}

func (f *fakeSpeech) Stop() { f.stops.Add(1) }

func waitForState(t *testing.T, read func() fsm.State, want fsm.State) {
	t.Helper()
	require.Eventually(t, func() bool { return read() == want }, 2*time.Second, 5*time.Millisecond)
}
