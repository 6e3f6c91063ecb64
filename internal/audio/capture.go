package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the capture rate in Hz (mono, s16le).
	SampleRate     = 16000
	chunkSizeBytes = 3200 // 100ms @ 16kHz mono s16
)

// Sink receives captured PCM chunks in arrival order.
type Sink func(chunk []byte)

// Capture pushes fixed-size PCM chunks from one Pulse source to a Sink.
type Capture struct {
	device Device
	sink   Sink

	client *pulse.Client
	stream *pulse.RecordStream

	mu       sync.Mutex
	pending  []byte
	stopped  bool
	done     chan struct{}
	inflight sync.WaitGroup

	bytes atomic.Int64
}

// StartCapture opens a 16kHz mono s16 record stream on the selected device.
// Chunks are delivered to sink sequentially from the Pulse reader goroutine.
func StartCapture(ctx context.Context, selected Device, sink Sink) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	capture := &Capture{device: selected, sink: sink, client: client, done: make(chan struct{})}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("lilibet dictation"),
	)
	if err != nil {
		_ = capture.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go capture.watch(ctx)

	return capture, nil
}

// watch stops the capture when ctx ends and exits once the capture stops.
func (c *Capture) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = c.Stop()
	case <-c.done:
	}
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Stop halts the stream, releases the Pulse connection, and flushes any
// residual partial chunk. Later calls are no-ops.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	if c.done != nil {
		close(c.done)
	}
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	residual := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(residual) > 0 && c.sink != nil {
		c.sink(residual)
	}
	return nil
}

// onPCM slices raw frames into chunkSizeBytes pieces for the sink.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as stopped to avoid Add/Wait races.
	c.inflight.Add(1)
	defer c.inflight.Done()

	c.pending = append(c.pending, buffer...)
	var ready [][]byte
	for len(c.pending) >= chunkSizeBytes {
		chunk := make([]byte, chunkSizeBytes)
		copy(chunk, c.pending[:chunkSizeBytes])
		c.pending = c.pending[chunkSizeBytes:]
		ready = append(ready, chunk)
	}
	c.mu.Unlock()

	c.bytes.Add(int64(len(buffer)))
	if c.sink != nil {
		for _, chunk := range ready {
			c.sink(chunk)
		}
	}
	return len(buffer), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
