package presto

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prestolabs/presto/pkg/core"
	"github.com/prestolabs/presto/pkg/core/audio"
)

const (
	// DefaultFrameDuration is the fixed frame size read from the source.
	DefaultFrameDuration = 20 * time.Millisecond

	// DefaultPendingFrames bounds how many captured frames are held while
	// the relay connection is not ready yet, about one second of audio at
	// the default frame size. Oldest frames are dropped on overflow.
	DefaultPendingFrames = 50
)

// CaptureConfig tunes the microphone pipeline. The zero value is usable.
type CaptureConfig struct {
	// Format of the source PCM. Zero value means audio.DefaultFormat.
	Format audio.Format
	// FrameDuration overrides DefaultFrameDuration when positive.
	FrameDuration time.Duration
	// PendingFrames overrides DefaultPendingFrames when positive.
	PendingFrames int
	// Logger falls back to slog.Default when nil.
	Logger *slog.Logger
}

// Capture reads fixed-size PCM frames from a microphone source and submits
// them to the relay connection. Frames that arrive before the relay reports
// ready go to a bounded buffer that drops oldest-first on overflow, and
// frames captured while muted are discarded outright.
type Capture struct {
	open       func() (io.ReadCloser, error)
	submit     func(frame []byte) error
	frameBytes int
	logger     *slog.Logger

	mu         sync.Mutex
	source     io.ReadCloser
	started    bool
	stopped    bool
	ready      bool
	muted      bool
	pending    [][]byte
	pendingCap int
	dropped    int

	done chan struct{}
}

// NewCapture builds a pipeline over a microphone source. open is invoked by
// Start and must return a reader producing PCM in the configured format;
// submit receives each frame in capture order, typically
// VoiceSession.SendAudio.
func NewCapture(open func() (io.ReadCloser, error), submit func(frame []byte) error, cfg CaptureConfig) *Capture {
	format := cfg.Format
	if format == (audio.Format{}) {
		format = audio.DefaultFormat
	}
	frameDur := cfg.FrameDuration
	if frameDur <= 0 {
		frameDur = DefaultFrameDuration
	}
	pendingCap := cfg.PendingFrames
	if pendingCap <= 0 {
		pendingCap = DefaultPendingFrames
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		open:       open,
		submit:     submit,
		frameBytes: format.BytesFor(frameDur),
		logger:     logger,
		pendingCap: pendingCap,
	}
}

// Start opens the source and begins the read loop. A source that cannot be
// opened surfaces as a permission error, the usual failure mode for
// microphone access.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("capture already started")
	}
	src, err := c.open()
	if err != nil {
		return &core.Error{Type: core.ErrPermission, Message: "microphone source unavailable", Cause: err}
	}
	c.source = src
	c.started = true
	c.done = make(chan struct{})
	go c.readLoop(src)
	return nil
}

// Stop closes the source and waits for the read loop to exit. Calling it
// again, or before Start, is a no-op.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	src := c.source
	done := c.done
	c.mu.Unlock()

	_ = src.Close()
	<-done
}

// SetReady flips pre-ready buffering. Moving to ready flushes held frames
// to the relay in capture order; moving back, during a reconnect, resumes
// buffering.
func (c *Capture) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
	if !ready {
		return
	}
	for _, frame := range c.pending {
		if err := c.submit(frame); err != nil {
			c.logger.Debug("dropping buffered capture frames, submit failed", "error", err)
			break
		}
	}
	c.pending = nil
}

// SetMuted discards frames locally while set. The gateway keeps its own
// muted flag; this merely stops sending audio it would ignore anyway.
func (c *Capture) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
}

// Dropped reports how many pre-ready frames were discarded to stay within
// the buffer bound.
func (c *Capture) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// OnFrame encodes one frame of normalized float samples and dispatches it
// like a frame read from the source. Sources that deliver float samples
// through an audio callback rather than a PCM byte stream use this entry
// point; the asymmetric 16-bit scaling is applied by the codec.
func (c *Capture) OnFrame(samples []float32) {
	if len(samples) == 0 {
		return
	}
	c.dispatch(audio.EncodePCM16(samples))
}

func (c *Capture) readLoop(src io.Reader) {
	defer close(c.done)

	buf := make([]byte, c.frameBytes)
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			// A short tail read is aligned down so a sample never
			// splits across frames.
			n -= n % 2
			frame := make([]byte, n)
			copy(frame, buf[:n])
			c.dispatch(frame)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !c.isStopped() {
				c.logger.Warn("capture source read failed", "error", err)
			}
			return
		}
	}
}

func (c *Capture) dispatch(frame []byte) {
	if len(frame) == 0 {
		return
	}
	c.mu.Lock()
	if c.muted || c.stopped {
		c.mu.Unlock()
		return
	}
	if !c.ready {
		var droppedTotal int
		if len(c.pending) >= c.pendingCap {
			c.pending = c.pending[1:]
			c.dropped++
			droppedTotal = c.dropped
		}
		c.pending = append(c.pending, frame)
		c.mu.Unlock()
		if droppedTotal > 0 {
			c.logger.Debug("pre-ready capture buffer full, dropped oldest frame", "dropped_total", droppedTotal)
		}
		return
	}
	c.mu.Unlock()

	if err := c.submit(frame); err != nil {
		c.logger.Debug("dropping capture frame, submit failed", "error", err)
	}
}

func (c *Capture) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
