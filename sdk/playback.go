package presto

import (
	"fmt"
	"sync"
	"time"

	"github.com/prestolabs/presto/pkg/core/audio"
)

// DefaultSpeakingHold is how long Speaking stays true after the most recent
// frame arrival. Assistant audio arrives in bursts with natural micro-gaps;
// the hold keeps the flag from flickering across them.
const DefaultSpeakingHold = 500 * time.Millisecond

// Sink plays PCM frames at scheduled device times. Play must hand the frame
// to the device without blocking until the start time; Stop halts output
// immediately, drops anything still scheduled, and must be safe to call
// when nothing is playing.
type Sink interface {
	Play(frame []byte, start time.Time) error
	Stop() error
}

// PlaybackConfig tunes the scheduler. The zero value is usable.
type PlaybackConfig struct {
	// Format of incoming frames. Zero value means audio.DefaultFormat.
	Format audio.Format
	// SpeakingHold overrides DefaultSpeakingHold when positive.
	SpeakingHold time.Duration
	// OnSpeaking, when set, is called with true on the first frame after
	// idle and false once the hold expires or playback is interrupted.
	OnSpeaking func(bool)
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Playback schedules assistant audio gaplessly. Each frame starts at
// max(now, cursor) and the cursor advances by the frame's duration, so
// frames never overlap and bursty arrival never opens gaps.
type Playback struct {
	sink       Sink
	format     audio.Format
	hold       time.Duration
	onSpeaking func(bool)
	now        func() time.Time

	mu       sync.Mutex
	cursor   time.Time // zero means unscheduled
	speaking bool
	holdGen  uint64
}

// NewPlayback builds a scheduler over sink.
func NewPlayback(sink Sink, cfg PlaybackConfig) *Playback {
	format := cfg.Format
	if format == (audio.Format{}) {
		format = audio.DefaultFormat
	}
	hold := cfg.SpeakingHold
	if hold <= 0 {
		hold = DefaultSpeakingHold
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Playback{
		sink:       sink,
		format:     format,
		hold:       hold,
		onSpeaking: cfg.OnSpeaking,
		now:        now,
	}
}

// Enqueue schedules one encoded PCM frame. The frame starts at the cursor,
// or immediately when playback has fallen idle, and the cursor advances by
// the frame's duration. Frames are handed to the sink in call order.
func (p *Playback) Enqueue(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	d := p.format.Duration(len(frame))

	p.mu.Lock()
	start := p.now()
	if p.cursor.After(start) {
		start = p.cursor
	}
	if err := p.sink.Play(frame, start); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("play frame: %w", err)
	}
	p.cursor = start.Add(d)
	startedSpeaking := !p.speaking
	p.speaking = true
	p.holdGen++
	gen := p.holdGen
	p.mu.Unlock()

	time.AfterFunc(p.hold, func() { p.holdExpired(gen) })
	if startedSpeaking && p.onSpeaking != nil {
		p.onSpeaking(true)
	}
	return nil
}

// Interrupt halts playback immediately: the sink is stopped, scheduled
// frames are dropped, and the cursor returns to unscheduled so the next
// frame starts at the current clock rather than a stale position. Safe to
// call when idle.
func (p *Playback) Interrupt() error {
	p.mu.Lock()
	err := p.sink.Stop()
	p.cursor = time.Time{}
	p.holdGen++
	wasSpeaking := p.speaking
	p.speaking = false
	p.mu.Unlock()

	if wasSpeaking && p.onSpeaking != nil {
		p.onSpeaking(false)
	}
	if err != nil {
		return fmt.Errorf("stop sink: %w", err)
	}
	return nil
}

// Speaking reports whether assistant audio arrived within the hold window.
func (p *Playback) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

func (p *Playback) holdExpired(gen uint64) {
	p.mu.Lock()
	// A newer frame or an interrupt re-armed the hold after this timer
	// was set; the stale expiry must not clear the flag.
	if gen != p.holdGen || !p.speaking {
		p.mu.Unlock()
		return
	}
	p.speaking = false
	p.mu.Unlock()

	if p.onSpeaking != nil {
		p.onSpeaking(false)
	}
}
