package session

import (
	"sync/atomic"
	"time"
)

// switchGuard suppresses model output that belongs to a superseded mode.
// begin engages it the moment switch intent is detected; complete marks the
// new mode applied and opens a short drain window during which stragglers
// from the old response are still discarded; cancel disengages immediately
// when the switch fails or turns out to be a false positive.
//
// Writes come only from the upstream event loop. Reads may come from
// anywhere, and one frame of staleness is tolerable, so plain atomics
// suffice.
type switchGuard struct {
	now         func() time.Time
	drainWindow time.Duration

	hard       atomic.Bool
	drainUntil atomic.Int64 // unix nanoseconds, 0 when no window is open
}

func newSwitchGuard(now func() time.Time, drainWindow time.Duration) *switchGuard {
	if now == nil {
		now = time.Now
	}
	if drainWindow <= 0 {
		drainWindow = time.Second
	}
	return &switchGuard{now: now, drainWindow: drainWindow}
}

// begin engages the guard for the duration of a switch.
func (g *switchGuard) begin() {
	g.drainUntil.Store(0)
	g.hard.Store(true)
}

// complete marks the switch applied and starts the drain window.
func (g *switchGuard) complete() {
	g.drainUntil.Store(g.now().Add(g.drainWindow).UnixNano())
	g.hard.Store(false)
}

// cancel disengages immediately with no drain window.
func (g *switchGuard) cancel() {
	g.drainUntil.Store(0)
	g.hard.Store(false)
}

// engaged reports whether model output must still be discarded.
func (g *switchGuard) engaged() bool {
	if g.hard.Load() {
		return true
	}
	until := g.drainUntil.Load()
	return until != 0 && g.now().UnixNano() < until
}
