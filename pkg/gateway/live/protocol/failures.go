package protocol

import "time"

// FailureWindow counts malformed-frame failures inside a sliding window.
// Both gateway surfaces use it to escalate repeated protocol violations
// into a connection-level failure instead of tolerating a broken peer
// indefinitely.
type FailureWindow struct {
	now    func() time.Time
	limit  int
	window time.Duration
	times  []time.Time
}

// NewFailureWindow returns a window tripping at limit failures within
// window. Zero values default to 5 failures in 10 seconds.
func NewFailureWindow(now func() time.Time, limit int, window time.Duration) *FailureWindow {
	if now == nil {
		now = time.Now
	}
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &FailureWindow{now: now, limit: limit, window: window}
}

// Record notes one failure and reports whether the budget is exhausted.
func (f *FailureWindow) Record() bool {
	ts := f.now()
	cut := ts.Add(-f.window)
	kept := f.times[:0]
	for _, t := range f.times {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	f.times = append(kept, ts)
	return len(f.times) >= f.limit
}
