package session

import "time"

// reconnectDelay returns the wait before retry attempt n (1-based):
// base doubled for each prior failure in the series, clamped at ceiling.
// A successful connect resets the series.
func reconnectDelay(attempt int, base, ceiling time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if ceiling < base {
		ceiling = base
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	return delay
}
