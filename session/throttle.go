package session

import "time"

// throttle is a minimal leaky-bucket publisher gate: ready reports true at
// most once per interval. Centralizing this here keeps wall-clock comparisons
// out of the pipeline itself.
type throttle struct {
	interval time.Duration
	last     time.Time
}

func (t *throttle) ready(now time.Time) bool {
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}

	t.last = now

	return true
}

func (t *throttle) reset() {
	t.last = time.Time{}
}
