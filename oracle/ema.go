package oracle

import (
	"sync"
	"time"
)

// EmaTracker maintains an exponential moving average of pushed mids and
// serves as the fallback source when the live feed goes dark. The tracker
// remembers when it last absorbed a sample so stale EMAs are rejected the
// same way stale spot reads are.
type EmaTracker struct {
	mu       sync.RWMutex
	lambda   float64
	value    float64
	seeded   bool
	lastPush time.Time
	maxAge   time.Duration
	now      func() time.Time
}

// NewEmaTracker builds a tracker with smoothing factor lambda in (0,1].
func NewEmaTracker(lambda float64, maxAge time.Duration) *EmaTracker {
	return &EmaTracker{lambda: lambda, maxAge: maxAge, now: time.Now}
}

// Push absorbs a fresh mid observation.
func (e *EmaTracker) Push(mid float64) {
	if mid <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.seeded {
		e.value = mid
		e.seeded = true
	} else {
		e.value = e.lambda*mid + (1-e.lambda)*e.value
	}
	e.lastPush = e.now()
}

// ReadEmaFallback implements EmaSource. Returns ok=false until seeded or
// once the last sample is older than maxAge.
func (e *EmaTracker) ReadEmaFallback() (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.seeded || e.value <= 0 {
		return 0, false
	}
	if e.maxAge > 0 && e.now().Sub(e.lastPush) > e.maxAge {
		return 0, false
	}
	return e.value, true
}
