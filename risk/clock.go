package risk

import "time"

// Clock abstracts time so cooldown and staleness paths are testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock is the default wall clock.
var SystemClock Clock = realClock{}

// FixedClock always returns the same instant. Test helper.
type FixedClock struct{ T time.Time }

func (f FixedClock) Now() time.Time { return f.T }
