// Package snapshot persists the last computed pricing context so off-path
// callers can replay the fee pipeline deterministically.
package snapshot

import (
	"fmt"
	"time"
)

// Regime flag bits recorded with each snapshot.
const (
	FlagSoftDivergence uint8 = 1 << iota
	FlagFallbackOracle
	FlagAomqAsk
	FlagAomqBid
)

// Snapshot is the pricing context of the last settled trade. Overwritten on
// every settlement; read-only to preview callers.
type Snapshot struct {
	Mid           float64
	DivergenceBps float64
	RegimeFlags   uint8
	BlockRef      uint64
	Timestamp     time.Time

	// Replay inputs for the fee pipeline.
	SpreadBps        float64
	SigmaBps         float64
	SecondaryConfBps float64
	HaircutBps       float64
}

// Valid reports whether a snapshot has ever been recorded.
func (s Snapshot) Valid() bool { return !s.Timestamp.IsZero() }

// Age is the snapshot's age at the given instant.
func (s Snapshot) Age(now time.Time) time.Duration { return now.Sub(s.Timestamp) }

// StaleError is returned when a preview is requested past the allowed age
// with strict mode on.
type StaleError struct {
	Age    time.Duration
	MaxAge time.Duration
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("preview snapshot stale: age %s exceeds max %s", e.Age, e.MaxAge)
}

// CheckFreshness enforces the configured staleness bound. In strict mode an
// overage is an error; otherwise the caller serves the snapshot best-effort.
func (s Snapshot) CheckFreshness(now time.Time, maxAge time.Duration, strict bool) error {
	if !strict || maxAge <= 0 {
		return nil
	}
	if age := s.Age(now); age > maxAge {
		return &StaleError{Age: age, MaxAge: maxAge}
	}
	return nil
}
