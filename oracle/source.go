package oracle

import (
	"errors"
	"time"
)

// SourceTag identifies which feed produced a reading. The set is closed so
// fallback ordering stays explicit and exhaustively testable.
type SourceTag int

const (
	TagPrimary SourceTag = iota
	TagEmaFallback
	TagSecondary
)

func (t SourceTag) String() string {
	switch t {
	case TagPrimary:
		return "primary"
	case TagEmaFallback:
		return "ema"
	case TagSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Mode selects the preferred source ordering for a read.
type Mode int

const (
	// ModeSpot prefers the primary spot feed (normal operation).
	ModeSpot Mode = iota
	// ModeEma prefers the EMA fallback (used by callers during stress).
	ModeEma
)

var (
	// ErrMidUnset means no source produced any value at all.
	ErrMidUnset = errors.New("oracle mid unset")
	// ErrStale means at least one source resolved but every resolved reading
	// exceeded its max age.
	ErrStale = errors.New("oracle reading stale")
	// ErrDivergenceHard means cross-source deviation exceeds the hard band.
	ErrDivergenceHard = errors.New("oracle divergence above hard band")
)

// PrimarySource is the live spot feed contract.
type PrimarySource interface {
	ReadMidAndAge() (mid float64, age time.Duration, ok bool)
	ReadBidAsk() (bid, ask float64, ok bool)
}

// EmaSource is the smoothed fallback contract. An EMA carries no independent
// age; freshness is inherited from the samples pushed into it.
type EmaSource interface {
	ReadEmaFallback() (mid float64, ok bool)
}

// SecondarySource is the independent cross-check feed contract.
type SecondarySource interface {
	ReadSecondaryMid() (mid, confBps float64, age time.Duration, ok bool)
}
