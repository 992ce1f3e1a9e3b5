package oracle

import "math"

// Band classifies a cross-source deviation.
type Band int

const (
	BandAccept Band = iota
	BandSoft
	BandHard
)

func (b Band) String() string {
	switch b {
	case BandAccept:
		return "accept"
	case BandSoft:
		return "soft"
	case BandHard:
		return "hard"
	default:
		return "unknown"
	}
}

// GateConfig holds the divergence bands and haircut parameters.
type GateConfig struct {
	AcceptBps       float64
	SoftBps         float64
	HardBps         float64
	HaircutMinBps   float64
	HaircutSlopeBps float64 // per bps above accept
	HealthyFrames   int     // consecutive accept frames required to clear soft state
}

// SoftState is the hysteresis memory carried across calls. Only swaps mutate
// it; quotes classify without observing.
type SoftState struct {
	Active        bool
	HealthyStreak int
	LastDeltaBps  float64
}

// Decision is the pure classification of one observation.
type Decision struct {
	Band       Band
	DeltaBps   float64
	HaircutBps float64
	Checked    bool // false when no second source was available
}

// Gate compares two independent mids and applies accept/soft/hard bands with
// a healthy-streak hysteresis on the soft flag.
type Gate struct {
	cfg   GateConfig
	state SoftState
}

// NewGate builds a gate.
func NewGate(cfg GateConfig) *Gate {
	if cfg.HealthyFrames <= 0 {
		cfg.HealthyFrames = 3
	}
	return &Gate{cfg: cfg}
}

// DeltaBps is the symmetric deviation between two mids in bps:
// (max-min)/max. Swapping the arguments never changes the result.
func DeltaBps(a, b float64) float64 {
	hi := math.Max(a, b)
	lo := math.Min(a, b)
	if hi <= 0 {
		return 0
	}
	return (hi - lo) / hi * 1e4
}

// Classify computes the band and soft haircut for a pair of mids without
// touching the hysteresis memory.
func (g *Gate) Classify(a, b float64) Decision {
	delta := DeltaBps(a, b)
	d := Decision{DeltaBps: delta, Checked: true}
	switch {
	case delta <= g.cfg.AcceptBps:
		d.Band = BandAccept
	case delta <= g.cfg.SoftBps:
		d.Band = BandSoft
		d.HaircutBps = g.cfg.HaircutMinBps + g.cfg.HaircutSlopeBps*(delta-g.cfg.AcceptBps)
	default:
		d.Band = BandHard
	}
	return d
}

// Observe folds one decision into the hysteresis memory. Hard decisions must
// never be observed: the call aborts before any state mutation. Unchecked
// decisions (no second source) leave the memory untouched.
func (g *Gate) Observe(d Decision) {
	if !d.Checked || d.Band == BandHard {
		return
	}
	g.state.LastDeltaBps = d.DeltaBps
	switch d.Band {
	case BandSoft:
		g.state.Active = true
		g.state.HealthyStreak = 0
	case BandAccept:
		if !g.state.Active {
			return
		}
		g.state.HealthyStreak++
		if g.state.HealthyStreak >= g.cfg.HealthyFrames {
			g.state.Active = false
			g.state.HealthyStreak = 0
		}
	}
}

// State returns a copy of the hysteresis memory.
func (g *Gate) State() SoftState {
	return g.state
}

// Restore overwrites the hysteresis memory. Used when rehydrating an engine.
func (g *Gate) Restore(s SoftState) {
	g.state = s
}
