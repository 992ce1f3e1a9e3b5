// Package risk evaluates the degraded-quote mode (AOMQ): reduced-size,
// wider-spread quoting that keeps the pool two-sided under data-quality or
// inventory stress.
package risk

import "quote-engine-go/config"

// Trigger reasons, ordered by evaluation priority.
const (
	ReasonSoftDivergence = "soft_divergence"
	ReasonFloorProximity = "floor_proximity"
	ReasonFallbackOracle = "fallback_oracle"
)

// AomqState is the per-side activation computed fresh on every call; it is
// never carried as hysteresis.
type AomqState struct {
	AskActive     bool
	BidActive     bool
	TriggerReason string
}

// Active reports whether either side is degraded.
func (s AomqState) Active() bool { return s.AskActive || s.BidActive }

// ActiveFor reports the flag for the side a trade consumes: a base-in trade
// hits the bid (pool buys base), a quote-in trade hits the ask.
func (s AomqState) ActiveFor(isBaseIn bool) bool {
	if isBaseIn {
		return s.BidActive
	}
	return s.AskActive
}

// AomqInputs are the stress signals evaluated each call.
type AomqInputs struct {
	SoftDivergenceActive bool
	BaseNearFloor        bool // constrains the ask (pool pays out base)
	QuoteNearFloor       bool // constrains the bid (pool pays out quote)
	UsedFallback         bool
}

// EvaluateAomq applies the triggers in order: soft divergence, floor
// proximity, fallback oracle. Data-quality triggers degrade both sides;
// floor proximity degrades only the constrained side.
func EvaluateAomq(cfg config.AomqConfig, in AomqInputs) AomqState {
	if !cfg.Enabled {
		return AomqState{}
	}
	var s AomqState
	if in.SoftDivergenceActive {
		s.AskActive = true
		s.BidActive = true
		s.TriggerReason = ReasonSoftDivergence
		return s
	}
	if in.BaseNearFloor || in.QuoteNearFloor {
		s.AskActive = in.BaseNearFloor
		s.BidActive = in.QuoteNearFloor
		s.TriggerReason = ReasonFloorProximity
		return s
	}
	if in.UsedFallback {
		s.AskActive = true
		s.BidActive = true
		s.TriggerReason = ReasonFallbackOracle
	}
	return s
}

// ClampNotional caps the quoted notional at the emergency minimum while the
// relevant side is degraded. Returns the clamped value and whether the clamp
// bit.
func ClampNotional(cfg config.AomqConfig, notional float64, active bool) (float64, bool) {
	if !cfg.Enabled || !active || cfg.MinQuoteNotional <= 0 {
		return notional, false
	}
	if notional <= cfg.MinQuoteNotional {
		return notional, false
	}
	return cfg.MinQuoteNotional, true
}

// EmergencyFloorBps is the effective half-spread floor applied while a side
// is degraded; zero otherwise.
func EmergencyFloorBps(cfg config.AomqConfig, active bool) float64 {
	if !cfg.Enabled || !active {
		return 0
	}
	return cfg.EmergencySpreadBps / 2
}
