// Package inventory owns the pool's reserve accounting: the floor-preserving
// fill solver and the target-recentering state machine.
package inventory

// ReserveState holds the pool's current split and the governance target.
// Mutated only by swap settlement (reserves) and by the recenter machine
// (target).
type ReserveState struct {
	BaseReserve  float64
	QuoteReserve float64
	TargetBase   float64
}

// Floors are the governance safety floors. After any successful trade both
// reserves must remain at or above them.
type Floors struct {
	Base  float64
	Quote float64
}

// DeviationFromTarget returns the signed relative inventory deviation,
// (base - target)/target. Zero when no target is set.
func (r ReserveState) DeviationFromTarget() float64 {
	if r.TargetBase <= 0 {
		return 0
	}
	return (r.BaseReserve - r.TargetBase) / r.TargetBase
}

// NearFloor reports whether a reserve sits within epsilon (relative) of its
// floor. Feeds the degraded-quote trigger.
func NearFloor(reserve, floor, epsilonPct float64) bool {
	if floor <= 0 {
		return false
	}
	return reserve <= floor*(1+epsilonPct)
}
