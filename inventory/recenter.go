package inventory

import (
	"errors"
	"math"
	"time"

	"quote-engine-go/config"
)

var (
	// ErrRecenterCooldown means a rebalance was attempted before the
	// cooldown window elapsed.
	ErrRecenterCooldown = errors.New("recenter cooldown active")
	// ErrRecenterThreshold means the recomputed target deviates too little
	// from the current one to be worth committing.
	ErrRecenterThreshold = errors.New("recenter deviation below threshold")
)

// RebalanceResult records one committed target update.
type RebalanceResult struct {
	OldTarget    float64
	NewTarget    float64
	Price        float64
	DeviationBps float64 // target deviation that justified the commit
	At           time.Time
}

// Recenter is the Idle→Committed→Idle machine that recomputes the target
// inventory split. The automatic path runs as a side effect of a trade; the
// manual path is permissionless and gated by the caller's fresh oracle read.
type Recenter struct {
	cfg config.RecenterConfig

	anchorPrice   float64 // price at last commit (or first observation)
	lastCommit    time.Time
	healthyStreak int
}

// NewRecenter builds the machine. The anchor price is set lazily on the
// first observation.
func NewRecenter(cfg config.RecenterConfig) *Recenter {
	return &Recenter{cfg: cfg}
}

// SetConfig replaces the gating parameters without touching the anchor,
// cooldown or streak state.
func (r *Recenter) SetConfig(cfg config.RecenterConfig) { r.cfg = cfg }

// HealthyStreak exposes the hysteresis counter for inspection.
func (r *Recenter) HealthyStreak() int { return r.healthyStreak }

// AnchorPrice exposes the price recorded at the last commit.
func (r *Recenter) AnchorPrice() float64 { return r.anchorPrice }

// OnTrade is the automatic path. It observes the trade's own oracle price
// and commits only when the price deviation from the anchor reaches the
// threshold, the cooldown has elapsed and the healthy streak is satisfied.
// Sub-threshold observations feed the streak (capped) instead.
func (r *Recenter) OnTrade(res *ReserveState, price float64, now time.Time) (RebalanceResult, bool) {
	if price <= 0 {
		return RebalanceResult{}, false
	}
	if r.anchorPrice <= 0 {
		r.anchorPrice = price
		return RebalanceResult{}, false
	}

	devBps := math.Abs(price-r.anchorPrice) / r.anchorPrice * 1e4
	if devBps < r.cfg.ThresholdBps {
		if r.healthyStreak < r.cfg.HealthyStreakMin {
			r.healthyStreak++
		}
		return RebalanceResult{}, false
	}
	if !r.cooldownElapsed(now) {
		return RebalanceResult{}, false
	}
	if r.healthyStreak < r.cfg.HealthyStreakMin {
		return RebalanceResult{}, false
	}
	result, err := r.perform(res, price, now)
	if err != nil {
		return RebalanceResult{}, false
	}
	return result, true
}

// Manual is the permissionless path. The caller must have already verified
// oracle freshness; this enforces cooldown first, then the churn threshold.
func (r *Recenter) Manual(res *ReserveState, price float64, now time.Time) (RebalanceResult, error) {
	if price <= 0 {
		return RebalanceResult{}, ErrRecenterThreshold
	}
	if !r.cooldownElapsed(now) {
		return RebalanceResult{}, ErrRecenterCooldown
	}
	return r.perform(res, price, now)
}

// perform recomputes the target as an equal-value split at the given price
// and commits it unless the change is below the churn guard.
func (r *Recenter) perform(res *ReserveState, price float64, now time.Time) (RebalanceResult, error) {
	totalNotional := res.QuoteReserve + res.BaseReserve*price
	newTarget := totalNotional / 2 / price

	devBps := math.Inf(1)
	if res.TargetBase > 0 {
		devBps = math.Abs(newTarget-res.TargetBase) / res.TargetBase * 1e4
	}
	if devBps < r.cfg.MinTargetDeltaBps {
		return RebalanceResult{}, ErrRecenterThreshold
	}

	result := RebalanceResult{
		OldTarget:    res.TargetBase,
		NewTarget:    newTarget,
		Price:        price,
		DeviationBps: devBps,
		At:           now,
	}
	res.TargetBase = newTarget
	r.anchorPrice = price
	r.lastCommit = now
	r.healthyStreak = 0
	return result, nil
}

func (r *Recenter) cooldownElapsed(now time.Time) bool {
	if r.lastCommit.IsZero() || r.cfg.CooldownSec <= 0 {
		return true
	}
	return now.Sub(r.lastCommit) >= time.Duration(r.cfg.CooldownSec*float64(time.Second))
}
