package engine

import (
	"fmt"

	"quote-engine-go/config"
	"quote-engine-go/fees"
	"quote-engine-go/inventory"
	"quote-engine-go/oracle"
	"quote-engine-go/risk"
	"quote-engine-go/snapshot"
)

// QuoteResult is the executable quote returned to callers. Reason is a
// structured code: "ok", the AOMQ trigger, or the oracle fallback cause.
type QuoteResult struct {
	AmountOut       float64
	AppliedAmountIn float64
	Leftover        float64
	FeeBpsUsed      float64
	UsedFallback    bool
	Partial         bool
	Reason          string
}

// pricing is the full internal context of one quote/swap computation. The
// commit step consumes it so the compute path stays mutation-free.
type pricing struct {
	fused    oracle.Fused
	decision oracle.Decision
	aomq     risk.AomqState
	fee      fees.Breakdown
	fill     inventory.Fill
	result   QuoteResult
}

// Quote prices a prospective trade without mutating any state.
func (e *Engine) Quote(amountIn float64, isBaseIn bool, mode oracle.Mode) (QuoteResult, error) {
	return e.QuoteFor(amountIn, isBaseIn, mode, "")
}

// QuoteFor is Quote with a caller identity, so allow-listed callers preview
// the same rebate a live swap would apply.
func (e *Engine) QuoteFor(amountIn float64, isBaseIn bool, mode oracle.Mode, caller string) (QuoteResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.compute(amountIn, isBaseIn, mode, caller)
	if err != nil {
		if e.met != nil {
			e.met.QuotesTotal.WithLabelValues("error").Inc()
		}
		return QuoteResult{}, err
	}
	if e.met != nil {
		e.met.QuotesTotal.WithLabelValues("ok").Inc()
	}
	return p.result, nil
}

// compute runs the full pipeline: oracle fusion, divergence gating, AOMQ
// evaluation, fee composition and the floor-preserving solve. Read-only;
// callers holding the lock decide whether to commit.
func (e *Engine) compute(amountIn float64, isBaseIn bool, mode oracle.Mode, caller string) (pricing, error) {
	cfg := e.params()

	fused, err := e.fusion.ReadReferencePrice(mode)
	if err != nil {
		return pricing{}, err
	}

	decision := oracle.Decision{}
	if fused.HasSecondary {
		decision = e.gate.Classify(fused.Mid, fused.SecondaryMid)
		if decision.Band == oracle.BandHard {
			return pricing{}, fmt.Errorf("%w: delta %.1f bps above %.1f",
				oracle.ErrDivergenceHard, decision.DeltaBps, cfg.Oracle.HardBps)
		}
		if e.met != nil {
			e.met.DivergenceBps.Observe(decision.DeltaBps)
		}
	}

	aomq := e.evaluateAomq(cfg, fused, decision)
	degraded := aomq.ActiveFor(isBaseIn)

	// AOMQ clamps the quoted notional toward the emergency minimum; the
	// un-quoted remainder is returned to the caller untouched.
	notional := amountIn
	if isBaseIn {
		notional = amountIn * fused.Mid
	}
	clampedNotional, clamped := risk.ClampNotional(cfg.Aomq, notional, degraded)
	effectiveIn := amountIn
	if clamped {
		if isBaseIn {
			effectiveIn = clampedNotional / fused.Mid
		} else {
			effectiveIn = clampedNotional
		}
	}

	fee := fees.Compute(cfg.Fees, fees.Input{
		Notional:          clampedNotional,
		SpreadBps:         fused.SpreadBps,
		SigmaBps:          e.sigma.SigmaBps(),
		SecondaryConfBps:  fused.SecondaryConfBps,
		CurrentBase:       e.reserves.BaseReserve,
		TargetBase:        e.reserves.TargetBase,
		TradeAddsBase:     isBaseIn,
		HaircutBps:        decision.HaircutBps,
		DegradedActive:    degraded,
		EmergencyFloorBps: risk.EmergencyFloorBps(cfg.Aomq, degraded),
		AllowListed:       allowListed(cfg.Fees.Rebate, caller),
	})

	fill, err := inventory.SolveFill(effectiveIn, isBaseIn, e.reserves, e.floors, fused.Mid, fee.TotalBps)
	if err != nil {
		return pricing{}, err
	}
	// Notional clamped away by AOMQ is leftover too.
	fill.Leftover += amountIn - effectiveIn
	if clamped {
		fill.IsPartial = true
	}

	return pricing{
		fused:    fused,
		decision: decision,
		aomq:     aomq,
		fee:      fee,
		fill:     fill,
		result: QuoteResult{
			AmountOut:       fill.AmountOut,
			AppliedAmountIn: fill.AppliedAmountIn,
			Leftover:        fill.Leftover,
			FeeBpsUsed:      fee.TotalBps,
			UsedFallback:    fused.UsedFallback,
			Partial:         fill.IsPartial,
			Reason:          reasonCode(fused, decision, aomq, degraded),
		},
	}, nil
}

func (e *Engine) evaluateAomq(cfg *config.Params, fused oracle.Fused, d oracle.Decision) risk.AomqState {
	softActive := e.gate.State().Active || d.Band == oracle.BandSoft
	return risk.EvaluateAomq(cfg.Aomq, risk.AomqInputs{
		SoftDivergenceActive: softActive,
		BaseNearFloor:        inventory.NearFloor(e.reserves.BaseReserve, e.floors.Base, cfg.Aomq.FloorEpsilonPct),
		QuoteNearFloor:       inventory.NearFloor(e.reserves.QuoteReserve, e.floors.Quote, cfg.Aomq.FloorEpsilonPct),
		UsedFallback:         fused.UsedFallback,
	})
}

// reasonCode picks the most significant condition for the caller. AOMQ is
// only reported when it degrades this trade's side.
func reasonCode(fused oracle.Fused, d oracle.Decision, aomq risk.AomqState, degraded bool) string {
	switch {
	case degraded:
		return "aomq_" + aomq.TriggerReason
	case d.Band == oracle.BandSoft:
		return "soft_divergence"
	case fused.UsedFallback:
		return fused.Reason
	default:
		return "ok"
	}
}

func allowListed(r config.Rebate, caller string) bool {
	if caller == "" {
		return false
	}
	for _, c := range r.AllowList {
		if c == caller {
			return true
		}
	}
	return false
}

// regimeFlags folds the call's stress markers into the snapshot bitmask.
func regimeFlags(fused oracle.Fused, d oracle.Decision, aomq risk.AomqState, softActive bool) uint8 {
	var flags uint8
	if softActive || d.Band == oracle.BandSoft {
		flags |= snapshot.FlagSoftDivergence
	}
	if fused.UsedFallback {
		flags |= snapshot.FlagFallbackOracle
	}
	if aomq.AskActive {
		flags |= snapshot.FlagAomqAsk
	}
	if aomq.BidActive {
		flags |= snapshot.FlagAomqBid
	}
	return flags
}
