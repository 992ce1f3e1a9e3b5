package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quote-engine-go/inventory"
	"quote-engine-go/oracle"
	"quote-engine-go/snapshot"
)

// SwapRequest is one settlement-layer trade instruction.
type SwapRequest struct {
	AmountIn     float64
	MinAmountOut float64
	IsBaseIn     bool
	Mode         oracle.Mode
	Deadline     time.Time // zero disables the check
	Caller       string    // allow-list identity, optional
}

// SwapResult reports the settled amounts. Leftover input was never consumed
// and stays with the caller.
type SwapResult struct {
	ID              string
	AmountOut       float64
	AppliedAmountIn float64
	Leftover        float64
	FeeBpsUsed      float64
	Partial         bool
	Reason          string
}

// Swap executes a trade atomically: every gate runs on the pre-trade state
// and either all mutations (reserves, divergence memory, recenter
// bookkeeping, snapshot) take effect or none do.
func (e *Engine) Swap(req SwapRequest) (SwapResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if !req.Deadline.IsZero() && now.After(req.Deadline) {
		e.countSwap("rejected")
		return SwapResult{}, ErrDeadlineExceeded
	}

	p, err := e.compute(req.AmountIn, req.IsBaseIn, req.Mode, req.Caller)
	if err != nil {
		e.countSwap("rejected")
		return SwapResult{}, err
	}
	if p.fill.AmountOut < req.MinAmountOut {
		e.countSwap("rejected")
		return SwapResult{}, fmt.Errorf("%w: %.8f < %.8f", ErrSlippage, p.fill.AmountOut, req.MinAmountOut)
	}

	// Commit. No failure paths below this line.
	inventory.ApplyFill(&e.reserves, p.fill, req.IsBaseIn)
	e.gate.Observe(p.decision)

	if rebalance, committed := e.recenter.OnTrade(&e.reserves, p.fused.Mid, now); committed {
		e.recordRebalance(rebalance)
	}

	e.blockRef++
	softActive := e.gate.State().Active
	e.snap = snapshot.Snapshot{
		Mid:              p.fused.Mid,
		DivergenceBps:    p.decision.DeltaBps,
		RegimeFlags:      regimeFlags(p.fused, p.decision, p.aomq, softActive),
		BlockRef:         e.blockRef,
		Timestamp:        now,
		SpreadBps:        p.fused.SpreadBps,
		SigmaBps:         e.sigma.SigmaBps(),
		SecondaryConfBps: p.fused.SecondaryConfBps,
		HaircutBps:       p.decision.HaircutBps,
	}

	result := SwapResult{
		ID:              uuid.NewString(),
		AmountOut:       p.result.AmountOut,
		AppliedAmountIn: p.result.AppliedAmountIn,
		Leftover:        p.result.Leftover,
		FeeBpsUsed:      p.result.FeeBpsUsed,
		Partial:         p.result.Partial,
		Reason:          p.result.Reason,
	}

	if e.store != nil {
		_ = e.store.AppendSnapshot(e.snap)
		if _, err := e.store.AppendSwap(snapshot.SwapRecord{
			ID:        result.ID,
			IsBaseIn:  req.IsBaseIn,
			AmountIn:  req.AmountIn,
			AmountOut: result.AmountOut,
			Leftover:  result.Leftover,
			FeeBps:    result.FeeBpsUsed,
			Partial:   result.Partial,
			Reason:    result.Reason,
			At:        now,
		}); err != nil {
			e.log.Error("append swap history", zap.Error(err))
		}
	}

	if e.met != nil {
		label := "ok"
		if result.Partial {
			label = "partial"
		}
		e.met.SwapsTotal.WithLabelValues(label).Inc()
		e.met.FeeBps.Observe(result.FeeBpsUsed)
		if p.aomq.Active() {
			e.met.AomqActivations.WithLabelValues(p.aomq.TriggerReason).Inc()
		}
		if p.fused.UsedFallback {
			e.met.OracleFallbacks.WithLabelValues(p.fused.Tag.String()).Inc()
		}
	}
	e.publishReserves()

	e.log.LogSwap("settled",
		zap.String("id", result.ID),
		zap.Bool("is_base_in", req.IsBaseIn),
		zap.Float64("amount_in", req.AmountIn),
		zap.Float64("amount_out", result.AmountOut),
		zap.Float64("fee_bps", result.FeeBpsUsed),
		zap.Bool("partial", result.Partial),
		zap.String("reason", result.Reason),
	)
	return result, nil
}

func (e *Engine) countSwap(label string) {
	if e.met != nil {
		e.met.SwapsTotal.WithLabelValues(label).Inc()
	}
}

func (e *Engine) recordRebalance(r inventory.RebalanceResult) {
	rec := snapshot.RebalanceRecord{
		ID:           uuid.NewString(),
		OldTarget:    r.OldTarget,
		NewTarget:    r.NewTarget,
		Price:        r.Price,
		DeviationBps: r.DeviationBps,
		At:           r.At,
	}
	if e.store != nil {
		if _, err := e.store.AppendRebalance(rec); err != nil {
			e.log.Error("append rebalance history", zap.Error(err))
		}
	}
	if e.met != nil {
		e.met.RecenterCommits.Inc()
	}
	e.log.LogRebalance(
		zap.String("id", rec.ID),
		zap.Float64("old_target", rec.OldTarget),
		zap.Float64("new_target", rec.NewTarget),
		zap.Float64("price", rec.Price),
		zap.Float64("deviation_bps", rec.DeviationBps),
	)
}
