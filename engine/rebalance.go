package engine

import (
	"fmt"

	"quote-engine-go/oracle"
)

// ManualRebalance is the permissionless recenter path. It re-derives a fresh
// oracle reading independently of any trade; a stale or missing read rejects
// the call, and a hard cross-source divergence fails closed the same way a
// swap would.
func (e *Engine) ManualRebalance() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.params()
	fused, err := e.fusion.ReadReferencePrice(oracle.ModeSpot)
	if err != nil {
		return err
	}
	if fused.HasSecondary {
		if d := e.gate.Classify(fused.Mid, fused.SecondaryMid); d.Band == oracle.BandHard {
			return fmt.Errorf("%w: delta %.1f bps above %.1f",
				oracle.ErrDivergenceHard, d.DeltaBps, cfg.Oracle.HardBps)
		}
	}

	result, err := e.recenter.Manual(&e.reserves, fused.Mid, e.clock.Now())
	if err != nil {
		return err
	}
	e.recordRebalance(result)
	e.publishReserves()
	return nil
}
