package engine

import (
	"errors"
	"time"

	"quote-engine-go/config"
	"quote-engine-go/fees"
	"quote-engine-go/risk"
	"quote-engine-go/snapshot"
)

// ErrNoSnapshot means no trade has settled yet, so there is nothing to
// replay against.
var ErrNoSnapshot = errors.New("no preview snapshot recorded")

// Ladder is a two-sided fee schedule replayed from the stored snapshot.
type Ladder struct {
	Sizes       []float64 // base units
	AskFeeBps   []float64 // pool sells base (quote-in trade)
	BidFeeBps   []float64 // pool buys base (base-in trade)
	ClampFlags  []bool    // AOMQ size clamp would bite at this rung
	SnapshotAge time.Duration
}

// PreviewFees replays the fee pipeline against the stored snapshot for each
// requested base-in size, without mutating any state. Fees match what a live
// swap of that size would be charged under identical reserves and config.
func (e *Engine) PreviewFees(sizes []float64) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.params()
	if err := e.checkSnapshot(cfg); err != nil {
		return nil, err
	}

	out := make([]float64, len(sizes))
	for i, size := range sizes {
		fee, _ := e.replayFee(cfg, size, true)
		out[i] = fee.TotalBps
	}
	return out, nil
}

// PreviewLadder replays both sides across the configured size multipliers.
func (e *Engine) PreviewLadder(baseSize float64) (Ladder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.params()
	if err := e.checkSnapshot(cfg); err != nil {
		return Ladder{}, err
	}

	mults := cfg.Fees.LadderMultipliers
	if len(mults) == 0 {
		mults = []float64{1}
	}
	ladder := Ladder{
		Sizes:       make([]float64, len(mults)),
		AskFeeBps:   make([]float64, len(mults)),
		BidFeeBps:   make([]float64, len(mults)),
		ClampFlags:  make([]bool, len(mults)),
		SnapshotAge: e.snap.Age(e.clock.Now()),
	}
	for i, m := range mults {
		size := baseSize * m
		ladder.Sizes[i] = size
		askFee, askClamped := e.replayFee(cfg, size, false)
		bidFee, bidClamped := e.replayFee(cfg, size, true)
		ladder.AskFeeBps[i] = askFee.TotalBps
		ladder.BidFeeBps[i] = bidFee.TotalBps
		ladder.ClampFlags[i] = askClamped || bidClamped
	}
	return ladder, nil
}

func (e *Engine) checkSnapshot(cfg *config.Params) error {
	if !e.snap.Valid() {
		return ErrNoSnapshot
	}
	maxAge := time.Duration(cfg.Snapshot.MaxAgeSec * float64(time.Second))
	return e.snap.CheckFreshness(e.clock.Now(), maxAge, cfg.Snapshot.Strict)
}

// replayFee recomputes the pipeline for one size from the stored pricing
// context plus the live reserves. size is in base units either way; the ask
// side converts to the quote notional the trader would send.
func (e *Engine) replayFee(cfg *config.Params, size float64, isBaseIn bool) (fees.Breakdown, bool) {
	degradedFlag := snapshot.FlagAomqAsk
	if isBaseIn {
		degradedFlag = snapshot.FlagAomqBid
	}
	degraded := e.snap.RegimeFlags&degradedFlag != 0

	notional := size * e.snap.Mid
	clampedNotional, clamped := risk.ClampNotional(cfg.Aomq, notional, degraded)

	fee := fees.Compute(cfg.Fees, fees.Input{
		Notional:          clampedNotional,
		SpreadBps:         e.snap.SpreadBps,
		SigmaBps:          e.snap.SigmaBps,
		SecondaryConfBps:  e.snap.SecondaryConfBps,
		CurrentBase:       e.reserves.BaseReserve,
		TargetBase:        e.reserves.TargetBase,
		TradeAddsBase:     isBaseIn,
		HaircutBps:        e.snap.HaircutBps,
		DegradedActive:    degraded,
		EmergencyFloorBps: risk.EmergencyFloorBps(cfg.Aomq, degraded),
	})
	return fee, clamped
}
