package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks any governance parameter that is out of range.
// Callers match it with errors.Is.
var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate rejects out-of-range parameters before they ever reach the engine.
func Validate(cfg Params) error {
	if cfg.Env == "" {
		return invalid("env is required")
	}
	if err := validatePool(cfg.Pool); err != nil {
		return err
	}
	if err := validateOracle(cfg.Oracle); err != nil {
		return err
	}
	if err := validateFees(cfg.Fees); err != nil {
		return err
	}
	if err := validateRecenter(cfg.Recenter); err != nil {
		return err
	}
	if err := validateAomq(cfg.Aomq); err != nil {
		return err
	}
	if cfg.Snapshot.MaxAgeSec < 0 {
		return invalid("snapshot.maxAgeSec must be >= 0")
	}
	if cfg.Server.RebalanceRatePerMin < 0 {
		return invalid("server.rebalanceRatePerMin must be >= 0")
	}
	return nil
}

func validatePool(p PoolConfig) error {
	if p.BaseReserve < 0 || p.QuoteReserve < 0 {
		return invalid("pool reserves must be >= 0")
	}
	if p.FloorBase < 0 || p.FloorQuote < 0 {
		return invalid("pool floors must be >= 0")
	}
	if p.BaseReserve < p.FloorBase {
		return invalid("pool.baseReserve below floorBase")
	}
	if p.QuoteReserve < p.FloorQuote {
		return invalid("pool.quoteReserve below floorQuote")
	}
	if p.TargetBase < 0 {
		return invalid("pool.targetBase must be >= 0")
	}
	return nil
}

func validateOracle(o OracleConfig) error {
	if o.MaxAgeSec <= 0 {
		return invalid("oracle.maxAgeSec must be > 0")
	}
	if o.SecondaryMaxAgeSec <= 0 {
		return invalid("oracle.secondaryMaxAgeSec must be > 0")
	}
	if o.AcceptBps < 0 || o.SoftBps < 0 || o.HardBps < 0 {
		return invalid("oracle divergence bands must be >= 0")
	}
	if o.AcceptBps > o.SoftBps || o.SoftBps > o.HardBps {
		return invalid("oracle divergence bands must satisfy accept <= soft <= hard")
	}
	if o.HaircutMinBps < 0 || o.HaircutSlopeBps < 0 {
		return invalid("oracle haircut params must be >= 0")
	}
	if o.HealthyFrames <= 0 {
		return invalid("oracle.healthyFrames must be > 0")
	}
	if o.EmaLambda <= 0 || o.EmaLambda > 1 {
		return invalid("oracle.emaLambda must be in (0,1]")
	}
	if o.SigmaLambda <= 0 || o.SigmaLambda > 1 {
		return invalid("oracle.sigmaLambda must be in (0,1]")
	}
	return nil
}

func validateFees(f FeeConfig) error {
	if f.BaseBps < 0 {
		return invalid("fees.baseBps must be >= 0")
	}
	if f.GlobalCapBps <= 0 {
		return invalid("fees.globalCapBps must be > 0")
	}
	c := f.Confidence
	if c.SpreadWeight < 0 || c.SigmaWeight < 0 || c.SecondaryWeight < 0 {
		return invalid("fees.confidence weights must be >= 0")
	}
	if c.SpreadCapBps < 0 || c.SigmaCapBps < 0 || c.SecondaryCapBps < 0 {
		return invalid("fees.confidence caps must be >= 0")
	}
	s := f.Size
	if s.LinBps < 0 || s.QuadBps < 0 || s.CapBps < 0 {
		return invalid("fees.size coefficients must be >= 0")
	}
	if s.Enabled && s.ReferenceNotional <= 0 {
		return invalid("fees.size.referenceNotional must be > 0 when enabled")
	}
	t := f.Tilt
	if t.CoefBps < 0 || t.CapBps < 0 || t.SpreadWeight < 0 || t.ConfWeight < 0 {
		return invalid("fees.tilt params must be >= 0")
	}
	fl := f.Floor
	if fl.AlphaBbo < 0 || fl.BetaFloorBps < 0 {
		return invalid("fees.floor params must be >= 0")
	}
	if fl.Enabled && fl.BetaFloorBps > f.GlobalCapBps {
		return invalid("fees.floor.betaFloorBps exceeds globalCapBps")
	}
	v := f.Vol
	if v.Kappa < 0 || v.CapBps < 0 || v.TTLSeconds < 0 || v.ToxicityBiasBps < 0 {
		return invalid("fees.vol params must be >= 0")
	}
	r := f.Rebate
	if r.Bps < 0 {
		return invalid("fees.rebate.bps must be >= 0")
	}
	for _, m := range f.LadderMultipliers {
		if m <= 0 {
			return invalid("fees.ladderMultipliers must be > 0")
		}
	}
	return nil
}

func validateRecenter(r RecenterConfig) error {
	if r.ThresholdBps <= 0 {
		return invalid("recenter.thresholdBps must be > 0")
	}
	if r.CooldownSec < 0 {
		return invalid("recenter.cooldownSec must be >= 0")
	}
	if r.HealthyStreakMin < 0 {
		return invalid("recenter.healthyStreakMin must be >= 0")
	}
	if r.MinTargetDeltaBps < 0 {
		return invalid("recenter.minTargetDeltaBps must be >= 0")
	}
	return nil
}

func validateAomq(a AomqConfig) error {
	if a.MinQuoteNotional < 0 {
		return invalid("aomq.minQuoteNotional must be >= 0")
	}
	if a.EmergencySpreadBps < 0 {
		return invalid("aomq.emergencySpreadBps must be >= 0")
	}
	if a.FloorEpsilonPct < 0 || a.FloorEpsilonPct > 1 {
		return invalid("aomq.floorEpsilonPct must be in [0,1]")
	}
	return nil
}
