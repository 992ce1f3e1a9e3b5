// Package fees composes the multi-factor dynamic fee. Compute is a pure
// function of its inputs so off-path preview callers replay it byte-for-byte
// against a stored snapshot.
package fees

import (
	"math"

	"quote-engine-go/config"
)

// Input carries everything one fee computation consumes.
type Input struct {
	Notional float64 // trade notional in quote units

	SpreadBps        float64 // observed primary spread
	SigmaBps         float64 // EWMA volatility estimate
	SecondaryConfBps float64 // secondary oracle confidence

	CurrentBase   float64
	TargetBase    float64
	TradeAddsBase bool // true when the fill pushes base inventory up

	HaircutBps float64 // soft-divergence haircut, additive

	DegradedActive    bool    // AOMQ active on the quoted side
	EmergencyFloorBps float64 // AOMQ effective half-spread floor, 0 when inactive

	AllowListed bool
}

// Breakdown reports every stage alongside the final rate.
type Breakdown struct {
	BaseBps       float64
	ConfidenceBps float64
	SizeBps       float64
	TiltBps       float64
	HaircutBps    float64
	FloorBps      float64
	SurchargeBps  float64
	RebateBps     float64

	TotalBps     float64
	FloorApplied bool
	CapApplied   bool
}

// Compute runs the pipeline: base + confidence + size + tilt + haircut,
// floored by the BBO floor, plus the volatility surcharge, minus the
// allow-list rebate, re-clamped to [floor, globalCap]. Disabled stages
// contribute exactly zero.
func Compute(cfg config.FeeConfig, in Input) Breakdown {
	out := Breakdown{
		BaseBps:    cfg.BaseBps,
		HaircutBps: in.HaircutBps,
	}

	out.ConfidenceBps = confidenceFee(cfg.Confidence, in)
	out.SizeBps = sizeFee(cfg.Size, in.Notional)
	out.TiltBps = tiltFee(cfg.Tilt, in)
	out.FloorBps = floorBps(cfg.Floor, in)
	out.SurchargeBps = volSurcharge(cfg.Vol, in)
	if cfg.Rebate.Enabled && in.AllowListed {
		out.RebateBps = cfg.Rebate.Bps
	}

	total := out.BaseBps + out.ConfidenceBps + out.SizeBps + out.TiltBps + out.HaircutBps
	if total < out.FloorBps {
		total = out.FloorBps
		out.FloorApplied = true
	}
	total += out.SurchargeBps
	total -= out.RebateBps

	// A rebate can never undercut the enforced floor.
	if total < out.FloorBps {
		total = out.FloorBps
		out.FloorApplied = true
	}
	if total > cfg.GlobalCapBps {
		total = cfg.GlobalCapBps
		out.CapApplied = true
	}
	if total < 0 {
		total = 0
	}
	out.TotalBps = total
	return out
}

// confidenceFee blends spread, sigma and secondary confidence, each capped
// independently before weighting.
func confidenceFee(c config.ConfidenceFee, in Input) float64 {
	if !c.Enabled {
		return 0
	}
	wSum := c.SpreadWeight + c.SigmaWeight + c.SecondaryWeight
	if wSum <= 0 {
		return 0
	}
	blend := c.SpreadWeight*capped(in.SpreadBps, c.SpreadCapBps) +
		c.SigmaWeight*capped(in.SigmaBps, c.SigmaCapBps) +
		c.SecondaryWeight*capped(in.SecondaryConfBps, c.SecondaryCapBps)
	return blend / wSum
}

// sizeFee is min(cap, lin×u + quad×u²) with u = notional/reference.
// Monotonically non-decreasing in u.
func sizeFee(s config.SizeFee, notional float64) float64 {
	if !s.Enabled || s.ReferenceNotional <= 0 || notional <= 0 {
		return 0
	}
	u := notional / s.ReferenceNotional
	fee := s.LinBps*u + s.QuadBps*u*u
	return math.Min(s.CapBps, fee)
}

// tiltFee surcharges trades that worsen the inventory imbalance and
// discounts trades that restore it. Positive deviation means base surplus;
// adding more base then costs extra, draining base earns a discount.
func tiltFee(t config.InventoryTilt, in Input) float64 {
	if !t.Enabled || in.TargetBase <= 0 {
		return 0
	}
	dev := (in.CurrentBase - in.TargetBase) / in.TargetBase
	dir := -1.0
	if in.TradeAddsBase {
		dir = 1.0
	}
	raw := t.CoefBps * dev * dir
	scaled := raw * t.SpreadWeight * t.ConfWeight
	return clamp(scaled, -t.CapBps, t.CapBps)
}

// floorBps is max(betaFloor, alphaBbo × observedSpread), widened to the AOMQ
// emergency floor while degraded mode is active.
func floorBps(f config.BboFloor, in Input) float64 {
	floor := in.EmergencyFloorBps
	if f.Enabled {
		floor = math.Max(floor, math.Max(f.BetaFloorBps, f.AlphaBbo*in.SpreadBps))
	}
	return floor
}

// volSurcharge is min(cap, kappa × (sigma×sqrt(ttl) + toxicityBias)); the
// bias term enters only while degraded mode is active.
func volSurcharge(v config.VolSurcharge, in Input) float64 {
	if !v.Enabled {
		return 0
	}
	bias := 0.0
	if in.DegradedActive {
		bias = v.ToxicityBiasBps
	}
	fee := v.Kappa * (in.SigmaBps*math.Sqrt(v.TTLSeconds) + bias)
	return math.Min(v.CapBps, fee)
}

func capped(v, cap float64) float64 {
	if v < 0 {
		return 0
	}
	return math.Min(v, cap)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
