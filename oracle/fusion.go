package oracle

import (
	"fmt"
	"time"
)

// Limits are the freshness gates applied during a fused read.
type Limits struct {
	MaxAge          time.Duration // primary spot bound
	SecondaryMaxAge time.Duration
}

// Fused is the single reference produced from all available sources.
type Fused struct {
	Mid           float64
	Tag           SourceTag
	SpreadBps     float64 // observed primary spread, 0 when primary unavailable
	ConfidenceBps float64
	UsedFallback  bool
	Reason        string

	// Secondary cross-check, when available alongside the chosen mid.
	HasSecondary     bool
	SecondaryMid     float64
	SecondaryConfBps float64
}

// Fusion reads the sources in priority order and applies the gates.
// Any nil source is simply skipped.
type Fusion struct {
	Primary   PrimarySource
	Ema       EmaSource
	Secondary SecondarySource
	Limits    Limits

	// EmaConfBps is the confidence attributed to an EMA-sourced mid; the
	// EMA has no observable spread of its own.
	EmaConfBps float64
}

// ReadReferencePrice attempts sources in the mode's priority order, rejecting
// readings that are stale or zero. Returns ErrStale when something resolved
// but nothing fresh remained, ErrMidUnset when no source produced any value.
func (f *Fusion) ReadReferencePrice(mode Mode) (Fused, error) {
	resolvedAny := false

	primary, ok, resolved := f.readPrimary()
	resolvedAny = resolvedAny || resolved

	ema, emaOK := f.readEma()
	resolvedAny = resolvedAny || emaOK

	secMid, secConf, secOK, secResolved := f.readSecondary()
	resolvedAny = resolvedAny || secResolved

	order := []SourceTag{TagPrimary, TagEmaFallback, TagSecondary}
	if mode == ModeEma {
		order = []SourceTag{TagEmaFallback, TagPrimary, TagSecondary}
	}

	for i, tag := range order {
		var out Fused
		switch tag {
		case TagPrimary:
			if !ok {
				continue
			}
			out = primary
		case TagEmaFallback:
			if !emaOK {
				continue
			}
			out = Fused{Mid: ema, Tag: TagEmaFallback, ConfidenceBps: f.EmaConfBps}
		case TagSecondary:
			if !secOK {
				continue
			}
			out = Fused{Mid: secMid, Tag: TagSecondary, ConfidenceBps: secConf}
		}
		out.UsedFallback = i > 0
		if out.UsedFallback {
			out.Reason = fmt.Sprintf("fallback_%s", out.Tag)
		} else {
			out.Reason = "ok"
		}
		// Secondary is attached as cross-check only when it is not itself
		// the chosen source.
		if secOK && out.Tag != TagSecondary {
			out.HasSecondary = true
			out.SecondaryMid = secMid
			out.SecondaryConfBps = secConf
		}
		// Primary spread stays observable even when a fallback mid won.
		if ok && out.Tag != TagPrimary {
			out.SpreadBps = primary.SpreadBps
		}
		return out, nil
	}

	if resolvedAny {
		return Fused{Reason: "stale"}, ErrStale
	}
	return Fused{Reason: "mid_unset"}, ErrMidUnset
}

// readPrimary returns (reading, usable, resolvedAtAll).
func (f *Fusion) readPrimary() (Fused, bool, bool) {
	if f.Primary == nil {
		return Fused{}, false, false
	}
	mid, age, ok := f.Primary.ReadMidAndAge()
	if !ok || mid <= 0 {
		return Fused{}, false, false
	}
	if f.Limits.MaxAge > 0 && age > f.Limits.MaxAge {
		return Fused{}, false, true
	}
	out := Fused{Mid: mid, Tag: TagPrimary}
	if bid, ask, bok := f.Primary.ReadBidAsk(); bok && ask > 0 {
		out.SpreadBps = (ask - bid) / mid * 1e4
	}
	// Half the observed spread is the natural uncertainty of a spot mid.
	out.ConfidenceBps = out.SpreadBps / 2
	return out, true, true
}

func (f *Fusion) readEma() (float64, bool) {
	if f.Ema == nil {
		return 0, false
	}
	mid, ok := f.Ema.ReadEmaFallback()
	if !ok || mid <= 0 {
		return 0, false
	}
	return mid, true
}

// readSecondary returns (mid, confBps, usable, resolvedAtAll).
func (f *Fusion) readSecondary() (float64, float64, bool, bool) {
	if f.Secondary == nil {
		return 0, 0, false, false
	}
	mid, conf, age, ok := f.Secondary.ReadSecondaryMid()
	if !ok || mid <= 0 {
		return 0, 0, false, false
	}
	if f.Limits.SecondaryMaxAge > 0 && age > f.Limits.SecondaryMaxAge {
		return 0, 0, false, true
	}
	return mid, conf, true, true
}
