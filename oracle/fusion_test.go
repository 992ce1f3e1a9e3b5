package oracle

import (
	"errors"
	"testing"
	"time"
)

type stubPrimary struct {
	mid, bid, ask float64
	age           time.Duration
	ok            bool
}

func (s stubPrimary) ReadMidAndAge() (float64, time.Duration, bool) { return s.mid, s.age, s.ok }
func (s stubPrimary) ReadBidAsk() (float64, float64, bool)          { return s.bid, s.ask, s.ok }

type stubEma struct {
	mid float64
	ok  bool
}

func (s stubEma) ReadEmaFallback() (float64, bool) { return s.mid, s.ok }

type stubSecondary struct {
	mid, conf float64
	age       time.Duration
	ok        bool
}

func (s stubSecondary) ReadSecondaryMid() (float64, float64, time.Duration, bool) {
	return s.mid, s.conf, s.age, s.ok
}

func testLimits() Limits {
	return Limits{MaxAge: 30 * time.Second, SecondaryMaxAge: 60 * time.Second}
}

func TestFreshPrimaryWins(t *testing.T) {
	f := &Fusion{
		Primary:   stubPrimary{mid: 100, bid: 99.9, ask: 100.1, age: time.Second, ok: true},
		Ema:       stubEma{mid: 99, ok: true},
		Secondary: stubSecondary{mid: 100.2, conf: 12, age: time.Second, ok: true},
		Limits:    testLimits(),
	}
	out, err := f.ReadReferencePrice(ModeSpot)
	if err != nil {
		t.Fatalf("ReadReferencePrice: %v", err)
	}
	if out.Tag != TagPrimary || out.UsedFallback {
		t.Errorf("tag=%v usedFallback=%v, want primary without fallback", out.Tag, out.UsedFallback)
	}
	if out.Mid != 100 {
		t.Errorf("mid = %v, want 100", out.Mid)
	}
	if !out.HasSecondary || out.SecondaryMid != 100.2 {
		t.Errorf("secondary cross-check not attached: %+v", out)
	}
	if out.SpreadBps <= 0 {
		t.Errorf("spread = %v, want > 0", out.SpreadBps)
	}
}

func TestStalePrimaryFallsToEma(t *testing.T) {
	f := &Fusion{
		Primary:    stubPrimary{mid: 100, bid: 99.9, ask: 100.1, age: time.Minute, ok: true},
		Ema:        stubEma{mid: 99.5, ok: true},
		Limits:     testLimits(),
		EmaConfBps: 20,
	}
	out, err := f.ReadReferencePrice(ModeSpot)
	if err != nil {
		t.Fatalf("ReadReferencePrice: %v", err)
	}
	if out.Tag != TagEmaFallback || !out.UsedFallback {
		t.Errorf("tag=%v usedFallback=%v, want ema fallback", out.Tag, out.UsedFallback)
	}
	if out.ConfidenceBps != 20 {
		t.Errorf("confidence = %v, want EmaConfBps", out.ConfidenceBps)
	}
}

func TestSecondaryIsLastResort(t *testing.T) {
	f := &Fusion{
		Primary:   stubPrimary{ok: false},
		Ema:       stubEma{ok: false},
		Secondary: stubSecondary{mid: 101, conf: 15, age: time.Second, ok: true},
		Limits:    testLimits(),
	}
	out, err := f.ReadReferencePrice(ModeSpot)
	if err != nil {
		t.Fatalf("ReadReferencePrice: %v", err)
	}
	if out.Tag != TagSecondary || !out.UsedFallback {
		t.Errorf("tag=%v, want secondary fallback", out.Tag)
	}
	if out.HasSecondary {
		t.Error("secondary must not cross-check itself")
	}
}

func TestEmaModePrefersEma(t *testing.T) {
	f := &Fusion{
		Primary:    stubPrimary{mid: 100, bid: 99.9, ask: 100.1, age: time.Second, ok: true},
		Ema:        stubEma{mid: 99.5, ok: true},
		Limits:     testLimits(),
		EmaConfBps: 20,
	}
	out, err := f.ReadReferencePrice(ModeEma)
	if err != nil {
		t.Fatalf("ReadReferencePrice: %v", err)
	}
	if out.Tag != TagEmaFallback || out.UsedFallback {
		t.Errorf("tag=%v usedFallback=%v, want preferred ema", out.Tag, out.UsedFallback)
	}
	// Primary spread stays observable for the fee floor.
	if out.SpreadBps <= 0 {
		t.Errorf("spread = %v, want primary spread carried over", out.SpreadBps)
	}
}

func TestAllStaleReturnsErrStale(t *testing.T) {
	f := &Fusion{
		Primary:   stubPrimary{mid: 100, bid: 99.9, ask: 100.1, age: time.Minute, ok: true},
		Secondary: stubSecondary{mid: 101, conf: 10, age: 2 * time.Minute, ok: true},
		Limits:    testLimits(),
	}
	_, err := f.ReadReferencePrice(ModeSpot)
	if !errors.Is(err, ErrStale) {
		t.Fatalf("err = %v, want ErrStale", err)
	}
}

func TestNothingResolvedReturnsErrMidUnset(t *testing.T) {
	f := &Fusion{
		Primary:   stubPrimary{ok: false},
		Ema:       stubEma{ok: false},
		Secondary: stubSecondary{ok: false},
		Limits:    testLimits(),
	}
	_, err := f.ReadReferencePrice(ModeSpot)
	if !errors.Is(err, ErrMidUnset) {
		t.Fatalf("err = %v, want ErrMidUnset", err)
	}
}

func TestZeroMidRejected(t *testing.T) {
	f := &Fusion{
		Primary: stubPrimary{mid: 0, ok: true},
		Limits:  testLimits(),
	}
	_, err := f.ReadReferencePrice(ModeSpot)
	if !errors.Is(err, ErrMidUnset) {
		t.Fatalf("err = %v, want ErrMidUnset for zero mid", err)
	}
}
