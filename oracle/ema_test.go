package oracle

import (
	"math"
	"testing"
	"time"
)

func TestEmaSeedAndSmooth(t *testing.T) {
	e := NewEmaTracker(0.5, time.Minute)
	if _, ok := e.ReadEmaFallback(); ok {
		t.Fatal("unseeded tracker must not serve a value")
	}
	e.Push(100)
	if v, ok := e.ReadEmaFallback(); !ok || v != 100 {
		t.Fatalf("seeded value = %v ok=%v, want 100", v, ok)
	}
	e.Push(110)
	if v, _ := e.ReadEmaFallback(); math.Abs(v-105) > 1e-9 {
		t.Errorf("smoothed value = %v, want 105", v)
	}
}

func TestEmaRejectsNonPositive(t *testing.T) {
	e := NewEmaTracker(0.5, time.Minute)
	e.Push(0)
	e.Push(-5)
	if _, ok := e.ReadEmaFallback(); ok {
		t.Fatal("non-positive pushes must not seed the tracker")
	}
}

func TestEmaStaleAfterMaxAge(t *testing.T) {
	e := NewEmaTracker(0.5, time.Minute)
	base := time.Now()
	e.now = func() time.Time { return base }
	e.Push(100)
	e.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := e.ReadEmaFallback(); ok {
		t.Fatal("stale EMA must not serve a value")
	}
}

func TestSigmaEstimator(t *testing.T) {
	s := NewSigmaEstimator(0.5)
	if s.SigmaBps() != 0 {
		t.Fatal("fresh estimator should report zero")
	}
	s.Push(100)
	if s.SigmaBps() != 0 {
		t.Fatal("single sample should report zero")
	}
	s.Push(101)
	if s.SigmaBps() <= 0 {
		t.Error("estimator should report positive sigma after a move")
	}
	flat := s.SigmaBps()
	for i := 0; i < 50; i++ {
		s.Push(101)
	}
	if s.SigmaBps() >= flat {
		t.Error("sigma should decay under a flat price")
	}
}
