package inventory

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-engine-go/config"
)

func recenterConfig() config.RecenterConfig {
	return config.RecenterConfig{
		ThresholdBps:      750,
		CooldownSec:       3600,
		HealthyStreakMin:  3,
		MinTargetDeltaBps: 10,
	}
}

func warmedMachine(t *testing.T, res *ReserveState, now time.Time) *Recenter {
	t.Helper()
	r := NewRecenter(recenterConfig())
	// First observation anchors; the next three build the healthy streak.
	for i := 0; i < 4; i++ {
		if _, committed := r.OnTrade(res, 1.0, now); committed {
			t.Fatal("no commit expected while price is flat")
		}
	}
	require.Equal(t, 3, r.HealthyStreak())
	return r
}

func TestAutoCommitOnThresholdMove(t *testing.T) {
	res := &ReserveState{BaseReserve: 1000, QuoteReserve: 1000, TargetBase: 1000}
	now := time.Now()
	r := warmedMachine(t, res, now)

	// 1000 bps move clears the 750 bps threshold.
	result, committed := r.OnTrade(res, 1.10, now)
	require.True(t, committed)
	want := (1000 + 1000*1.10) / 2 / 1.10
	assert.InDelta(t, want, result.NewTarget, 1e-9)
	assert.InDelta(t, want, res.TargetBase, 1e-9)
	assert.Equal(t, 0, r.HealthyStreak(), "streak resets on commit")
	assert.Equal(t, 1.10, r.AnchorPrice())

	// Sub-threshold follow-ups do not commit again.
	for i := 0; i < 5; i++ {
		if _, again := r.OnTrade(res, 1.10, now.Add(2*time.Hour)); again {
			t.Fatal("unexpected second commit at unchanged price")
		}
	}
}

func TestAutoRequiresHealthyStreak(t *testing.T) {
	res := &ReserveState{BaseReserve: 1000, QuoteReserve: 1000, TargetBase: 1000}
	now := time.Now()
	r := NewRecenter(recenterConfig())
	r.OnTrade(res, 1.0, now) // anchor only, streak 0
	if _, committed := r.OnTrade(res, 1.10, now); committed {
		t.Fatal("commit without healthy streak")
	}
}

func TestAutoRequiresCooldown(t *testing.T) {
	res := &ReserveState{BaseReserve: 1000, QuoteReserve: 1000, TargetBase: 1000}
	now := time.Now()
	r := warmedMachine(t, res, now)
	_, committed := r.OnTrade(res, 1.10, now)
	require.True(t, committed)

	// Rebuild the streak, move again inside the cooldown window.
	for i := 0; i < 3; i++ {
		r.OnTrade(res, 1.10, now.Add(time.Minute))
	}
	if _, again := r.OnTrade(res, 1.25, now.Add(30*time.Minute)); again {
		t.Fatal("commit inside cooldown window")
	}
	// After the cooldown it goes through.
	if _, again := r.OnTrade(res, 1.25, now.Add(2*time.Hour)); !again {
		t.Fatal("expected commit after cooldown")
	}
}

func TestManualCooldownCheckedFirst(t *testing.T) {
	res := &ReserveState{BaseReserve: 1000, QuoteReserve: 1000, TargetBase: 1000}
	now := time.Now()
	r := NewRecenter(recenterConfig())

	_, err := r.Manual(res, 1.10, now)
	require.NoError(t, err)

	// Second attempt inside the window fails on cooldown even though the
	// price deviation would justify another commit.
	_, err = r.Manual(res, 1.50, now.Add(10*time.Minute))
	if !errors.Is(err, ErrRecenterCooldown) {
		t.Fatalf("err = %v, want ErrRecenterCooldown", err)
	}
}

func TestManualChurnGuard(t *testing.T) {
	res := &ReserveState{BaseReserve: 1000, QuoteReserve: 1000, TargetBase: 1000}
	r := NewRecenter(recenterConfig())
	// Target already matches the equal-value split at price 1.0.
	_, err := r.Manual(res, 1.0, time.Now())
	if !errors.Is(err, ErrRecenterThreshold) {
		t.Fatalf("err = %v, want ErrRecenterThreshold", err)
	}
	if res.TargetBase != 1000 {
		t.Errorf("target mutated on rejected manual: %v", res.TargetBase)
	}
}

func TestPerformFormula(t *testing.T) {
	res := &ReserveState{BaseReserve: 400, QuoteReserve: 1200, TargetBase: 400}
	r := NewRecenter(recenterConfig())
	result, err := r.Manual(res, 2.0, time.Now())
	require.NoError(t, err)
	// total = 1200 + 400×2 = 2000; newTarget = 1000/2 = 500.
	if math.Abs(result.NewTarget-500) > 1e-9 {
		t.Errorf("newTarget = %v, want 500", result.NewTarget)
	}
	assert.Equal(t, 400.0, result.OldTarget)
}

func TestStreakCapped(t *testing.T) {
	res := &ReserveState{BaseReserve: 1000, QuoteReserve: 1000, TargetBase: 1000}
	r := NewRecenter(recenterConfig())
	now := time.Now()
	for i := 0; i < 20; i++ {
		r.OnTrade(res, 1.0, now)
	}
	if r.HealthyStreak() != 3 {
		t.Errorf("streak = %d, want capped at 3", r.HealthyStreak())
	}
}
