package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quote-engine-go/config"
	"quote-engine-go/inventory"
	"quote-engine-go/oracle"
)

// stubOracle implements all three source contracts with settable values.
type stubOracle struct {
	mid, bid, ask float64
	age           time.Duration
	ok            bool

	emaMid float64
	emaOK  bool

	secMid, secConf float64
	secAge          time.Duration
	secOK           bool
}

func (s *stubOracle) ReadMidAndAge() (float64, time.Duration, bool) { return s.mid, s.age, s.ok }
func (s *stubOracle) ReadBidAsk() (float64, float64, bool)          { return s.bid, s.ask, s.ok }
func (s *stubOracle) ReadEmaFallback() (float64, bool)              { return s.emaMid, s.emaOK }
func (s *stubOracle) ReadSecondaryMid() (float64, float64, time.Duration, bool) {
	return s.secMid, s.secConf, s.secAge, s.secOK
}

// setAll points every source at the same mid with a tight book.
func (s *stubOracle) setAll(mid float64) {
	s.mid = mid
	s.bid = mid * 0.999
	s.ask = mid * 1.001
	s.age = time.Second
	s.ok = true
	s.emaMid = mid
	s.emaOK = true
	s.secMid = mid
	s.secConf = 10
	s.secAge = time.Second
	s.secOK = true
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

type sigmaStub float64

func (s sigmaStub) SigmaBps() float64 { return float64(s) }

func testParams() config.Params {
	p := config.Default()
	p.Pool = config.PoolConfig{
		BaseSymbol:   "BASE",
		QuoteSymbol:  "QUOTE",
		BaseReserve:  1000,
		QuoteReserve: 1000,
		TargetBase:   1000,
		FloorBase:    100,
		FloorQuote:   100,
	}
	p.Recenter.CooldownSec = 0
	return p
}

func newTestEngine(t *testing.T, mutate func(*config.Params)) (*Engine, *stubOracle, *testClock) {
	t.Helper()
	p := testParams()
	if mutate != nil {
		mutate(&p)
	}
	src := &stubOracle{}
	src.setAll(1.0)
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	e, err := New(Options{
		Params: p,
		Fusion: &oracle.Fusion{
			Primary:   src,
			Ema:       src,
			Secondary: src,
			Limits: oracle.Limits{
				MaxAge:          time.Duration(p.Oracle.MaxAgeSec * float64(time.Second)),
				SecondaryMaxAge: time.Duration(p.Oracle.SecondaryMaxAgeSec * float64(time.Second)),
			},
			EmaConfBps: 20,
		},
		Sigma: sigmaStub(0),
		Clock: clock,
	})
	require.NoError(t, err)
	return e, src, clock
}

func TestQuoteDoesNotMutate(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	before := e.Reserves()
	for i := 0; i < 5; i++ {
		_, err := e.Quote(10, true, oracle.ModeSpot)
		require.NoError(t, err)
	}
	assert.Equal(t, before, e.Reserves())
	assert.False(t, e.SnapshotRaw().Valid(), "quotes must not persist snapshots")
}

func TestSwapSettlesAndPersistsSnapshot(t *testing.T) {
	e, _, clock := newTestEngine(t, nil)
	res, err := e.Swap(SwapRequest{AmountIn: 10, IsBaseIn: true, Mode: oracle.ModeSpot})
	require.NoError(t, err)
	assert.Greater(t, res.AmountOut, 0.0)
	assert.Equal(t, 10.0, res.AppliedAmountIn)
	assert.NotEmpty(t, res.ID)

	r := e.Reserves()
	assert.Equal(t, 1010.0, r.BaseReserve)
	assert.InDelta(t, 1000-res.AmountOut, r.QuoteReserve, 1e-9)

	snap := e.SnapshotRaw()
	require.True(t, snap.Valid())
	assert.Equal(t, 1.0, snap.Mid)
	assert.Equal(t, uint64(1), snap.BlockRef)
	assert.Equal(t, clock.t, snap.Timestamp)
}

func TestSwapFloorsHeldOnBothSides(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	for _, req := range []SwapRequest{
		{AmountIn: 5000, IsBaseIn: true, Mode: oracle.ModeSpot},
		{AmountIn: 5000, IsBaseIn: false, Mode: oracle.ModeSpot},
	} {
		res, err := e.Swap(req)
		require.NoError(t, err)
		assert.True(t, res.Partial, "oversized swap should clamp")
		r := e.Reserves()
		assert.GreaterOrEqual(t, r.BaseReserve, 100.0-1e-9)
		assert.GreaterOrEqual(t, r.QuoteReserve, 100.0-1e-9)
	}
}

func TestPartialFillConservation(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	res, err := e.Swap(SwapRequest{AmountIn: 5000, IsBaseIn: true, Mode: oracle.ModeSpot})
	require.NoError(t, err)
	require.True(t, res.Partial)
	assert.InDelta(t, 5000, res.AppliedAmountIn+res.Leftover, 1e-9)
}

func TestSwapDeadline(t *testing.T) {
	e, _, clock := newTestEngine(t, nil)
	deadline := clock.t.Add(-time.Second)
	_, err := e.Swap(SwapRequest{AmountIn: 10, IsBaseIn: true, Mode: oracle.ModeSpot, Deadline: deadline})
	assert.ErrorIs(t, err, ErrDeadlineExceeded)
}

func TestSwapSlippage(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	before := e.Reserves()
	_, err := e.Swap(SwapRequest{AmountIn: 10, IsBaseIn: true, MinAmountOut: 1e9, Mode: oracle.ModeSpot})
	assert.ErrorIs(t, err, ErrSlippage)
	assert.Equal(t, before, e.Reserves(), "rejected swap must not mutate")
}

func TestHardDivergenceFailsClosed(t *testing.T) {
	e, src, _ := newTestEngine(t, nil)
	src.secMid = 1.05 // ~476 bps, above the 150 bps hard band
	before := e.Reserves()
	softBefore := e.SoftDivergenceState()

	_, err := e.Swap(SwapRequest{AmountIn: 10, IsBaseIn: true, Mode: oracle.ModeSpot})
	require.ErrorIs(t, err, oracle.ErrDivergenceHard)
	assert.Equal(t, before, e.Reserves())
	assert.Equal(t, softBefore, e.SoftDivergenceState())
	assert.False(t, e.SnapshotRaw().Valid())
}

func TestSoftDivergenceHaircutAndHysteresis(t *testing.T) {
	e, src, _ := newTestEngine(t, nil)

	// Baseline fee with aligned sources.
	clean, err := e.Quote(10, true, oracle.ModeSpot)
	require.NoError(t, err)

	// ~50 bps sits in the soft band (30/75/150 defaults).
	src.secMid = 1.005
	soft, err := e.Quote(10, true, oracle.ModeSpot)
	require.NoError(t, err)
	assert.Greater(t, soft.FeeBpsUsed, clean.FeeBpsUsed, "soft band must price in a haircut")

	// A swap observes the divergence and marks the memory.
	_, err = e.Swap(SwapRequest{AmountIn: 10, IsBaseIn: true, Mode: oracle.ModeSpot})
	require.NoError(t, err)
	assert.True(t, e.SoftDivergenceState().Active)

	// Exactly three healthy swaps clear it.
	src.secMid = 1.0
	for i := 1; i <= 3; i++ {
		_, err = e.Swap(SwapRequest{AmountIn: 1, IsBaseIn: true, Mode: oracle.ModeSpot})
		require.NoError(t, err)
		if i < 3 {
			assert.True(t, e.SoftDivergenceState().Active, "cleared after %d healthy frames, want 3", i)
		}
	}
	assert.False(t, e.SoftDivergenceState().Active)
}

func TestMidUnsetWhenNoSources(t *testing.T) {
	e, src, _ := newTestEngine(t, nil)
	src.ok = false
	src.emaOK = false
	src.secOK = false
	_, err := e.Quote(10, true, oracle.ModeSpot)
	assert.ErrorIs(t, err, oracle.ErrMidUnset)
}

func TestStaleDistinctFromMidUnset(t *testing.T) {
	e, src, _ := newTestEngine(t, nil)
	src.age = time.Hour
	src.emaOK = false
	src.secAge = time.Hour
	_, err := e.Quote(10, true, oracle.ModeSpot)
	assert.ErrorIs(t, err, oracle.ErrStale)
}

func TestFallbackActivatesAomq(t *testing.T) {
	e, src, _ := newTestEngine(t, nil)
	src.ok = false // primary dark, EMA serves
	src.secOK = false

	q, err := e.Quote(10_000, true, oracle.ModeSpot)
	require.NoError(t, err)
	assert.True(t, q.UsedFallback)
	assert.Equal(t, "aomq_fallback_oracle", q.Reason)
	assert.True(t, q.Partial, "AOMQ should clamp an oversized quote")
	assert.Greater(t, q.Leftover, 0.0)
	// Emergency half-spread floor: 60/2 = 30 bps.
	assert.GreaterOrEqual(t, q.FeeBpsUsed, 30.0)
}

func TestAomqDisabledRestoresNormalSizing(t *testing.T) {
	e, src, _ := newTestEngine(t, func(p *config.Params) { p.Aomq.Enabled = false })
	src.ok = false
	src.secOK = false

	q, err := e.Quote(500, true, oracle.ModeSpot)
	require.NoError(t, err)
	assert.False(t, q.Partial)
	assert.Equal(t, 500.0, q.AppliedAmountIn)
}

func TestFloorProximityDegradesOneSide(t *testing.T) {
	e, _, _ := newTestEngine(t, func(p *config.Params) {
		p.Pool.BaseReserve = 104 // within 5% of the 100 floor
		p.Pool.QuoteReserve = 1000
		p.Pool.TargetBase = 100
	})
	// Ask side (pool pays base) is degraded.
	ask, err := e.Quote(500, false, oracle.ModeSpot)
	require.NoError(t, err)
	assert.Equal(t, "aomq_floor_proximity", ask.Reason)

	// Bid side is not.
	bid, err := e.Quote(5, true, oracle.ModeSpot)
	require.NoError(t, err)
	assert.NotContains(t, bid.Reason, "floor_proximity")
}

func TestRebateAppliedForAllowListedCaller(t *testing.T) {
	e, _, _ := newTestEngine(t, func(p *config.Params) {
		p.Fees.Rebate = config.Rebate{Enabled: true, Bps: 3, AllowList: []string{"mm-desk"}}
	})
	plain, err := e.Quote(100, true, oracle.ModeSpot)
	require.NoError(t, err)
	listed, err := e.QuoteFor(100, true, oracle.ModeSpot, "mm-desk")
	require.NoError(t, err)
	assert.Less(t, listed.FeeBpsUsed, plain.FeeBpsUsed)
}

func TestAutomaticRecenterEndToEnd(t *testing.T) {
	e, src, _ := newTestEngine(t, nil)

	// Four flat swaps: the first anchors the price, the rest build the
	// healthy streak.
	for i := 0; i < 4; i++ {
		_, err := e.Swap(SwapRequest{AmountIn: 1, IsBaseIn: true, Mode: oracle.ModeSpot})
		require.NoError(t, err)
	}
	require.Equal(t, 1000.0, e.Reserves().TargetBase)

	// 1000 bps move beats the 750 bps threshold: the next swap recenters.
	src.setAll(1.10)
	_, err := e.Swap(SwapRequest{AmountIn: 1, IsBaseIn: true, Mode: oracle.ModeSpot})
	require.NoError(t, err)

	target := e.Reserves().TargetBase
	// Equal-value split of the post-trade reserves at 1.10.
	r := e.Reserves()
	want := (r.QuoteReserve + r.BaseReserve*1.10) / 2 / 1.10
	assert.InDelta(t, want, target, 1e-9)
	assert.InDelta(t, 954.5, target, 3.0)

	// Sub-threshold swaps afterwards never re-commit.
	for i := 0; i < 5; i++ {
		_, err := e.Swap(SwapRequest{AmountIn: 1, IsBaseIn: true, Mode: oracle.ModeSpot})
		require.NoError(t, err)
	}
	assert.Equal(t, target, e.Reserves().TargetBase, "target must update exactly once")
}

func TestManualRebalanceCooldown(t *testing.T) {
	e, src, clock := newTestEngine(t, func(p *config.Params) {
		p.Recenter.CooldownSec = 3600
	})
	src.setAll(1.10)
	require.NoError(t, e.ManualRebalance())

	// Second attempt inside the window fails on cooldown even with plenty
	// of deviation.
	src.setAll(1.50)
	err := e.ManualRebalance()
	assert.ErrorIs(t, err, inventory.ErrRecenterCooldown)

	clock.t = clock.t.Add(2 * time.Hour)
	require.NoError(t, e.ManualRebalance())
}

func TestManualRebalanceRejectsStaleOracle(t *testing.T) {
	e, src, _ := newTestEngine(t, nil)
	src.age = time.Hour
	src.emaOK = false
	src.secAge = time.Hour
	err := e.ManualRebalance()
	assert.ErrorIs(t, err, oracle.ErrStale)
}

func TestManualRebalanceChurnGuard(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	// Target already matches the equal-value split at 1.0.
	err := e.ManualRebalance()
	assert.ErrorIs(t, err, inventory.ErrRecenterThreshold)
}

func TestApplyParamsRejectsInvalidEpoch(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	bad := testParams()
	bad.Fees.GlobalCapBps = 0
	err := e.ApplyParams(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	// Previous epoch still live.
	_, err = e.Quote(10, true, oracle.ModeSpot)
	assert.NoError(t, err)
}

func TestApplyParamsSwapsEpochBetweenCalls(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	p := testParams()
	p.Fees.BaseBps = 50
	p.Fees.Floor.Enabled = false
	require.NoError(t, e.ApplyParams(p))

	q, err := e.Quote(10, true, oracle.ModeSpot)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q.FeeBpsUsed, 50.0)
}

func TestSizeFeeMonotoneThroughEngine(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	prev := -1.0
	for _, size := range []float64{10, 100, 500, 800} {
		q, err := e.Quote(size, true, oracle.ModeSpot)
		require.NoError(t, err)
		if q.FeeBpsUsed < prev-1e-9 {
			t.Fatalf("fee decreased with size at %v: %v < %v", size, q.FeeBpsUsed, prev)
		}
		prev = q.FeeBpsUsed
	}
}

func TestTiltDiscountsRestoringTrade(t *testing.T) {
	e, _, _ := newTestEngine(t, func(p *config.Params) {
		p.Pool.BaseReserve = 1500 // base surplus
		p.Pool.QuoteReserve = 1000
		p.Pool.TargetBase = 1000
	})
	worsen, err := e.Quote(10, true, oracle.ModeSpot) // adds base
	require.NoError(t, err)
	restore, err := e.Quote(10, false, oracle.ModeSpot) // drains base
	require.NoError(t, err)
	assert.Greater(t, worsen.FeeBpsUsed, restore.FeeBpsUsed)
}

func TestDivergenceSymmetryThroughEngine(t *testing.T) {
	e1, src1, _ := newTestEngine(t, nil)
	src1.secMid = 1.004 // primary 1.0, secondary 1.004

	e2, src2, _ := newTestEngine(t, nil)
	src2.setAll(1.004)
	src2.secMid = 1.0 // roles swapped

	q1, err := e1.Quote(10, true, oracle.ModeSpot)
	require.NoError(t, err)
	q2, err := e2.Quote(10, true, oracle.ModeSpot)
	require.NoError(t, err)

	// Same delta, so the same haircut classification on both engines.
	s1, s2 := e1.SoftDivergenceState(), e2.SoftDivergenceState()
	assert.Equal(t, s1.Active, s2.Active)
	if math.Abs(q1.FeeBpsUsed-q2.FeeBpsUsed) > 0.5 {
		t.Errorf("asymmetric fees under swapped sources: %v vs %v", q1.FeeBpsUsed, q2.FeeBpsUsed)
	}
}

func TestErrorsCarryTaxonomy(t *testing.T) {
	e, src, _ := newTestEngine(t, nil)
	src.secMid = 1.05
	_, err := e.Swap(SwapRequest{AmountIn: 10, IsBaseIn: true, Mode: oracle.ModeSpot})
	require.Error(t, err)
	if !errors.Is(err, oracle.ErrDivergenceHard) {
		t.Errorf("error %v must match oracle.ErrDivergenceHard", err)
	}
}
