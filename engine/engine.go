// Package engine wires oracle fusion, the divergence gate, the fee pipeline,
// the floor-preserving solver, recentering and the degraded-quote mode into
// the quote/swap/preview entry points. One Engine owns one pool's mutable
// state; no ambient globals, so instances coexist and test in isolation.
package engine

import (
	"errors"
	"sync"
	"sync/atomic"

	"quote-engine-go/config"
	"quote-engine-go/infrastructure/logger"
	"quote-engine-go/inventory"
	"quote-engine-go/metrics"
	"quote-engine-go/oracle"
	"quote-engine-go/risk"
	"quote-engine-go/snapshot"
)

var (
	// ErrDeadlineExceeded means the swap deadline passed before execution.
	ErrDeadlineExceeded = errors.New("swap deadline exceeded")
	// ErrSlippage means the computed output fell below the caller's minimum.
	ErrSlippage = errors.New("amount out below minimum")
)

// SigmaSource exposes the current volatility estimate.
type SigmaSource interface {
	SigmaBps() float64
}

// Options configure a new Engine. Fusion and Params are required; the rest
// default to no-ops.
type Options struct {
	Params  config.Params
	Fusion  *oracle.Fusion
	Sigma   SigmaSource
	Logger  *logger.Logger
	Metrics *metrics.Engine
	Store   *snapshot.Store
	Clock   risk.Clock
}

// Engine is the deterministic pricing and risk core. Swap and
// ManualRebalance are the sole mutators; quotes and previews are read-only.
type Engine struct {
	mu  sync.Mutex
	cfg atomic.Pointer[config.Params]

	fusion   *oracle.Fusion
	gate     *oracle.Gate
	sigma    SigmaSource
	reserves inventory.ReserveState
	floors   inventory.Floors
	recenter *inventory.Recenter

	snap     snapshot.Snapshot
	store    *snapshot.Store
	blockRef uint64

	clock risk.Clock
	log   *logger.Logger
	met   *metrics.Engine
}

type zeroSigma struct{}

func (zeroSigma) SigmaBps() float64 { return 0 }

// New builds an engine from validated params.
func New(opts Options) (*Engine, error) {
	if err := config.Validate(opts.Params); err != nil {
		return nil, err
	}
	if opts.Fusion == nil {
		return nil, errors.New("engine: fusion is required")
	}
	if opts.Sigma == nil {
		opts.Sigma = zeroSigma{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = risk.SystemClock
	}

	p := opts.Params
	e := &Engine{
		fusion: opts.Fusion,
		gate:   oracle.NewGate(gateConfig(p.Oracle)),
		sigma:  opts.Sigma,
		reserves: inventory.ReserveState{
			BaseReserve:  p.Pool.BaseReserve,
			QuoteReserve: p.Pool.QuoteReserve,
			TargetBase:   p.Pool.TargetBase,
		},
		floors:   inventory.Floors{Base: p.Pool.FloorBase, Quote: p.Pool.FloorQuote},
		recenter: inventory.NewRecenter(p.Recenter),
		store:    opts.Store,
		clock:    opts.Clock,
		log:      opts.Logger,
		met:      opts.Metrics,
	}
	e.cfg.Store(&p)
	e.publishReserves()
	return e, nil
}

func gateConfig(o config.OracleConfig) oracle.GateConfig {
	return oracle.GateConfig{
		AcceptBps:       o.AcceptBps,
		SoftBps:         o.SoftBps,
		HardBps:         o.HardBps,
		HaircutMinBps:   o.HaircutMinBps,
		HaircutSlopeBps: o.HaircutSlopeBps,
		HealthyFrames:   o.HealthyFrames,
	}
}

// params returns the current governance epoch.
func (e *Engine) params() *config.Params {
	return e.cfg.Load()
}

// ApplyParams swaps in a new governance epoch between calls. Invalid epochs
// are rejected and the previous one stays live. Reserves and target belong to
// settlement history and are intentionally not re-applied; floors follow
// governance, and the divergence gate keeps its hysteresis memory across the
// band change.
func (e *Engine) ApplyParams(p config.Params) error {
	if err := config.Validate(p); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.floors = inventory.Floors{Base: p.Pool.FloorBase, Quote: p.Pool.FloorQuote}

	soft := e.gate.State()
	e.gate = oracle.NewGate(gateConfig(p.Oracle))
	e.gate.Restore(soft)
	e.recenter.SetConfig(p.Recenter)

	e.cfg.Store(&p)
	return nil
}

// Reserves returns a copy of the current reserve state.
func (e *Engine) Reserves() inventory.ReserveState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reserves
}

// SoftDivergenceState returns the divergence hysteresis memory.
func (e *Engine) SoftDivergenceState() oracle.SoftState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.State()
}

// SnapshotRaw returns the last persisted preview snapshot.
func (e *Engine) SnapshotRaw() snapshot.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

func (e *Engine) publishReserves() {
	if e.met == nil {
		return
	}
	e.met.BaseReserve.Set(e.reserves.BaseReserve)
	e.met.QuoteReserve.Set(e.reserves.QuoteReserve)
	e.met.TargetBase.Set(e.reserves.TargetBase)
}
