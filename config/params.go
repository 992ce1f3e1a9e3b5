package config

// Params is the governance-owned parameter set the engine reads at call time.
// A loaded Params value is immutable; updates arrive as a whole new value
// between calls (see Watcher).
type Params struct {
	Env      string         `yaml:"env"`
	Pool     PoolConfig     `yaml:"pool"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Fees     FeeConfig      `yaml:"fees"`
	Recenter RecenterConfig `yaml:"recenter"`
	Aomq     AomqConfig     `yaml:"aomq"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Server   ServerConfig   `yaml:"server"`
}

// PoolConfig describes the two-asset pool and its safety floors.
type PoolConfig struct {
	BaseSymbol   string  `yaml:"baseSymbol"`
	QuoteSymbol  string  `yaml:"quoteSymbol"`
	BaseReserve  float64 `yaml:"baseReserve"`  // initial base holdings
	QuoteReserve float64 `yaml:"quoteReserve"` // initial quote holdings
	TargetBase   float64 `yaml:"targetBase"`   // governance target split (base units)
	FloorBase    float64 `yaml:"floorBase"`    // base reserve must never close below this
	FloorQuote   float64 `yaml:"floorQuote"`   // quote reserve must never close below this
}

// OracleConfig controls source freshness gates and the divergence bands.
type OracleConfig struct {
	PrimaryURL         string  `yaml:"primaryURL"`         // websocket feed
	SecondaryURL       string  `yaml:"secondaryURL"`       // HTTP poll feed
	MaxAgeSec          float64 `yaml:"maxAgeSec"`          // primary/EMA freshness bound
	SecondaryMaxAgeSec float64 `yaml:"secondaryMaxAgeSec"` // secondary freshness bound
	PollIntervalMs     int     `yaml:"pollIntervalMs"`

	AcceptBps       float64 `yaml:"acceptBps"`
	SoftBps         float64 `yaml:"softBps"`
	HardBps         float64 `yaml:"hardBps"`
	HaircutMinBps   float64 `yaml:"haircutMinBps"`
	HaircutSlopeBps float64 `yaml:"haircutSlopeBps"` // per bps above accept
	HealthyFrames   int     `yaml:"healthyFrames"`   // consecutive clean frames to clear soft state

	EmaLambda   float64 `yaml:"emaLambda"`   // EMA fallback smoothing factor
	SigmaLambda float64 `yaml:"sigmaLambda"` // EWMA volatility smoothing factor
}

// FeeConfig holds every stage of the fee pipeline. A disabled stage
// contributes exactly zero.
type FeeConfig struct {
	BaseBps      float64 `yaml:"baseBps"`
	GlobalCapBps float64 `yaml:"globalCapBps"`

	Confidence ConfidenceFee `yaml:"confidence"`
	Size       SizeFee       `yaml:"size"`
	Tilt       InventoryTilt `yaml:"tilt"`
	Floor      BboFloor      `yaml:"floor"`
	Vol        VolSurcharge  `yaml:"vol"`
	Rebate     Rebate        `yaml:"rebate"`

	// Ladder step multipliers for previewLadder, applied to the requested
	// base size.
	LadderMultipliers []float64 `yaml:"ladderMultipliers"`
}

// ConfidenceFee blends spread, volatility and secondary-oracle confidence,
// each capped independently before weighting.
type ConfidenceFee struct {
	Enabled         bool    `yaml:"enabled"`
	SpreadWeight    float64 `yaml:"spreadWeight"`
	SigmaWeight     float64 `yaml:"sigmaWeight"`
	SecondaryWeight float64 `yaml:"secondaryWeight"`
	SpreadCapBps    float64 `yaml:"spreadCapBps"`
	SigmaCapBps     float64 `yaml:"sigmaCapBps"`
	SecondaryCapBps float64 `yaml:"secondaryCapBps"`
}

// SizeFee is lin×u + quad×u² in bps, u = notional/referenceNotional.
type SizeFee struct {
	Enabled           bool    `yaml:"enabled"`
	LinBps            float64 `yaml:"linBps"`
	QuadBps           float64 `yaml:"quadBps"`
	CapBps            float64 `yaml:"capBps"`
	ReferenceNotional float64 `yaml:"referenceNotional"`
}

// InventoryTilt surcharges trades that worsen the inventory imbalance and
// discounts trades that restore it.
type InventoryTilt struct {
	Enabled      bool    `yaml:"enabled"`
	CoefBps      float64 `yaml:"coefBps"` // bps per unit of relative deviation
	SpreadWeight float64 `yaml:"spreadWeight"`
	ConfWeight   float64 `yaml:"confWeight"`
	CapBps       float64 `yaml:"capBps"`
}

// BboFloor enforces max(betaFloorBps, alphaBbo × observedSpreadBps) as a hard
// floor over the running fee total.
type BboFloor struct {
	Enabled      bool    `yaml:"enabled"`
	AlphaBbo     float64 `yaml:"alphaBbo"`
	BetaFloorBps float64 `yaml:"betaFloorBps"`
}

// VolSurcharge adds min(capBps, kappa × (sigma×sqrt(ttl) + toxicityBias)).
type VolSurcharge struct {
	Enabled         bool    `yaml:"enabled"`
	Kappa           float64 `yaml:"kappa"`
	CapBps          float64 `yaml:"capBps"`
	TTLSeconds      float64 `yaml:"ttlSeconds"`
	ToxicityBiasBps float64 `yaml:"toxicityBiasBps"` // added only while degraded mode is active
}

// Rebate is a fixed discount for allow-listed callers, re-clamped so it can
// never undercut the BBO floor.
type Rebate struct {
	Enabled   bool     `yaml:"enabled"`
	Bps       float64  `yaml:"bps"`
	AllowList []string `yaml:"allowList"`
}

// RecenterConfig gates the automatic/manual target recomputation.
type RecenterConfig struct {
	ThresholdBps      float64 `yaml:"thresholdBps"`      // price deviation vs last anchor
	CooldownSec       float64 `yaml:"cooldownSec"`       // min seconds between commits
	HealthyStreakMin  int     `yaml:"healthyStreakMin"`  // calm frames required before auto commit
	MinTargetDeltaBps float64 `yaml:"minTargetDeltaBps"` // churn guard on target updates
}

// AomqConfig controls the degraded-quote mode.
type AomqConfig struct {
	Enabled            bool    `yaml:"enabled"`
	MinQuoteNotional   float64 `yaml:"minQuoteNotional"`
	EmergencySpreadBps float64 `yaml:"emergencySpreadBps"`
	FloorEpsilonPct    float64 `yaml:"floorEpsilonPct"` // proximity band above the floor, e.g. 0.05
}

// SnapshotConfig bounds the preview snapshot age and points at the optional
// sqlite history file.
type SnapshotConfig struct {
	MaxAgeSec   float64 `yaml:"maxAgeSec"`
	Strict      bool    `yaml:"strict"`
	HistoryPath string  `yaml:"historyPath"` // empty disables persistence
}

// ServerConfig configures the HTTP surface and metrics listener.
type ServerConfig struct {
	Addr                string  `yaml:"addr"`
	MetricsAddr         string  `yaml:"metricsAddr"`
	RebalanceRatePerMin float64 `yaml:"rebalanceRatePerMin"`
	RebalanceBurst      int     `yaml:"rebalanceBurst"`
}

// Default returns a Params value with every knob at its shipped default.
func Default() Params {
	return Params{
		Env: "dev",
		Pool: PoolConfig{
			BaseSymbol:  "BASE",
			QuoteSymbol: "QUOTE",
		},
		Oracle: OracleConfig{
			MaxAgeSec:          30,
			SecondaryMaxAgeSec: 60,
			PollIntervalMs:     500,
			AcceptBps:          30,
			SoftBps:            75,
			HardBps:            150,
			HaircutMinBps:      3,
			HaircutSlopeBps:    0.2,
			HealthyFrames:      3,
			EmaLambda:          0.1,
			SigmaLambda:        0.06,
		},
		Fees: FeeConfig{
			BaseBps:      4,
			GlobalCapBps: 150,
			Confidence: ConfidenceFee{
				Enabled:         true,
				SpreadWeight:    0.4,
				SigmaWeight:     0.4,
				SecondaryWeight: 0.2,
				SpreadCapBps:    40,
				SigmaCapBps:     40,
				SecondaryCapBps: 40,
			},
			Size: SizeFee{
				Enabled:           true,
				LinBps:            12,
				QuadBps:           6,
				CapBps:            30,
				ReferenceNotional: 10_000,
			},
			Tilt: InventoryTilt{
				Enabled:      true,
				CoefBps:      25,
				SpreadWeight: 1.0,
				ConfWeight:   1.0,
				CapBps:       15,
			},
			Floor: BboFloor{
				Enabled:      true,
				AlphaBbo:     0.5,
				BetaFloorBps: 6,
			},
			Vol: VolSurcharge{
				Enabled:         true,
				Kappa:           0.8,
				CapBps:          25,
				TTLSeconds:      2,
				ToxicityBiasBps: 5,
			},
			Rebate: Rebate{
				Enabled: false,
				Bps:     3,
			},
			LadderMultipliers: []float64{1, 2, 5, 10},
		},
		Recenter: RecenterConfig{
			ThresholdBps:      750,
			CooldownSec:       3600,
			HealthyStreakMin:  3,
			MinTargetDeltaBps: 10,
		},
		Aomq: AomqConfig{
			Enabled:            true,
			MinQuoteNotional:   100,
			EmergencySpreadBps: 60,
			FloorEpsilonPct:    0.05,
		},
		Snapshot: SnapshotConfig{
			MaxAgeSec: 120,
			Strict:    true,
		},
		Server: ServerConfig{
			Addr:                ":8080",
			MetricsAddr:         ":9100",
			RebalanceRatePerMin: 2,
			RebalanceBurst:      1,
		},
	}
}
