// Package metrics provides Prometheus metrics for the quoting engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine groups the engine-level collectors.
type Engine struct {
	QuotesTotal     *prometheus.CounterVec // result: ok|error
	SwapsTotal      *prometheus.CounterVec // result: ok|partial|rejected
	FeeBps          prometheus.Histogram
	DivergenceBps   prometheus.Histogram
	AomqActivations *prometheus.CounterVec // reason
	RecenterCommits prometheus.Counter
	OracleFallbacks *prometheus.CounterVec // source
	BaseReserve     prometheus.Gauge
	QuoteReserve    prometheus.Gauge
	TargetBase      prometheus.Gauge
}

// NewEngine registers the engine collectors on the given registerer
// (nil uses the default registry).
func NewEngine(reg prometheus.Registerer) *Engine {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Engine{
		QuotesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qe_quotes_total",
			Help: "Quote requests by result.",
		}, []string{"result"}),
		SwapsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qe_swaps_total",
			Help: "Swap requests by result.",
		}, []string{"result"}),
		FeeBps: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "qe_fee_bps",
			Help:    "Final fee rate charged, in bps.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		DivergenceBps: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "qe_divergence_bps",
			Help:    "Cross-source deviation observed per call, in bps.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		AomqActivations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qe_aomq_activations_total",
			Help: "Degraded-quote activations by trigger reason.",
		}, []string{"reason"}),
		RecenterCommits: factory.NewCounter(prometheus.CounterOpts{
			Name: "qe_recenter_commits_total",
			Help: "Committed inventory target updates.",
		}),
		OracleFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qe_oracle_fallbacks_total",
			Help: "Reads served by a non-preferred source.",
		}, []string{"source"}),
		BaseReserve: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qe_base_reserve",
			Help: "Current base reserve.",
		}),
		QuoteReserve: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qe_quote_reserve",
			Help: "Current quote reserve.",
		}),
		TargetBase: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qe_target_base",
			Help: "Governance target base split.",
		}),
	}
}

// Serve exposes /metrics on addr. Empty addr disables the listener.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
