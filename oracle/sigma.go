package oracle

import (
	"math"
	"sync"
)

// SigmaEstimator tracks an EWMA of squared log returns and reports the
// volatility estimate in bps. It feeds the confidence blend and the
// volatility surcharge.
type SigmaEstimator struct {
	mu      sync.RWMutex
	lambda  float64
	lastMid float64
	ewmaVar float64
	samples int
}

// NewSigmaEstimator builds an estimator with smoothing factor lambda in (0,1].
func NewSigmaEstimator(lambda float64) *SigmaEstimator {
	return &SigmaEstimator{lambda: lambda}
}

// Push absorbs a mid observation.
func (s *SigmaEstimator) Push(mid float64) {
	if mid <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastMid > 0 {
		r := math.Log(mid / s.lastMid)
		s.ewmaVar = s.lambda*r*r + (1-s.lambda)*s.ewmaVar
		s.samples++
	}
	s.lastMid = mid
}

// SigmaBps returns the current volatility estimate in basis points.
// Zero until at least one return has been observed.
func (s *SigmaEstimator) SigmaBps() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.samples == 0 {
		return 0
	}
	return math.Sqrt(s.ewmaVar) * 1e4
}
