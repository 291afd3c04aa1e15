package fees

import (
	"math"
	"sort"
	"sync"
)

// DefaultCalibratedRate is the rate reported before any fills have been
// observed.
const DefaultCalibratedRate = 0.002

// Calibrator estimates the effective fee rate from executed fills. Every fill
// contributes one implied rate, the absolute deviation of the execution price
// from the oracle midpoint as a fraction of the oracle. The calibrated rate
// is the 95th percentile of all implied rates observed so far.
type Calibrator struct {
	mu    sync.RWMutex
	rates []float64
}

// NewCalibrator returns an empty calibrator.
func NewCalibrator() *Calibrator {
	return &Calibrator{
		rates: make([]float64, 0, 256),
	}
}

// Observe records the implied fee rate of one fill. Observations against a
// non-positive oracle price are discarded.
func (c *Calibrator) Observe(execPrice, oraclePrice float64) {
	if oraclePrice <= 0 {
		return
	}

	rate := math.Abs(execPrice-oraclePrice) / oraclePrice

	c.mu.Lock()
	c.rates = append(c.rates, rate)
	p95 := c.p95Locked()
	c.mu.Unlock()

	CalibratorObservationsTotal.Inc()
	CalibratedFeeRate.Set(p95)
}

// Observations returns the number of implied rates recorded so far.
func (c *Calibrator) Observations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.rates)
}

// CalibratedRate returns the 95th percentile of observed implied rates, or
// DefaultCalibratedRate when nothing has been observed yet.
func (c *Calibrator) CalibratedRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.p95Locked()
}

// p95Locked computes the percentile. Callers must hold at least a read lock.
func (c *Calibrator) p95Locked() float64 {
	if len(c.rates) == 0 {
		return DefaultCalibratedRate
	}

	sorted := make([]float64, len(c.rates))
	copy(sorted, c.rates)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[idx]
}
