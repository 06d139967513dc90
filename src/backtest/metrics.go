package backtest

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/stratlab/backtest-service/src/models"
)

const annualizationFactor = 252

// metricsTracker accumulates the per-bar performance aggregates: equity
// curve, per-bar returns, running max drawdown and running Sharpe ratio.
type metricsTracker struct {
	equity      []models.EquityPoint
	returns     []float64
	peak        float64
	maxDrawdown float64
	sharpe      float64
}

func newMetricsTracker(barCount int) *metricsTracker {
	return &metricsTracker{
		equity:  make([]models.EquityPoint, 0, barCount),
		returns: make([]float64, 0, barCount),
	}
}

// observe appends the portfolio value for one bar and refreshes every
// aggregate. Call order is the bar order; one call per bar.
func (m *metricsTracker) observe(barIndex int, value float64) {
	ret := 0.0
	if len(m.equity) > 0 {
		prev := m.equity[len(m.equity)-1].Value
		if prev != 0 {
			ret = value/prev - 1
		}
	}
	m.returns = append(m.returns, ret)
	m.equity = append(m.equity, models.EquityPoint{BarIndex: barIndex, Value: value})

	if value > m.peak {
		m.peak = value
	}
	if m.peak > 0 {
		drawdown := (m.peak - value) / m.peak * 100
		if drawdown > m.maxDrawdown {
			m.maxDrawdown = drawdown
		}
	}

	m.sharpe = m.computeSharpe()
}

// computeSharpe annualizes mean/stddev of the per-bar returns. A zero or
// NaN standard deviation yields exactly 0, never NaN or infinity.
func (m *metricsTracker) computeSharpe() float64 {
	if len(m.returns) < 2 {
		return 0
	}

	mean, err := stats.Mean(m.returns)
	if err != nil {
		return 0
	}

	stddev, err := stats.StandardDeviation(m.returns)
	if err != nil {
		return 0
	}

	if stddev <= 0 || math.IsNaN(stddev) {
		return 0
	}

	return mean / stddev * math.Sqrt(annualizationFactor)
}
