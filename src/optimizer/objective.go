package optimizer

import "github.com/stratlab/backtest-service/src/models"

// FailedTrialObjective is the sentinel recorded for a trial whose
// simulation failed. It is large enough that a failed trial can never win.
const FailedTrialObjective = 1e6

// ObjectiveWeights blends backtest metrics into the scalar the search
// minimizes. The defaults mirror the historical tuning of this service;
// callers may override them per optimization.
type ObjectiveWeights struct {
	Returns     float64 `json:"returns"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
}

func DefaultObjectiveWeights() ObjectiveWeights {
	return ObjectiveWeights{
		Returns:     0.5,
		WinRate:     0.2,
		MaxDrawdown: 0.1,
		SharpeRatio: 0.2,
	}
}

func (w ObjectiveWeights) IsZero() bool {
	return w == ObjectiveWeights{}
}

// Score converts a backtest summary into the minimized objective: the
// negative of a weighted blend, so better backtests score lower.
func (w ObjectiveWeights) Score(s models.BacktestSummary) float64 {
	return -(w.Returns*s.Returns +
		w.WinRate*s.WinRate*100 +
		w.MaxDrawdown*(100-s.MaxDrawdown) +
		w.SharpeRatio*s.SharpeRatio)
}
