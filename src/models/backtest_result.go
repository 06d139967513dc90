package models

import (
	"time"

	"github.com/google/uuid"
)

// BacktestSummary is the metric subset used by the optimizer's objective and
// by result comparisons.
type BacktestSummary struct {
	Returns     float64 `json:"returns"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	TradeCount  int     `json:"trade_count"`
}

// ConditionTraceEntry records one condition evaluation, kept only when
// tracing is enabled on the engine.
type ConditionTraceEntry struct {
	BarIndex  int      `json:"bar_index"`
	Variable  string   `json:"variable"`
	Operator  Operator `json:"operator"`
	Threshold float64  `json:"threshold"`
	Value     float64  `json:"value"`
	Matched   bool     `json:"matched"`
}

// BacktestResult is the immutable outcome of one simulation run.
type BacktestResult struct {
	ID             uuid.UUID     `json:"backtest_id"`
	StrategyID     uuid.UUID     `json:"strategy_id"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	InitialCapital float64       `json:"initial_capital"`
	FinalValue     float64       `json:"final_value"`
	Returns        float64       `json:"returns"`
	WinRate        float64       `json:"win_rate"`
	MaxDrawdown    float64       `json:"max_drawdown"`
	SharpeRatio    float64       `json:"sharpe_ratio"`
	TradeCount     int           `json:"trade_count"`
	WinningTrades  int           `json:"winning_trades"`
	LosingTrades   int           `json:"losing_trades"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
	ReturnsSeries  []float64     `json:"returns_series"`

	ConditionTrace []ConditionTraceEntry `json:"condition_trace,omitempty"`
}

func (r *BacktestResult) Summary() BacktestSummary {
	return BacktestSummary{
		Returns:     r.Returns,
		WinRate:     r.WinRate,
		MaxDrawdown: r.MaxDrawdown,
		SharpeRatio: r.SharpeRatio,
		TradeCount:  r.TradeCount,
	}
}
