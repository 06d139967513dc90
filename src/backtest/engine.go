package backtest

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/models"
)

const (
	// DefaultWarmupBars is the number of bars skipped before entry
	// conditions may be evaluated, so indicators have enough history.
	DefaultWarmupBars = 30

	// DefaultFailsafeExitBars forces a position closed after it has been
	// held this many bars without any other exit firing.
	DefaultFailsafeExitBars = 20
)

// Engine is the bar-by-bar simulation state machine. It is purely
// sequential: bars are processed in chronological order with carried-forward
// state, and a single Engine value may be shared across goroutines because
// all mutable state lives in the per-run simulation.
type Engine struct {
	WarmupBars       int
	FailsafeExitBars int

	// Trace records every condition evaluation on the result. Off by
	// default; it grows with bars × conditions.
	Trace bool
}

func NewEngine() *Engine {
	return &Engine{
		WarmupBars:       DefaultWarmupBars,
		FailsafeExitBars: DefaultFailsafeExitBars,
	}
}

type simulation struct {
	capital  float64
	position *models.Position
	trades   []models.Trade
	metrics  *metricsTracker
	trace    *[]models.ConditionTraceEntry
}

// Run simulates the strategy over the bar series and returns the completed
// result. The spec and bars are never modified.
func (e *Engine) Run(spec models.StrategySpec, bars []models.Bar, initialCapital float64) (*models.BacktestResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if len(bars) == 0 {
		return nil, models.NewDataError("empty bar series", nil)
	}

	if err := validateBars(spec, bars); err != nil {
		return nil, err
	}

	entryComparisons := spec.EntryConditions.Comparisons()
	exitComparisons := spec.ExitConditions.Comparisons()

	sim := &simulation{
		capital: initialCapital,
		metrics: newMetricsTracker(len(bars)),
	}
	if e.Trace {
		sim.trace = &[]models.ConditionTraceEntry{}
	}

	log.Debugf("running backtest for %s: %d bars, %d entry / %d exit comparisons", spec.Symbol, len(bars), len(entryComparisons), len(exitComparisons))

	for i, bar := range bars {
		sim.metrics.observe(i, sim.portfolioValue(bar.Close, spec.Direction))

		if sim.position == nil {
			if i < e.WarmupBars {
				continue
			}

			if e.evaluateAny(entryComparisons, bar, i, sim.trace) {
				sim.position = &models.Position{
					EntryPrice:    bar.Close,
					EntryDate:     bar.Timestamp,
					EntryBarIndex: i,
					Size:          1,
				}
				log.Debugf("bar %d: entered %s at %.4f", i, spec.Direction, bar.Close)
			}
			continue
		}

		profitPct, lossPct := openProfit(spec.Direction, sim.position.EntryPrice, bar.Close)

		exit := false
		switch {
		case spec.TargetProfitPct > 0 && profitPct >= spec.TargetProfitPct:
			log.Debugf("bar %d: target profit reached: %.2f%%", i, profitPct)
			exit = true
		case spec.StopLossPct > 0 && lossPct >= spec.StopLossPct:
			log.Debugf("bar %d: stop loss triggered: %.2f%%", i, lossPct)
			exit = true
		case e.evaluateAny(exitComparisons, bar, i, sim.trace):
			exit = true
		case i-sim.position.EntryBarIndex >= e.FailsafeExitBars:
			log.Debugf("bar %d: failsafe exit after %d bars in position", i, i-sim.position.EntryBarIndex)
			exit = true
		}

		if exit {
			sim.closePosition(spec.Direction, bar)
		}
	}

	finalValue := sim.portfolioValue(bars[len(bars)-1].Close, spec.Direction)

	winners := 0
	for _, t := range sim.trades {
		if t.IsWinner() {
			winners++
		}
	}

	winRate := 0.0
	if len(sim.trades) > 0 {
		winRate = float64(winners) / float64(len(sim.trades))
	}

	result := &models.BacktestResult{
		ID:             uuid.New(),
		StrategyID:     spec.ID,
		StartDate:      bars[0].Timestamp,
		EndDate:        bars[len(bars)-1].Timestamp,
		InitialCapital: initialCapital,
		FinalValue:     finalValue,
		Returns:        (finalValue - initialCapital) / initialCapital * 100,
		WinRate:        winRate,
		MaxDrawdown:    sim.metrics.maxDrawdown,
		SharpeRatio:    sim.metrics.sharpe,
		TradeCount:     len(sim.trades),
		WinningTrades:  winners,
		LosingTrades:   len(sim.trades) - winners,
		Trades:         sim.trades,
		EquityCurve:    sim.metrics.equity,
		ReturnsSeries:  sim.metrics.returns,
	}
	if sim.trace != nil {
		result.ConditionTrace = *sim.trace
	}

	log.Debugf("backtest complete: returns=%.2f%% win_rate=%.2f sharpe=%.2f trades=%d", result.Returns, result.WinRate, result.SharpeRatio, result.TradeCount)

	return result, nil
}

// validateBars fails fast before the bar loop: price columns must be
// finite and every comparison variable must resolve on every bar.
func validateBars(spec models.StrategySpec, bars []models.Bar) error {
	variables := spec.Variables()

	allInvalid := true
	for i, bar := range bars {
		if math.IsNaN(bar.Close) || math.IsInf(bar.Close, 0) {
			return models.NewDataError(fmt.Sprintf("non-finite close price at bar %d", i), nil)
		}
		if bar.IsValid() {
			allInvalid = false
		}

		for _, v := range variables {
			if !bar.HasColumn(v) {
				return &models.MissingIndicatorError{Variable: v}
			}
		}
	}

	if allInvalid {
		return models.NewDataError("close prices are all zero", nil)
	}

	return nil
}

// portfolioValue is realized capital plus the open position marked to the
// current close.
func (s *simulation) portfolioValue(closePrice float64, direction models.Direction) float64 {
	if s.position == nil {
		return s.capital
	}

	points := closePrice - s.position.EntryPrice
	if direction == models.DirectionShort {
		points = s.position.EntryPrice - closePrice
	}

	return s.capital + points*s.position.Size
}

func (s *simulation) closePosition(direction models.Direction, bar models.Bar) {
	pos := s.position
	if pos == nil {
		// exit must never be evaluated while flat
		panic("backtest: closePosition called with no open position")
	}

	var points, pct float64
	if direction == models.DirectionLong {
		points = bar.Close - pos.EntryPrice
		pct = (bar.Close/pos.EntryPrice - 1) * 100
	} else {
		points = pos.EntryPrice - bar.Close
		pct = (pos.EntryPrice/bar.Close - 1) * 100
	}

	s.trades = append(s.trades, models.Trade{
		EntryDate:    pos.EntryDate,
		EntryPrice:   pos.EntryPrice,
		ExitDate:     bar.Timestamp,
		ExitPrice:    bar.Close,
		ProfitPoints: points,
		ProfitPct:    pct,
		Size:         pos.Size,
	})

	s.capital += points * pos.Size
	s.position = nil
}

// openProfit returns the direction-aware unrealized profit and loss
// percentages for an open position.
func openProfit(direction models.Direction, entryPrice, closePrice float64) (profitPct, lossPct float64) {
	if direction == models.DirectionLong {
		profitPct = (closePrice/entryPrice - 1) * 100
		lossPct = (1 - closePrice/entryPrice) * 100
	} else {
		profitPct = (1 - closePrice/entryPrice) * 100
		lossPct = (closePrice/entryPrice - 1) * 100
	}
	return profitPct, lossPct
}
