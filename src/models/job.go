package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusStarting  JobStatus = "starting"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Iteration records one optimization trial. Params holds clamped domain
// values keyed by descriptor name; categorical values are choice indices.
type Iteration struct {
	Trial       int                `json:"iteration"`
	Params      map[string]float64 `json:"params"`
	Returns     float64            `json:"returns"`
	WinRate     float64            `json:"win_rate"`
	MaxDrawdown float64            `json:"max_drawdown"`
	SharpeRatio float64            `json:"sharpe_ratio"`
	Objective   float64            `json:"objective_value"`
	Failed      bool               `json:"failed,omitempty"`
}

// ComparisonResult holds optimized-minus-baseline metric deltas, except
// for drawdown which is baseline-minus-optimized so that positive always
// means better.
type ComparisonResult struct {
	Returns     float64 `json:"returns"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
}

// OptimizationJob is the state of one asynchronous optimization run. It is
// mutated only by the goroutine that owns it; readers get deep copies from
// the registry.
type OptimizationJob struct {
	ID            uuid.UUID             `json:"optimization_id"`
	StrategyID    uuid.UUID             `json:"strategy_id"`
	Status        JobStatus             `json:"status"`
	Progress      int                   `json:"progress"`
	Error         string                `json:"error,omitempty"`
	Iterations    []Iteration           `json:"iteration_results"`
	BestParams    map[string]float64    `json:"best_params,omitempty"`
	BestObjective *float64              `json:"best_result,omitempty"`
	Space         []ParameterDescriptor `json:"search_space,omitempty"`
	Baseline      *BacktestResult       `json:"baseline,omitempty"`
	Optimized     *BacktestResult       `json:"optimized,omitempty"`
	Comparison    *ComparisonResult     `json:"comparison,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
}
