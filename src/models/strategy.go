package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StrategySpec is a declarative trading strategy. A spec is immutable per
// simulation run: the optimizer produces new specs, it never mutates one in
// place.
type StrategySpec struct {
	ID              uuid.UUID     `json:"strategy_id" yaml:"strategy_id"`
	Name            string        `json:"name" yaml:"name"`
	Direction       Direction     `json:"direction" yaml:"direction"`
	Symbol          string        `json:"symbol" yaml:"symbol"`
	Timeframe       string        `json:"timeframe" yaml:"timeframe"`
	EntryConditions ConditionList `json:"entry_conditions" yaml:"entry_conditions"`
	ExitConditions  ConditionList `json:"exit_conditions" yaml:"exit_conditions"`

	// StopLossPct and TargetProfitPct are percentages; 0 disables the check.
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TargetProfitPct float64 `json:"target_profit_pct" yaml:"target_profit_pct"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

func (s *StrategySpec) Validate() error {
	if s.Symbol == "" {
		return NewValidationError("strategy symbol is required")
	}

	if s.Timeframe == "" {
		return NewValidationError("strategy timeframe is required")
	}

	if err := s.Direction.Validate(); err != nil {
		return NewValidationError(err.Error())
	}

	if len(s.EntryConditions.Comparisons()) == 0 {
		return NewValidationError("strategy requires at least one entry comparison")
	}

	for _, cmp := range append(s.EntryConditions.Comparisons(), s.ExitConditions.Comparisons()...) {
		if cmp.Variable == "" {
			return NewValidationError("comparison condition is missing a variable")
		}
		if err := cmp.Operator.Validate(); err != nil {
			return NewValidationError(fmt.Sprintf("comparison on %s: %v", cmp.Variable, err))
		}
	}

	for _, setup := range append(s.EntryConditions.Setups(), s.ExitConditions.Setups()...) {
		if setup.OutputAlias == "" {
			return NewValidationError(fmt.Sprintf("indicator setup %s is missing an output variable", setup.Indicator))
		}
	}

	if s.StopLossPct < 0 {
		return NewValidationError("stop_loss_pct cannot be negative")
	}

	if s.TargetProfitPct < 0 {
		return NewValidationError("target_profit_pct cannot be negative")
	}

	return nil
}

// IndicatorSetups returns every indicator setup referenced by the strategy,
// entry conditions first.
func (s *StrategySpec) IndicatorSetups() []IndicatorSetup {
	return append(s.EntryConditions.Setups(), s.ExitConditions.Setups()...)
}

// Variables returns every column name referenced by a comparison.
func (s *StrategySpec) Variables() []string {
	var variables []string
	for _, cmp := range append(s.EntryConditions.Comparisons(), s.ExitConditions.Comparisons()...) {
		variables = append(variables, cmp.Variable)
	}
	return variables
}

// Clone returns an independent deep copy of the spec.
func (s *StrategySpec) Clone() StrategySpec {
	out := *s
	out.EntryConditions = s.EntryConditions.clone()
	out.ExitConditions = s.ExitConditions.clone()
	return out
}
