package backtest

import (
	"github.com/stratlab/backtest-service/src/models"
)

// EvaluateComparison evaluates one comparison condition against a bar. The
// error is a MissingIndicatorError when the variable does not resolve; the
// engine rules this out up front by validating every variable before the
// bar loop.
func EvaluateComparison(cmp models.Comparison, bar models.Bar) (bool, float64, error) {
	value, found := bar.Column(cmp.Variable)
	if !found {
		return false, 0, &models.MissingIndicatorError{Variable: cmp.Variable}
	}

	return compare(value, cmp.Operator, cmp.Threshold), value, nil
}

func compare(value float64, op models.Operator, threshold float64) bool {
	switch op {
	case models.OperatorGreaterThan:
		return value > threshold
	case models.OperatorGreaterThanOrEqual:
		return value >= threshold
	case models.OperatorLessThan:
		return value < threshold
	case models.OperatorLessThanOrEqual:
		return value <= threshold
	case models.OperatorEqual:
		return value == threshold
	case models.OperatorNotEqual:
		return value != threshold
	default:
		return false
	}
}

// evaluateAny applies a list of comparisons as a logical OR: the first
// matching condition wins.
func (e *Engine) evaluateAny(comparisons []models.Comparison, bar models.Bar, barIndex int, trace *[]models.ConditionTraceEntry) bool {
	for _, cmp := range comparisons {
		matched, value, err := EvaluateComparison(cmp, bar)
		if err != nil {
			// variables are resolved before the bar loop starts
			panic(err)
		}

		if trace != nil {
			*trace = append(*trace, models.ConditionTraceEntry{
				BarIndex:  barIndex,
				Variable:  cmp.Variable,
				Operator:  cmp.Operator,
				Threshold: cmp.Threshold,
				Value:     value,
				Matched:   matched,
			})
		}

		if matched {
			return true
		}
	}

	return false
}
