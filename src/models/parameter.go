package models

import (
	"fmt"
	"math"
)

type ParameterKind string

const (
	ParameterInteger     ParameterKind = "integer"
	ParameterReal        ParameterKind = "real"
	ParameterCategorical ParameterKind = "categorical"
)

type ParamSection string

const (
	SectionEntry ParamSection = "entry"
	SectionExit  ParamSection = "exit"
	SectionRoot  ParamSection = "root"
)

type ParamField string

const (
	FieldIndicatorParam ParamField = "param"
	FieldThreshold      ParamField = "threshold"
	FieldStopLoss       ParamField = "stop_loss_pct"
	FieldTargetProfit   ParamField = "target_profit_pct"
)

// ParamPath locates one tunable leaf inside a StrategySpec.
type ParamPath struct {
	Section ParamSection `json:"section"`
	Index   int          `json:"index"`
	Field   ParamField   `json:"field"`
	Param   string       `json:"param,omitempty"`
}

func (p ParamPath) String() string {
	switch p.Field {
	case FieldIndicatorParam:
		return fmt.Sprintf("%s[%d].params.%s", p.Section, p.Index, p.Param)
	case FieldThreshold:
		return fmt.Sprintf("%s[%d].threshold", p.Section, p.Index)
	default:
		return string(p.Field)
	}
}

// ParameterDescriptor is one bounded, typed dimension of a strategy's
// tunable configuration. Numeric kinds use Min/Max; categorical kinds use
// Choices with Current holding the index of the current choice.
type ParameterDescriptor struct {
	Name     string        `json:"name"`
	Path     ParamPath     `json:"path"`
	Kind     ParameterKind `json:"kind"`
	Min      float64       `json:"min,omitempty"`
	Max      float64       `json:"max,omitempty"`
	Choices  []string      `json:"choices,omitempty"`
	Current  float64       `json:"current"`
	Decimals int           `json:"decimals,omitempty"`
}

// Clamp constrains a raw search value into the descriptor's domain,
// rounding integers to whole numbers, reals to Decimals places, and
// categorical values to a valid choice index.
func (d ParameterDescriptor) Clamp(value float64) float64 {
	switch d.Kind {
	case ParameterInteger:
		return math.Max(d.Min, math.Min(math.Round(value), d.Max))
	case ParameterCategorical:
		idx := math.Floor(value)
		return math.Max(0, math.Min(idx, float64(len(d.Choices)-1)))
	default:
		return toFixed(math.Max(d.Min, math.Min(value, d.Max)), d.Decimals)
	}
}

// FromUnit maps a unit-interval sample onto the descriptor's domain.
func (d ParameterDescriptor) FromUnit(u float64) float64 {
	u = math.Max(0, math.Min(u, 1))
	if d.Kind == ParameterCategorical {
		return d.Clamp(u * float64(len(d.Choices)))
	}
	return d.Clamp(d.Min + u*(d.Max-d.Min))
}

// ToUnit maps a domain value back into the unit interval.
func (d ParameterDescriptor) ToUnit(value float64) float64 {
	if d.Kind == ParameterCategorical {
		if len(d.Choices) <= 1 {
			return 0
		}
		return value / float64(len(d.Choices)-1)
	}

	if d.Max == d.Min {
		return 0
	}
	return (value - d.Min) / (d.Max - d.Min)
}

// Choice resolves a clamped categorical value to its choice name.
func (d ParameterDescriptor) Choice(value float64) string {
	if len(d.Choices) == 0 {
		return ""
	}
	return d.Choices[int(d.Clamp(value))]
}

func toFixed(num float64, decimals int) float64 {
	if decimals <= 0 {
		return num
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(num*scale) / scale
}
