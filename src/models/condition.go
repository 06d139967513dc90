package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Validate() error {
	switch d {
	case DirectionLong, DirectionShort:
		return nil
	default:
		return fmt.Errorf("invalid direction: %s", d)
	}
}

type Operator string

const (
	OperatorGreaterThan        Operator = ">"
	OperatorGreaterThanOrEqual Operator = ">="
	OperatorLessThan           Operator = "<"
	OperatorLessThanOrEqual    Operator = "<="
	OperatorEqual              Operator = "=="
	OperatorNotEqual           Operator = "!="
)

func (o Operator) Validate() error {
	switch o {
	case OperatorGreaterThan, OperatorGreaterThanOrEqual, OperatorLessThan, OperatorLessThanOrEqual, OperatorEqual, OperatorNotEqual:
		return nil
	default:
		return fmt.Errorf("invalid operator: %s", o)
	}
}

// Condition is either an IndicatorSetup, which instructs the indicator
// evaluator to attach a column, or a Comparison, which is evaluated per bar.
type Condition interface {
	isCondition()
}

// IndicatorSetup requests an indicator column. It is informational for the
// simulation itself: only Comparison entries are evaluated.
type IndicatorSetup struct {
	Indicator   string
	Params      IndicatorParams
	OutputAlias string
}

func (IndicatorSetup) isCondition() {}

// Comparison compares a bar column against a fixed threshold.
type Comparison struct {
	Variable  string
	Operator  Operator
	Threshold float64
}

func (Comparison) isCondition() {}

// IndicatorParams holds an indicator's tunable parameters. Values remember
// whether they were written as integers so the optimizer can classify them.
type IndicatorParams map[string]ParamValue

// ParamValue is a numeric indicator parameter. IsInt records the lexical
// kind of the source value (14 vs 14.0), which drives search-space typing.
type ParamValue struct {
	Value float64
	IsInt bool
}

func IntParam(v int) ParamValue { return ParamValue{Value: float64(v), IsInt: true} }

func FloatParam(v float64) ParamValue { return ParamValue{Value: v} }

func (p ParamValue) Int() int { return int(p.Value) }

func (p ParamValue) MarshalJSON() ([]byte, error) {
	if p.IsInt {
		return json.Marshal(int(p.Value))
	}
	return json.Marshal(p.Value)
}

func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("indicator param must be numeric: %w", err)
	}

	v, err := num.Float64()
	if err != nil {
		return err
	}

	p.Value = v
	p.IsInt = !strings.ContainsAny(num.String(), ".eE")
	return nil
}

func (p ParamValue) MarshalYAML() (interface{}, error) {
	if p.IsInt {
		return int(p.Value), nil
	}
	return p.Value, nil
}

func (p *ParamValue) UnmarshalYAML(node *yaml.Node) error {
	var i int
	if err := node.Decode(&i); err == nil {
		p.Value = float64(i)
		p.IsInt = true
		return nil
	}

	var f float64
	if err := node.Decode(&f); err != nil {
		return fmt.Errorf("indicator param must be numeric: %w", err)
	}

	p.Value = f
	p.IsInt = false
	return nil
}

// ConditionList is an ordered sequence of conditions. The wire format is a
// list of flat objects: an "indicator" key marks a setup, an "operator" key
// marks a comparison.
type ConditionList []Condition

type conditionDTO struct {
	Indicator string          `json:"indicator,omitempty" yaml:"indicator,omitempty"`
	Params    IndicatorParams `json:"params,omitempty" yaml:"params,omitempty"`
	Variable  string          `json:"variable,omitempty" yaml:"variable,omitempty"`
	Operator  Operator        `json:"operator,omitempty" yaml:"operator,omitempty"`
	Threshold *float64        `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

func (dto conditionDTO) toCondition() (Condition, error) {
	if dto.Indicator != "" {
		return IndicatorSetup{
			Indicator:   dto.Indicator,
			Params:      dto.Params,
			OutputAlias: dto.Variable,
		}, nil
	}

	if dto.Operator != "" {
		var threshold float64
		if dto.Threshold != nil {
			threshold = *dto.Threshold
		}

		return Comparison{
			Variable:  dto.Variable,
			Operator:  dto.Operator,
			Threshold: threshold,
		}, nil
	}

	return nil, fmt.Errorf("condition requires either an indicator or an operator: %+v", dto)
}

func toConditionDTO(c Condition) conditionDTO {
	switch v := c.(type) {
	case IndicatorSetup:
		return conditionDTO{
			Indicator: v.Indicator,
			Params:    v.Params,
			Variable:  v.OutputAlias,
		}
	case Comparison:
		threshold := v.Threshold
		return conditionDTO{
			Variable:  v.Variable,
			Operator:  v.Operator,
			Threshold: &threshold,
		}
	default:
		return conditionDTO{}
	}
}

func (l ConditionList) MarshalJSON() ([]byte, error) {
	dtos := make([]conditionDTO, len(l))
	for i, c := range l {
		dtos[i] = toConditionDTO(c)
	}
	return json.Marshal(dtos)
}

func (l *ConditionList) UnmarshalJSON(data []byte) error {
	var dtos []conditionDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return err
	}

	conditions := make(ConditionList, 0, len(dtos))
	for _, dto := range dtos {
		c, err := dto.toCondition()
		if err != nil {
			return err
		}
		conditions = append(conditions, c)
	}

	*l = conditions
	return nil
}

func (l ConditionList) MarshalYAML() (interface{}, error) {
	dtos := make([]conditionDTO, len(l))
	for i, c := range l {
		dtos[i] = toConditionDTO(c)
	}
	return dtos, nil
}

func (l *ConditionList) UnmarshalYAML(node *yaml.Node) error {
	var dtos []conditionDTO
	if err := node.Decode(&dtos); err != nil {
		return err
	}

	conditions := make(ConditionList, 0, len(dtos))
	for _, dto := range dtos {
		c, err := dto.toCondition()
		if err != nil {
			return err
		}
		conditions = append(conditions, c)
	}

	*l = conditions
	return nil
}

// Setups returns the indicator setups in order.
func (l ConditionList) Setups() []IndicatorSetup {
	var setups []IndicatorSetup
	for _, c := range l {
		if s, ok := c.(IndicatorSetup); ok {
			setups = append(setups, s)
		}
	}
	return setups
}

// Comparisons returns the comparison conditions in order.
func (l ConditionList) Comparisons() []Comparison {
	var comparisons []Comparison
	for _, c := range l {
		if cmp, ok := c.(Comparison); ok {
			comparisons = append(comparisons, cmp)
		}
	}
	return comparisons
}

func (l ConditionList) clone() ConditionList {
	if l == nil {
		return nil
	}

	out := make(ConditionList, len(l))
	for i, c := range l {
		switch v := c.(type) {
		case IndicatorSetup:
			params := make(IndicatorParams, len(v.Params))
			for k, p := range v.Params {
				params[k] = p
			}
			v.Params = params
			out[i] = v
		case Comparison:
			out[i] = v
		}
	}
	return out
}
