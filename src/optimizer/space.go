package optimizer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/stratlab/backtest-service/src/models"
)

// maTypeChoices are the tunable moving-average types, in talib code order:
// the index of a choice is also its integer code.
var maTypeChoices = []string{"SMA", "EMA", "WMA", "DEMA", "TEMA", "TRIMA", "KAMA"}

const realDecimals = 4

// BuildSpace walks every tunable numeric leaf of a strategy - indicator
// params and thresholds in entry/exit conditions, then stop loss and target
// profit - and emits one bounded descriptor per leaf. Ordering is stable
// across calls for the same spec.
//
// Leaves whose current value is 0 are skipped: the relative bound
// heuristics would produce a degenerate range for them.
func BuildSpace(spec models.StrategySpec) []models.ParameterDescriptor {
	var space []models.ParameterDescriptor

	space = append(space, conditionParameters(models.SectionEntry, spec.EntryConditions)...)
	space = append(space, conditionParameters(models.SectionExit, spec.ExitConditions)...)

	if d, ok := classify("stop_loss_pct", models.ParamPath{Section: models.SectionRoot, Field: models.FieldStopLoss}, models.FloatParam(spec.StopLossPct)); ok {
		space = append(space, d)
	}
	if d, ok := classify("target_profit_pct", models.ParamPath{Section: models.SectionRoot, Field: models.FieldTargetProfit}, models.FloatParam(spec.TargetProfitPct)); ok {
		space = append(space, d)
	}

	return space
}

func conditionParameters(section models.ParamSection, conditions models.ConditionList) []models.ParameterDescriptor {
	var out []models.ParameterDescriptor

	for i, c := range conditions {
		switch v := c.(type) {
		case models.IndicatorSetup:
			keys := make([]string, 0, len(v.Params))
			for k := range v.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, key := range keys {
				name := fmt.Sprintf("%s_%d_%s_%s", section, i, v.Indicator, key)
				path := models.ParamPath{Section: section, Index: i, Field: models.FieldIndicatorParam, Param: key}
				if d, ok := classify(name, path, v.Params[key]); ok {
					out = append(out, d)
				}
			}
		case models.Comparison:
			name := fmt.Sprintf("%s_%d_%s_threshold", section, i, v.Variable)
			path := models.ParamPath{Section: section, Index: i, Field: models.FieldThreshold}
			if d, ok := classify(name, path, models.FloatParam(v.Threshold)); ok {
				out = append(out, d)
			}
		}
	}

	return out
}

// classify applies the name heuristics, in priority order, to produce a
// typed bounded dimension around the current value.
func classify(name string, path models.ParamPath, current models.ParamValue) (models.ParameterDescriptor, bool) {
	lower := strings.ToLower(name)
	value := current.Value

	if strings.Contains(lower, "matype") {
		idx := value
		if idx < 0 || idx >= float64(len(maTypeChoices)) {
			idx = 0
		}
		return models.ParameterDescriptor{
			Name:    name,
			Path:    path,
			Kind:    models.ParameterCategorical,
			Choices: maTypeChoices,
			Current: math.Floor(idx),
		}, true
	}

	if value == 0 {
		return models.ParameterDescriptor{}, false
	}

	if strings.Contains(lower, "period") {
		return models.ParameterDescriptor{
			Name:    name,
			Path:    path,
			Kind:    models.ParameterInteger,
			Min:     math.Max(2, math.Floor(value*0.5)),
			Max:     math.Floor(value * 2),
			Current: value,
		}, true
	}

	if strings.Contains(lower, "threshold") {
		var min, max float64
		if math.Abs(value) < 10 {
			min = math.Max(-100, value-math.Abs(value)*2)
			max = math.Min(100, value+math.Abs(value)*2)
		} else {
			min = value * 0.5
			max = value * 1.5
		}
		return models.ParameterDescriptor{
			Name:     name,
			Path:     path,
			Kind:     models.ParameterReal,
			Min:      min,
			Max:      max,
			Current:  value,
			Decimals: realDecimals,
		}, true
	}

	if strings.Contains(lower, "limit") || strings.Contains(lower, "acceleration") || strings.Contains(lower, "maximum") {
		return models.ParameterDescriptor{
			Name:     name,
			Path:     path,
			Kind:     models.ParameterReal,
			Min:      math.Max(0.01, value*0.5),
			Max:      math.Min(0.99, value*2),
			Current:  value,
			Decimals: realDecimals,
		}, true
	}

	if current.IsInt {
		return models.ParameterDescriptor{
			Name:    name,
			Path:    path,
			Kind:    models.ParameterInteger,
			Min:     math.Max(1, math.Floor(value*0.5)),
			Max:     math.Floor(value * 2),
			Current: value,
		}, true
	}

	return models.ParameterDescriptor{
		Name:     name,
		Path:     path,
		Kind:     models.ParameterReal,
		Min:      math.Max(0.001, value*0.5),
		Max:      value * 2,
		Current:  value,
		Decimals: realDecimals,
	}, true
}

// Materialize reconstructs a full strategy from named search values by path
// substitution. Values are clamped into their descriptor domains;
// categorical MA types are written back as their fixed integer codes.
func Materialize(spec models.StrategySpec, space []models.ParameterDescriptor, values map[string]float64) (models.StrategySpec, error) {
	out := spec.Clone()

	for _, d := range space {
		raw, found := values[d.Name]
		if !found {
			return models.StrategySpec{}, fmt.Errorf("materialize: missing value for parameter %s", d.Name)
		}

		clamped := d.Clamp(raw)

		value := models.ParamValue{Value: clamped, IsInt: d.Kind != models.ParameterReal}
		if d.Kind == models.ParameterCategorical {
			// choice index is the talib MA-type code
			value = models.IntParam(int(clamped))
		}

		if err := applyValue(&out, d.Path, value); err != nil {
			return models.StrategySpec{}, fmt.Errorf("materialize %s: %w", d.Name, err)
		}
	}

	return out, nil
}

func applyValue(spec *models.StrategySpec, path models.ParamPath, value models.ParamValue) error {
	switch path.Section {
	case models.SectionRoot:
		switch path.Field {
		case models.FieldStopLoss:
			spec.StopLossPct = value.Value
		case models.FieldTargetProfit:
			spec.TargetProfitPct = value.Value
		default:
			return fmt.Errorf("unknown root field %s", path.Field)
		}
		return nil
	case models.SectionEntry:
		return applyConditionValue(spec.EntryConditions, path, value)
	case models.SectionExit:
		return applyConditionValue(spec.ExitConditions, path, value)
	default:
		return fmt.Errorf("unknown section %s", path.Section)
	}
}

func applyConditionValue(conditions models.ConditionList, path models.ParamPath, value models.ParamValue) error {
	if path.Index < 0 || path.Index >= len(conditions) {
		return fmt.Errorf("condition index %d out of range", path.Index)
	}

	switch c := conditions[path.Index].(type) {
	case models.IndicatorSetup:
		if path.Field != models.FieldIndicatorParam {
			return fmt.Errorf("field %s does not apply to an indicator setup", path.Field)
		}
		c.Params[path.Param] = value
		conditions[path.Index] = c
	case models.Comparison:
		if path.Field != models.FieldThreshold {
			return fmt.Errorf("field %s does not apply to a comparison", path.Field)
		}
		c.Threshold = value.Value
		conditions[path.Index] = c
	}

	return nil
}

// ValuesFromUnitPoint maps one point in the unit hypercube onto clamped
// domain values keyed by descriptor name.
func ValuesFromUnitPoint(space []models.ParameterDescriptor, point []float64) map[string]float64 {
	values := make(map[string]float64, len(space))
	for i, d := range space {
		values[d.Name] = d.FromUnit(point[i])
	}
	return values
}

// CurrentValues returns every descriptor's current value, i.e. the point
// the search starts from.
func CurrentValues(space []models.ParameterDescriptor) map[string]float64 {
	values := make(map[string]float64, len(space))
	for _, d := range space {
		values[d.Name] = d.Current
	}
	return values
}

// CurrentUnitPoint projects every descriptor's current value into the unit
// hypercube the search operates in.
func CurrentUnitPoint(space []models.ParameterDescriptor) []float64 {
	point := make([]float64, len(space))
	for i, d := range space {
		point[i] = d.ToUnit(d.Current)
	}
	return point
}
