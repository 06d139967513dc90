package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratlab/backtest-service/src/models"
)

func tunableSpec() models.StrategySpec {
	return models.StrategySpec{
		Name:      "rsi reversal",
		Direction: models.DirectionLong,
		Symbol:    "NIFTY 50",
		Timeframe: "day",
		EntryConditions: models.ConditionList{
			models.IndicatorSetup{
				Indicator:   "rsi",
				Params:      models.IndicatorParams{"period": models.IntParam(14)},
				OutputAlias: "rsi_14",
			},
			models.Comparison{Variable: "rsi_14", Operator: models.OperatorLessThan, Threshold: 30},
		},
		ExitConditions: models.ConditionList{
			models.Comparison{Variable: "rsi_14", Operator: models.OperatorGreaterThan, Threshold: 70},
		},
		StopLossPct:     2,
		TargetProfitPct: 5,
	}
}

func findDescriptor(t *testing.T, space []models.ParameterDescriptor, name string) models.ParameterDescriptor {
	t.Helper()
	for _, d := range space {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("descriptor %s not found in space %v", name, space)
	return models.ParameterDescriptor{}
}

func TestBuildSpace(t *testing.T) {
	t.Run("ordering is entry, exit, stop loss, target profit", func(t *testing.T) {
		space := BuildSpace(tunableSpec())
		require.Len(t, space, 5)

		names := make([]string, len(space))
		for i, d := range space {
			names[i] = d.Name
		}

		assert.Equal(t, []string{
			"entry_0_rsi_period",
			"entry_1_rsi_14_threshold",
			"exit_0_rsi_14_threshold",
			"stop_loss_pct",
			"target_profit_pct",
		}, names)
	})

	t.Run("period param becomes a half-to-double integer range", func(t *testing.T) {
		space := BuildSpace(tunableSpec())
		d := findDescriptor(t, space, "entry_0_rsi_period")

		assert.Equal(t, models.ParameterInteger, d.Kind)
		assert.Equal(t, 7.0, d.Min)
		assert.Equal(t, 28.0, d.Max)
		assert.Equal(t, 14.0, d.Current)
	})

	t.Run("large threshold uses relative bounds", func(t *testing.T) {
		space := BuildSpace(tunableSpec())
		d := findDescriptor(t, space, "entry_1_rsi_14_threshold")

		assert.Equal(t, models.ParameterReal, d.Kind)
		assert.Equal(t, 15.0, d.Min)
		assert.Equal(t, 45.0, d.Max)
		assert.Equal(t, 4, d.Decimals)
	})

	t.Run("small threshold widens around zero but stays within -100..100", func(t *testing.T) {
		spec := tunableSpec()
		spec.EntryConditions = models.ConditionList{
			models.Comparison{Variable: "macd_hist", Operator: models.OperatorGreaterThan, Threshold: 2},
		}
		spec.ExitConditions = nil
		spec.StopLossPct = 0
		spec.TargetProfitPct = 0

		space := BuildSpace(spec)
		require.Len(t, space, 1)

		assert.Equal(t, -2.0, space[0].Min)
		assert.Equal(t, 6.0, space[0].Max)
	})

	t.Run("matype param becomes a categorical over MA types", func(t *testing.T) {
		spec := tunableSpec()
		spec.EntryConditions = models.ConditionList{
			models.IndicatorSetup{
				Indicator: "ma",
				Params: models.IndicatorParams{
					"period": models.IntParam(20),
					"matype": models.IntParam(1),
				},
				OutputAlias: "ma_20",
			},
			models.Comparison{Variable: "close", Operator: models.OperatorGreaterThan, Threshold: 100},
		}

		space := BuildSpace(spec)
		d := findDescriptor(t, space, "entry_0_ma_matype")

		assert.Equal(t, models.ParameterCategorical, d.Kind)
		assert.Equal(t, []string{"SMA", "EMA", "WMA", "DEMA", "TEMA", "TRIMA", "KAMA"}, d.Choices)
		assert.Equal(t, 1.0, d.Current)
		assert.Equal(t, "EMA", d.Choice(d.Current))
	})

	t.Run("acceleration and limit params stay inside 0.01..0.99", func(t *testing.T) {
		spec := tunableSpec()
		spec.EntryConditions = models.ConditionList{
			models.IndicatorSetup{
				Indicator: "sar",
				Params: models.IndicatorParams{
					"acceleration": models.FloatParam(0.02),
					"maximum":      models.FloatParam(0.2),
				},
				OutputAlias: "sar",
			},
			models.Comparison{Variable: "close", Operator: models.OperatorGreaterThan, Threshold: 100},
		}

		space := BuildSpace(spec)

		accel := findDescriptor(t, space, "entry_0_sar_acceleration")
		assert.Equal(t, models.ParameterReal, accel.Kind)
		assert.Equal(t, 0.01, accel.Min)
		assert.Equal(t, 0.04, accel.Max)

		maximum := findDescriptor(t, space, "entry_0_sar_maximum")
		assert.Equal(t, 0.1, maximum.Min)
		assert.Equal(t, 0.4, maximum.Max)
	})

	t.Run("fallback typing follows the lexical kind", func(t *testing.T) {
		spec := tunableSpec()
		spec.EntryConditions = models.ConditionList{
			models.IndicatorSetup{
				Indicator: "stoch",
				Params: models.IndicatorParams{
					"fast_k":    models.IntParam(5),
					"smoothing": models.FloatParam(0.5),
				},
				OutputAlias: "stoch_k",
			},
			models.Comparison{Variable: "stoch_k", Operator: models.OperatorLessThan, Threshold: 20},
		}

		space := BuildSpace(spec)

		fastK := findDescriptor(t, space, "entry_0_stoch_fast_k")
		assert.Equal(t, models.ParameterInteger, fastK.Kind)
		assert.Equal(t, 2.0, fastK.Min)
		assert.Equal(t, 10.0, fastK.Max)

		smoothing := findDescriptor(t, space, "entry_0_stoch_smoothing")
		assert.Equal(t, models.ParameterReal, smoothing.Kind)
		assert.Equal(t, 0.25, smoothing.Min)
		assert.Equal(t, 1.0, smoothing.Max)
	})

	t.Run("zero-valued leaves are skipped", func(t *testing.T) {
		spec := tunableSpec()
		spec.StopLossPct = 0
		spec.TargetProfitPct = 0
		spec.ExitConditions = models.ConditionList{
			models.Comparison{Variable: "macd_hist", Operator: models.OperatorLessThan, Threshold: 0},
		}

		space := BuildSpace(spec)
		for _, d := range space {
			assert.NotEqual(t, "stop_loss_pct", d.Name)
			assert.NotEqual(t, "target_profit_pct", d.Name)
			assert.NotEqual(t, "exit_0_macd_hist_threshold", d.Name)
		}
	})

	t.Run("indicator params are emitted in sorted key order", func(t *testing.T) {
		spec := tunableSpec()
		spec.EntryConditions = models.ConditionList{
			models.IndicatorSetup{
				Indicator: "macd",
				Params: models.IndicatorParams{
					"slow_period":   models.IntParam(26),
					"fast_period":   models.IntParam(12),
					"signal_period": models.IntParam(9),
				},
				OutputAlias: "macd_main",
			},
			models.Comparison{Variable: "macd_main", Operator: models.OperatorGreaterThan, Threshold: 10},
		}
		spec.ExitConditions = nil
		spec.StopLossPct = 0
		spec.TargetProfitPct = 0

		space := BuildSpace(spec)
		require.Len(t, space, 4)

		assert.Equal(t, "entry_0_macd_fast_period", space[0].Name)
		assert.Equal(t, "entry_0_macd_signal_period", space[1].Name)
		assert.Equal(t, "entry_0_macd_slow_period", space[2].Name)
	})
}

func TestMaterialize(t *testing.T) {
	t.Run("writes values back through their paths", func(t *testing.T) {
		spec := tunableSpec()
		space := BuildSpace(spec)

		values := map[string]float64{
			"entry_0_rsi_period":       21,
			"entry_1_rsi_14_threshold": 25.1234,
			"exit_0_rsi_14_threshold":  65,
			"stop_loss_pct":            3,
			"target_profit_pct":        6,
		}

		out, err := Materialize(spec, space, values)
		require.NoError(t, err)

		setup := out.EntryConditions[0].(models.IndicatorSetup)
		assert.Equal(t, 21, setup.Params["period"].Int())
		assert.True(t, setup.Params["period"].IsInt)

		entryCmp := out.EntryConditions[1].(models.Comparison)
		assert.Equal(t, 25.1234, entryCmp.Threshold)

		exitCmp := out.ExitConditions[0].(models.Comparison)
		assert.Equal(t, 65.0, exitCmp.Threshold)

		assert.Equal(t, 3.0, out.StopLossPct)
		assert.Equal(t, 6.0, out.TargetProfitPct)
	})

	t.Run("does not mutate the input spec", func(t *testing.T) {
		spec := tunableSpec()
		space := BuildSpace(spec)

		_, err := Materialize(spec, space, map[string]float64{
			"entry_0_rsi_period":       21,
			"entry_1_rsi_14_threshold": 25,
			"exit_0_rsi_14_threshold":  65,
			"stop_loss_pct":            3,
			"target_profit_pct":        6,
		})
		require.NoError(t, err)

		assert.Equal(t, 14, spec.EntryConditions[0].(models.IndicatorSetup).Params["period"].Int())
		assert.Equal(t, 2.0, spec.StopLossPct)
	})

	t.Run("out-of-range values are clamped into the domain", func(t *testing.T) {
		spec := tunableSpec()
		space := BuildSpace(spec)

		out, err := Materialize(spec, space, map[string]float64{
			"entry_0_rsi_period":       1000,
			"entry_1_rsi_14_threshold": -1000,
			"exit_0_rsi_14_threshold":  65,
			"stop_loss_pct":            3,
			"target_profit_pct":        6,
		})
		require.NoError(t, err)

		assert.Equal(t, 28, out.EntryConditions[0].(models.IndicatorSetup).Params["period"].Int())
		assert.Equal(t, 15.0, out.EntryConditions[1].(models.Comparison).Threshold)
	})

	t.Run("categorical choice index becomes the MA type code", func(t *testing.T) {
		spec := tunableSpec()
		spec.EntryConditions = models.ConditionList{
			models.IndicatorSetup{
				Indicator: "ma",
				Params: models.IndicatorParams{
					"period": models.IntParam(20),
					"matype": models.IntParam(0),
				},
				OutputAlias: "ma_20",
			},
			models.Comparison{Variable: "close", Operator: models.OperatorGreaterThan, Threshold: 100},
		}

		space := BuildSpace(spec)
		values := CurrentValues(space)
		values["entry_0_ma_matype"] = 2 // WMA

		out, err := Materialize(spec, space, values)
		require.NoError(t, err)

		setup := out.EntryConditions[0].(models.IndicatorSetup)
		assert.Equal(t, 2, setup.Params["matype"].Int())
		assert.True(t, setup.Params["matype"].IsInt)
	})

	t.Run("stored values survive a second materialization unchanged", func(t *testing.T) {
		spec := tunableSpec()
		space := BuildSpace(spec)

		raw := map[string]float64{
			"entry_0_rsi_period":       20.7,
			"entry_1_rsi_14_threshold": 25.123456,
			"exit_0_rsi_14_threshold":  64.9,
			"stop_loss_pct":            2.55555,
			"target_profit_pct":        6.1,
		}

		// clamping is idempotent: a clamped value clamps to itself
		for _, d := range space {
			clamped := d.Clamp(raw[d.Name])
			assert.Equal(t, clamped, d.Clamp(clamped), d.Name)
		}
	})

	t.Run("missing value is an error", func(t *testing.T) {
		spec := tunableSpec()
		space := BuildSpace(spec)

		_, err := Materialize(spec, space, map[string]float64{})
		assert.Error(t, err)
	})
}

func TestObjectiveWeights(t *testing.T) {
	summary := models.BacktestSummary{
		Returns:     10,
		WinRate:     0.6,
		MaxDrawdown: 8,
		SharpeRatio: 1.5,
	}

	t.Run("default blend is negated for minimization", func(t *testing.T) {
		w := DefaultObjectiveWeights()
		score := w.Score(summary)

		expected := -(0.5*10 + 0.2*0.6*100 + 0.1*(100-8) + 0.2*1.5)
		assert.InDelta(t, expected, score, 1e-9)
	})

	t.Run("better metrics score lower", func(t *testing.T) {
		w := DefaultObjectiveWeights()

		better := summary
		better.Returns = 20

		assert.Less(t, w.Score(better), w.Score(summary))
	})
}
