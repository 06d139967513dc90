package indicators

import "github.com/stratlab/backtest-service/src/models"

// Info describes one supported indicator for API consumers building
// strategies.
type Info struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Defaults    models.IndicatorParams `json:"default_params"`
	Outputs     []string               `json:"outputs"`
}

// Catalog lists every indicator the evaluator supports, with default
// parameters. Outputs use <alias> for the requested output variable.
func Catalog() []Info {
	return []Info{
		{Name: "SMA", Description: "Simple moving average", Defaults: models.IndicatorParams{"period": models.IntParam(20)}, Outputs: []string{"<alias>"}},
		{Name: "EMA", Description: "Exponential moving average", Defaults: models.IndicatorParams{"period": models.IntParam(20)}, Outputs: []string{"<alias>"}},
		{Name: "WMA", Description: "Weighted moving average", Defaults: models.IndicatorParams{"period": models.IntParam(20)}, Outputs: []string{"<alias>"}},
		{Name: "DEMA", Description: "Double exponential moving average", Defaults: models.IndicatorParams{"period": models.IntParam(20)}, Outputs: []string{"<alias>"}},
		{Name: "TEMA", Description: "Triple exponential moving average", Defaults: models.IndicatorParams{"period": models.IntParam(20)}, Outputs: []string{"<alias>"}},
		{Name: "TRIMA", Description: "Triangular moving average", Defaults: models.IndicatorParams{"period": models.IntParam(20)}, Outputs: []string{"<alias>"}},
		{Name: "KAMA", Description: "Kaufman adaptive moving average", Defaults: models.IndicatorParams{"period": models.IntParam(20)}, Outputs: []string{"<alias>"}},
		{Name: "MA", Description: "Moving average with selectable type", Defaults: models.IndicatorParams{"period": models.IntParam(30), "matype": models.IntParam(0)}, Outputs: []string{"<alias>"}},
		{Name: "RSI", Description: "Relative strength index", Defaults: models.IndicatorParams{"period": models.IntParam(14)}, Outputs: []string{"<alias>"}},
		{Name: "MACD", Description: "Moving average convergence/divergence", Defaults: models.IndicatorParams{"fastperiod": models.IntParam(12), "slowperiod": models.IntParam(26), "signalperiod": models.IntParam(9)}, Outputs: []string{"<alias>", "<alias>_signal", "<alias>_hist"}},
		{Name: "BBANDS", Description: "Bollinger bands", Defaults: models.IndicatorParams{"period": models.IntParam(20), "nbdevup": models.FloatParam(2.0), "nbdevdn": models.FloatParam(2.0), "matype": models.IntParam(0)}, Outputs: []string{"<alias>_upper", "<alias>_middle", "<alias>_lower"}},
		{Name: "ATR", Description: "Average true range", Defaults: models.IndicatorParams{"period": models.IntParam(14)}, Outputs: []string{"<alias>"}},
		{Name: "ADX", Description: "Average directional movement index", Defaults: models.IndicatorParams{"period": models.IntParam(14)}, Outputs: []string{"<alias>"}},
		{Name: "CCI", Description: "Commodity channel index", Defaults: models.IndicatorParams{"period": models.IntParam(14)}, Outputs: []string{"<alias>"}},
		{Name: "MOM", Description: "Momentum", Defaults: models.IndicatorParams{"period": models.IntParam(10)}, Outputs: []string{"<alias>"}},
		{Name: "ROC", Description: "Rate of change", Defaults: models.IndicatorParams{"period": models.IntParam(10)}, Outputs: []string{"<alias>"}},
		{Name: "WILLR", Description: "Williams %R", Defaults: models.IndicatorParams{"period": models.IntParam(14)}, Outputs: []string{"<alias>"}},
		{Name: "OBV", Description: "On-balance volume", Defaults: models.IndicatorParams{}, Outputs: []string{"<alias>"}},
		{Name: "STOCH", Description: "Slow stochastic oscillator", Defaults: models.IndicatorParams{"fastk_period": models.IntParam(5), "slowk_period": models.IntParam(3), "slowd_period": models.IntParam(3)}, Outputs: []string{"<alias>_k", "<alias>_d"}},
		{Name: "SAR", Description: "Parabolic SAR", Defaults: models.IndicatorParams{"acceleration": models.FloatParam(0.02), "maximum": models.FloatParam(0.2)}, Outputs: []string{"<alias>"}},
		{Name: "MAMA", Description: "MESA adaptive moving average", Defaults: models.IndicatorParams{"fastlimit": models.FloatParam(0.5), "slowlimit": models.FloatParam(0.05)}, Outputs: []string{"<alias>", "<alias>_fama"}},
	}
}
