package indicators

import (
	"fmt"
	"strings"

	talib "github.com/markcheno/go-talib"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/models"
)

// Evaluator computes indicator columns for a bar series. Indicator math is
// delegated to go-talib; the evaluator owns naming, parameter defaults and
// validation.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate returns a copy of the bar series with one or more named columns
// attached per setup. The input series is not modified. Unknown indicators
// and invalid parameters fail with an IndicatorError.
func (e *Evaluator) Evaluate(bars []models.Bar, setups []models.IndicatorSetup) ([]models.Bar, error) {
	if len(setups) == 0 {
		return bars, nil
	}

	out := make([]models.Bar, len(bars))
	for i, bar := range bars {
		indicators := make(map[string]float64, len(bar.Indicators)+len(setups))
		for k, v := range bar.Indicators {
			indicators[k] = v
		}
		bar.Indicators = indicators
		out[i] = bar
	}

	series := newPriceSeries(bars)

	for _, setup := range setups {
		columns, err := compute(setup, series)
		if err != nil {
			return nil, err
		}

		for name, values := range columns {
			if len(values) != len(out) {
				return nil, &models.IndicatorError{Indicator: setup.Indicator, Reason: fmt.Sprintf("output %s has %d values for %d bars", name, len(values), len(out))}
			}
			for i := range out {
				out[i].Indicators[name] = values[i]
			}
		}

		log.Debugf("attached indicator %s as %s over %d bars", setup.Indicator, setup.OutputAlias, len(out))
	}

	return out, nil
}

type priceSeries struct {
	open, high, low, close, volume []float64
}

func newPriceSeries(bars []models.Bar) priceSeries {
	s := priceSeries{
		open:   make([]float64, len(bars)),
		high:   make([]float64, len(bars)),
		low:    make([]float64, len(bars)),
		close:  make([]float64, len(bars)),
		volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		s.open[i] = b.Open
		s.high[i] = b.High
		s.low[i] = b.Low
		s.close[i] = b.Close
		s.volume[i] = b.Volume
	}
	return s
}

func compute(setup models.IndicatorSetup, s priceSeries) (map[string][]float64, error) {
	alias := setup.OutputAlias
	params := setup.Params

	single := func(values []float64) map[string][]float64 {
		return map[string][]float64{alias: values}
	}

	name := strings.ToUpper(setup.Indicator)

	if len(s.close) == 0 {
		return nil, &models.IndicatorError{Indicator: name, Reason: "empty bar series"}
	}

	switch name {
	case "SMA":
		period, err := periodParam(name, params, 20)
		if err != nil {
			return nil, err
		}
		return single(talib.Sma(s.close, period)), nil
	case "EMA":
		period, err := periodParam(name, params, 20)
		if err != nil {
			return nil, err
		}
		return single(talib.Ema(s.close, period)), nil
	case "WMA":
		period, err := periodParam(name, params, 20)
		if err != nil {
			return nil, err
		}
		return single(talib.Wma(s.close, period)), nil
	case "DEMA":
		period, err := periodParam(name, params, 20)
		if err != nil {
			return nil, err
		}
		return single(talib.Dema(s.close, period)), nil
	case "TEMA":
		period, err := periodParam(name, params, 20)
		if err != nil {
			return nil, err
		}
		return single(talib.Tema(s.close, period)), nil
	case "TRIMA":
		period, err := periodParam(name, params, 20)
		if err != nil {
			return nil, err
		}
		return single(talib.Trima(s.close, period)), nil
	case "KAMA":
		period, err := periodParam(name, params, 20)
		if err != nil {
			return nil, err
		}
		return single(talib.Kama(s.close, period)), nil
	case "MA":
		period, err := periodParam(name, params, 30)
		if err != nil {
			return nil, err
		}
		maType, err := maTypeParam(name, params)
		if err != nil {
			return nil, err
		}
		return single(talib.Ma(s.close, period, maType)), nil
	case "RSI":
		period, err := periodParam(name, params, 14)
		if err != nil {
			return nil, err
		}
		return single(talib.Rsi(s.close, period)), nil
	case "MACD":
		fast, err := intParam(name, params, "fastperiod", 12)
		if err != nil {
			return nil, err
		}
		slow, err := intParam(name, params, "slowperiod", 26)
		if err != nil {
			return nil, err
		}
		signal, err := intParam(name, params, "signalperiod", 9)
		if err != nil {
			return nil, err
		}
		macd, macdSignal, macdHist := talib.Macd(s.close, fast, slow, signal)
		return map[string][]float64{
			alias:             macd,
			alias + "_signal": macdSignal,
			alias + "_hist":   macdHist,
		}, nil
	case "BBANDS":
		period, err := periodParam(name, params, 20)
		if err != nil {
			return nil, err
		}
		devUp := floatParam(params, "nbdevup", 2.0)
		devDown := floatParam(params, "nbdevdn", 2.0)
		maType, err := maTypeParam(name, params)
		if err != nil {
			return nil, err
		}
		upper, middle, lower := talib.BBands(s.close, period, devUp, devDown, maType)
		return map[string][]float64{
			alias + "_upper":  upper,
			alias + "_middle": middle,
			alias + "_lower":  lower,
		}, nil
	case "ATR":
		period, err := periodParam(name, params, 14)
		if err != nil {
			return nil, err
		}
		return single(talib.Atr(s.high, s.low, s.close, period)), nil
	case "ADX":
		period, err := periodParam(name, params, 14)
		if err != nil {
			return nil, err
		}
		return single(talib.Adx(s.high, s.low, s.close, period)), nil
	case "CCI":
		period, err := periodParam(name, params, 14)
		if err != nil {
			return nil, err
		}
		return single(talib.Cci(s.high, s.low, s.close, period)), nil
	case "MOM":
		period, err := periodParam(name, params, 10)
		if err != nil {
			return nil, err
		}
		return single(talib.Mom(s.close, period)), nil
	case "ROC":
		period, err := periodParam(name, params, 10)
		if err != nil {
			return nil, err
		}
		return single(talib.Roc(s.close, period)), nil
	case "WILLR":
		period, err := periodParam(name, params, 14)
		if err != nil {
			return nil, err
		}
		return single(talib.WillR(s.high, s.low, s.close, period)), nil
	case "OBV":
		return single(talib.Obv(s.close, s.volume)), nil
	case "STOCH":
		fastK, err := intParam(name, params, "fastk_period", 5)
		if err != nil {
			return nil, err
		}
		slowK, err := intParam(name, params, "slowk_period", 3)
		if err != nil {
			return nil, err
		}
		slowD, err := intParam(name, params, "slowd_period", 3)
		if err != nil {
			return nil, err
		}
		k, d := talib.Stoch(s.high, s.low, s.close, fastK, slowK, talib.SMA, slowD, talib.SMA)
		return map[string][]float64{
			alias + "_k": k,
			alias + "_d": d,
		}, nil
	case "SAR":
		acceleration := floatParam(params, "acceleration", 0.02)
		maximum := floatParam(params, "maximum", 0.2)
		if acceleration <= 0 || maximum <= 0 {
			return nil, &models.IndicatorError{Indicator: name, Reason: "acceleration and maximum must be positive"}
		}
		return single(talib.Sar(s.high, s.low, acceleration, maximum)), nil
	case "MAMA":
		fastLimit := floatParam(params, "fastlimit", 0.5)
		slowLimit := floatParam(params, "slowlimit", 0.05)
		if fastLimit <= 0 || fastLimit >= 1 || slowLimit <= 0 || slowLimit >= 1 {
			return nil, &models.IndicatorError{Indicator: name, Reason: "fastlimit and slowlimit must be in (0, 1)"}
		}
		mama, fama := talib.Mama(s.close, fastLimit, slowLimit)
		return map[string][]float64{
			alias:           mama,
			alias + "_fama": fama,
		}, nil
	default:
		return nil, &models.IndicatorError{Indicator: setup.Indicator, Reason: "unknown indicator"}
	}
}

func periodParam(indicator string, params models.IndicatorParams, def int) (int, error) {
	if p, found := params["period"]; found {
		return validatePeriod(indicator, p.Int())
	}
	if p, found := params["timeperiod"]; found {
		return validatePeriod(indicator, p.Int())
	}
	return def, nil
}

func validatePeriod(indicator string, period int) (int, error) {
	if period < 2 {
		return 0, &models.IndicatorError{Indicator: indicator, Reason: fmt.Sprintf("period must be at least 2, got %d", period)}
	}
	return period, nil
}

func intParam(indicator string, params models.IndicatorParams, key string, def int) (int, error) {
	p, found := params[key]
	if !found {
		return def, nil
	}
	if p.Value < 1 {
		return 0, &models.IndicatorError{Indicator: indicator, Reason: fmt.Sprintf("%s must be positive, got %v", key, p.Value)}
	}
	return p.Int(), nil
}

func floatParam(params models.IndicatorParams, key string, def float64) float64 {
	if p, found := params[key]; found {
		return p.Value
	}
	return def
}

func maTypeParam(indicator string, params models.IndicatorParams) (talib.MaType, error) {
	p, found := params["matype"]
	if !found {
		return talib.SMA, nil
	}

	code := p.Int()
	if code < int(talib.SMA) || code > int(talib.T3MA) {
		return talib.SMA, &models.IndicatorError{Indicator: indicator, Reason: fmt.Sprintf("invalid matype code %d", code)}
	}
	return talib.MaType(code), nil
}
