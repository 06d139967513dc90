package models

import (
	"math"
	"time"
)

// Bar is a single OHLCV sample plus any indicator columns attached by the
// indicator evaluator. Bars are immutable once produced.
type Bar struct {
	Timestamp  time.Time          `json:"timestamp"`
	Open       float64            `json:"open"`
	High       float64            `json:"high"`
	Low        float64            `json:"low"`
	Close      float64            `json:"close"`
	Volume     float64            `json:"volume"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Column resolves a named column on the bar. Price columns take precedence
// over indicator columns of the same name.
func (b Bar) Column(name string) (float64, bool) {
	switch name {
	case "open":
		return b.Open, true
	case "high":
		return b.High, true
	case "low":
		return b.Low, true
	case "close":
		return b.Close, true
	case "volume":
		return b.Volume, true
	}

	v, found := b.Indicators[name]
	return v, found
}

// HasColumn reports whether the named column exists on the bar.
func (b Bar) HasColumn(name string) bool {
	_, found := b.Column(name)
	return found
}

// WithIndicator returns a copy of the bar with the named indicator column
// attached. The receiver is not modified.
func (b Bar) WithIndicator(name string, value float64) Bar {
	indicators := make(map[string]float64, len(b.Indicators)+1)
	for k, v := range b.Indicators {
		indicators[k] = v
	}
	indicators[name] = value

	b.Indicators = indicators
	return b
}

// IsValid reports whether the bar carries a usable close price.
func (b Bar) IsValid() bool {
	return !math.IsNaN(b.Close) && !math.IsInf(b.Close, 0) && b.Close != 0
}
