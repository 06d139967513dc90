package models

import "time"

// Position is an open trade. At most one position exists per simulation at
// any time.
type Position struct {
	EntryPrice    float64   `json:"entry_price"`
	EntryDate     time.Time `json:"entry_date"`
	EntryBarIndex int       `json:"entry_bar_index"`
	Size          float64   `json:"size"`
}

// Trade is a completed round trip. Trades are created only when a position
// closes; a position still open at the end of data never becomes a trade.
type Trade struct {
	EntryDate    time.Time `json:"entry_date"`
	EntryPrice   float64   `json:"entry_price"`
	ExitDate     time.Time `json:"exit_date"`
	ExitPrice    float64   `json:"exit_price"`
	ProfitPoints float64   `json:"profit_points"`
	ProfitPct    float64   `json:"profit_pct"`
	Size         float64   `json:"size"`
}

// IsWinner reports whether the trade closed with a positive profit.
// Break-even trades count as losers, matching how win rate is reported.
func (t Trade) IsWinner() bool {
	return t.ProfitPct > 0
}

// EquityPoint maps a bar index to the portfolio value at that bar.
type EquityPoint struct {
	BarIndex int     `json:"bar_index"`
	Value    float64 `json:"value"`
}
