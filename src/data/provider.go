package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stratlab/backtest-service/src/models"
)

// Provider supplies historical OHLCV bars. Implementations return bars in
// chronological order covering exactly the requested range - no silent
// range adjustments. An empty or invalid result fails with
// models.ErrDataUnavailable.
type Provider interface {
	GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Bar, error)
}

// ParseTimeframe splits a timeframe string such as "5minute", "1hour" or
// "day" into a multiplier and unit.
func ParseTimeframe(timeframe string) (multiplier int, unit string, err error) {
	tf := strings.ToLower(strings.TrimSpace(timeframe))

	for _, u := range []string{"minute", "hour", "day", "week"} {
		if !strings.HasSuffix(tf, u) {
			continue
		}

		prefix := strings.TrimSuffix(tf, u)
		if prefix == "" {
			return 1, u, nil
		}

		var m int
		if _, err := fmt.Sscanf(prefix, "%d", &m); err != nil || m <= 0 {
			return 0, "", fmt.Errorf("invalid timeframe multiplier in %q", timeframe)
		}
		return m, u, nil
	}

	return 0, "", fmt.Errorf("unsupported timeframe %q", timeframe)
}
