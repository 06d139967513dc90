package data

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	polygonmodels "github.com/polygon-io/client-go/rest/models"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/models"
	"github.com/stratlab/backtest-service/src/utils"
)

// PolygonProvider fetches aggregate bars from the Polygon REST API.
type PolygonProvider struct {
	Client *polygon.Client
}

func NewPolygonProvider(apiKey string) *PolygonProvider {
	return &PolygonProvider{
		Client: polygon.New(apiKey),
	}
}

func (p *PolygonProvider) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Bar, error) {
	multiplier, unit, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	log.Debugf("fetching polygon aggregate bars for symbol %s", symbol)

	// Polygon rejects ranges that extend past the current time.
	end = utils.GetMinTime(end, time.Now().UTC())

	params := polygonmodels.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   polygonmodels.Timespan(unit),
		From:       polygonmodels.Millis(start),
		To:         polygonmodels.Millis(end),
	}.WithOrder(polygonmodels.Asc).WithAdjusted(true)

	iter := p.Client.ListAggs(ctx, params)

	var bars []models.Bar
	for iter.Next() {
		item := iter.Item()
		bars = append(bars, models.Bar{
			Timestamp: time.Time(item.Timestamp),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, models.NewDataError(fmt.Sprintf("polygon request for %s %s failed", symbol, timeframe), err)
	}

	if len(bars) == 0 {
		return nil, models.NewDataError(fmt.Sprintf("polygon returned no bars for %s %s between %s and %s", symbol, timeframe, start.Format("2006-01-02"), end.Format("2006-01-02")), models.ErrDataUnavailable)
	}

	return bars, nil
}
