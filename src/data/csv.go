package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/models"
	"github.com/stratlab/backtest-service/src/utils"
)

// CSVProvider reads bars from per-symbol CSV files in a directory. Files
// are named <symbol>_<timeframe>.csv with symbol spaces and slashes
// replaced by underscores.
type CSVProvider struct {
	Dir string
}

func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

type barRecord struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

func (p *CSVProvider) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Bar, error) {
	path := filepath.Join(p.Dir, fmt.Sprintf("%s_%s.csv", sanitizeSymbol(symbol), timeframe))

	all, err := LoadCSVFile(path)
	if err != nil {
		return nil, err
	}

	bars := make([]models.Bar, 0, len(all))
	for _, bar := range all {
		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			continue
		}

		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, models.NewDataError(fmt.Sprintf("%s %s has no bars between %s and %s", symbol, timeframe, start.Format("2006-01-02"), end.Format("2006-01-02")), models.ErrDataUnavailable)
	}

	log.Debugf("loaded %d bars for %s %s from %s", len(bars), symbol, timeframe, path)
	return bars, nil
}

// LoadCSVFile reads an entire OHLCV CSV file in chronological order.
func LoadCSVFile(path string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewDataError(fmt.Sprintf("no data file at %s", path), models.ErrDataUnavailable)
	}
	defer f.Close()

	var records []*barRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, models.NewDataError(fmt.Sprintf("malformed data file %s", path), err)
	}

	bars := make([]models.Bar, 0, len(records))
	for i, rec := range records {
		ts, err := utils.ParseTimestamp(rec.Timestamp)
		if err != nil {
			return nil, models.NewDataError(fmt.Sprintf("row %d of %s", i+1, path), err)
		}

		bars = append(bars, models.Bar{
			Timestamp: ts,
			Open:      rec.Open,
			High:      rec.High,
			Low:       rec.Low,
			Close:     rec.Close,
			Volume:    rec.Volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func sanitizeSymbol(symbol string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", ":", "_")
	return replacer.Replace(symbol)
}
