package marketdata

import (
	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/markcheno/go-talib"
)

// Trend labels the direction of a market window
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// SMA window lengths for the trend read. Display aid only; the trend never
// feeds the performance score.
const (
	trendShortPeriod = 5
	trendLongPeriod  = 20
)

// Relative gap between the short and long SMA below which the market is flat.
const trendFlatThreshold = 0.005

// DetectTrend compares a short and a long simple moving average over the
// window's cash prices. Windows too short for the long average are flat.
func DetectTrend(window []domain.PricePoint) Trend {
	if len(window) < trendLongPeriod {
		return TrendFlat
	}

	prices := make([]float64, len(window))
	for i, p := range window {
		prices[i] = p.CashPrice
	}

	shortSMA := talib.Sma(prices, trendShortPeriod)
	longSMA := talib.Sma(prices, trendLongPeriod)

	last := len(prices) - 1
	s, l := shortSMA[last], longSMA[last]
	if l == 0 {
		return TrendFlat
	}

	gap := (s - l) / l
	switch {
	case gap > trendFlatThreshold:
		return TrendUp
	case gap < -trendFlatThreshold:
		return TrendDown
	default:
		return TrendFlat
	}
}
