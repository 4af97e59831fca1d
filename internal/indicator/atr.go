// Package indicator
package indicator

import (
	"math"

	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
)

// CalculateATR computes the Average True Range over a candle series using
// Wilder's smoothing. The first period-1 elements are NaN (warmup).
func CalculateATR(candles []candle.Candle, period int) []float64 {
	if len(candles) < period || period <= 0 {
		return nil
	}
	atr := make([]float64, len(candles))
	for i := 0; i < period-1; i++ {
		atr[i] = math.NaN()
	}

	// Seed with the simple average of the first period true ranges
	var sum float64
	for i := 0; i < period; i++ {
		sum += trueRange(candles, i)
	}
	atr[period-1] = sum / float64(period)

	for i := period; i < len(candles); i++ {
		tr := trueRange(candles, i)
		atr[i] = (atr[i-1]*float64(period-1) + tr) / float64(period)
	}
	return atr
}

// LatestATR returns the most recent ATR value, or 0 if the series is too
// short to produce one.
func LatestATR(candles []candle.Candle, period int) float64 {
	atr := CalculateATR(candles, period)
	if len(atr) == 0 {
		return 0
	}
	last := atr[len(atr)-1]
	if math.IsNaN(last) {
		return 0
	}
	return last
}

func trueRange(candles []candle.Candle, i int) float64 {
	c := candles[i]
	if i == 0 {
		return c.High - c.Low
	}
	prevClose := candles[i-1].Close
	tr := c.High - c.Low
	if d := math.Abs(c.High - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(c.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}
