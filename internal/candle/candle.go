// Package candle
package candle

import (
	"errors"
	"sort"
	"time"
)

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	if c.Symbol == "" {
		return errors.New("candle symbol cannot be empty")
	}
	return nil
}

// SortAndDeduplicate sorts candles by timestamp and keeps the first occurrence
// of each timestamp. The input slice is left untouched.
func SortAndDeduplicate(candles []Candle) []Candle {
	if len(candles) == 0 {
		return candles
	}

	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]Candle, 0, len(sorted))
	for _, c := range sorted {
		if len(out) > 0 && c.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// IndexAt returns the position of the candle with the given timestamp in an
// ordered sequence, or -1 if no candle carries that exact timestamp.
func IndexAt(candles []Candle, ts time.Time) int {
	i := sort.Search(len(candles), func(i int) bool {
		return !candles[i].Timestamp.Before(ts)
	})
	if i < len(candles) && candles[i].Timestamp.Equal(ts) {
		return i
	}
	return -1
}

// TrimRange returns the candles with timestamps in [start, end), assuming
// ordered input.
func TrimRange(candles []Candle, start, end time.Time) []Candle {
	var out []Candle
	for _, c := range candles {
		if c.Timestamp.Before(start) {
			continue
		}
		if !c.Timestamp.Before(end) {
			break
		}
		out = append(out, c)
	}
	return out
}
