package candle

import (
	"testing"
	"time"
)

func validCandle(ts time.Time) Candle {
	return Candle{
		Timestamp: ts,
		Open:      100,
		High:      105,
		Low:       95,
		Close:     102,
		Volume:    1000,
		Symbol:    "BTCUSDT",
		Timeframe: "1m",
		Source:    "binance",
	}
}

func TestCandleValidate(t *testing.T) {
	base := time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC)

	t.Run("valid candle", func(t *testing.T) {
		c := validCandle(base)
		if err := c.Validate(); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("zero timestamp", func(t *testing.T) {
		c := validCandle(base)
		c.Timestamp = time.Time{}
		if err := c.Validate(); err == nil {
			t.Error("Expected error for zero timestamp")
		}
	})

	t.Run("high below low", func(t *testing.T) {
		c := validCandle(base)
		c.High = 90
		if err := c.Validate(); err == nil {
			t.Error("Expected error for high < low")
		}
	})

	t.Run("close outside range", func(t *testing.T) {
		c := validCandle(base)
		c.Close = 200
		if err := c.Validate(); err == nil {
			t.Error("Expected error for close above high")
		}
	})

	t.Run("negative volume", func(t *testing.T) {
		c := validCandle(base)
		c.Volume = -1
		if err := c.Validate(); err == nil {
			t.Error("Expected error for negative volume")
		}
	})

	t.Run("empty symbol", func(t *testing.T) {
		c := validCandle(base)
		c.Symbol = ""
		if err := c.Validate(); err == nil {
			t.Error("Expected error for empty symbol")
		}
	})
}

func TestSortAndDeduplicate(t *testing.T) {
	base := time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC)

	candles := []Candle{
		validCandle(base.Add(2 * time.Minute)),
		validCandle(base),
		validCandle(base.Add(time.Minute)),
		validCandle(base), // duplicate timestamp
	}

	out := SortAndDeduplicate(candles)
	if len(out) != 3 {
		t.Fatalf("Expected 3 candles after dedup, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if !out[i-1].Timestamp.Before(out[i].Timestamp) {
			t.Errorf("Candles not strictly ordered at index %d", i)
		}
	}

	// Input order preserved
	if !candles[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Error("Input slice was modified")
	}
}

func TestIndexAt(t *testing.T) {
	base := time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC)
	var candles []Candle
	for i := 0; i < 5; i++ {
		candles = append(candles, validCandle(base.Add(time.Duration(i)*time.Minute)))
	}

	if idx := IndexAt(candles, base.Add(3*time.Minute)); idx != 3 {
		t.Errorf("Expected index 3, got %d", idx)
	}
	if idx := IndexAt(candles, base.Add(90*time.Second)); idx != -1 {
		t.Errorf("Expected -1 for missing timestamp, got %d", idx)
	}
	if idx := IndexAt(nil, base); idx != -1 {
		t.Errorf("Expected -1 for empty sequence, got %d", idx)
	}
}

func TestTrimRange(t *testing.T) {
	base := time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC)
	var candles []Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, validCandle(base.Add(time.Duration(i)*time.Minute)))
	}

	out := TrimRange(candles, base.Add(2*time.Minute), base.Add(5*time.Minute))
	if len(out) != 3 {
		t.Fatalf("Expected 3 candles, got %d", len(out))
	}
	if !out[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Error("Start bound should be inclusive")
	}
	if !out[2].Timestamp.Equal(base.Add(4 * time.Minute)) {
		t.Error("End bound should be exclusive")
	}
}
