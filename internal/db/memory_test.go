package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
)

func storedCandle(symbol string, ts time.Time) candle.Candle {
	return candle.Candle{
		Timestamp: ts,
		Open:      100,
		High:      105,
		Low:       95,
		Close:     102,
		Volume:    1000,
		Symbol:    symbol,
		Timeframe: "1m",
		Source:    "binance",
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC)

	var candles []candle.Candle
	for i := 0; i < 5; i++ {
		candles = append(candles, storedCandle("BTCUSDT", base.Add(time.Duration(i)*time.Minute)))
	}
	candles = append(candles, storedCandle("SOLUSDT", base))
	require.NoError(t, m.SaveCandles(ctx, candles))

	t.Run("range query is ordered and exclusive at end", func(t *testing.T) {
		got, err := m.GetCandles(ctx, "BTCUSDT", "1m", base, base.Add(3*time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i-1].Timestamp.Before(got[i].Timestamp))
		}
	})

	t.Run("symbol filter", func(t *testing.T) {
		got, err := m.GetCandles(ctx, "SOLUSDT", "1m", base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("upsert overwrites same timestamp", func(t *testing.T) {
		updated := storedCandle("BTCUSDT", base)
		updated.Close = 104
		require.NoError(t, m.SaveCandles(ctx, []candle.Candle{updated}))

		count, err := m.GetCandleCount(ctx, "BTCUSDT", "1m", base, base.Add(5*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 5, count)

		got, err := m.GetCandles(ctx, "BTCUSDT", "1m", base, base.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 104.0, got[0].Close)
	})

	t.Run("invalid candle rejected", func(t *testing.T) {
		bad := storedCandle("BTCUSDT", base)
		bad.High = 10 // below low
		assert.Error(t, m.SaveCandles(ctx, []candle.Candle{bad}))
	})
}
