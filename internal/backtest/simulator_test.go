package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
	"github.com/iphasm/Nexus-TB-sub003/internal/detector"
)

var entryTime = time.Date(2025, 10, 10, 14, 30, 0, 0, time.UTC)

// series builds an ordered 1m candle sequence: the entry candle closes at
// entryClose, followed by forward candles from highs/lows (close set between).
func series(entryClose float64, forward [][2]float64) []candle.Candle {
	candles := []candle.Candle{{
		Timestamp: entryTime,
		Open:      entryClose * 1.01,
		High:      entryClose * 1.02,
		Low:       entryClose * 0.99,
		Close:     entryClose,
		Volume:    1000,
		Symbol:    "SOLUSDT",
		Timeframe: "1m",
	}}
	for i, hl := range forward {
		high, low := hl[0], hl[1]
		candles = append(candles, candle.Candle{
			Timestamp: entryTime.Add(time.Duration(i+1) * time.Minute),
			Open:      (high + low) / 2,
			High:      high,
			Low:       low,
			Close:     (high + low) / 2,
			Volume:    1000,
			Symbol:    "SOLUSDT",
			Timeframe: "1m",
		})
	}
	return candles
}

func trigger() detector.TriggerEvent {
	return detector.TriggerEvent{Timestamp: entryTime, DropPct: -0.035}
}

func TestResolveTakeProfit(t *testing.T) {
	// Candle #3 touches 93 (<= 94) with no prior high >= 103.
	candles := series(100, [][2]float64{
		{101, 97},
		{100, 96},
		{98, 93},
		{97, 95},
	})

	pos := ResolvePosition(trigger(), candles, 200, DefaultSimConfig())

	assert.Equal(t, ExitTakeProfit, pos.ExitReason)
	assert.InDelta(t, 94.0, pos.ExitPrice, 1e-9)
	assert.InDelta(t, 0.06, pos.RawROI, 1e-9)
	// allocation 200 * roi 0.06 * leverage 5
	assert.InDelta(t, 60.0, pos.LeveragedPnL, 1e-9)
}

func TestResolveStopLoss(t *testing.T) {
	// First forward candle spikes to 104 (>= 103).
	candles := series(100, [][2]float64{
		{104, 99},
		{100, 92},
	})

	pos := ResolvePosition(trigger(), candles, 200, DefaultSimConfig())

	assert.Equal(t, ExitStopLoss, pos.ExitReason)
	assert.InDelta(t, 103.0, pos.ExitPrice, 1e-9)
	assert.InDelta(t, -0.03, pos.RawROI, 1e-9)
	assert.InDelta(t, -30.0, pos.LeveragedPnL, 1e-9)
}

func TestResolveTakeProfitWinsTie(t *testing.T) {
	// One candle satisfies both conditions; take-profit has precedence.
	candles := series(100, [][2]float64{
		{105, 92},
	})

	pos := ResolvePosition(trigger(), candles, 200, DefaultSimConfig())

	assert.Equal(t, ExitTakeProfit, pos.ExitReason)
	assert.InDelta(t, 94.0, pos.ExitPrice, 1e-9)
}

func TestResolveTimeLimit(t *testing.T) {
	// 60 quiet candles, none touching either exit; close of the 60th wins.
	forward := make([][2]float64, 61)
	for i := range forward {
		forward[i] = [2]float64{101, 99}
	}

	candles := series(100, forward)
	pos := ResolvePosition(trigger(), candles, 200, DefaultSimConfig())

	assert.Equal(t, ExitTimeLimit, pos.ExitReason)
	// Close of the 60th scanned candle; (101+99)/2 = 100
	assert.InDelta(t, 100.0, pos.ExitPrice, 1e-9)
	assert.InDelta(t, 0.0, pos.RawROI, 1e-9)
}

func TestResolveWindowIsBounded(t *testing.T) {
	// A take-profit past the forward window must not fire.
	forward := make([][2]float64, 65)
	for i := range forward {
		forward[i] = [2]float64{101, 99}
	}
	forward[63] = [2]float64{95, 90} // beyond the 60-candle window

	candles := series(100, forward)
	pos := ResolvePosition(trigger(), candles, 200, DefaultSimConfig())

	assert.Equal(t, ExitTimeLimit, pos.ExitReason)
}

func TestResolveSkippedOnMissingEntry(t *testing.T) {
	// No candle at the trigger timestamp.
	candles := series(100, [][2]float64{{101, 99}})
	trig := detector.TriggerEvent{Timestamp: entryTime.Add(30 * time.Second)}

	pos := ResolvePosition(trig, candles, 200, DefaultSimConfig())

	assert.Equal(t, ExitSkipped, pos.ExitReason)
	assert.Equal(t, 0.0, pos.LeveragedPnL)

	pos = ResolvePosition(trig, nil, 200, DefaultSimConfig())
	assert.Equal(t, ExitSkipped, pos.ExitReason)
}

func TestResolveNoForwardCandles(t *testing.T) {
	// Entry candle is the last of the series: time-limit exit at entry price.
	candles := series(100, nil)
	pos := ResolvePosition(trigger(), candles, 200, DefaultSimConfig())

	assert.Equal(t, ExitTimeLimit, pos.ExitReason)
	assert.InDelta(t, 100.0, pos.ExitPrice, 1e-9)
	assert.InDelta(t, 0.0, pos.LeveragedPnL, 1e-9)
}
