// Package backtest
package backtest

import (
	"time"

	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
	"github.com/iphasm/Nexus-TB-sub003/internal/detector"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take-profit"
	ExitStopLoss   ExitReason = "stop-loss"
	ExitTimeLimit  ExitReason = "time-limit"
	ExitSkipped    ExitReason = "skipped"
)

// Position is one resolved short trade. It is frozen once returned.
type Position struct {
	Symbol       string     `json:"symbol"`
	EntryTime    time.Time  `json:"entry_time"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    float64    `json:"exit_price"`
	ExitReason   ExitReason `json:"exit_reason"`
	RawROI       float64    `json:"raw_roi"`
	LeveragedPnL float64    `json:"leveraged_pnl"`
}

// SimConfig holds the exit parameters for position resolution.
type SimConfig struct {
	TakeProfitPct float64 // price drop that closes a short in profit
	StopLossPct   float64 // price rise that closes a short at a loss
	ForwardWindow int     // candles scanned after entry before the time-limit exit
	Leverage      float64
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		TakeProfitPct: 0.06,
		StopLossPct:   0.03,
		ForwardWindow: 60,
		Leverage:      5,
	}
}

// ResolvePosition opens a short on the target at the close of the trigger
// candle and walks the next ForwardWindow candles for an exit. Take-profit is
// checked before stop-loss within each candle, so a candle satisfying both
// resolves to take-profit. If the target series has no candle at the trigger
// timestamp the position is Skipped rather than treated as a fault, so one
// missing instrument never aborts a multi-target dispatch.
func ResolvePosition(trigger detector.TriggerEvent, targetCandles []candle.Candle, allocationUSD float64, cfg SimConfig) Position {
	pos := Position{EntryTime: trigger.Timestamp}
	if len(targetCandles) > 0 {
		pos.Symbol = targetCandles[0].Symbol
	}

	entryIdx := candle.IndexAt(targetCandles, trigger.Timestamp)
	if entryIdx < 0 {
		pos.ExitReason = ExitSkipped
		return pos
	}

	// Entry at the close of the crash candle; conservative versus mid-candle.
	entryPrice := targetCandles[entryIdx].Close
	pos.EntryPrice = entryPrice

	tpPrice := entryPrice * (1 - cfg.TakeProfitPct)
	slPrice := entryPrice * (1 + cfg.StopLossPct)

	forward := targetCandles[entryIdx+1:]
	if len(forward) > cfg.ForwardWindow {
		forward = forward[:cfg.ForwardWindow]
	}

	exitPrice := entryPrice
	exitReason := ExitTimeLimit
	for _, c := range forward {
		if c.Low <= tpPrice {
			exitPrice = tpPrice
			exitReason = ExitTakeProfit
			break
		}
		if c.High >= slPrice {
			exitPrice = slPrice
			exitReason = ExitStopLoss
			break
		}
	}
	if exitReason == ExitTimeLimit && len(forward) > 0 {
		exitPrice = forward[len(forward)-1].Close
	}

	pos.ExitPrice = exitPrice
	pos.ExitReason = exitReason
	// Short convention: ROI is positive when price falls.
	pos.RawROI = (entryPrice - exitPrice) / entryPrice
	pos.LeveragedPnL = allocationUSD * pos.RawROI * cfg.Leverage
	return pos
}
