// Package db
package db

import (
	"context"
	"time"

	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
)

// Storage is the interface for candle persistence. Implementations must
// return candles ordered by timestamp ascending with an exclusive end bound.
type Storage interface {
	SaveCandles(ctx context.Context, candles []candle.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
	GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error)
}
