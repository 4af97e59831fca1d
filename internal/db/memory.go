package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
)

// Memory is an in-memory Storage used for tests and db-less runs.
type Memory struct {
	mu      sync.RWMutex
	candles map[string]candle.Candle
}

func NewMemory() *Memory {
	return &Memory{candles: make(map[string]candle.Candle)}
}

func candleKey(symbol, timeframe string, ts time.Time) string {
	return strings.ToUpper(symbol) + "|" + timeframe + "|" + ts.UTC().Format(time.RFC3339Nano)
}

func (m *Memory) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			return err
		}
		c.Timestamp = c.Timestamp.UTC()
		m.candles[candleKey(c.Symbol, c.Timeframe, c.Timestamp)] = c
	}
	return nil
}

func (m *Memory) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []candle.Candle
	for _, c := range m.candles {
		if !strings.EqualFold(c.Symbol, symbol) || c.Timeframe != timeframe {
			continue
		}
		if c.Timestamp.Before(start) || !c.Timestamp.Before(end) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *Memory) GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error) {
	candles, err := m.GetCandles(ctx, symbol, timeframe, start, end)
	if err != nil {
		return 0, err
	}
	return len(candles), nil
}
