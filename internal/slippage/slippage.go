// Package slippage
package slippage

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Exchange identifies a supported trading venue.
type Exchange string

const (
	ExchangeBinance Exchange = "BINANCE"
	ExchangeBybit   Exchange = "BYBIT"
	ExchangeAlpaca  Exchange = "ALPACA"
)

// ParseExchange resolves a venue tag. Unknown tags fall back to Binance, the
// most liquid venue; this is a documented default, not an error.
func ParseExchange(s string) Exchange {
	switch Exchange(strings.ToUpper(s)) {
	case ExchangeBinance:
		return ExchangeBinance
	case ExchangeBybit:
		return ExchangeBybit
	case ExchangeAlpaca:
		return ExchangeAlpaca
	default:
		return ExchangeBinance
	}
}

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide resolves a side token. Unlike venue tags, an unrecognized side is
// a hard error: the caller's intent cannot be guessed.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(s)) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("unrecognized side %q (want BUY or SELL)", s)
	}
}

// Bracket maps a ratio upper bound (inclusive) to an impact. Tables are
// ordered by MaxRatio ascending; ratios beyond the last bracket use the last
// bracket's impact.
type Bracket struct {
	MaxRatio float64 `yaml:"max_ratio"`
	Impact   float64 `yaml:"impact"`
}

// Config holds the model's tables and defaults. All impacts and rates are
// decimal fractions (0.0005 = 0.05%).
type Config struct {
	BaseSlippage            map[Exchange]float64
	LimitOrderScale         float64
	SizeImpact              []Bracket
	VolatilityImpact        []Bracket
	DefaultVolatilityImpact float64
	DefaultVolume24h        float64
}

// DefaultConfig returns the calibrated production tables.
func DefaultConfig() Config {
	return Config{
		BaseSlippage: map[Exchange]float64{
			ExchangeBinance: 0.0005, // 0.05% - very liquid
			ExchangeBybit:   0.0006, // 0.06% - slightly less liquid
			ExchangeAlpaca:  0.0008, // 0.08% - stock markets, wider spreads
		},
		LimitOrderScale: 0.3,
		SizeImpact: []Bracket{
			{MaxRatio: 0.001, Impact: 0},     // < 0.1% of volume: negligible
			{MaxRatio: 0.005, Impact: 0.0002},
			{MaxRatio: 0.01, Impact: 0.0005},
			{MaxRatio: 0.02, Impact: 0.001},
			{MaxRatio: 0.05, Impact: 0.003},
			{MaxRatio: math.Inf(1), Impact: 0.01}, // > 5%: severe impact
		},
		VolatilityImpact: []Bracket{
			{MaxRatio: 0.01, Impact: 0.0001},
			{MaxRatio: 0.02, Impact: 0.0003},
			{MaxRatio: 0.03, Impact: 0.0005},
			{MaxRatio: 0.05, Impact: 0.001},
			{MaxRatio: math.Inf(1), Impact: 0.002},
		},
		DefaultVolatilityImpact: 0.0002,
		DefaultVolume24h:        1_000_000,
	}
}

// OrderContext describes the order being priced. ATR and Volume24h are
// optional; zero means unknown and the model substitutes its defaults.
type OrderContext struct {
	Symbol        string
	Price         float64
	OrderSizeUSD  float64
	Side          Side
	Exchange      Exchange
	ATR           float64
	Volume24h     float64
	IsMarketOrder bool
}

// Breakdown is the slippage estimate for one order. Percentage fields are in
// percent units (0.05 means 0.05%) rounded to 4 decimal places; prices are
// rounded to 8 decimal places.
type Breakdown struct {
	BaseSlippagePct     float64 `json:"base_slippage_pct"`
	SizeImpactPct       float64 `json:"size_impact_pct"`
	VolatilityImpactPct float64 `json:"volatility_impact_pct"`
	TotalSlippagePct    float64 `json:"total_slippage_pct"`
	ExpectedFillPrice   float64 `json:"expected_fill_price"`
	WorstCasePrice      float64 `json:"worst_case_price"`
}

// Model estimates execution slippage from venue, order size and volatility.
// It holds a per-symbol 24h volume cache refreshed by callers via SetVolume;
// a single long-lived instance may serve concurrent order-sizing requests.
type Model struct {
	cfg Config

	mu          sync.RWMutex
	volumeCache map[string]float64
}

func NewModel(cfg Config) *Model {
	return &Model{
		cfg:         cfg,
		volumeCache: make(map[string]float64),
	}
}

// SetVolume caches the 24h quote volume for a symbol. Freshness is the
// caller's responsibility; there is no expiry.
func (m *Model) SetVolume(symbol string, volume24h float64) {
	m.mu.Lock()
	m.volumeCache[symbol] = volume24h
	m.mu.Unlock()
}

// Volume returns the cached 24h volume for a symbol, or the configured
// default when the symbol has never been seen.
func (m *Model) Volume(symbol string) float64 {
	m.mu.RLock()
	v, ok := m.volumeCache[symbol]
	m.mu.RUnlock()
	if !ok || v <= 0 {
		return m.cfg.DefaultVolume24h
	}
	return v
}

// Calculate estimates slippage for an order. It is a pure function of the
// order context, the configured tables and the volume cache.
func (m *Model) Calculate(ctx OrderContext) (Breakdown, error) {
	if ctx.Price < 0 {
		return Breakdown{}, fmt.Errorf("invalid order context: negative price %v", ctx.Price)
	}
	if ctx.Side != SideBuy && ctx.Side != SideSell {
		return Breakdown{}, fmt.Errorf("invalid order context: unrecognized side %q", ctx.Side)
	}

	// 1. Venue base slippage; unknown venue tags fall back to Binance.
	base, ok := m.cfg.BaseSlippage[ctx.Exchange]
	if !ok {
		base = m.cfg.BaseSlippage[ExchangeBinance]
	}

	// Limit orders are assumed to fill at quote with less adverse selection.
	if !ctx.IsMarketOrder {
		base *= m.cfg.LimitOrderScale
	}

	// 2. Size impact relative to 24h volume.
	vol := ctx.Volume24h
	if vol <= 0 {
		vol = m.Volume(ctx.Symbol)
	}
	sizeImpact := m.sizeImpact(ctx.OrderSizeUSD, vol)

	// 3. Volatility impact from ATR.
	var volImpact float64
	if ctx.ATR > 0 && ctx.Price > 0 {
		volImpact = lookupBracket(m.cfg.VolatilityImpact, ctx.ATR/ctx.Price)
	} else {
		volImpact = m.cfg.DefaultVolatilityImpact
	}

	total := base + sizeImpact + volImpact

	var expectedFill, worstCase float64
	if ctx.Side == SideBuy {
		expectedFill = ctx.Price * (1 + total)
		worstCase = ctx.Price * (1 + total*2) // 2x stress heuristic, not a confidence bound
	} else {
		expectedFill = ctx.Price * (1 - total)
		worstCase = ctx.Price * (1 - total*2)
	}

	return Breakdown{
		BaseSlippagePct:     roundTo(base*100, 4),
		SizeImpactPct:       roundTo(sizeImpact*100, 4),
		VolatilityImpactPct: roundTo(volImpact*100, 4),
		TotalSlippagePct:    roundTo(total*100, 4),
		ExpectedFillPrice:   roundTo(expectedFill, 8),
		WorstCasePrice:      roundTo(worstCase, 8),
	}, nil
}

func (m *Model) sizeImpact(orderSizeUSD, volume24h float64) float64 {
	if volume24h <= 0 {
		volume24h = m.cfg.DefaultVolume24h
	}
	return lookupBracket(m.cfg.SizeImpact, orderSizeUSD/volume24h)
}

func lookupBracket(brackets []Bracket, ratio float64) float64 {
	for _, b := range brackets {
		if ratio <= b.MaxRatio {
			return b.Impact
		}
	}
	if len(brackets) == 0 {
		return 0
	}
	return brackets[len(brackets)-1].Impact
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
