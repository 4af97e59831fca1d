package slippage

import (
	"fmt"
)

// DefaultFeeRate is the assumed maker/taker fee (0.1%).
const DefaultFeeRate = 0.001

// CostEstimate is the dollar-denominated execution cost of a prospective
// order. Costs are rounded to 4 decimal places; TotalCostPct is in percent
// units.
type CostEstimate struct {
	SlippageCostUSD float64 `json:"slippage_cost_usd"`
	FeeCostUSD      float64 `json:"fee_cost_usd"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	TotalCostPct    float64 `json:"total_cost_pct"`
	ExpectedFill    float64 `json:"expected_fill"`
}

// Estimator wraps a Model with fee accounting. It is safe for concurrent use.
type Estimator struct {
	model   *Model
	feeRate float64
}

// NewEstimator builds an estimator over the given model. A feeRate of 0
// selects DefaultFeeRate.
func NewEstimator(model *Model, feeRate float64) *Estimator {
	if feeRate <= 0 {
		feeRate = DefaultFeeRate
	}
	return &Estimator{model: model, feeRate: feeRate}
}

// SetVolume refreshes the cached 24h volume for a symbol.
func (e *Estimator) SetVolume(symbol string, volume24h float64) {
	e.model.SetVolume(symbol, volume24h)
}

// Estimate computes total execution cost (slippage + fees) for an order of
// the given quantity at the given price. ATR and volume24h are optional; zero
// means unknown.
func (e *Estimator) Estimate(symbol string, price, quantity float64, side Side, exchange Exchange, atr, volume24h float64) (CostEstimate, error) {
	if price < 0 {
		return CostEstimate{}, fmt.Errorf("invalid order: negative price %v", price)
	}
	if quantity <= 0 {
		return CostEstimate{}, fmt.Errorf("invalid order: non-positive quantity %v", quantity)
	}

	orderSizeUSD := price * quantity

	breakdown, err := e.model.Calculate(OrderContext{
		Symbol:        symbol,
		Price:         price,
		OrderSizeUSD:  orderSizeUSD,
		Side:          side,
		Exchange:      exchange,
		ATR:           atr,
		Volume24h:     volume24h,
		IsMarketOrder: true,
	})
	if err != nil {
		return CostEstimate{}, err
	}

	slippageCost := roundTo(orderSizeUSD*(breakdown.TotalSlippagePct/100), 4)
	feeCost := roundTo(orderSizeUSD*e.feeRate, 4)
	// Summing the rounded components keeps total == slippage + fee exact.
	totalCost := roundTo(slippageCost+feeCost, 4)

	totalCostPct := 0.0
	if orderSizeUSD > 0 {
		totalCostPct = roundTo(totalCost/orderSizeUSD*100, 4)
	}

	return CostEstimate{
		SlippageCostUSD: slippageCost,
		FeeCostUSD:      feeCost,
		TotalCostUSD:    totalCost,
		TotalCostPct:    totalCostPct,
		ExpectedFill:    breakdown.ExpectedFillPrice,
	}, nil
}
