package slippage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	e := NewEstimator(newTestModel(), DefaultFeeRate)

	// 0.2 BTC at 50,000 = 10,000 USD notional against 100M volume:
	// base 0.05% + size 0% + default vol 0.02% = 0.07% slippage.
	est, err := e.Estimate("BTCUSDT", 50000, 0.2, SideBuy, ExchangeBinance, 0, 100_000_000)
	require.NoError(t, err)

	assert.InDelta(t, 7.0, est.SlippageCostUSD, 1e-9)
	assert.InDelta(t, 10.0, est.FeeCostUSD, 1e-9)
	assert.Equal(t, est.SlippageCostUSD+est.FeeCostUSD, est.TotalCostUSD)
	assert.InDelta(t, 0.17, est.TotalCostPct, 1e-9)
	assert.Greater(t, est.ExpectedFill, 50000.0)
}

func TestEstimateInvalidInput(t *testing.T) {
	e := NewEstimator(newTestModel(), DefaultFeeRate)

	_, err := e.Estimate("BTCUSDT", -5, 1, SideBuy, ExchangeBinance, 0, 0)
	assert.ErrorContains(t, err, "price")

	_, err = e.Estimate("BTCUSDT", 50000, 0, SideBuy, ExchangeBinance, 0, 0)
	assert.ErrorContains(t, err, "quantity")

	_, err = e.Estimate("BTCUSDT", 50000, 1, Side("HOLD"), ExchangeBinance, 0, 0)
	assert.ErrorContains(t, err, "side")
}

func TestEstimateZeroFeeRateUsesDefault(t *testing.T) {
	e := NewEstimator(newTestModel(), 0)

	est, err := e.Estimate("BTCUSDT", 50000, 0.2, SideSell, ExchangeBinance, 0, 100_000_000)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, est.FeeCostUSD, 1e-9)
}

func TestEstimatorConcurrentVolumeUpdates(t *testing.T) {
	e := NewEstimator(newTestModel(), DefaultFeeRate)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.SetVolume("SOLUSDT", float64(1_000_000*(n+1)))
				_, err := e.Estimate("SOLUSDT", 150, 10, SideSell, ExchangeBybit, 0, 0)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
}
