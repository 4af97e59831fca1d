package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iphasm/Nexus-TB-sub003/internal/backtest"
	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
	"github.com/iphasm/Nexus-TB-sub003/internal/config"
	"github.com/iphasm/Nexus-TB-sub003/internal/db"
	"github.com/iphasm/Nexus-TB-sub003/internal/detector"
	"github.com/iphasm/Nexus-TB-sub003/internal/exchange"
	"github.com/iphasm/Nexus-TB-sub003/internal/indicator"
	"github.com/iphasm/Nexus-TB-sub003/internal/slippage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main | Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("main | shutdown signal received")
		cancel()
	}()

	client, err := exchange.NewClient(cfg.ProxyURL, cfg.APIRetryMaxAttempts, cfg.APIRetryBaseDelay, cfg.APIRetryMaxDelay)
	if err != nil {
		log.Fatalf("main | Failed to build exchange client: %v", err)
	}

	switch cfg.Mode {
	case "backtest":
		if err := runBacktest(ctx, cfg, client); err != nil {
			log.Fatalf("main | Backtest failed: %v", err)
		}
	case "estimate":
		if err := runEstimate(ctx, cfg, client); err != nil {
			log.Fatalf("main | Estimate failed: %v", err)
		}
	default:
		log.Fatalf("main | Unknown mode %q (want backtest or estimate)", cfg.Mode)
	}
}

// openStorage prefers postgres when a connection string is configured and
// falls back to the in-memory store otherwise.
func openStorage(ctx context.Context, cfg config.Config) (db.Storage, func(), error) {
	if cfg.DBConnStr == "" {
		log.Info("openStorage | no DB_CONN_STR set, using in-memory candle store")
		return db.NewMemory(), func() {}, nil
	}

	pg, err := db.NewPostgres(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, func() { pg.Close() }, nil
}

// loadCandles serves candles from storage, downloading and persisting the
// range first when storage has none.
func loadCandles(ctx context.Context, storage db.Storage, client *exchange.Client, cfg config.Config, symbol string) ([]candle.Candle, error) {
	candles, err := storage.GetCandles(ctx, symbol, cfg.Timeframe, cfg.BacktestFrom, cfg.BacktestTo)
	if err != nil {
		return nil, fmt.Errorf("error loading candles for %s: %w", symbol, err)
	}
	if len(candles) > 0 {
		return candles, nil
	}

	log.WithField("symbol", symbol).Info("loadCandles | no candles in storage, downloading")
	downloaded, err := client.FetchCandlesChunked(ctx, symbol, cfg.Timeframe, cfg.BacktestFrom, cfg.BacktestTo, 12*time.Hour)
	if err != nil {
		return nil, err
	}
	downloaded = candle.TrimRange(downloaded, cfg.BacktestFrom, cfg.BacktestTo)
	if len(downloaded) == 0 {
		return nil, fmt.Errorf("no candles available for %s from %s to %s",
			symbol, cfg.BacktestFrom.Format(time.RFC3339), cfg.BacktestTo.Format(time.RFC3339))
	}
	if err := storage.SaveCandles(ctx, downloaded); err != nil {
		return nil, fmt.Errorf("error saving candles for %s: %w", symbol, err)
	}
	return downloaded, nil
}

func runBacktest(ctx context.Context, cfg config.Config, client *exchange.Client) error {
	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	primary, err := loadCandles(ctx, storage, client, cfg, cfg.PrimarySymbol)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"symbol":  cfg.PrimarySymbol,
		"candles": len(primary),
		"from":    cfg.BacktestFrom.Format(time.RFC3339),
		"to":      cfg.BacktestTo.Format(time.RFC3339),
	}).Info("runBacktest | primary series loaded")

	targets := make(map[string][]candle.Candle, len(cfg.TargetSymbols))
	for _, symbol := range cfg.TargetSymbols {
		series, err := loadCandles(ctx, storage, client, cfg, symbol)
		if err != nil {
			// A missing target shows up as skipped positions, not a run abort.
			log.WithField("symbol", symbol).Warnf("runBacktest | %v", err)
			continue
		}
		targets[symbol] = series
	}

	engine := backtest.NewEngine(
		detector.New(cfg.CrashThresholdPct, cfg.Cooldown()),
		backtest.SimConfig{
			TakeProfitPct: cfg.TakeProfitPct,
			StopLossPct:   cfg.StopLossPct,
			ForwardWindow: cfg.ForwardWindowCandles,
			Leverage:      cfg.LeverageMultiplier,
		},
	)

	result, err := engine.Run(primary, targets, cfg.TargetSymbols, cfg.InitialCapital)
	if err != nil {
		return err
	}

	backtest.PrintResult(os.Stdout, result)

	if cfg.ResultsCSV != "" {
		if err := backtest.SavePositionsCSV(cfg.ResultsCSV, result); err != nil {
			return err
		}
		log.WithField("file", cfg.ResultsCSV).Info("runBacktest | position log saved")
	}
	return nil
}

func runEstimate(ctx context.Context, cfg config.Config, client *exchange.Client) error {
	model := slippage.NewModel(cfg.SlippageConfig())
	estimator := slippage.NewEstimator(model, cfg.FeeRate)

	side, err := slippage.ParseSide(cfg.EstimateSide)
	if err != nil {
		return err
	}

	volumes, err := client.Fetch24hVolumes(ctx, []string{cfg.EstimateSymbol})
	if err != nil {
		return err
	}
	if vol, ok := volumes[cfg.EstimateSymbol]; ok {
		estimator.SetVolume(cfg.EstimateSymbol, vol)
		log.WithFields(log.Fields{"symbol": cfg.EstimateSymbol, "volume_24h": vol}).
			Info("runEstimate | volume cache seeded")
	}

	// Pull the last day of candles for price and ATR context.
	now := time.Now().UTC().Truncate(time.Minute)
	recent, err := client.FetchCandles(ctx, cfg.EstimateSymbol, "1m", now.Add(-16*time.Hour), now)
	if err != nil {
		return err
	}

	price := cfg.EstimatePrice
	if price == 0 && len(recent) > 0 {
		price = recent[len(recent)-1].Close
	}
	atr := indicator.LatestATR(recent, cfg.ATRPeriod)

	est, err := estimator.Estimate(cfg.EstimateSymbol, price, cfg.EstimateQuantity,
		side, slippage.ParseExchange(cfg.EstimateExchange), atr, 0)
	if err != nil {
		return err
	}

	fmt.Printf("Execution cost for %s %v %s @ %.8f (ATR %.4f):\n",
		cfg.EstimateSide, cfg.EstimateQuantity, cfg.EstimateSymbol, price, atr)
	fmt.Printf("  Slippage cost: $%.4f\n", est.SlippageCostUSD)
	fmt.Printf("  Fee cost:      $%.4f\n", est.FeeCostUSD)
	fmt.Printf("  Total cost:    $%.4f (%.4f%%)\n", est.TotalCostUSD, est.TotalCostPct)
	fmt.Printf("  Expected fill: %.8f\n", est.ExpectedFill)
	return nil
}
