// Package config
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/iphasm/Nexus-TB-sub003/internal/slippage"
)

/*
YAML config example:
mode: "backtest"
primary_symbol: "BTCUSDT"
target_symbols: ["SOLUSDT", "DOGEUSDT", "SUIUSDT", "RENDERUSDT", "WIFUSDT"]
timeframe: "1m"
initial_capital: 1000
crash_threshold_pct: 0.03
cooldown_seconds: 300
take_profit_pct: 0.06
stop_loss_pct: 0.03
forward_window_candles: 60
leverage_multiplier: 5
fee_rate: 0.001
default_volume_24h: 1000000
base_slippage:
  BINANCE: 0.0005
  BYBIT: 0.0006
size_impact:
  - { max_ratio: 0.001, impact: 0 }
  - { max_ratio: 0.005, impact: 0.0002 }
*/

type Config struct {
	Mode string `yaml:"mode"`

	DBConnStr string `yaml:"db_conn_str"`
	DBMaxOpen int    `yaml:"db_max_open"`
	DBMaxIdle int    `yaml:"db_max_idle"`

	ProxyURL            string        `yaml:"proxy_url"`
	APIRetryMaxAttempts int           `yaml:"api_retry_max_attempts"`
	APIRetryBaseDelay   time.Duration `yaml:"api_retry_base_delay"`
	APIRetryMaxDelay    time.Duration `yaml:"api_retry_max_delay"`

	PrimarySymbol string    `yaml:"primary_symbol"`
	TargetSymbols []string  `yaml:"target_symbols"`
	Timeframe     string    `yaml:"timeframe"`
	BacktestFrom  time.Time `yaml:"backtest_from"`
	BacktestTo    time.Time `yaml:"backtest_to"`

	InitialCapital       float64 `yaml:"initial_capital"`
	CrashThresholdPct    float64 `yaml:"crash_threshold_pct"`
	CooldownSeconds      int     `yaml:"cooldown_seconds"`
	TakeProfitPct        float64 `yaml:"take_profit_pct"`
	StopLossPct          float64 `yaml:"stop_loss_pct"`
	ForwardWindowCandles int     `yaml:"forward_window_candles"`
	LeverageMultiplier   float64 `yaml:"leverage_multiplier"`

	FeeRate          float64 `yaml:"fee_rate"`
	DefaultVolume24h float64 `yaml:"default_volume_24h"`

	// Optional table overrides; empty means the calibrated defaults.
	BaseSlippage     map[string]float64 `yaml:"base_slippage"`
	SizeImpact       []slippage.Bracket `yaml:"size_impact"`
	VolatilityImpact []slippage.Bracket `yaml:"volatility_impact"`

	// Estimate mode parameters
	EstimateSymbol   string  `yaml:"estimate_symbol"`
	EstimatePrice    float64 `yaml:"estimate_price"`
	EstimateQuantity float64 `yaml:"estimate_quantity"`
	EstimateSide     string  `yaml:"estimate_side"`
	EstimateExchange string  `yaml:"estimate_exchange"`
	ATRPeriod        int     `yaml:"atr_period"`

	ResultsCSV string `yaml:"results_csv"`
}

// Load parses flags, .env and an optional YAML config file.
func Load() (Config, error) {
	// .env is optional; absence is not an error
	_ = godotenv.Load()

	mode := flag.String("mode", "backtest", "Mode: backtest or estimate")
	primarySymbol := flag.String("primary-symbol", "BTCUSDT", "Reference instrument scanned for crash triggers")
	targetsFlag := flag.String("targets", "SOLUSDT,DOGEUSDT,SUIUSDT,RENDERUSDT,WIFUSDT", "Comma-separated short targets")
	timeframe := flag.String("timeframe", "1m", "Candle timeframe")
	from := flag.String("from", time.Now().AddDate(0, 0, -3).Format("2006-01-02"), "Backtest start date (YYYY-MM-DD)")
	to := flag.String("to", time.Now().Format("2006-01-02"), "Backtest end date (YYYY-MM-DD)")
	initialCapital := flag.Float64("capital", 1000, "Initial capital in USD")
	crashThreshold := flag.Float64("crash-threshold", 0.03, "Crash trigger threshold (0.03 = 3% drop)")
	cooldownSeconds := flag.Int("cooldown", 300, "Seconds between accepted triggers")
	takeProfit := flag.Float64("take-profit", 0.06, "Take profit fraction (price drop for a short)")
	stopLoss := flag.Float64("stop-loss", 0.03, "Stop loss fraction (price rise for a short)")
	forwardWindow := flag.Int("forward-window", 60, "Candles scanned after entry before the time-limit exit")
	leverage := flag.Float64("leverage", 5, "Leverage multiplier")
	feeRate := flag.Float64("fee-rate", slippage.DefaultFeeRate, "Exchange fee rate")
	defaultVolume := flag.Float64("default-volume", 1_000_000, "Fallback 24h volume in USD")
	proxyURL := flag.String("proxy", "", "HTTP proxy URL for API requests")
	retryAttempts := flag.Int("api-retries", 3, "API retry attempts")
	retryBaseDelay := flag.Duration("api-retry-base-delay", 2*time.Second, "Base delay between API retries")
	retryMaxDelay := flag.Duration("api-retry-max-delay", 15*time.Second, "Max delay between API retries")
	estSymbol := flag.String("est-symbol", "BTCUSDT", "Symbol for cost estimation")
	estPrice := flag.Float64("est-price", 0, "Price for cost estimation (0 = last close)")
	estQuantity := flag.Float64("est-quantity", 0.1, "Quantity for cost estimation")
	estSide := flag.String("est-side", "SELL", "Side for cost estimation: BUY or SELL")
	estExchange := flag.String("est-exchange", "BINANCE", "Venue for cost estimation")
	atrPeriod := flag.Int("atr-period", 14, "ATR period for the volatility input")
	resultsCSV := flag.String("results-csv", "backtest_positions.csv", "Position log output file (empty to skip)")
	configFile := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
		fileCfg.applyDefaults()
		return fileCfg, nil
	}

	fromTime, err := time.Parse("2006-01-02", *from)
	if err != nil {
		return Config{}, fmt.Errorf("invalid -from date %q: %w", *from, err)
	}
	toTime, err := time.Parse("2006-01-02", *to)
	if err != nil {
		return Config{}, fmt.Errorf("invalid -to date %q: %w", *to, err)
	}

	cfg := Config{
		Mode:                 *mode,
		DBConnStr:            os.Getenv("DB_CONN_STR"),
		DBMaxOpen:            10,
		DBMaxIdle:            5,
		ProxyURL:             *proxyURL,
		APIRetryMaxAttempts:  *retryAttempts,
		APIRetryBaseDelay:    *retryBaseDelay,
		APIRetryMaxDelay:     *retryMaxDelay,
		PrimarySymbol:        *primarySymbol,
		TargetSymbols:        splitSymbols(*targetsFlag),
		Timeframe:            *timeframe,
		BacktestFrom:         fromTime,
		BacktestTo:           toTime,
		InitialCapital:       *initialCapital,
		CrashThresholdPct:    *crashThreshold,
		CooldownSeconds:      *cooldownSeconds,
		TakeProfitPct:        *takeProfit,
		StopLossPct:          *stopLoss,
		ForwardWindowCandles: *forwardWindow,
		LeverageMultiplier:   *leverage,
		FeeRate:              *feeRate,
		DefaultVolume24h:     *defaultVolume,
		EstimateSymbol:       *estSymbol,
		EstimatePrice:        *estPrice,
		EstimateQuantity:     *estQuantity,
		EstimateSide:         *estSide,
		EstimateExchange:     *estExchange,
		ATRPeriod:            *atrPeriod,
		ResultsCSV:           *resultsCSV,
	}
	if proxy := os.Getenv("PROXY_URL"); proxy != "" && cfg.ProxyURL == "" {
		cfg.ProxyURL = proxy
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "backtest"
	}
	if c.PrimarySymbol == "" {
		c.PrimarySymbol = "BTCUSDT"
	}
	if c.Timeframe == "" {
		c.Timeframe = "1m"
	}
	if c.InitialCapital == 0 {
		c.InitialCapital = 1000
	}
	if c.CrashThresholdPct == 0 {
		c.CrashThresholdPct = 0.03
	}
	if c.CooldownSeconds == 0 {
		c.CooldownSeconds = 300
	}
	if c.TakeProfitPct == 0 {
		c.TakeProfitPct = 0.06
	}
	if c.StopLossPct == 0 {
		c.StopLossPct = 0.03
	}
	if c.ForwardWindowCandles == 0 {
		c.ForwardWindowCandles = 60
	}
	if c.LeverageMultiplier == 0 {
		c.LeverageMultiplier = 5
	}
	if c.FeeRate == 0 {
		c.FeeRate = slippage.DefaultFeeRate
	}
	if c.DefaultVolume24h == 0 {
		c.DefaultVolume24h = 1_000_000
	}
	if c.ATRPeriod == 0 {
		c.ATRPeriod = 14
	}
	if c.DBConnStr == "" {
		c.DBConnStr = os.Getenv("DB_CONN_STR")
	}
}

// Cooldown returns the trigger cooldown as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// SlippageConfig merges the YAML table overrides over the defaults.
func (c Config) SlippageConfig() slippage.Config {
	sc := slippage.DefaultConfig()
	if c.DefaultVolume24h > 0 {
		sc.DefaultVolume24h = c.DefaultVolume24h
	}
	for venue, rate := range c.BaseSlippage {
		sc.BaseSlippage[slippage.ParseExchange(venue)] = rate
	}
	if len(c.SizeImpact) > 0 {
		sc.SizeImpact = c.SizeImpact
	}
	if len(c.VolatilityImpact) > 0 {
		sc.VolatilityImpact = c.VolatilityImpact
	}
	return sc
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
