package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
	"github.com/iphasm/Nexus-TB-sub003/internal/detector"
)

// Result aggregates one backtest run. Positions keep dispatch order: trigger
// order first, then target order within a trigger.
type Result struct {
	RunID          string                  `json:"run_id"`
	Triggers       []detector.TriggerEvent `json:"triggers"`
	Positions      []Position              `json:"positions"`
	TotalPnL       float64                 `json:"total_pnl"`
	InitialCapital float64                 `json:"initial_capital"`
	FinalEquity    float64                 `json:"final_equity"`
	ROI            float64                 `json:"roi"`
	Start          time.Time               `json:"start"`
	End            time.Time               `json:"end"`
}

// Engine drives the crash detector and the position simulator across a
// historical window. It is sequential and single-pass; results depend only on
// the supplied candles and configuration.
type Engine struct {
	detector *detector.Detector
	sim      SimConfig
}

func NewEngine(d *detector.Detector, sim SimConfig) *Engine {
	return &Engine{detector: d, sim: sim}
}

// Run detects triggers on the primary series and resolves one short per
// trigger per target symbol. Capital is split equally across targets once and
// never re-balanced. Skipped positions are recorded but excluded from PnL.
func (e *Engine) Run(primary []candle.Candle, targets map[string][]candle.Candle, targetSymbols []string, initialCapital float64) (*Result, error) {
	if initialCapital <= 0 {
		return nil, fmt.Errorf("invalid initial capital %v: must be positive", initialCapital)
	}
	if len(targetSymbols) == 0 {
		return nil, fmt.Errorf("invalid target symbols: list is empty")
	}

	allocation := initialCapital / float64(len(targetSymbols))

	res := &Result{
		RunID:          uuid.NewString(),
		InitialCapital: initialCapital,
	}
	if len(primary) > 0 {
		res.Start = primary[0].Timestamp
		res.End = primary[len(primary)-1].Timestamp
	}

	res.Triggers = e.detector.Detect(primary)
	log.WithFields(log.Fields{
		"run_id":   res.RunID,
		"candles":  len(primary),
		"triggers": len(res.Triggers),
	}).Info("Run | crash scan complete")

	for _, trig := range res.Triggers {
		for _, symbol := range targetSymbols {
			pos := ResolvePosition(trig, targets[symbol], allocation, e.sim)
			if pos.Symbol == "" {
				pos.Symbol = symbol
			}
			res.Positions = append(res.Positions, pos)

			if pos.ExitReason == ExitSkipped {
				log.WithFields(log.Fields{
					"symbol": symbol,
					"time":   trig.Timestamp.Format(time.RFC3339),
				}).Warn("Run | no target candle at trigger, position skipped")
				continue
			}
			res.TotalPnL += pos.LeveragedPnL
		}
	}

	res.FinalEquity = initialCapital + res.TotalPnL
	res.ROI = res.TotalPnL / initialCapital

	log.WithFields(log.Fields{
		"run_id":       res.RunID,
		"positions":    len(res.Positions),
		"total_pnl":    res.TotalPnL,
		"final_equity": res.FinalEquity,
	}).Info("Run | backtest finished")

	return res, nil
}
